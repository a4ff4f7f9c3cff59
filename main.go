package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/shopspring/decimal"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handlers"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/gateway"
	"storefront/pkg/rabbitmq"
)

func main() {
	cfg := config.Load()

	app, cleanup, err := NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer cleanup()

	log.Printf("Starting server on port %s", cfg.AppPort)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
}

// NewApp wires storage, services and routes from cfg. The returned cleanup
// closes the broker connection and the database.
func NewApp(cfg *config.Config) (*fiber.App, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// --- Storage ---
	store, closeStore, err := openStore(cfg.Database)
	if err != nil {
		return nil, cleanup, err
	}
	closers = append(closers, closeStore)

	// --- Order events ---
	var publisher services.EventPublisher
	if cfg.RabbitMQ.Enabled {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQ.URL, Queue: cfg.RabbitMQ.Queue})
		if err != nil {
			log.Printf("Warning: RabbitMQ unavailable, order events are disabled: %v", err)
		} else {
			closers = append(closers, func() {
				if err := mqClient.Close(); err != nil {
					log.Printf("Error closing RabbitMQ client: %v", err)
				}
			})
			if err := mqClient.ConsumeOrderEvents(services.HandleOrderEvent); err != nil {
				log.Printf("Failed to start RabbitMQ consumer: %v", err)
			}
			publisher = mqClient
		}
	}
	notifier := services.NewNotifier(publisher)

	// --- Services ---
	pricing := services.PricingRules{
		TaxRate:               cfg.Pricing.TaxRate,
		FreeShippingThreshold: cfg.Pricing.FreeShippingThreshold,
		ShippingFee:           cfg.Pricing.ShippingFee,
	}
	gw := gateway.NewClient(gateway.Config{
		BaseURL:   cfg.Payment.GatewayURL,
		KeyID:     cfg.Payment.KeyID,
		KeySecret: cfg.Payment.KeySecret,
		Timeout:   cfg.Payment.Timeout,
	})
	if !gw.Configured() {
		log.Println("Warning: PAYMENT_GATEWAY_KEY_SECRET is not set; gateway payments are disabled")
	}

	authService := services.NewAuthService(store.Users(), cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	productService := services.NewProductService(store.Products())
	cartService := services.NewCartService(store)
	couponService := services.NewCouponService(store)
	orderService := services.NewOrderService(store, pricing, notifier)
	fulfillmentService := services.NewFulfillmentService(store, notifier)
	paymentService := services.NewPaymentService(store, gw, cfg.Payment.Currency, notifier)

	ctx := context.Background()
	if err := authService.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		return nil, cleanup, fmt.Errorf("failed to create admin account: %w", err)
	}
	if cfg.SeedDemoData {
		seedDemoData(ctx, store, authService)
	}

	// --- Fiber app ---
	app := fiber.New(fiber.Config{AppName: "storefront"})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New())

	apiV1 := app.Group("/api/v1")
	auth := middleware.AuthRequired(authService)

	handlers.NewAuthHandler(authService).RegisterRoutes(apiV1)
	handlers.NewProductHandler(productService).RegisterRoutes(apiV1, auth)
	handlers.NewCartHandler(cartService).RegisterRoutes(apiV1, auth)
	handlers.NewCouponHandler(couponService, cartService).RegisterRoutes(apiV1, auth)
	handlers.NewOrderHandler(orderService, fulfillmentService, paymentService).RegisterRoutes(apiV1, auth)

	// --- Health Check Endpoint ---
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": cfg.Database.Driver,
			"events":   publisher != nil,
		})
	})

	return app, cleanup, nil
}

// openStore picks the storage backend named by cfg.Driver.
func openStore(cfg config.DatabaseConfig) (repositories.Store, func(), error) {
	if cfg.Driver == "memory" {
		log.Println("Using in-memory storage")
		return repositories.NewMemoryStore(), func() {}, nil
	}

	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if err := database.Migrate(db); err != nil {
		closeDB()
		return nil, nil, err
	}
	log.Printf("Connected to %s database", cfg.Driver)
	return repositories.NewGORMStore(db), closeDB, nil
}

// seedDemoData adds a demo vendor with a few products and a welcome coupon.
// Existing data is left alone.
func seedDemoData(ctx context.Context, store repositories.Store, authService *services.AuthService) {
	vendor := &models.User{Username: "demo-vendor", Email: "vendor@example.com", Password: "vendor123", Role: models.RoleVendor}
	if err := authService.RegisterUser(ctx, vendor); err != nil {
		log.Printf("Skipping demo data: %v", err)
		return
	}

	products := []models.Product{
		{Name: "Laptop", Description: "High performance laptop", Price: decimal.NewFromInt(1200), StockCount: 10},
		{Name: "Keyboard", Description: "Mechanical keyboard", Price: decimal.NewFromInt(75), DiscountPercentage: decimal.NewFromInt(10), StockCount: 25},
		{Name: "Mouse", Description: "Ergonomic wireless mouse", Price: decimal.NewFromInt(25), StockCount: 50},
	}
	for i := range products {
		products[i].SellerID = vendor.ID
		if err := store.Products().Create(ctx, &products[i]); err != nil {
			log.Printf("Error seeding product %s: %v", products[i].Name, err)
			continue
		}
		log.Printf("Seeded product: %s (ID: %s)", products[i].Name, products[i].ID)
	}

	coupon := &models.Coupon{
		Code:         "WELCOME10",
		Type:         models.CouponPercentage,
		Value:        decimal.NewFromInt(10),
		StartDate:    time.Now(),
		EndDate:      time.Now().AddDate(0, 3, 0),
		PerUserLimit: 1,
		IsActive:     true,
	}
	if err := services.NewCouponService(store).CreateCoupon(ctx, coupon); err != nil {
		log.Printf("Error seeding coupon: %v", err)
	}
}
