package services_test

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartService_AddItemMergesIdenticalVariants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shirt := f.product(t, "v-1", "20", 10)

	red := models.Variant{{Name: "color", Value: "red"}, {Name: "size", Value: "M"}}
	redReordered := models.Variant{{Name: "size", Value: "M"}, {Name: "color", Value: "red"}}
	blue := models.Variant{{Name: "color", Value: "blue"}, {Name: "size", Value: "M"}}

	_, err := f.carts.AddItem(ctx, "u-1", services.AddToCartRequest{ProductID: shirt.ID, Quantity: 1, Variant: red})
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, "u-1", services.AddToCartRequest{ProductID: shirt.ID, Quantity: 2, Variant: redReordered})
	require.NoError(t, err)
	cart, err := f.carts.AddItem(ctx, "u-1", services.AddToCartRequest{ProductID: shirt.ID, Quantity: 1, Variant: blue})
	require.NoError(t, err)

	require.Len(t, cart.Items, 2)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, 1, cart.Items[1].Quantity)
	assert.Equal(t, 4, cart.TotalItems)
	assert.True(t, cart.Items[0].LineTotal.Equal(d("60")))
	assert.True(t, cart.TotalPrice.Equal(d("80")))

	stored, err := f.carts.GetCart(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
}

func TestCartService_AddItemSnapshotsDiscountedPrice(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "v-1", "80", 5)
	p.DiscountPercentage = d("25")
	require.NoError(t, f.store.Products().Update(context.Background(), p))

	cart := f.addToCart(t, "u-1", p.ID, 1)
	assert.True(t, cart.Items[0].UnitPrice.Equal(d("60")))
}

func TestCartService_AddItemRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "v-1", "10", 3)

	_, err := f.carts.AddItem(ctx, "u-1", services.AddToCartRequest{ProductID: p.ID, Quantity: 0})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	_, err = f.carts.AddItem(ctx, "u-1", services.AddToCartRequest{ProductID: p.ID, Quantity: 4})
	assert.True(t, errors.Is(err, apperrors.ErrInsufficientStock))

	f.addToCart(t, "u-1", p.ID, 2)
	_, err = f.carts.AddItem(ctx, "u-1", services.AddToCartRequest{ProductID: p.ID, Quantity: 2})
	assert.True(t, errors.Is(err, apperrors.ErrInsufficientStock), "merged quantity is checked against stock")

	_, err = f.carts.AddItem(ctx, "u-1", services.AddToCartRequest{ProductID: "missing", Quantity: 1})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestCartService_UpdateRemoveClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "v-1", "10", 5)
	b := f.product(t, "v-2", "4.5", 5)
	f.addToCart(t, "u-1", a.ID, 1)
	cart := f.addToCart(t, "u-1", b.ID, 2)
	itemA, itemB := cart.Items[0].ID, cart.Items[1].ID

	cart, err := f.carts.UpdateItem(ctx, "u-1", services.UpdateCartItemRequest{ItemID: itemA, Quantity: 4})
	require.NoError(t, err)
	assert.True(t, cart.TotalPrice.Equal(d("49")))

	_, err = f.carts.UpdateItem(ctx, "u-1", services.UpdateCartItemRequest{ItemID: itemA, Quantity: 0})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	_, err = f.carts.UpdateItem(ctx, "u-1", services.UpdateCartItemRequest{ItemID: itemA, Quantity: 6})
	assert.True(t, errors.Is(err, apperrors.ErrInsufficientStock))
	_, err = f.carts.UpdateItem(ctx, "u-1", services.UpdateCartItemRequest{ItemID: "nope", Quantity: 1})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	cart, err = f.carts.RemoveItem(ctx, "u-1", itemA)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, itemB, cart.Items[0].ID)

	cart, err = f.carts.Clear(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.TotalPrice.IsZero())
}

func TestCartService_CouponFollowsCartChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "v-1", "30", 10)
	f.coupon(t, "SAVE10", models.CouponPercentage, "10", func(c *models.Coupon) { c.MinPurchase = d("50") })

	f.addToCart(t, "u-1", p.ID, 1)
	_, err := f.carts.ApplyCoupon(ctx, "u-1", "save10")
	assert.True(t, errors.Is(err, apperrors.ErrCouponInvalid), "30 is below the minimum purchase")

	f.addToCart(t, "u-1", p.ID, 1)
	cart, err := f.carts.ApplyCoupon(ctx, "u-1", "save10")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", cart.CouponCode)
	assert.True(t, cart.DiscountAmount.Equal(d("6")))
	assert.True(t, cart.TotalPrice.Equal(d("54")))

	cart = f.addToCart(t, "u-1", p.ID, 1)
	assert.True(t, cart.DiscountAmount.Equal(d("9")), "discount is re-evaluated on every mutation")

	cart, err = f.carts.UpdateItem(ctx, "u-1", services.UpdateCartItemRequest{ItemID: cart.Items[0].ID, Quantity: 1})
	require.NoError(t, err)
	assert.Empty(t, cart.CouponCode, "coupon is dropped once it no longer applies")
	assert.True(t, cart.TotalPrice.Equal(d("30")))

	_, err = f.carts.ApplyCoupon(ctx, "u-2", "SAVE10")
	assert.True(t, errors.Is(err, apperrors.ErrEmptyCart))
}

func TestCartService_RemoveCoupon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "v-1", "100", 10)
	f.coupon(t, "FLAT5", models.CouponFixed, "5", nil)
	f.addToCart(t, "u-1", p.ID, 1)

	_, err := f.carts.ApplyCoupon(ctx, "u-1", "FLAT5")
	require.NoError(t, err)
	cart, err := f.carts.RemoveCoupon(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, cart.CouponCode)
	assert.True(t, cart.TotalPrice.Equal(d("100")))
}
