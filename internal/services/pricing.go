package services

import "github.com/shopspring/decimal"

// PricingRules are the flat-rate parameters of checkout pricing.
type PricingRules struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
}

// DefaultPricingRules: 18% tax, free shipping from 100, otherwise 10.
func DefaultPricingRules() PricingRules {
	return PricingRules{
		TaxRate:               decimal.RequireFromString("0.18"),
		FreeShippingThreshold: decimal.NewFromInt(100),
		ShippingFee:           decimal.NewFromInt(10),
	}
}

// Pricing is the priced breakdown of an order.
type Pricing struct {
	ItemsPrice     decimal.Decimal
	TaxPrice       decimal.Decimal
	ShippingPrice  decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalPrice     decimal.Decimal
}

// PriceOrder prices an order. Tax applies to the discounted items price and
// shipping is free once itemsPrice reaches the threshold. Every amount is
// rounded to cents and the total never goes below zero.
func PriceOrder(itemsPrice, discount decimal.Decimal, rules PricingRules) Pricing {
	itemsPrice = itemsPrice.Round(2)
	discount = decimal.Max(decimal.Zero, decimal.Min(discount, itemsPrice)).Round(2)

	tax := itemsPrice.Sub(discount).Mul(rules.TaxRate).Round(2)

	shipping := rules.ShippingFee.Round(2)
	if itemsPrice.GreaterThanOrEqual(rules.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	total := itemsPrice.Add(tax).Add(shipping).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Pricing{
		ItemsPrice:     itemsPrice,
		TaxPrice:       tax,
		ShippingPrice:  shipping,
		DiscountAmount: discount,
		TotalPrice:     total.Round(2),
	}
}
