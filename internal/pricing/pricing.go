// Package pricing computes per-line and aggregate payable totals and enforces
// the price-dependent submission gates. All computation is pure and
// deterministic; totals are grouped by currency and never converted.
package pricing

import (
	"math"

	"github.com/harborline/be-procurement-requests/internal/domain"
	apperrors "github.com/harborline/be-procurement-requests/internal/errors"
)

// Engine computes line-item totals under a fixed VAT rate.
type Engine struct {
	vatRate float64
}

// New creates a pricing engine. vatRate is a fraction, e.g. 0.075 for 7.5%.
func New(vatRate float64) *Engine {
	return &Engine{vatRate: vatRate}
}

// VATRate returns the configured VAT fraction.
func (e *Engine) VATRate() float64 { return e.vatRate }

// ComputeLineTotal returns the payable total for one line item:
// quantity x unit price, discounted, then VAT on the discounted amount.
// Shipping/clearing fees are not part of the line total; they are aggregated
// separately.
func (e *Engine) ComputeLineTotal(item domain.LineItem) (float64, error) {
	if err := item.Validate(); err != nil {
		return 0, err
	}
	subtotal := float64(item.Quantity) * item.UnitPrice
	discounted := subtotal * (1 - item.DiscountPct/100)
	total := discounted
	if item.Vatted {
		total = discounted * (1 + e.vatRate)
	}
	return round2(total), nil
}

// PriceItems stamps the derived TotalPrice on every line. It is the only
// place TotalPrice is written.
func (e *Engine) PriceItems(items []domain.LineItem) ([]domain.LineItem, error) {
	priced := make([]domain.LineItem, len(items))
	for i, item := range items {
		total, err := e.ComputeLineTotal(item)
		if err != nil {
			return nil, err
		}
		item.TotalPrice = total
		priced[i] = item
	}
	return priced, nil
}

// ValidateForSubmission enforces the request-type-specific gating rules
// checked once at submit time.
func (e *Engine) ValidateForSubmission(items []domain.LineItem, requestType domain.RequestType, destination domain.Destination) error {
	if len(items) == 0 {
		return apperrors.InvalidInput("items", "a request needs at least one line item")
	}
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return err
		}
	}

	// Petty cash destined for IT must be fully priced before the first
	// approval; unpriced lines cannot reach the IT manager.
	if requestType == domain.TypePettyCash && destination == domain.DestinationIT {
		for i := range items {
			if items[i].UnitPrice <= 0 {
				return apperrors.InvalidInput("unitPrice",
					"petty cash for IT requires a price above zero on every item")
			}
		}
	}

	if requestType == domain.TypeInStock {
		for i := range items {
			if items[i].Quantity < 1 {
				return apperrors.InvalidInput("quantity",
					"stock requests require a quantity of at least 1 on every item")
			}
		}
	}

	return nil
}

// Totals is the per-currency aggregate over a request's items.
type Totals struct {
	Subtotal      float64 `json:"subtotal"`
	DiscountTotal float64 `json:"discountTotal"`
	VATTotal      float64 `json:"vatTotal"`
	FeeTotal      float64 `json:"feeTotal"`
	GrandTotal    float64 `json:"grandTotal"`
}

// Aggregate groups totals by currency. Amounts in different currencies are
// never summed together; no conversion is performed. Fees count only when the
// request carries a shipping or clearing tag and the line is international.
func (e *Engine) Aggregate(items []domain.LineItem, tag domain.Tag) (map[string]Totals, error) {
	// Sums stay exact while accumulating; each total is rounded exactly once
	// per currency so long item lists cannot drift by accumulated rounding.
	sums := make(map[string]Totals)
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, err
		}
		subtotal := float64(item.Quantity) * item.UnitPrice
		discount := subtotal * item.DiscountPct / 100
		discounted := subtotal - discount
		var vat float64
		if item.Vatted {
			vat = discounted * e.vatRate
		}
		var fee float64
		if tag != domain.TagNone && item.LogisticsType == domain.LogisticsInternational {
			fee = item.FeeAmount
		}

		t := sums[item.Currency]
		t.Subtotal += subtotal
		t.DiscountTotal += discount
		t.VATTotal += vat
		t.FeeTotal += fee
		sums[item.Currency] = t
	}

	out := make(map[string]Totals, len(sums))
	for currency, t := range sums {
		out[currency] = Totals{
			Subtotal:      round2(t.Subtotal),
			DiscountTotal: round2(t.DiscountTotal),
			VATTotal:      round2(t.VATTotal),
			FeeTotal:      round2(t.FeeTotal),
			GrandTotal:    round2(t.Subtotal - t.DiscountTotal + t.VATTotal + t.FeeTotal),
		}
	}
	return out, nil
}

// round2 rounds half away from zero to 2 decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
