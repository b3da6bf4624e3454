package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/be-procurement-requests/internal/domain"
	apperrors "github.com/harborline/be-procurement-requests/internal/errors"
)

func item(qty int, unit float64, discount float64, vatted bool) domain.LineItem {
	return domain.LineItem{
		Name:          "test item",
		ItemType:      domain.ItemMaterial,
		Quantity:      qty,
		UnitPrice:     unit,
		Currency:      "USD",
		Vatted:        vatted,
		DiscountPct:   discount,
		LogisticsType: domain.LogisticsLocal,
	}
}

func TestComputeLineTotalWorkedExample(t *testing.T) {
	// 3 x 100 = 300, minus 10% = 270, plus 7.5% VAT = 290.25.
	e := New(0.075)
	total, err := e.ComputeLineTotal(item(3, 100, 10, true))
	require.NoError(t, err)
	assert.Equal(t, 290.25, total)
}

func TestComputeLineTotalDiscountBeforeVAT(t *testing.T) {
	e := New(0.10)
	total, err := e.ComputeLineTotal(item(1, 200, 50, true))
	require.NoError(t, err)
	// (200 * 0.5) * 1.1 = 110, rounded only once at the end.
	assert.Equal(t, 110.0, total)
}

func TestComputeLineTotalMonotonicity(t *testing.T) {
	e := New(0.075)

	base, err := e.ComputeLineTotal(item(2, 50, 10, false))
	require.NoError(t, err)

	moreQty, err := e.ComputeLineTotal(item(3, 50, 10, false))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, moreQty, base)

	higherPrice, err := e.ComputeLineTotal(item(2, 60, 10, false))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, higherPrice, base)

	moreDiscount, err := e.ComputeLineTotal(item(2, 50, 20, false))
	require.NoError(t, err)
	assert.LessOrEqual(t, moreDiscount, base)

	vatted, err := e.ComputeLineTotal(item(2, 50, 10, true))
	require.NoError(t, err)
	assert.Greater(t, vatted, base)
}

func TestComputeLineTotalRejectsBadInput(t *testing.T) {
	e := New(0.075)

	_, err := e.ComputeLineTotal(item(0, 100, 0, false))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.Code(err))

	_, err = e.ComputeLineTotal(item(1, -5, 0, false))
	require.Error(t, err)

	_, err = e.ComputeLineTotal(item(1, 100, 120, false))
	require.Error(t, err)
}

func TestPriceItemsStampsTotals(t *testing.T) {
	e := New(0.075)
	priced, err := e.PriceItems([]domain.LineItem{
		item(3, 100, 10, true),
		item(1, 40, 0, false),
	})
	require.NoError(t, err)
	require.Len(t, priced, 2)
	assert.Equal(t, 290.25, priced[0].TotalPrice)
	assert.Equal(t, 40.0, priced[1].TotalPrice)
}

func TestValidateForSubmissionPettyCashToIT(t *testing.T) {
	e := New(0.075)

	unpriced := item(1, 0, 0, false)
	err := e.ValidateForSubmission([]domain.LineItem{unpriced}, domain.TypePettyCash, domain.DestinationIT)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.Code(err))

	// The same unpriced item is fine for a non-IT destination.
	err = e.ValidateForSubmission([]domain.LineItem{unpriced}, domain.TypePettyCash, domain.DestinationOffice)
	assert.NoError(t, err)

	err = e.ValidateForSubmission(nil, domain.TypePettyCash, domain.DestinationOffice)
	require.Error(t, err)
}

func TestAggregateGroupsByCurrency(t *testing.T) {
	e := New(0.075)

	usd := item(3, 100, 10, true)
	eur := item(2, 50, 0, false)
	eur.Currency = "EUR"
	intl := item(1, 80, 0, false)
	intl.LogisticsType = domain.LogisticsInternational
	intl.FeeAmount = 15

	totals, err := e.Aggregate([]domain.LineItem{usd, eur, intl}, domain.TagShipping)
	require.NoError(t, err)
	require.Len(t, totals, 2)

	u := totals["USD"]
	assert.Equal(t, 380.0, u.Subtotal)
	assert.Equal(t, 30.0, u.DiscountTotal)
	assert.Equal(t, 20.25, u.VATTotal)
	assert.Equal(t, 15.0, u.FeeTotal)
	assert.Equal(t, 385.25, u.GrandTotal)

	e2 := totals["EUR"]
	assert.Equal(t, 100.0, e2.Subtotal)
	assert.Equal(t, 100.0, e2.GrandTotal)
}

func TestAggregateRoundsOncePerCurrency(t *testing.T) {
	e := New(0.075)

	// Each line's exact subtotal is 10.004; three of them sum to 30.012,
	// which rounds to 30.01. Rounding the running total after every line
	// would snap each step to the cent and land on 30.00 instead.
	lines := []domain.LineItem{
		item(4, 2.501, 0, false),
		item(4, 2.501, 0, false),
		item(4, 2.501, 0, false),
	}

	totals, err := e.Aggregate(lines, domain.TagNone)
	require.NoError(t, err)
	assert.InDelta(t, 30.01, totals["USD"].Subtotal, 1e-9)
	assert.InDelta(t, 30.01, totals["USD"].GrandTotal, 1e-9)
}

func TestAggregateIgnoresFeesWithoutTag(t *testing.T) {
	e := New(0.075)
	intl := item(1, 80, 0, false)
	intl.LogisticsType = domain.LogisticsInternational
	intl.FeeAmount = 15

	totals, err := e.Aggregate([]domain.LineItem{intl}, domain.TagNone)
	require.NoError(t, err)
	assert.Equal(t, 0.0, totals["USD"].FeeTotal)
	assert.Equal(t, 80.0, totals["USD"].GrandTotal)
}
