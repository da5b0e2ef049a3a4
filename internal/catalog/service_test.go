package catalog_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"marketplace/internal/catalog"
	"marketplace/internal/models"
)

func discount(pct int64, start, end time.Time, created time.Time) models.Discount {
	return models.Discount{
		Percentage: decimal.NewFromInt(pct),
		StartDate:  start,
		EndDate:    end,
		IsActive:   true,
		CreatedAt:  created,
	}
}

func TestEffectivePriceNoDiscounts(t *testing.T) {
	price := decimal.NewFromInt(100)
	result := catalog.EffectivePrice(price, nil, time.Now())
	assert.True(t, result.Equal(price))
}

func TestEffectivePriceAppliesBestDiscount(t *testing.T) {
	now := time.Now()
	price := decimal.NewFromInt(200)
	discounts := []models.Discount{
		discount(10, now.Add(-time.Hour), now.Add(time.Hour), now.Add(-3*time.Hour)),
		discount(25, now.Add(-time.Hour), now.Add(time.Hour), now.Add(-2*time.Hour)),
	}

	result := catalog.EffectivePrice(price, discounts, now)
	assert.True(t, result.Equal(decimal.NewFromInt(150)), "expected 150, got %s", result)
}

func TestEffectivePriceIgnoresExpiredWindows(t *testing.T) {
	now := time.Now()
	price := decimal.NewFromInt(100)
	discounts := []models.Discount{
		discount(50, now.Add(-3*time.Hour), now.Add(-time.Hour), now.Add(-4*time.Hour)),
		discount(30, now.Add(time.Hour), now.Add(3*time.Hour), now.Add(-4*time.Hour)),
	}

	result := catalog.EffectivePrice(price, discounts, now)
	assert.True(t, result.Equal(price), "no active discount should leave price unchanged")
}

func TestEffectivePriceWindowBoundariesInclusive(t *testing.T) {
	now := time.Now()
	price := decimal.NewFromInt(100)
	d := discount(10, now, now.Add(time.Hour), now.Add(-time.Hour))

	atStart := catalog.EffectivePrice(price, []models.Discount{d}, now)
	assert.True(t, atStart.Equal(decimal.NewFromInt(90)))

	atEnd := catalog.EffectivePrice(price, []models.Discount{d}, now.Add(time.Hour))
	assert.True(t, atEnd.Equal(decimal.NewFromInt(90)))

	after := catalog.EffectivePrice(price, []models.Discount{d}, now.Add(time.Hour+time.Second))
	assert.True(t, after.Equal(price))
}

func TestBestActiveDiscountTieBreaksByNewest(t *testing.T) {
	now := time.Now()
	older := discount(20, now.Add(-time.Hour), now.Add(time.Hour), now.Add(-2*time.Hour))
	older.ID = "older"
	newer := discount(20, now.Add(-time.Hour), now.Add(time.Hour), now.Add(-time.Minute))
	newer.ID = "newer"

	best := catalog.BestActiveDiscount([]models.Discount{older, newer}, now)
	assert.NotNil(t, best)
	assert.Equal(t, "newer", best.ID)

	// Order of the slice must not change the winner.
	best = catalog.BestActiveDiscount([]models.Discount{newer, older}, now)
	assert.NotNil(t, best)
	assert.Equal(t, "newer", best.ID)
}

func TestBestActiveDiscountSkipsInactive(t *testing.T) {
	now := time.Now()
	d := discount(40, now.Add(-time.Hour), now.Add(time.Hour), now)
	d.IsActive = false

	best := catalog.BestActiveDiscount([]models.Discount{d}, now)
	assert.Nil(t, best)
}

func TestProductIsSoldOut(t *testing.T) {
	assert.True(t, (&models.Product{Stock: 0}).IsSoldOut())
	assert.True(t, (&models.Product{Stock: 5, IsSold: true}).IsSoldOut())
	assert.True(t, (&models.Product{Stock: 5, SoldOut: true}).IsSoldOut())
	assert.False(t, (&models.Product{Stock: 1}).IsSoldOut())
}
