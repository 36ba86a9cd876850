package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"marzsell/internal/models"
)

type fakeSource struct {
	tiers   []models.PricingTier
	rate    decimal.Decimal
	rateSet bool
	loads   int
}

func (s *fakeSource) ListTiers() ([]models.PricingTier, error) {
	s.loads++
	return s.tiers, nil
}

func (s *fakeSource) BaseDailyRate() (decimal.Decimal, bool, error) {
	return s.rate, s.rateSet, nil
}

func configuredSource() *fakeSource {
	return &fakeSource{
		tiers: []models.PricingTier{
			{VolumeLimitGB: 10, PricePerGB: 500},
			{VolumeLimitGB: 50, PricePerGB: 300},
		},
		rate:    decimal.NewFromInt(1000),
		rateSet: true,
	}
}

func TestCacheServesFromMemory(t *testing.T) {
	src := configuredSource()
	cache := NewCache(src, nil, time.Minute, zap.NewNop())
	ctx := context.Background()

	first, err := cache.Snapshot(ctx)
	require.NoError(t, err)
	second, err := cache.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, src.loads)
	assert.Same(t, first, second)
}

func TestCacheInvalidateReloads(t *testing.T) {
	src := configuredSource()
	cache := NewCache(src, nil, time.Minute, zap.NewNop())
	ctx := context.Background()

	price, err := cache.Quote(ctx, 15, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), price)

	// Admin doubles the base rate; the very next quote must see it.
	src.rate = decimal.NewFromInt(2000)
	cache.Invalidate(ctx)

	price, err = cache.Quote(ctx, 15, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(25000), price)
	assert.Equal(t, 2, src.loads)
}

func TestCacheQuoteUnconfiguredRate(t *testing.T) {
	src := configuredSource()
	src.rateSet = false
	cache := NewCache(src, nil, time.Minute, zap.NewNop())

	_, err := cache.Quote(context.Background(), 10, 30)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCacheQuoteNoTiers(t *testing.T) {
	src := configuredSource()
	src.tiers = nil
	cache := NewCache(src, nil, time.Minute, zap.NewNop())

	_, err := cache.Quote(context.Background(), 10, 30)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCacheQuoteInvalidInput(t *testing.T) {
	cache := NewCache(configuredSource(), nil, time.Minute, zap.NewNop())

	_, err := cache.Quote(context.Background(), 0, 30)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
