package pricing

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"marzsell/internal/models"
)

var (
	// ErrNotConfigured is returned when no tiers or no base daily rate
	// exist. Callers must surface "pricing not configured" and refuse to
	// create an invoice; a silent zero price is never produced.
	ErrNotConfigured = errors.New("pricing is not configured")

	// ErrInvalidInput rejects non-positive volume or duration. Unlimited
	// plans (volume 0) are flat-priced elsewhere, not by the tier walk.
	ErrInvalidInput = errors.New("invalid pricing input")
)

// roundingStep keeps final prices at admin-friendly totals.
const roundingStep = 5000

// ComputePrice computes the progressive tiered price for a volume/duration
// pair. The duration component is durationDays * baseDailyRate; the volume
// component walks the tiers ascending, billing each bracket's width at that
// bracket's per-GB price, with any volume beyond the last tier billed at
// the highest tier's rate. The sum is rounded half-away-from-zero to the
// nearest multiple of 5000.
//
// Identical inputs always yield identical output; the tier slice is not
// mutated.
func ComputePrice(volumeGB, durationDays int, baseDailyRate decimal.Decimal, tiers []models.PricingTier) (int64, error) {
	if volumeGB <= 0 || durationDays <= 0 || baseDailyRate.IsNegative() {
		return 0, ErrInvalidInput
	}
	if len(tiers) == 0 {
		return 0, ErrNotConfigured
	}

	sorted := make([]models.PricingTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].VolumeLimitGB < sorted[j].VolumeLimitGB
	})

	baseFee := baseDailyRate.Mul(decimal.NewFromInt(int64(durationDays)))

	dataFee := decimal.Zero
	remaining := volumeGB
	prevLimit := 0
	for _, tier := range sorted {
		if tier.PricePerGB < 0 {
			return 0, ErrInvalidInput
		}
		width := tier.VolumeLimitGB - prevLimit
		if width <= 0 {
			continue
		}
		billed := remaining
		if billed > width {
			billed = width
		}
		dataFee = dataFee.Add(decimal.NewFromInt(int64(billed)).
			Mul(decimal.NewFromInt(tier.PricePerGB)))
		remaining -= billed
		prevLimit = tier.VolumeLimitGB
		if remaining <= 0 {
			break
		}
	}

	// Open-ended final bracket: overflow billed at the highest tier's rate.
	if remaining > 0 {
		top := sorted[len(sorted)-1]
		dataFee = dataFee.Add(decimal.NewFromInt(int64(remaining)).
			Mul(decimal.NewFromInt(top.PricePerGB)))
	}

	raw := baseFee.Add(dataFee)
	step := decimal.NewFromInt(roundingStep)
	price := raw.Div(step).Round(0).Mul(step)
	return price.IntPart(), nil
}
