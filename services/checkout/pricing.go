package checkout

import (
	"fmt"
	"strings"

	"tutorbook/models"
)

// TierFor names the price tier for a lesson level, e.g. "gcse_standard" or
// "alevel_discount".
func TierFor(level string, discountApproved bool) string {
	band := "standard"
	if discountApproved {
		band = "discount"
	}
	return strings.ToLower(strings.TrimSpace(level)) + "_" + band
}

// PriceTable maps tier names to a price in minor units.
type PriceTable map[string]int64

// PriceFor returns the configured price of tier.
func (p PriceTable) PriceFor(tier string) (int64, error) {
	price, ok := p[tier]
	if !ok || price <= 0 {
		return 0, fmt.Errorf("tier %q: %w", tier, models.ErrPriceNotConfigured)
	}
	return price, nil
}

// Pricing is the price list used for new checkout sessions.
type Pricing struct {
	Tiers PriceTable
	// Currency applies to bookings that carry none.
	Currency string
}
