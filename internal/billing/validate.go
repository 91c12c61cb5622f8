package billing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/transfa/freight-billing-service/internal/domain"
)

// ValidationError collects every invariant a configuration breaks.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", domain.ErrInvalidConfiguration, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return domain.ErrInvalidConfiguration
}

type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return &ValidationError{Problems: p}
}

// ValidateMarginConfiguration checks the save-time invariants of a margin
// configuration: unique service and route keys, non-overlapping volume tiers,
// non-negative rates and amounts, and a single currency.
func ValidateMarginConfiguration(cfg domain.MarginConfiguration) error {
	var p problems
	currency := cfg.DefaultMinimumMarginAmount.CurrencyCode

	if !domain.IsValidCurrencyCode(currency) {
		p.addf("default minimum margin currency %q is not an ISO-4217 code", currency)
	}
	checkRule(&p, "default rule", cfg.DefaultMarginPercentage.IsNegative(), cfg.DefaultMinimumMarginAmount, currency)

	seenServices := make(map[domain.ServiceType]bool, len(cfg.ServiceMargins))
	for i, service := range cfg.ServiceMargins {
		label := fmt.Sprintf("service margin %d", i+1)
		if !service.ServiceType.IsValid() {
			p.addf("%s: unknown service type %q", label, service.ServiceType)
		}
		if seenServices[service.ServiceType] {
			p.addf("%s: duplicate service type %q", label, service.ServiceType)
		}
		seenServices[service.ServiceType] = true
		checkRule(&p, label, service.MarginPercentage.IsNegative(), service.MinimumMarginAmount, currency)
	}

	type routeKey struct{ origin, destination string }
	seenRoutes := make(map[routeKey]bool, len(cfg.RouteMargins))
	for i, route := range cfg.RouteMargins {
		label := fmt.Sprintf("route margin %d", i+1)
		if strings.TrimSpace(route.Origin) == "" || strings.TrimSpace(route.Destination) == "" {
			p.addf("%s: origin and destination are required", label)
		}
		key := routeKey{route.Origin, route.Destination}
		if seenRoutes[key] {
			p.addf("%s: duplicate route %s -> %s", label, route.Origin, route.Destination)
		}
		seenRoutes[key] = true
		checkRule(&p, label, route.MarginPercentage.IsNegative(), route.MinimumMarginAmount, currency)
	}

	for i, tier := range cfg.VolumeTiers {
		label := fmt.Sprintf("volume tier %d", i+1)
		if tier.MinShipmentsPerMonth < 0 {
			p.addf("%s: min shipments per month must not be negative", label)
		}
		if tier.MaxShipmentsPerMonth != nil && *tier.MaxShipmentsPerMonth < tier.MinShipmentsPerMonth {
			p.addf("%s: max shipments per month is below min", label)
		}
		checkRule(&p, label, tier.MarginPercentage.IsNegative(), tier.MinimumMarginAmount, currency)
	}
	checkTierOverlap(&p, cfg.VolumeTiers)

	return p.err()
}

func checkRule(p *problems, label string, negativeRate bool, minimum domain.Money, currency string) {
	if negativeRate {
		p.addf("%s: margin percentage must not be negative", label)
	}
	if minimum.IsNegative() {
		p.addf("%s: minimum margin amount must not be negative", label)
	}
	if minimum.CurrencyCode != currency {
		p.addf("%s: minimum margin currency %q differs from %q", label, minimum.CurrencyCode, currency)
	}
}

func checkTierOverlap(p *problems, tiers []domain.VolumeTier) {
	sorted := make([]domain.VolumeTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinShipmentsPerMonth < sorted[j].MinShipmentsPerMonth
	})

	for i := 1; i < len(sorted); i++ {
		prev, next := sorted[i-1], sorted[i]
		if prev.MaxShipmentsPerMonth == nil {
			p.addf("volume tiers overlap: unbounded tier from %d must be the highest tier", prev.MinShipmentsPerMonth)
			continue
		}
		if *prev.MaxShipmentsPerMonth >= next.MinShipmentsPerMonth {
			p.addf("volume tiers overlap: %d-%d and tier starting at %d",
				prev.MinShipmentsPerMonth, *prev.MaxShipmentsPerMonth, next.MinShipmentsPerMonth)
		}
	}
}

// ValidateDunningConfiguration checks that thresholds strictly increase from
// level 1 to level 3 and that fees are non-negative and share one currency.
func ValidateDunningConfiguration(cfg domain.DunningConfiguration) error {
	var p problems
	levels := cfg.Levels()
	currency := levels[0].FeeAmount.CurrencyCode

	if !domain.IsValidCurrencyCode(currency) {
		p.addf("level 1 fee currency %q is not an ISO-4217 code", currency)
	}
	for i, level := range levels {
		n := i + 1
		if level.DaysOverdue < 0 {
			p.addf("level %d: days overdue must not be negative", n)
		}
		if level.FeeAmount.IsNegative() {
			p.addf("level %d: fee amount must not be negative", n)
		}
		if level.FeeAmount.CurrencyCode != currency {
			p.addf("level %d: fee currency %q differs from %q", n, level.FeeAmount.CurrencyCode, currency)
		}
		if i > 0 && level.DaysOverdue <= levels[i-1].DaysOverdue {
			p.addf("level %d: days overdue (%d) must exceed level %d (%d)", n, level.DaysOverdue, n-1, levels[i-1].DaysOverdue)
		}
	}

	if cfg.CustomPaymentTermsDays != nil && *cfg.CustomPaymentTermsDays < 0 {
		p.addf("custom payment terms must not be negative")
	}

	return p.err()
}
