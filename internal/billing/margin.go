/**
 * @description
 * Margin resolution: picks the single most specific rule from a customer's
 * margin configuration and computes the margin for a shipment.
 *
 * Precedence is route, then service, then volume tier, then default. The first
 * matching entry in declaration order wins inside each tier.
 */
package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/transfa/freight-billing-service/internal/domain"
)

var hundred = decimal.NewFromInt(100)

type marginRule struct {
	kind        domain.RuleKind
	percentage  decimal.Decimal
	minimum     domain.Money
	description string
}

// ResolveMargin returns the margin decision for query under cfg. A nil cfg
// yields domain.ErrNoApplicableRule; there is no global fallback rate.
func ResolveMargin(cfg *domain.MarginConfiguration, query domain.MarginQuery) (domain.MarginDecision, error) {
	if cfg == nil {
		return domain.MarginDecision{}, domain.ErrNoApplicableRule
	}
	return applyRule(selectRule(cfg, query), query.Revenue)
}

func selectRule(cfg *domain.MarginConfiguration, query domain.MarginQuery) marginRule {
	if query.Origin != "" && query.Destination != "" {
		for _, route := range cfg.RouteMargins {
			if route.Origin == query.Origin && route.Destination == query.Destination {
				return marginRule{
					kind:        domain.RuleKindRoute,
					percentage:  route.MarginPercentage,
					minimum:     route.MinimumMarginAmount,
					description: route.Description,
				}
			}
		}
	}

	if query.ServiceType != "" {
		for _, service := range cfg.ServiceMargins {
			if service.ServiceType == query.ServiceType {
				return marginRule{
					kind:        domain.RuleKindService,
					percentage:  service.MarginPercentage,
					minimum:     service.MinimumMarginAmount,
					description: service.Description,
				}
			}
		}
	}

	if query.MonthlyShipmentCount != nil {
		for _, tier := range cfg.VolumeTiers {
			if tier.Contains(*query.MonthlyShipmentCount) {
				return marginRule{
					kind:        domain.RuleKindVolumeTier,
					percentage:  tier.MarginPercentage,
					minimum:     tier.MinimumMarginAmount,
					description: tier.Description,
				}
			}
		}
	}

	return marginRule{
		kind:       domain.RuleKindDefault,
		percentage: cfg.DefaultMarginPercentage,
		minimum:    cfg.DefaultMinimumMarginAmount,
	}
}

func applyRule(rule marginRule, revenue domain.Money) (domain.MarginDecision, error) {
	if err := domain.EnsureSameCurrency(revenue, rule.minimum); err != nil {
		return domain.MarginDecision{}, fmt.Errorf("%s rule: %w", rule.kind, err)
	}

	percentageMargin := PercentageOf(revenue.Amount, rule.percentage)
	minimumMargin := rule.minimum.Amount

	// Ties go to the percentage method.
	method := domain.MarginMethodPercentage
	amount := percentageMargin
	if percentageMargin.LessThan(minimumMargin) {
		method = domain.MarginMethodMinimum
		amount = minimumMargin
	}

	effective := rule.percentage
	if !revenue.Amount.IsZero() {
		effective = amount.Div(revenue.Amount).Mul(hundred).Round(2)
	}

	currency := revenue.CurrencyCode
	return domain.MarginDecision{
		MarginAmount:         domain.Money{Amount: amount, CurrencyCode: currency},
		MarginPercentage:     effective,
		ConfiguredPercentage: rule.percentage,
		AppliedRuleKind:      rule.kind,
		AppliedMethod:        method,
		PercentageMargin:     domain.Money{Amount: percentageMargin, CurrencyCode: currency},
		MinimumMargin:        domain.Money{Amount: minimumMargin, CurrencyCode: currency},
		RuleDescription:      rule.description,
	}, nil
}

// PercentageOf returns amount * rate / 100 rounded half-up to two places.
func PercentageOf(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred).Round(2)
}
