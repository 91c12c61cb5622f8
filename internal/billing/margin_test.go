package billing

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/transfa/freight-billing-service/internal/domain"
)

func eur(amount string) domain.Money {
	return domain.MustMoney(amount, "EUR")
}

func pct(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func intPtr(v int) *int {
	return &v
}

func defaultOnlyConfig() *domain.MarginConfiguration {
	return &domain.MarginConfiguration{
		DefaultMarginPercentage:    pct("15"),
		DefaultMinimumMarginAmount: eur("50"),
	}
}

func fullConfig() *domain.MarginConfiguration {
	cfg := defaultOnlyConfig()
	cfg.RouteMargins = []domain.RouteMargin{
		{Origin: "Berlin", Destination: "Munich", MarginPercentage: pct("10"), MinimumMarginAmount: eur("40"), Description: "BER-MUC lane"},
	}
	cfg.ServiceMargins = []domain.ServiceMargin{
		{ServiceType: domain.ServiceAirFreight, MarginPercentage: pct("20"), MinimumMarginAmount: eur("75")},
	}
	cfg.VolumeTiers = []domain.VolumeTier{
		{MinShipmentsPerMonth: 0, MaxShipmentsPerMonth: intPtr(9), MarginPercentage: pct("18"), MinimumMarginAmount: eur("60")},
		{MinShipmentsPerMonth: 10, MaxShipmentsPerMonth: intPtr(49), MarginPercentage: pct("12"), MinimumMarginAmount: eur("45")},
		{MinShipmentsPerMonth: 50, MarginPercentage: pct("8"), MinimumMarginAmount: eur("30")},
	}
	return cfg
}

func TestResolveMargin_DefaultRuleScenarios(t *testing.T) {
	tests := []struct {
		name           string
		revenue        string
		wantAmount     string
		wantMethod     domain.MarginMethod
		wantPercentage string
		wantEffective  string
	}{
		{
			name:           "minimum wins on small revenue",
			revenue:        "200",
			wantAmount:     "50",
			wantMethod:     domain.MarginMethodMinimum,
			wantPercentage: "30",
			wantEffective:  "25",
		},
		{
			name:           "percentage wins on large revenue",
			revenue:        "1000",
			wantAmount:     "150",
			wantMethod:     domain.MarginMethodPercentage,
			wantPercentage: "150",
			wantEffective:  "15",
		},
		{
			name:           "tie favors percentage",
			revenue:        "333.33",
			wantAmount:     "50",
			wantMethod:     domain.MarginMethodPercentage,
			wantPercentage: "50",
			wantEffective:  "15",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := ResolveMargin(defaultOnlyConfig(), domain.MarginQuery{Revenue: eur(tt.revenue)})
			if err != nil {
				t.Fatalf("ResolveMargin returned error: %v", err)
			}
			if decision.AppliedRuleKind != domain.RuleKindDefault {
				t.Fatalf("expected default rule, got %s", decision.AppliedRuleKind)
			}
			if decision.AppliedMethod != tt.wantMethod {
				t.Fatalf("expected method %s, got %s", tt.wantMethod, decision.AppliedMethod)
			}
			if !decision.MarginAmount.Amount.Equal(pct(tt.wantAmount)) {
				t.Fatalf("expected margin %s, got %s", tt.wantAmount, decision.MarginAmount.Amount)
			}
			if !decision.PercentageMargin.Amount.Equal(pct(tt.wantPercentage)) {
				t.Fatalf("expected percentage margin %s, got %s", tt.wantPercentage, decision.PercentageMargin.Amount)
			}
			if !decision.MarginPercentage.Equal(pct(tt.wantEffective)) {
				t.Fatalf("expected effective percentage %s, got %s", tt.wantEffective, decision.MarginPercentage)
			}
			if decision.MarginAmount.CurrencyCode != "EUR" {
				t.Fatalf("expected EUR decision, got %q", decision.MarginAmount.CurrencyCode)
			}
		})
	}
}

func TestResolveMargin_RouteRuleAppliesMinimum(t *testing.T) {
	cfg := defaultOnlyConfig()
	cfg.RouteMargins = []domain.RouteMargin{
		{Origin: "Berlin", Destination: "Munich", MarginPercentage: pct("10"), MinimumMarginAmount: eur("40")},
	}

	decision, err := ResolveMargin(cfg, domain.MarginQuery{Revenue: eur("300"), Origin: "Berlin", Destination: "Munich"})
	if err != nil {
		t.Fatalf("ResolveMargin returned error: %v", err)
	}
	if decision.AppliedRuleKind != domain.RuleKindRoute {
		t.Fatalf("expected route rule, got %s", decision.AppliedRuleKind)
	}
	if !decision.PercentageMargin.Amount.Equal(pct("30")) {
		t.Fatalf("expected percentage margin 30, got %s", decision.PercentageMargin.Amount)
	}
	if decision.AppliedMethod != domain.MarginMethodMinimum || !decision.MarginAmount.Amount.Equal(pct("40")) {
		t.Fatalf("expected minimum margin of 40, got %s via %s", decision.MarginAmount.Amount, decision.AppliedMethod)
	}
	if !decision.ConfiguredPercentage.Equal(pct("10")) {
		t.Fatalf("expected configured percentage 10, got %s", decision.ConfiguredPercentage)
	}
}

func TestResolveMargin_Precedence(t *testing.T) {
	tests := []struct {
		name  string
		query domain.MarginQuery
		want  domain.RuleKind
	}{
		{
			name:  "route beats service and volume",
			query: domain.MarginQuery{Revenue: eur("1000"), Origin: "Berlin", Destination: "Munich", ServiceType: domain.ServiceAirFreight, MonthlyShipmentCount: intPtr(20)},
			want:  domain.RuleKindRoute,
		},
		{
			name:  "reverse direction is a different route",
			query: domain.MarginQuery{Revenue: eur("1000"), Origin: "Munich", Destination: "Berlin", ServiceType: domain.ServiceAirFreight},
			want:  domain.RuleKindService,
		},
		{
			name:  "route match is case sensitive",
			query: domain.MarginQuery{Revenue: eur("1000"), Origin: "berlin", Destination: "munich"},
			want:  domain.RuleKindDefault,
		},
		{
			name:  "route skipped without destination",
			query: domain.MarginQuery{Revenue: eur("1000"), Origin: "Berlin", MonthlyShipmentCount: intPtr(20)},
			want:  domain.RuleKindVolumeTier,
		},
		{
			name:  "service beats volume",
			query: domain.MarginQuery{Revenue: eur("1000"), ServiceType: domain.ServiceAirFreight, MonthlyShipmentCount: intPtr(20)},
			want:  domain.RuleKindService,
		},
		{
			name:  "unconfigured service falls through to volume",
			query: domain.MarginQuery{Revenue: eur("1000"), ServiceType: domain.ServiceRoadFreight, MonthlyShipmentCount: intPtr(60)},
			want:  domain.RuleKindVolumeTier,
		},
		{
			name:  "no optional inputs uses default",
			query: domain.MarginQuery{Revenue: eur("1000")},
			want:  domain.RuleKindDefault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := ResolveMargin(fullConfig(), tt.query)
			if err != nil {
				t.Fatalf("ResolveMargin returned error: %v", err)
			}
			if decision.AppliedRuleKind != tt.want {
				t.Fatalf("expected %s rule, got %s", tt.want, decision.AppliedRuleKind)
			}
		})
	}
}

func TestResolveMargin_VolumeTierBounds(t *testing.T) {
	tests := []struct {
		count          int
		wantPercentage string
	}{
		{count: 0, wantPercentage: "18"},
		{count: 9, wantPercentage: "18"},
		{count: 10, wantPercentage: "12"},
		{count: 49, wantPercentage: "12"},
		{count: 50, wantPercentage: "8"},
		{count: 5000, wantPercentage: "8"},
	}

	for _, tt := range tests {
		decision, err := ResolveMargin(fullConfig(), domain.MarginQuery{Revenue: eur("10000"), MonthlyShipmentCount: intPtr(tt.count)})
		if err != nil {
			t.Fatalf("count %d: ResolveMargin returned error: %v", tt.count, err)
		}
		if decision.AppliedRuleKind != domain.RuleKindVolumeTier {
			t.Fatalf("count %d: expected volume tier, got %s", tt.count, decision.AppliedRuleKind)
		}
		if !decision.ConfiguredPercentage.Equal(pct(tt.wantPercentage)) {
			t.Fatalf("count %d: expected tier rate %s, got %s", tt.count, tt.wantPercentage, decision.ConfiguredPercentage)
		}
	}
}

func TestResolveMargin_OverlappingTiersFirstDeclaredWins(t *testing.T) {
	cfg := defaultOnlyConfig()
	cfg.VolumeTiers = []domain.VolumeTier{
		{MinShipmentsPerMonth: 10, MarginPercentage: pct("9"), MinimumMarginAmount: eur("0")},
		{MinShipmentsPerMonth: 5, MaxShipmentsPerMonth: intPtr(20), MarginPercentage: pct("11"), MinimumMarginAmount: eur("0")},
	}

	decision, err := ResolveMargin(cfg, domain.MarginQuery{Revenue: eur("100"), MonthlyShipmentCount: intPtr(15)})
	if err != nil {
		t.Fatalf("ResolveMargin returned error: %v", err)
	}
	if !decision.ConfiguredPercentage.Equal(pct("9")) {
		t.Fatalf("expected first declared tier (9%%), got %s", decision.ConfiguredPercentage)
	}
}

func TestResolveMargin_RoundsHalfUp(t *testing.T) {
	cfg := &domain.MarginConfiguration{
		DefaultMarginPercentage:    pct("12.5"),
		DefaultMinimumMarginAmount: eur("0"),
	}

	decision, err := ResolveMargin(cfg, domain.MarginQuery{Revenue: eur("0.9")})
	if err != nil {
		t.Fatalf("ResolveMargin returned error: %v", err)
	}
	// 0.9 * 12.5 / 100 = 0.1125
	if !decision.PercentageMargin.Amount.Equal(pct("0.11")) {
		t.Fatalf("expected 0.11, got %s", decision.PercentageMargin.Amount)
	}

	decision, err = ResolveMargin(cfg, domain.MarginQuery{Revenue: eur("1")})
	if err != nil {
		t.Fatalf("ResolveMargin returned error: %v", err)
	}
	// 1 * 12.5 / 100 = 0.125
	if !decision.PercentageMargin.Amount.Equal(pct("0.13")) {
		t.Fatalf("expected 0.13, got %s", decision.PercentageMargin.Amount)
	}
}

func TestResolveMargin_ZeroRevenueReportsConfiguredRate(t *testing.T) {
	decision, err := ResolveMargin(defaultOnlyConfig(), domain.MarginQuery{Revenue: eur("0")})
	if err != nil {
		t.Fatalf("ResolveMargin returned error: %v", err)
	}
	if decision.AppliedMethod != domain.MarginMethodMinimum {
		t.Fatalf("expected minimum method, got %s", decision.AppliedMethod)
	}
	if !decision.MarginPercentage.Equal(pct("15")) {
		t.Fatalf("expected configured rate for zero revenue, got %s", decision.MarginPercentage)
	}
}

func TestResolveMargin_MissingConfiguration(t *testing.T) {
	_, err := ResolveMargin(nil, domain.MarginQuery{Revenue: eur("100")})
	if !errors.Is(err, domain.ErrNoApplicableRule) {
		t.Fatalf("expected ErrNoApplicableRule, got %v", err)
	}
}

func TestResolveMargin_CurrencyMismatch(t *testing.T) {
	_, err := ResolveMargin(defaultOnlyConfig(), domain.MarginQuery{Revenue: domain.MustMoney("100", "USD")})
	if !errors.Is(err, domain.ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}
}

func TestResolveMargin_Deterministic(t *testing.T) {
	query := domain.MarginQuery{Revenue: eur("1234.56"), ServiceType: domain.ServiceAirFreight}

	first, err := ResolveMargin(fullConfig(), query)
	if err != nil {
		t.Fatalf("ResolveMargin returned error: %v", err)
	}
	second, err := ResolveMargin(fullConfig(), query)
	if err != nil {
		t.Fatalf("ResolveMargin returned error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical decisions, got %+v and %+v", first, second)
	}
}
