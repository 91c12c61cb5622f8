/**
 * @description
 * Domain models for customer margin configuration and margin decisions.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ServiceMargin is a margin rule keyed by service type.
type ServiceMargin struct {
	ServiceType         ServiceType     `json:"service_type"`
	MarginPercentage    decimal.Decimal `json:"margin_percentage"`
	MinimumMarginAmount Money           `json:"minimum_margin_amount"`
	Description         string          `json:"description,omitempty"`
}

// RouteMargin is a margin rule keyed by an ordered (origin, destination) pair.
type RouteMargin struct {
	Origin              string          `json:"origin"`
	Destination         string          `json:"destination"`
	MarginPercentage    decimal.Decimal `json:"margin_percentage"`
	MinimumMarginAmount Money           `json:"minimum_margin_amount"`
	Description         string          `json:"description,omitempty"`
}

// VolumeTier is a margin rule keyed by monthly shipment count.
// A nil MaxShipmentsPerMonth means the tier is unbounded above.
type VolumeTier struct {
	MinShipmentsPerMonth int             `json:"min_shipments_per_month"`
	MaxShipmentsPerMonth *int            `json:"max_shipments_per_month,omitempty"`
	MarginPercentage     decimal.Decimal `json:"margin_percentage"`
	MinimumMarginAmount  Money           `json:"minimum_margin_amount"`
	Description          string          `json:"description,omitempty"`
}

// Contains reports whether count falls inside the inclusive tier range.
func (t VolumeTier) Contains(count int) bool {
	if count < t.MinShipmentsPerMonth {
		return false
	}
	return t.MaxShipmentsPerMonth == nil || count <= *t.MaxShipmentsPerMonth
}

// MarginConfiguration is the complete margin setup of one customer. Sub-lists
// are always replaced wholesale on save.
type MarginConfiguration struct {
	CustomerID                 uuid.UUID       `json:"customer_id"`
	DefaultMarginPercentage    decimal.Decimal `json:"default_margin_percentage"`
	DefaultMinimumMarginAmount Money           `json:"default_minimum_margin_amount"`
	ServiceMargins             []ServiceMargin `json:"service_margins"`
	RouteMargins               []RouteMargin   `json:"route_margins"`
	VolumeTiers                []VolumeTier    `json:"volume_tiers"`
	CreatedAt                  time.Time       `json:"created_at"`
	UpdatedAt                  time.Time       `json:"updated_at"`
}

// MarginQuery describes a proposed shipment. Empty strings and a nil count
// mean the corresponding rule tier is skipped.
type MarginQuery struct {
	Revenue              Money       `json:"revenue"`
	ServiceType          ServiceType `json:"service_type,omitempty"`
	Origin               string      `json:"origin,omitempty"`
	Destination          string      `json:"destination,omitempty"`
	MonthlyShipmentCount *int        `json:"monthly_shipment_count,omitempty"`
}

// RuleKind names which tier of the configuration produced a decision.
type RuleKind string

const (
	RuleKindRoute      RuleKind = "route"
	RuleKindService    RuleKind = "service"
	RuleKindVolumeTier RuleKind = "volume_tier"
	RuleKindDefault    RuleKind = "default"
)

// MarginMethod names which of the two candidate amounts won.
type MarginMethod string

const (
	MarginMethodPercentage MarginMethod = "percentage"
	MarginMethodMinimum    MarginMethod = "minimum"
)

// MarginDecision is the outcome of resolving a margin for a shipment.
//
// MarginPercentage is the effective rate (MarginAmount / revenue) and is meant
// for display; ConfiguredPercentage is the rate on the applied rule.
type MarginDecision struct {
	MarginAmount         Money           `json:"margin_amount"`
	MarginPercentage     decimal.Decimal `json:"margin_percentage"`
	ConfiguredPercentage decimal.Decimal `json:"configured_percentage"`
	AppliedRuleKind      RuleKind        `json:"applied_rule_kind"`
	AppliedMethod        MarginMethod    `json:"applied_method"`
	PercentageMargin     Money           `json:"percentage_margin"`
	MinimumMargin        Money           `json:"minimum_margin"`
	RuleDescription      string          `json:"rule_description,omitempty"`
}
