/**
 * @description
 * Domain models for dunning configuration and overdue classification.
 */
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DunningLevel is one reminder step of the escalation.
type DunningLevel struct {
	DaysOverdue int   `json:"days_overdue"`
	FeeAmount   Money `json:"fee_amount"`
	AutoSend    bool  `json:"auto_send"`
}

// FinalDunningLevel is level 3, which may also suspend service.
type FinalDunningLevel struct {
	DunningLevel
	SuspendService bool `json:"suspend_service"`
}

// DunningConfiguration is the per-customer dunning setup, saved wholesale.
type DunningConfiguration struct {
	CustomerID              uuid.UUID         `json:"customer_id"`
	Level1                  DunningLevel      `json:"level1"`
	Level2                  DunningLevel      `json:"level2"`
	Level3                  FinalDunningLevel `json:"level3"`
	SkipDunningProcess      bool              `json:"skip_dunning_process"`
	AllowServiceWhenOverdue bool              `json:"allow_service_when_overdue"`
	AutoReactivateOnPayment bool              `json:"auto_reactivate_on_payment"`
	RequirePrepayment       bool              `json:"require_prepayment"`
	CustomPaymentTermsDays  *int              `json:"custom_payment_terms_days,omitempty"`
	CreatedAt               time.Time         `json:"created_at"`
	UpdatedAt               time.Time         `json:"updated_at"`
}

// Levels returns the three levels in escalation order.
func (c DunningConfiguration) Levels() [3]DunningLevel {
	return [3]DunningLevel{c.Level1, c.Level2, c.Level3.DunningLevel}
}

// Level returns level n (1-3).
func (c DunningConfiguration) Level(n int) (DunningLevel, bool) {
	if n < 1 || n > 3 {
		return DunningLevel{}, false
	}
	return c.Levels()[n-1], true
}

// Severity is the urgency band of an invoice. The zero value means none and
// encodes as JSON null.
type Severity string

const (
	SeverityNone     Severity = ""
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
	SeveritySevere   Severity = "severe"
)

func (s Severity) MarshalJSON() ([]byte, error) {
	if s == SeverityNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = SeverityNone
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Severity(raw)
	return nil
}

// OverdueStatus is derived from an invoice's due date and status.
type OverdueStatus struct {
	IsOverdue   bool     `json:"is_overdue"`
	DaysOverdue int      `json:"days_overdue"`
	Severity    Severity `json:"severity"`
}

// DunningActions lists the levels whose threshold is reached and whether
// service should be suspended.
type DunningActions struct {
	TriggeredLevels []int `json:"triggered_levels"`
	ShouldSuspend   bool  `json:"should_suspend"`
}

// HasLevel reports whether level n is among the triggered levels.
func (a DunningActions) HasLevel(n int) bool {
	for _, level := range a.TriggeredLevels {
		if level == n {
			return true
		}
	}
	return false
}
