package billing

import (
	"github.com/transfa/freight-billing-service/internal/domain"
)

// DetermineDunningActions returns the dunning levels whose thresholds an
// invoice has reached, and whether service should be suspended.
//
// Customers with SkipDunningProcess never escalate. Otherwise a level fires
// when DaysOverdue reaches its threshold and AutoSend is on, so a zero
// threshold fires on the due date. Callers filter out settled invoices.
func DetermineDunningActions(cfg domain.DunningConfiguration, overdue domain.OverdueStatus) domain.DunningActions {
	actions := domain.DunningActions{TriggeredLevels: []int{}}
	if cfg.SkipDunningProcess {
		return actions
	}

	for i, level := range cfg.Levels() {
		if overdue.DaysOverdue >= level.DaysOverdue && level.AutoSend {
			actions.TriggeredLevels = append(actions.TriggeredLevels, i+1)
		}
	}

	actions.ShouldSuspend = actions.HasLevel(3) &&
		cfg.Level3.SuspendService &&
		!cfg.AllowServiceWhenOverdue

	return actions
}

// ShouldReactivate reports whether a suspended customer gets service back.
// Only full payment of every invoice counts.
func ShouldReactivate(cfg domain.DunningConfiguration, allInvoicesPaid bool) bool {
	return cfg.AutoReactivateOnPayment && allInvoicesPaid
}

// UnappliedLevels filters triggered down to the levels above highestApplied.
func UnappliedLevels(triggered []int, highestApplied int) []int {
	pending := make([]int, 0, len(triggered))
	for _, level := range triggered {
		if level > highestApplied {
			pending = append(pending, level)
		}
	}
	return pending
}
