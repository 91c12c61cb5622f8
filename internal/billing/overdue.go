package billing

import (
	"time"

	"github.com/transfa/freight-billing-service/internal/domain"
)

const (
	day = 24 * time.Hour

	warningWindowDays = 3
	severeAfterDays   = 30
)

// ClassifyOverdue derives the overdue status of an invoice at now.
//
// Bands are checked from warning to severe and are disjoint: warning covers
// invoices due within the next three days, critical covers invoices due today
// up to 29 days late, severe everything 30 days late or more.
func ClassifyOverdue(dueDate time.Time, status domain.InvoiceStatus, now time.Time) domain.OverdueStatus {
	if status.IsSettled() {
		return domain.OverdueStatus{}
	}

	daysUntilDue := ceilDays(dueDate.Sub(now))
	daysOverdue := 0
	if daysUntilDue < 0 {
		daysOverdue = -daysUntilDue
	}

	result := domain.OverdueStatus{
		IsOverdue:   daysOverdue > 0,
		DaysOverdue: daysOverdue,
	}

	switch {
	case daysUntilDue > 0 && daysUntilDue <= warningWindowDays:
		result.Severity = domain.SeverityWarning
	case daysUntilDue <= 0 && daysOverdue < severeAfterDays:
		result.Severity = domain.SeverityCritical
	case daysOverdue >= severeAfterDays:
		result.Severity = domain.SeveritySevere
	}

	return result
}

// ceilDays rounds d up to whole days.
func ceilDays(d time.Duration) int {
	days := d / day
	if d%day > 0 {
		days++
	}
	return int(days)
}

// elapsedDays counts whole days from since to now, flooring partial days.
func elapsedDays(since, now time.Time) int {
	d := now.Sub(since)
	days := d / day
	if d%day < 0 {
		days--
	}
	return int(days)
}
