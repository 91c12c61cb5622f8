package billing

import (
	"time"

	"github.com/transfa/freight-billing-service/internal/domain"
)

// PaymentTermsDays returns the customer's custom payment terms when set,
// otherwise defaultDays.
func PaymentTermsDays(cfg *domain.DunningConfiguration, defaultDays int) int {
	if cfg != nil && cfg.CustomPaymentTermsDays != nil {
		return *cfg.CustomPaymentTermsDays
	}
	return defaultDays
}

// DueDate returns the due date of an invoice issued at issuedAt.
func DueDate(issuedAt time.Time, termsDays int) time.Time {
	return issuedAt.AddDate(0, 0, termsDays)
}
