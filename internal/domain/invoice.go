package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus is the lifecycle state of a customer invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// IsSettled reports whether the invoice no longer takes part in dunning.
func (s InvoiceStatus) IsSettled() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCancelled
}

// IsOpen reports whether the invoice is awaiting payment.
func (s InvoiceStatus) IsOpen() bool {
	return s == InvoiceStatusSent || s == InvoiceStatusOverdue
}

// CollectionMethod is the channel used for a collection attempt.
type CollectionMethod string

const (
	CollectionMethodEmail          CollectionMethod = "email"
	CollectionMethodPhone          CollectionMethod = "phone"
	CollectionMethodLetter         CollectionMethod = "letter"
	CollectionMethodLegalNotice    CollectionMethod = "legal_notice"
	CollectionMethodDebtCollection CollectionMethod = "debt_collection"
)

// CollectionActionWait is suggested when no escalation is due yet.
const CollectionActionWait CollectionMethod = "wait"

// ParseCollectionMethod validates a raw collection method.
func ParseCollectionMethod(raw string) (CollectionMethod, error) {
	m := CollectionMethod(strings.ToLower(strings.TrimSpace(raw)))
	switch m {
	case CollectionMethodEmail, CollectionMethodPhone, CollectionMethodLetter,
		CollectionMethodLegalNotice, CollectionMethodDebtCollection:
		return m, nil
	}
	return "", fmt.Errorf("unknown collection method %q", raw)
}

// CollectionAttempt is a logged action taken to recover an overdue payment.
type CollectionAttempt struct {
	ID         uuid.UUID        `json:"id"`
	InvoiceID  uuid.UUID        `json:"invoice_id"`
	Method     CollectionMethod `json:"method"`
	Date       time.Time        `json:"date"`
	Result     string           `json:"result"`
	Notes      string           `json:"notes,omitempty"`
	RecordedBy string           `json:"recorded_by,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Invoice is the subset of a customer invoice the billing engine works on.
// DunningLevel is the highest dunning level already applied.
type Invoice struct {
	ID            uuid.UUID     `json:"id"`
	CustomerID    uuid.UUID     `json:"customer_id"`
	InvoiceNumber string        `json:"invoice_number"`
	Total         Money         `json:"total"`
	IssuedAt      time.Time     `json:"issued_at"`
	DueDate       time.Time     `json:"due_date"`
	Status        InvoiceStatus `json:"status"`
	DunningLevel  int           `json:"dunning_level"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
