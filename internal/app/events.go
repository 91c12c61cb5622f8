package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/freight-billing-service/internal/domain"
)

// Routing keys published on the events exchange.
const (
	RoutingKeyMarginConfigurationUpdated  = "billing.margin_configuration.updated"
	RoutingKeyDunningConfigurationUpdated = "billing.dunning_configuration.updated"
	RoutingKeyInvoiceOverdue              = "billing.invoice.overdue"
	RoutingKeyInvoicePaid                 = "billing.invoice.paid"
	RoutingKeyDunningLevelApplied         = "billing.dunning.level_applied"
	RoutingKeyCustomerSuspended           = "billing.customer.suspended"
	RoutingKeyCustomerReactivated         = "billing.customer.reactivated"
	RoutingKeyCollectionAttemptRecorded   = "billing.collection_attempt.recorded"
)

type customerEvent struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type invoiceEvent struct {
	InvoiceID     uuid.UUID            `json:"invoice_id"`
	CustomerID    uuid.UUID            `json:"customer_id"`
	InvoiceNumber string               `json:"invoice_number"`
	Status        domain.InvoiceStatus `json:"status"`
	Total         domain.Money         `json:"total"`
	DueDate       time.Time            `json:"due_date"`
	DaysOverdue   int                  `json:"days_overdue"`
	Severity      domain.Severity      `json:"severity"`
	DunningLevel  int                  `json:"dunning_level,omitempty"`
	DunningFee    *domain.Money        `json:"dunning_fee,omitempty"`
	AutoSend      bool                 `json:"auto_send,omitempty"`
	Timestamp     time.Time            `json:"timestamp"`
}

func newInvoiceEvent(invoice domain.Invoice, overdue domain.OverdueStatus, now time.Time) invoiceEvent {
	return invoiceEvent{
		InvoiceID:     invoice.ID,
		CustomerID:    invoice.CustomerID,
		InvoiceNumber: invoice.InvoiceNumber,
		Status:        invoice.Status,
		Total:         invoice.Total,
		DueDate:       invoice.DueDate,
		DaysOverdue:   overdue.DaysOverdue,
		Severity:      overdue.Severity,
		Timestamp:     now,
	}
}

type collectionAttemptEvent struct {
	CustomerID uuid.UUID                `json:"customer_id"`
	Attempt    domain.CollectionAttempt `json:"attempt"`
	Timestamp  time.Time                `json:"timestamp"`
}

func (s Service) publishEvent(ctx context.Context, routingKey string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, s.exchange, routingKey, payload); err != nil {
		log.Printf("WARN: failed to publish billing event %s: %v", routingKey, err)
	}
}
