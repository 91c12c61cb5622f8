package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/freight-billing-service/internal/billing"
	"github.com/transfa/freight-billing-service/internal/domain"
)

// CollectionAdvice tells staff what to do next about an unpaid invoice.
type CollectionAdvice struct {
	InvoiceID     uuid.UUID               `json:"invoice_id"`
	Action        domain.CollectionMethod `json:"action"`
	LastMethod    domain.CollectionMethod `json:"last_method,omitempty"`
	LastAttemptAt *time.Time              `json:"last_attempt_at,omitempty"`
	EligibleAt    *time.Time              `json:"eligible_at,omitempty"`
	AttemptCount  int                     `json:"attempt_count"`
}

// NextCollectionAction suggests the next collection step for an open invoice.
// While waiting, EligibleAt tells when the next escalation becomes due.
func (s Service) NextCollectionAction(ctx context.Context, invoiceID uuid.UUID) (*CollectionAdvice, error) {
	invoice, err := s.repo.GetInvoiceByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !invoice.Status.IsOpen() {
		return nil, fmt.Errorf("%w: status is %s", ErrInvoiceNotOpen, invoice.Status)
	}

	attempts, err := s.repo.ListCollectionAttempts(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	advice := &CollectionAdvice{
		InvoiceID:    invoiceID,
		Action:       billing.NextCollectionAction(attempts, now),
		AttemptCount: len(attempts),
	}

	if latest, ok := billing.LatestAttempt(attempts); ok {
		lastAt := latest.Date
		advice.LastMethod = latest.Method
		advice.LastAttemptAt = &lastAt
		if advice.Action == domain.CollectionActionWait {
			if _, eligibleAt, ok := billing.NextEscalation(latest.Method, latest.Date); ok {
				advice.EligibleAt = &eligibleAt
			}
		}
	}
	return advice, nil
}

// ListCollectionAttempts returns the attempt history of an invoice.
func (s Service) ListCollectionAttempts(ctx context.Context, invoiceID uuid.UUID) ([]domain.CollectionAttempt, error) {
	if _, err := s.repo.GetInvoiceByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.ListCollectionAttempts(ctx, invoiceID)
}

// RecordCollectionAttempt appends a collection attempt to an invoice's
// history. A zero Date means the attempt happened now.
func (s Service) RecordCollectionAttempt(ctx context.Context, invoiceID uuid.UUID, attempt domain.CollectionAttempt) (*domain.CollectionAttempt, error) {
	method, err := domain.ParseCollectionMethod(string(attempt.Method))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	invoice, err := s.repo.GetInvoiceByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if attempt.Date.IsZero() {
		attempt.Date = now
	}
	if attempt.Date.After(now) {
		return nil, fmt.Errorf("%w: attempt date lies in the future", ErrInvalidInput)
	}

	attempt.ID = uuid.New()
	attempt.InvoiceID = invoiceID
	attempt.Method = method
	attempt.Result = strings.TrimSpace(attempt.Result)
	attempt.Notes = strings.TrimSpace(attempt.Notes)

	saved, err := s.repo.InsertCollectionAttempt(ctx, attempt)
	if err != nil {
		return nil, fmt.Errorf("failed to record collection attempt: %w", err)
	}

	s.publishEvent(ctx, RoutingKeyCollectionAttemptRecorded, collectionAttemptEvent{
		CustomerID: invoice.CustomerID,
		Attempt:    *saved,
		Timestamp:  now,
	})
	return saved, nil
}
