package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/freight-billing-service/internal/billing"
	"github.com/transfa/freight-billing-service/internal/domain"
	"github.com/transfa/freight-billing-service/internal/store"
)

const (
	dunningSweepLock    = "dunning-sweep"
	dunningSweepLockTTL = 15 * time.Minute
)

// DunningEvaluation is a read-only view of where an invoice stands in the
// dunning process.
type DunningEvaluation struct {
	InvoiceID         uuid.UUID            `json:"invoice_id"`
	CustomerID        uuid.UUID            `json:"customer_id"`
	Status            domain.InvoiceStatus `json:"status"`
	Overdue           domain.OverdueStatus `json:"overdue"`
	Configured        bool                 `json:"configured"`
	TriggeredLevels   []int                `json:"triggered_levels"`
	AppliedLevel      int                  `json:"applied_level"`
	PendingLevels     []int                `json:"pending_levels"`
	ShouldSuspend     bool                 `json:"should_suspend"`
	CustomerSuspended bool                 `json:"customer_suspended"`
}

// DunningSweepResult summarizes a dunning sweep.
type DunningSweepResult struct {
	Evaluated            int `json:"evaluated"`
	MarkedOverdue        int `json:"marked_overdue"`
	LevelsApplied        int `json:"levels_applied"`
	CustomersSuspended   int `json:"customers_suspended"`
	CustomersReactivated int `json:"customers_reactivated"`
	Failed               int `json:"failed"`
}

// PaymentResult is the outcome of recording a payment.
type PaymentResult struct {
	Invoice             *domain.Invoice `json:"invoice"`
	CustomerReactivated bool            `json:"customer_reactivated"`
}

// GetOverdueStatus classifies an invoice against the current time.
func (s Service) GetOverdueStatus(ctx context.Context, invoiceID uuid.UUID) (*domain.OverdueStatus, error) {
	invoice, err := s.repo.GetInvoiceByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	status := billing.ClassifyOverdue(invoice.DueDate, invoice.Status, s.now())
	return &status, nil
}

// EvaluateInvoiceDunning reports the dunning levels an invoice has reached
// without applying anything.
func (s Service) EvaluateInvoiceDunning(ctx context.Context, invoiceID uuid.UUID) (*DunningEvaluation, error) {
	invoice, err := s.repo.GetInvoiceByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	cfg, err := s.dunningConfigurationOrNil(ctx, invoice.CustomerID)
	if err != nil {
		return nil, err
	}
	suspended, err := s.repo.IsServiceSuspended(ctx, invoice.CustomerID)
	if err != nil {
		return nil, err
	}

	overdue := billing.ClassifyOverdue(invoice.DueDate, invoice.Status, s.now())
	evaluation := &DunningEvaluation{
		InvoiceID:         invoice.ID,
		CustomerID:        invoice.CustomerID,
		Status:            invoice.Status,
		Overdue:           overdue,
		Configured:        cfg != nil,
		TriggeredLevels:   []int{},
		AppliedLevel:      invoice.DunningLevel,
		PendingLevels:     []int{},
		CustomerSuspended: suspended,
	}
	if cfg == nil || invoice.Status.IsSettled() {
		return evaluation, nil
	}

	actions := billing.DetermineDunningActions(*cfg, overdue)
	evaluation.TriggeredLevels = actions.TriggeredLevels
	evaluation.PendingLevels = billing.UnappliedLevels(actions.TriggeredLevels, invoice.DunningLevel)
	evaluation.ShouldSuspend = actions.ShouldSuspend
	return evaluation, nil
}

// RunDunningSweep re-evaluates every open invoice: overdue invoices are
// flagged, newly reached dunning levels are applied with their fee, and
// customers are suspended or reactivated as their configuration demands.
// Only one sweep runs at a time across replicas.
func (s Service) RunDunningSweep(ctx context.Context) (*DunningSweepResult, error) {
	release, acquired, err := s.locker.Acquire(ctx, dunningSweepLock, dunningSweepLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire dunning sweep lock: %w", err)
	}
	if !acquired {
		return nil, ErrSweepInProgress
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			log.Printf("WARN: failed to release dunning sweep lock: %v", err)
		}
	}()

	now := s.now()
	invoices, err := s.repo.ListOpenInvoices(ctx)
	if err != nil {
		return nil, err
	}

	result := &DunningSweepResult{}
	configs := make(map[uuid.UUID]*domain.DunningConfiguration)
	suspended := make(map[uuid.UUID]bool)

	for _, invoice := range invoices {
		result.Evaluated++

		cfg, ok := configs[invoice.CustomerID]
		if !ok {
			cfg, err = s.dunningConfigurationOrNil(ctx, invoice.CustomerID)
			if err != nil {
				log.Printf("WARN: failed to load dunning configuration for customer %s: %v", invoice.CustomerID, err)
				result.Failed++
				continue
			}
			configs[invoice.CustomerID] = cfg
		}

		if err := s.sweepInvoice(ctx, invoice, cfg, suspended, result, now); err != nil {
			log.Printf("WARN: dunning sweep failed for invoice %s: %v", invoice.ID, err)
			result.Failed++
		}
	}

	s.reactivateSettledCustomers(ctx, result, now)
	return result, nil
}

func (s Service) sweepInvoice(
	ctx context.Context,
	invoice domain.Invoice,
	cfg *domain.DunningConfiguration,
	suspended map[uuid.UUID]bool,
	result *DunningSweepResult,
	now time.Time,
) error {
	overdue := billing.ClassifyOverdue(invoice.DueDate, invoice.Status, now)
	if invoice.DueDate.After(now) {
		return nil
	}

	if overdue.IsOverdue && invoice.Status == domain.InvoiceStatusSent {
		marked, err := s.repo.MarkInvoiceOverdue(ctx, invoice.ID, now)
		if err != nil {
			return fmt.Errorf("mark overdue: %w", err)
		}
		if marked {
			invoice.Status = domain.InvoiceStatusOverdue
			result.MarkedOverdue++
			s.publishEvent(ctx, RoutingKeyInvoiceOverdue, newInvoiceEvent(invoice, overdue, now))
		}
	}

	if cfg == nil {
		return nil
	}

	actions := billing.DetermineDunningActions(*cfg, overdue)
	for _, n := range billing.UnappliedLevels(actions.TriggeredLevels, invoice.DunningLevel) {
		level, _ := cfg.Level(n)
		applied, err := s.repo.ApplyDunningLevel(ctx, invoice.ID, n, level.FeeAmount, now)
		if err != nil {
			return fmt.Errorf("apply dunning level %d: %w", n, err)
		}
		if !applied {
			continue
		}
		result.LevelsApplied++

		event := newInvoiceEvent(invoice, overdue, now)
		event.DunningLevel = n
		fee := level.FeeAmount
		event.DunningFee = &fee
		event.AutoSend = level.AutoSend
		s.publishEvent(ctx, RoutingKeyDunningLevelApplied, event)
	}

	if actions.ShouldSuspend && !suspended[invoice.CustomerID] {
		changed, err := s.repo.SetServiceSuspended(ctx, invoice.CustomerID, true, now)
		if err != nil {
			return fmt.Errorf("suspend customer: %w", err)
		}
		suspended[invoice.CustomerID] = true
		if changed {
			result.CustomersSuspended++
			s.publishEvent(ctx, RoutingKeyCustomerSuspended, customerEvent{
				CustomerID: invoice.CustomerID,
				Reason:     fmt.Sprintf("invoice %s reached final dunning level", invoice.InvoiceNumber),
				Timestamp:  now,
			})
		}
	}
	return nil
}

func (s Service) reactivateSettledCustomers(ctx context.Context, result *DunningSweepResult, now time.Time) {
	customerIDs, err := s.repo.ListSuspendedCustomerIDs(ctx)
	if err != nil {
		log.Printf("WARN: failed to list suspended customers: %v", err)
		result.Failed++
		return
	}

	for _, customerID := range customerIDs {
		reactivated, err := s.reactivateIfSettled(ctx, customerID, now)
		if err != nil {
			log.Printf("WARN: failed to reactivate customer %s: %v", customerID, err)
			result.Failed++
			continue
		}
		if reactivated {
			result.CustomersReactivated++
		}
	}
}

// RecordPayment marks an open invoice as fully paid and reactivates the
// customer when that settles their last open invoice.
func (s Service) RecordPayment(ctx context.Context, invoiceID uuid.UUID, paidAt time.Time) (*PaymentResult, error) {
	invoice, err := s.repo.GetInvoiceByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !invoice.Status.IsOpen() {
		return nil, fmt.Errorf("%w: status is %s", ErrInvoiceNotOpen, invoice.Status)
	}

	now := s.now()
	if paidAt.IsZero() {
		paidAt = now
	}
	paid, err := s.repo.MarkInvoicePaid(ctx, invoiceID, paidAt)
	if err != nil {
		if errors.Is(err, store.ErrInvoiceNotFound) {
			return nil, fmt.Errorf("%w: invoice was settled concurrently", ErrInvoiceNotOpen)
		}
		return nil, fmt.Errorf("failed to mark invoice paid: %w", err)
	}
	s.publishEvent(ctx, RoutingKeyInvoicePaid, newInvoiceEvent(*paid, domain.OverdueStatus{}, now))

	reactivated, err := s.reactivateIfSettled(ctx, paid.CustomerID, now)
	if err != nil {
		log.Printf("WARN: failed to check reactivation for customer %s: %v", paid.CustomerID, err)
	}
	return &PaymentResult{Invoice: paid, CustomerReactivated: reactivated}, nil
}

func (s Service) reactivateIfSettled(ctx context.Context, customerID uuid.UUID, now time.Time) (bool, error) {
	cfg, err := s.dunningConfigurationOrNil(ctx, customerID)
	if err != nil || cfg == nil {
		return false, err
	}

	open, err := s.repo.CountOpenInvoicesByCustomerID(ctx, customerID)
	if err != nil {
		return false, err
	}
	if !billing.ShouldReactivate(*cfg, open == 0) {
		return false, nil
	}

	changed, err := s.repo.SetServiceSuspended(ctx, customerID, false, now)
	if err != nil {
		return false, err
	}
	if changed {
		s.publishEvent(ctx, RoutingKeyCustomerReactivated, customerEvent{
			CustomerID: customerID,
			Reason:     "all invoices paid",
			Timestamp:  now,
		})
	}
	return changed, nil
}

func (s Service) dunningConfigurationOrNil(ctx context.Context, customerID uuid.UUID) (*domain.DunningConfiguration, error) {
	cfg, err := s.GetDunningConfiguration(ctx, customerID)
	if errors.Is(err, store.ErrConfigurationNotFound) {
		return nil, nil
	}
	return cfg, err
}
