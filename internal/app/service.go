/**
 * @description
 * Core business logic for freight billing: customer margin and dunning
 * configuration, margin resolution, overdue handling and collection tracking.
 *
 * The pure rules live in internal/billing; this layer loads state, persists
 * outcomes and announces them as events.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/freight-billing-service/internal/billing"
	"github.com/transfa/freight-billing-service/internal/config"
	"github.com/transfa/freight-billing-service/internal/domain"
	"github.com/transfa/freight-billing-service/internal/store"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvoiceNotOpen  = errors.New("invoice is not awaiting payment")
	ErrSweepInProgress = errors.New("dunning sweep already in progress")
)

// Repository defines the database operations the service needs.
type Repository interface {
	GetMarginConfiguration(ctx context.Context, customerID uuid.UUID) (*domain.MarginConfiguration, error)
	ReplaceMarginConfiguration(ctx context.Context, cfg domain.MarginConfiguration, now time.Time) error
	GetDunningConfiguration(ctx context.Context, customerID uuid.UUID) (*domain.DunningConfiguration, error)
	ReplaceDunningConfiguration(ctx context.Context, cfg domain.DunningConfiguration, now time.Time) error

	GetInvoiceByID(ctx context.Context, invoiceID uuid.UUID) (*domain.Invoice, error)
	ListOpenInvoices(ctx context.Context) ([]domain.Invoice, error)
	CountOpenInvoicesByCustomerID(ctx context.Context, customerID uuid.UUID) (int, error)
	MarkInvoiceOverdue(ctx context.Context, invoiceID uuid.UUID, now time.Time) (bool, error)
	MarkInvoicePaid(ctx context.Context, invoiceID uuid.UUID, paidAt time.Time) (*domain.Invoice, error)
	ApplyDunningLevel(ctx context.Context, invoiceID uuid.UUID, level int, fee domain.Money, appliedAt time.Time) (bool, error)

	ListCollectionAttempts(ctx context.Context, invoiceID uuid.UUID) ([]domain.CollectionAttempt, error)
	InsertCollectionAttempt(ctx context.Context, attempt domain.CollectionAttempt) (*domain.CollectionAttempt, error)

	SetServiceSuspended(ctx context.Context, customerID uuid.UUID, suspended bool, at time.Time) (bool, error)
	IsServiceSuspended(ctx context.Context, customerID uuid.UUID) (bool, error)
	ListSuspendedCustomerIDs(ctx context.Context) ([]uuid.UUID, error)
}

// ConfigCache keeps decoded customer configurations close to the service.
type ConfigCache interface {
	Load(ctx context.Context, kind string, customerID uuid.UUID, dst any) (bool, error)
	Store(ctx context.Context, kind string, customerID uuid.UUID, value any) error
	Invalidate(ctx context.Context, kind string, customerID uuid.UUID) error
}

// Locker guards work that must not run on two replicas at once.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (store.ReleaseFunc, bool, error)
}

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// Service provides the business logic for freight billing.
type Service struct {
	repo             Repository
	cache            ConfigCache
	locker           Locker
	publisher        EventPublisher
	exchange         string
	defaultTermsDays int
	now              func() time.Time
}

// NewService creates a new billing service.
func NewService(repo Repository, cache ConfigCache, locker Locker, publisher EventPublisher, cfg config.Config) Service {
	if locker == nil {
		locker = store.NewLocalLocker()
	}
	return Service{
		repo:             repo,
		cache:            cache,
		locker:           locker,
		publisher:        publisher,
		exchange:         cfg.EventsExchange,
		defaultTermsDays: cfg.DefaultPaymentTermsDays,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// GetMarginConfiguration returns the customer's margin configuration.
func (s Service) GetMarginConfiguration(ctx context.Context, customerID uuid.UUID) (*domain.MarginConfiguration, error) {
	var cached domain.MarginConfiguration
	if s.loadCached(ctx, store.CacheKindMargin, customerID, &cached) {
		return &cached, nil
	}

	cfg, err := s.repo.GetMarginConfiguration(ctx, customerID)
	if err != nil {
		return nil, err
	}
	s.storeCached(ctx, store.CacheKindMargin, customerID, cfg)
	return cfg, nil
}

// SaveMarginConfiguration validates cfg and stores it as the customer's
// complete margin configuration. Rules not present in cfg are removed.
func (s Service) SaveMarginConfiguration(ctx context.Context, customerID uuid.UUID, cfg domain.MarginConfiguration) (*domain.MarginConfiguration, error) {
	cfg = normalizeMarginConfiguration(cfg)
	cfg.CustomerID = customerID
	if err := billing.ValidateMarginConfiguration(cfg); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.repo.ReplaceMarginConfiguration(ctx, cfg, now); err != nil {
		return nil, fmt.Errorf("failed to save margin configuration: %w", err)
	}
	s.invalidateCached(ctx, store.CacheKindMargin, customerID)
	s.publishEvent(ctx, RoutingKeyMarginConfigurationUpdated, customerEvent{CustomerID: customerID, Timestamp: now})

	return s.repo.GetMarginConfiguration(ctx, customerID)
}

// ResolveMargin resolves the margin for a shipment of the customer. A
// customer without configuration gets domain.ErrNoApplicableRule.
func (s Service) ResolveMargin(ctx context.Context, customerID uuid.UUID, query domain.MarginQuery) (domain.MarginDecision, error) {
	query, err := normalizeMarginQuery(query)
	if err != nil {
		return domain.MarginDecision{}, err
	}

	cfg, err := s.GetMarginConfiguration(ctx, customerID)
	if err != nil && !errors.Is(err, store.ErrConfigurationNotFound) {
		return domain.MarginDecision{}, err
	}
	return billing.ResolveMargin(cfg, query)
}

// PreviewMargin resolves query against a configuration that has not been
// saved, so staff can try out rules before committing them.
func (s Service) PreviewMargin(cfg domain.MarginConfiguration, query domain.MarginQuery) (domain.MarginDecision, error) {
	query, err := normalizeMarginQuery(query)
	if err != nil {
		return domain.MarginDecision{}, err
	}

	cfg = normalizeMarginConfiguration(cfg)
	if err := billing.ValidateMarginConfiguration(cfg); err != nil {
		return domain.MarginDecision{}, err
	}
	return billing.ResolveMargin(&cfg, query)
}

// GetDunningConfiguration returns the customer's dunning configuration.
func (s Service) GetDunningConfiguration(ctx context.Context, customerID uuid.UUID) (*domain.DunningConfiguration, error) {
	var cached domain.DunningConfiguration
	if s.loadCached(ctx, store.CacheKindDunning, customerID, &cached) {
		return &cached, nil
	}

	cfg, err := s.repo.GetDunningConfiguration(ctx, customerID)
	if err != nil {
		return nil, err
	}
	s.storeCached(ctx, store.CacheKindDunning, customerID, cfg)
	return cfg, nil
}

// SaveDunningConfiguration validates cfg and replaces the customer's dunning
// configuration with it.
func (s Service) SaveDunningConfiguration(ctx context.Context, customerID uuid.UUID, cfg domain.DunningConfiguration) (*domain.DunningConfiguration, error) {
	cfg.Level1.FeeAmount = cfg.Level1.FeeAmount.Normalized()
	cfg.Level2.FeeAmount = cfg.Level2.FeeAmount.Normalized()
	cfg.Level3.FeeAmount = cfg.Level3.FeeAmount.Normalized()
	cfg.CustomerID = customerID
	if err := billing.ValidateDunningConfiguration(cfg); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.repo.ReplaceDunningConfiguration(ctx, cfg, now); err != nil {
		return nil, fmt.Errorf("failed to save dunning configuration: %w", err)
	}
	s.invalidateCached(ctx, store.CacheKindDunning, customerID)
	s.publishEvent(ctx, RoutingKeyDunningConfigurationUpdated, customerEvent{CustomerID: customerID, Timestamp: now})

	return s.repo.GetDunningConfiguration(ctx, customerID)
}

// PaymentTerms is the due-date policy for a customer's next invoice.
type PaymentTerms struct {
	CustomerID        uuid.UUID `json:"customer_id"`
	Days              int       `json:"days"`
	Custom            bool      `json:"custom"`
	RequirePrepayment bool      `json:"require_prepayment"`
	IssuedAt          time.Time `json:"issued_at"`
	DueDate           time.Time `json:"due_date"`
}

// GetPaymentTerms returns the customer's payment terms and the due date of an
// invoice issued at issuedAt. A zero issuedAt means now.
func (s Service) GetPaymentTerms(ctx context.Context, customerID uuid.UUID, issuedAt time.Time) (*PaymentTerms, error) {
	cfg, err := s.GetDunningConfiguration(ctx, customerID)
	if err != nil && !errors.Is(err, store.ErrConfigurationNotFound) {
		return nil, err
	}
	if issuedAt.IsZero() {
		issuedAt = s.now()
	}

	days := billing.PaymentTermsDays(cfg, s.defaultTermsDays)
	terms := &PaymentTerms{
		CustomerID: customerID,
		Days:       days,
		IssuedAt:   issuedAt,
		DueDate:    billing.DueDate(issuedAt, days),
	}
	if cfg != nil {
		terms.Custom = cfg.CustomPaymentTermsDays != nil
		terms.RequirePrepayment = cfg.RequirePrepayment
	}
	return terms, nil
}

func normalizeMarginConfiguration(cfg domain.MarginConfiguration) domain.MarginConfiguration {
	cfg.DefaultMinimumMarginAmount = cfg.DefaultMinimumMarginAmount.Normalized()

	services := make([]domain.ServiceMargin, len(cfg.ServiceMargins))
	for i, m := range cfg.ServiceMargins {
		m.MinimumMarginAmount = m.MinimumMarginAmount.Normalized()
		services[i] = m
	}
	routes := make([]domain.RouteMargin, len(cfg.RouteMargins))
	for i, m := range cfg.RouteMargins {
		m.Origin = strings.TrimSpace(m.Origin)
		m.Destination = strings.TrimSpace(m.Destination)
		m.MinimumMarginAmount = m.MinimumMarginAmount.Normalized()
		routes[i] = m
	}
	tiers := make([]domain.VolumeTier, len(cfg.VolumeTiers))
	for i, t := range cfg.VolumeTiers {
		t.MinimumMarginAmount = t.MinimumMarginAmount.Normalized()
		tiers[i] = t
	}

	cfg.ServiceMargins = services
	cfg.RouteMargins = routes
	cfg.VolumeTiers = tiers
	return cfg
}

func normalizeMarginQuery(query domain.MarginQuery) (domain.MarginQuery, error) {
	query.Revenue = query.Revenue.Normalized()
	query.Origin = strings.TrimSpace(query.Origin)
	query.Destination = strings.TrimSpace(query.Destination)

	if !domain.IsValidCurrencyCode(query.Revenue.CurrencyCode) {
		return query, fmt.Errorf("%w: revenue currency %q is not an ISO-4217 code", ErrInvalidInput, query.Revenue.CurrencyCode)
	}
	if query.Revenue.IsNegative() {
		return query, fmt.Errorf("%w: revenue must not be negative", ErrInvalidInput)
	}
	if query.ServiceType != "" && !query.ServiceType.IsValid() {
		return query, fmt.Errorf("%w: unknown service type %q", ErrInvalidInput, query.ServiceType)
	}
	if query.MonthlyShipmentCount != nil && *query.MonthlyShipmentCount < 0 {
		return query, fmt.Errorf("%w: monthly shipment count must not be negative", ErrInvalidInput)
	}
	return query, nil
}

func (s Service) loadCached(ctx context.Context, kind string, customerID uuid.UUID, dst any) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.Load(ctx, kind, customerID, dst)
	if err != nil {
		log.Printf("WARN: failed to read cached %s configuration for customer %s: %v", kind, customerID, err)
		return false
	}
	return hit
}

func (s Service) storeCached(ctx context.Context, kind string, customerID uuid.UUID, value any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Store(ctx, kind, customerID, value); err != nil {
		log.Printf("WARN: failed to cache %s configuration for customer %s: %v", kind, customerID, err)
	}
}

func (s Service) invalidateCached(ctx context.Context, kind string, customerID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, kind, customerID); err != nil {
		log.Printf("WARN: failed to invalidate cached %s configuration for customer %s: %v", kind, customerID, err)
	}
}
