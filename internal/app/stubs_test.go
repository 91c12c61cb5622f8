package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/freight-billing-service/internal/config"
	"github.com/transfa/freight-billing-service/internal/domain"
	"github.com/transfa/freight-billing-service/internal/store"
)

type repoStub struct {
	mu sync.Mutex

	margin    map[uuid.UUID]domain.MarginConfiguration
	dunning   map[uuid.UUID]domain.DunningConfiguration
	invoices  map[uuid.UUID]*domain.Invoice
	fees      map[uuid.UUID]map[int]domain.Money
	attempts  map[uuid.UUID][]domain.CollectionAttempt
	suspended map[uuid.UUID]bool

	marginReads int
	replaceErr  error
}

func newRepoStub() *repoStub {
	return &repoStub{
		margin:    make(map[uuid.UUID]domain.MarginConfiguration),
		dunning:   make(map[uuid.UUID]domain.DunningConfiguration),
		invoices:  make(map[uuid.UUID]*domain.Invoice),
		fees:      make(map[uuid.UUID]map[int]domain.Money),
		attempts:  make(map[uuid.UUID][]domain.CollectionAttempt),
		suspended: make(map[uuid.UUID]bool),
	}
}

func (r *repoStub) GetMarginConfiguration(ctx context.Context, customerID uuid.UUID) (*domain.MarginConfiguration, error) {
	r.marginReads++
	cfg, ok := r.margin[customerID]
	if !ok {
		return nil, store.ErrConfigurationNotFound
	}
	return &cfg, nil
}

func (r *repoStub) ReplaceMarginConfiguration(ctx context.Context, cfg domain.MarginConfiguration, now time.Time) error {
	if r.replaceErr != nil {
		return r.replaceErr
	}
	if existing, ok := r.margin[cfg.CustomerID]; ok {
		cfg.CreatedAt = existing.CreatedAt
	} else {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now
	r.margin[cfg.CustomerID] = cfg
	return nil
}

func (r *repoStub) GetDunningConfiguration(ctx context.Context, customerID uuid.UUID) (*domain.DunningConfiguration, error) {
	cfg, ok := r.dunning[customerID]
	if !ok {
		return nil, store.ErrConfigurationNotFound
	}
	return &cfg, nil
}

func (r *repoStub) ReplaceDunningConfiguration(ctx context.Context, cfg domain.DunningConfiguration, now time.Time) error {
	if r.replaceErr != nil {
		return r.replaceErr
	}
	cfg.UpdatedAt = now
	r.dunning[cfg.CustomerID] = cfg
	return nil
}

func (r *repoStub) GetInvoiceByID(ctx context.Context, invoiceID uuid.UUID) (*domain.Invoice, error) {
	invoice, ok := r.invoices[invoiceID]
	if !ok {
		return nil, store.ErrInvoiceNotFound
	}
	copied := *invoice
	return &copied, nil
}

func (r *repoStub) ListOpenInvoices(ctx context.Context) ([]domain.Invoice, error) {
	var open []domain.Invoice
	for _, invoice := range r.invoices {
		if invoice.Status.IsOpen() {
			open = append(open, *invoice)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].DueDate.Before(open[j].DueDate) })
	return open, nil
}

func (r *repoStub) CountOpenInvoicesByCustomerID(ctx context.Context, customerID uuid.UUID) (int, error) {
	count := 0
	for _, invoice := range r.invoices {
		if invoice.CustomerID == customerID && invoice.Status.IsOpen() {
			count++
		}
	}
	return count, nil
}

func (r *repoStub) MarkInvoiceOverdue(ctx context.Context, invoiceID uuid.UUID, now time.Time) (bool, error) {
	invoice := r.invoices[invoiceID]
	if invoice == nil || invoice.Status != domain.InvoiceStatusSent {
		return false, nil
	}
	invoice.Status = domain.InvoiceStatusOverdue
	return true, nil
}

func (r *repoStub) MarkInvoicePaid(ctx context.Context, invoiceID uuid.UUID, paidAt time.Time) (*domain.Invoice, error) {
	invoice := r.invoices[invoiceID]
	if invoice == nil || !invoice.Status.IsOpen() {
		return nil, store.ErrInvoiceNotFound
	}
	invoice.Status = domain.InvoiceStatusPaid
	invoice.PaidAt = &paidAt
	copied := *invoice
	return &copied, nil
}

func (r *repoStub) ApplyDunningLevel(ctx context.Context, invoiceID uuid.UUID, level int, fee domain.Money, appliedAt time.Time) (bool, error) {
	if r.fees[invoiceID] == nil {
		r.fees[invoiceID] = make(map[int]domain.Money)
	}
	if _, ok := r.fees[invoiceID][level]; ok {
		return false, nil
	}
	r.fees[invoiceID][level] = fee
	if invoice := r.invoices[invoiceID]; invoice != nil && invoice.DunningLevel < level {
		invoice.DunningLevel = level
	}
	return true, nil
}

func (r *repoStub) ListCollectionAttempts(ctx context.Context, invoiceID uuid.UUID) ([]domain.CollectionAttempt, error) {
	return append([]domain.CollectionAttempt{}, r.attempts[invoiceID]...), nil
}

func (r *repoStub) InsertCollectionAttempt(ctx context.Context, attempt domain.CollectionAttempt) (*domain.CollectionAttempt, error) {
	attempt.CreatedAt = attempt.Date
	r.attempts[attempt.InvoiceID] = append(r.attempts[attempt.InvoiceID], attempt)
	return &attempt, nil
}

func (r *repoStub) SetServiceSuspended(ctx context.Context, customerID uuid.UUID, suspended bool, at time.Time) (bool, error) {
	if r.suspended[customerID] == suspended {
		return false, nil
	}
	r.suspended[customerID] = suspended
	return true, nil
}

func (r *repoStub) IsServiceSuspended(ctx context.Context, customerID uuid.UUID) (bool, error) {
	return r.suspended[customerID], nil
}

func (r *repoStub) ListSuspendedCustomerIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id, suspended := range r.suspended {
		if suspended {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type publishedEvent struct {
	exchange   string
	routingKey string
	body       interface{}
}

type publisherStub struct {
	events []publishedEvent
}

func (p *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.events = append(p.events, publishedEvent{exchange: exchange, routingKey: routingKey, body: body})
	return nil
}

func (p *publisherStub) count(routingKey string) int {
	n := 0
	for _, e := range p.events {
		if e.routingKey == routingKey {
			n++
		}
	}
	return n
}

type cacheStub struct {
	entries     map[string]any
	invalidated []string
}

func newCacheStub() *cacheStub {
	return &cacheStub{entries: make(map[string]any)}
}

func (c *cacheStub) Load(ctx context.Context, kind string, customerID uuid.UUID, dst any) (bool, error) {
	value, ok := c.entries[kind+customerID.String()]
	if !ok {
		return false, nil
	}
	switch v := value.(type) {
	case *domain.MarginConfiguration:
		*dst.(*domain.MarginConfiguration) = *v
	case *domain.DunningConfiguration:
		*dst.(*domain.DunningConfiguration) = *v
	}
	return true, nil
}

func (c *cacheStub) Store(ctx context.Context, kind string, customerID uuid.UUID, value any) error {
	c.entries[kind+customerID.String()] = value
	return nil
}

func (c *cacheStub) Invalidate(ctx context.Context, kind string, customerID uuid.UUID) error {
	delete(c.entries, kind+customerID.String())
	c.invalidated = append(c.invalidated, kind)
	return nil
}

var testNow = time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)

func newTestService(repo Repository, cache ConfigCache, publisher *publisherStub) Service {
	var events EventPublisher
	if publisher != nil {
		events = publisher
	}
	svc := NewService(repo, cache, nil, events, config.Config{
		EventsExchange:          "freight.events",
		DefaultPaymentTermsDays: 30,
	})
	svc.now = func() time.Time { return testNow }
	return svc
}

func eur(amount string) domain.Money {
	return domain.MustMoney(amount, "EUR")
}

func testDunningConfig(customerID uuid.UUID) domain.DunningConfiguration {
	return domain.DunningConfiguration{
		CustomerID: customerID,
		Level1:     domain.DunningLevel{DaysOverdue: 7, FeeAmount: eur("0"), AutoSend: true},
		Level2:     domain.DunningLevel{DaysOverdue: 14, FeeAmount: eur("5"), AutoSend: true},
		Level3: domain.FinalDunningLevel{
			DunningLevel:   domain.DunningLevel{DaysOverdue: 30, FeeAmount: eur("15"), AutoSend: true},
			SuspendService: true,
		},
		AutoReactivateOnPayment: true,
	}
}

func (r *repoStub) addInvoice(customerID uuid.UUID, status domain.InvoiceStatus, daysOverdue int) *domain.Invoice {
	invoice := &domain.Invoice{
		ID:            uuid.New(),
		CustomerID:    customerID,
		InvoiceNumber: "INV-" + customerID.String()[:4],
		Total:         eur("1200"),
		IssuedAt:      testNow.AddDate(0, 0, -daysOverdue-30),
		DueDate:       testNow.AddDate(0, 0, -daysOverdue),
		Status:        status,
	}
	r.invoices[invoice.ID] = invoice
	return invoice
}
