/**
 * @description
 * Data access layer for customer margin and dunning configuration.
 *
 * Every save replaces the complete configuration of a customer inside one
 * transaction; sub-lists are never merged.
 */
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/transfa/freight-billing-service/internal/domain"
)

var (
	ErrConfigurationNotFound = errors.New("configuration not found")
	ErrInvoiceNotFound       = errors.New("invoice not found")
)

// Repository handles database operations for the billing service.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetMarginConfiguration loads the margin configuration of a customer with
// every sub-list in declaration order.
func (r *Repository) GetMarginConfiguration(ctx context.Context, customerID uuid.UUID) (*domain.MarginConfiguration, error) {
	cfg := domain.MarginConfiguration{CustomerID: customerID}
	var currency string
	err := r.db.QueryRow(ctx, `
		SELECT default_margin_percentage::TEXT, default_minimum_margin_amount::TEXT, currency, created_at, updated_at
		FROM customer_margin_configurations
		WHERE customer_id = $1
	`, customerID).Scan(
		&cfg.DefaultMarginPercentage,
		&cfg.DefaultMinimumMarginAmount.Amount,
		&currency,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConfigurationNotFound
		}
		return nil, err
	}
	cfg.DefaultMinimumMarginAmount.CurrencyCode = currency

	if cfg.ServiceMargins, err = r.listServiceMargins(ctx, customerID, currency); err != nil {
		return nil, fmt.Errorf("load service margins: %w", err)
	}
	if cfg.RouteMargins, err = r.listRouteMargins(ctx, customerID, currency); err != nil {
		return nil, fmt.Errorf("load route margins: %w", err)
	}
	if cfg.VolumeTiers, err = r.listVolumeTiers(ctx, customerID, currency); err != nil {
		return nil, fmt.Errorf("load volume tiers: %w", err)
	}

	return &cfg, nil
}

func (r *Repository) listServiceMargins(ctx context.Context, customerID uuid.UUID, currency string) ([]domain.ServiceMargin, error) {
	rows, err := r.db.Query(ctx, `
		SELECT service_type, margin_percentage::TEXT, minimum_margin_amount::TEXT, COALESCE(description, '')
		FROM customer_service_margins
		WHERE customer_id = $1
		ORDER BY position
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	margins := []domain.ServiceMargin{}
	for rows.Next() {
		var m domain.ServiceMargin
		if err := rows.Scan(&m.ServiceType, &m.MarginPercentage, &m.MinimumMarginAmount.Amount, &m.Description); err != nil {
			return nil, err
		}
		m.MinimumMarginAmount.CurrencyCode = currency
		margins = append(margins, m)
	}
	return margins, rows.Err()
}

func (r *Repository) listRouteMargins(ctx context.Context, customerID uuid.UUID, currency string) ([]domain.RouteMargin, error) {
	rows, err := r.db.Query(ctx, `
		SELECT origin, destination, margin_percentage::TEXT, minimum_margin_amount::TEXT, COALESCE(description, '')
		FROM customer_route_margins
		WHERE customer_id = $1
		ORDER BY position
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	margins := []domain.RouteMargin{}
	for rows.Next() {
		var m domain.RouteMargin
		if err := rows.Scan(&m.Origin, &m.Destination, &m.MarginPercentage, &m.MinimumMarginAmount.Amount, &m.Description); err != nil {
			return nil, err
		}
		m.MinimumMarginAmount.CurrencyCode = currency
		margins = append(margins, m)
	}
	return margins, rows.Err()
}

func (r *Repository) listVolumeTiers(ctx context.Context, customerID uuid.UUID, currency string) ([]domain.VolumeTier, error) {
	rows, err := r.db.Query(ctx, `
		SELECT min_shipments_per_month, max_shipments_per_month, margin_percentage::TEXT, minimum_margin_amount::TEXT, COALESCE(description, '')
		FROM customer_volume_tiers
		WHERE customer_id = $1
		ORDER BY position
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tiers := []domain.VolumeTier{}
	for rows.Next() {
		var t domain.VolumeTier
		if err := rows.Scan(&t.MinShipmentsPerMonth, &t.MaxShipmentsPerMonth, &t.MarginPercentage, &t.MinimumMarginAmount.Amount, &t.Description); err != nil {
			return nil, err
		}
		t.MinimumMarginAmount.CurrencyCode = currency
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

// ReplaceMarginConfiguration stores cfg as the complete margin configuration
// of cfg.CustomerID, creating it on first save.
func (r *Repository) ReplaceMarginConfiguration(ctx context.Context, cfg domain.MarginConfiguration, now time.Time) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO customer_margin_configurations (
				customer_id, default_margin_percentage, default_minimum_margin_amount, currency, created_at, updated_at
			) VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4, $5, $5)
			ON CONFLICT (customer_id) DO UPDATE SET
				default_margin_percentage = EXCLUDED.default_margin_percentage,
				default_minimum_margin_amount = EXCLUDED.default_minimum_margin_amount,
				currency = EXCLUDED.currency,
				updated_at = EXCLUDED.updated_at
		`,
			cfg.CustomerID,
			numeric(cfg.DefaultMarginPercentage),
			numeric(cfg.DefaultMinimumMarginAmount.Amount),
			cfg.DefaultMinimumMarginAmount.CurrencyCode,
			now,
		); err != nil {
			return fmt.Errorf("upsert margin configuration: %w", err)
		}

		for _, table := range []string{"customer_service_margins", "customer_route_margins", "customer_volume_tiers"} {
			if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE customer_id = $1", cfg.CustomerID); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		batch := &pgx.Batch{}
		for i, m := range cfg.ServiceMargins {
			batch.Queue(`
				INSERT INTO customer_service_margins (customer_id, position, service_type, margin_percentage, minimum_margin_amount, description)
				VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6)
			`, cfg.CustomerID, i, string(m.ServiceType), numeric(m.MarginPercentage), numeric(m.MinimumMarginAmount.Amount), m.Description)
		}
		for i, m := range cfg.RouteMargins {
			batch.Queue(`
				INSERT INTO customer_route_margins (customer_id, position, origin, destination, margin_percentage, minimum_margin_amount, description)
				VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7)
			`, cfg.CustomerID, i, m.Origin, m.Destination, numeric(m.MarginPercentage), numeric(m.MinimumMarginAmount.Amount), m.Description)
		}
		for i, t := range cfg.VolumeTiers {
			batch.Queue(`
				INSERT INTO customer_volume_tiers (customer_id, position, min_shipments_per_month, max_shipments_per_month, margin_percentage, minimum_margin_amount, description)
				VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7)
			`, cfg.CustomerID, i, t.MinShipmentsPerMonth, t.MaxShipmentsPerMonth, numeric(t.MarginPercentage), numeric(t.MinimumMarginAmount.Amount), t.Description)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert margin rules: %w", err)
		}
		return nil
	})
}

// GetDunningConfiguration loads the dunning configuration of a customer.
func (r *Repository) GetDunningConfiguration(ctx context.Context, customerID uuid.UUID) (*domain.DunningConfiguration, error) {
	cfg := domain.DunningConfiguration{CustomerID: customerID}
	var currency string
	err := r.db.QueryRow(ctx, `
		SELECT level1_days_overdue, level1_fee_amount::TEXT, level1_auto_send,
		       level2_days_overdue, level2_fee_amount::TEXT, level2_auto_send,
		       level3_days_overdue, level3_fee_amount::TEXT, level3_auto_send, level3_suspend_service,
		       currency, skip_dunning_process, allow_service_when_overdue, auto_reactivate_on_payment,
		       require_prepayment, custom_payment_terms_days, created_at, updated_at
		FROM customer_dunning_configurations
		WHERE customer_id = $1
	`, customerID).Scan(
		&cfg.Level1.DaysOverdue, &cfg.Level1.FeeAmount.Amount, &cfg.Level1.AutoSend,
		&cfg.Level2.DaysOverdue, &cfg.Level2.FeeAmount.Amount, &cfg.Level2.AutoSend,
		&cfg.Level3.DaysOverdue, &cfg.Level3.FeeAmount.Amount, &cfg.Level3.AutoSend, &cfg.Level3.SuspendService,
		&currency,
		&cfg.SkipDunningProcess,
		&cfg.AllowServiceWhenOverdue,
		&cfg.AutoReactivateOnPayment,
		&cfg.RequirePrepayment,
		&cfg.CustomPaymentTermsDays,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConfigurationNotFound
		}
		return nil, err
	}
	cfg.Level1.FeeAmount.CurrencyCode = currency
	cfg.Level2.FeeAmount.CurrencyCode = currency
	cfg.Level3.FeeAmount.CurrencyCode = currency

	return &cfg, nil
}

// ReplaceDunningConfiguration stores cfg wholesale for cfg.CustomerID.
func (r *Repository) ReplaceDunningConfiguration(ctx context.Context, cfg domain.DunningConfiguration, now time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO customer_dunning_configurations (
			customer_id,
			level1_days_overdue, level1_fee_amount, level1_auto_send,
			level2_days_overdue, level2_fee_amount, level2_auto_send,
			level3_days_overdue, level3_fee_amount, level3_auto_send, level3_suspend_service,
			currency, skip_dunning_process, allow_service_when_overdue, auto_reactivate_on_payment,
			require_prepayment, custom_payment_terms_days, created_at, updated_at
		) VALUES (
			$1,
			$2, $3::NUMERIC, $4,
			$5, $6::NUMERIC, $7,
			$8, $9::NUMERIC, $10, $11,
			$12, $13, $14, $15,
			$16, $17, $18, $18
		)
		ON CONFLICT (customer_id) DO UPDATE SET
			level1_days_overdue = EXCLUDED.level1_days_overdue,
			level1_fee_amount = EXCLUDED.level1_fee_amount,
			level1_auto_send = EXCLUDED.level1_auto_send,
			level2_days_overdue = EXCLUDED.level2_days_overdue,
			level2_fee_amount = EXCLUDED.level2_fee_amount,
			level2_auto_send = EXCLUDED.level2_auto_send,
			level3_days_overdue = EXCLUDED.level3_days_overdue,
			level3_fee_amount = EXCLUDED.level3_fee_amount,
			level3_auto_send = EXCLUDED.level3_auto_send,
			level3_suspend_service = EXCLUDED.level3_suspend_service,
			currency = EXCLUDED.currency,
			skip_dunning_process = EXCLUDED.skip_dunning_process,
			allow_service_when_overdue = EXCLUDED.allow_service_when_overdue,
			auto_reactivate_on_payment = EXCLUDED.auto_reactivate_on_payment,
			require_prepayment = EXCLUDED.require_prepayment,
			custom_payment_terms_days = EXCLUDED.custom_payment_terms_days,
			updated_at = EXCLUDED.updated_at
	`,
		cfg.CustomerID,
		cfg.Level1.DaysOverdue, numeric(cfg.Level1.FeeAmount.Amount), cfg.Level1.AutoSend,
		cfg.Level2.DaysOverdue, numeric(cfg.Level2.FeeAmount.Amount), cfg.Level2.AutoSend,
		cfg.Level3.DaysOverdue, numeric(cfg.Level3.FeeAmount.Amount), cfg.Level3.AutoSend, cfg.Level3.SuspendService,
		cfg.Level1.FeeAmount.CurrencyCode,
		cfg.SkipDunningProcess,
		cfg.AllowServiceWhenOverdue,
		cfg.AutoReactivateOnPayment,
		cfg.RequirePrepayment,
		cfg.CustomPaymentTermsDays,
		now,
	)
	return err
}

// numeric renders a decimal for a ::NUMERIC parameter.
func numeric(d decimal.Decimal) string {
	return d.String()
}
