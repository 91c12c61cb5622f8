/**
 * @description
 * HTTP handlers for the freight billing service.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/transfa/freight-billing-service/internal/app"
	"github.com/transfa/freight-billing-service/internal/billing"
	"github.com/transfa/freight-billing-service/internal/domain"
	"github.com/transfa/freight-billing-service/internal/store"
)

const maxRequestBodyBytes = 1 << 20

// BillingService is the application surface the handlers drive.
type BillingService interface {
	GetMarginConfiguration(ctx context.Context, customerID uuid.UUID) (*domain.MarginConfiguration, error)
	SaveMarginConfiguration(ctx context.Context, customerID uuid.UUID, cfg domain.MarginConfiguration) (*domain.MarginConfiguration, error)
	ResolveMargin(ctx context.Context, customerID uuid.UUID, query domain.MarginQuery) (domain.MarginDecision, error)
	PreviewMargin(cfg domain.MarginConfiguration, query domain.MarginQuery) (domain.MarginDecision, error)

	GetDunningConfiguration(ctx context.Context, customerID uuid.UUID) (*domain.DunningConfiguration, error)
	SaveDunningConfiguration(ctx context.Context, customerID uuid.UUID, cfg domain.DunningConfiguration) (*domain.DunningConfiguration, error)
	GetPaymentTerms(ctx context.Context, customerID uuid.UUID, issuedAt time.Time) (*app.PaymentTerms, error)

	GetOverdueStatus(ctx context.Context, invoiceID uuid.UUID) (*domain.OverdueStatus, error)
	EvaluateInvoiceDunning(ctx context.Context, invoiceID uuid.UUID) (*app.DunningEvaluation, error)
	RunDunningSweep(ctx context.Context) (*app.DunningSweepResult, error)
	RecordPayment(ctx context.Context, invoiceID uuid.UUID, paidAt time.Time) (*app.PaymentResult, error)

	NextCollectionAction(ctx context.Context, invoiceID uuid.UUID) (*app.CollectionAdvice, error)
	ListCollectionAttempts(ctx context.Context, invoiceID uuid.UUID) ([]domain.CollectionAttempt, error)
	RecordCollectionAttempt(ctx context.Context, invoiceID uuid.UUID, attempt domain.CollectionAttempt) (*domain.CollectionAttempt, error)
}

// Handler holds the application service that handlers will interact with.
type Handler struct {
	service BillingService
}

// NewHandler creates a new Handler with the given service.
func NewHandler(service BillingService) *Handler {
	return &Handler{service: service}
}

type errorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

// writeServiceError maps service errors onto HTTP statuses. Unknown errors are
// logged and hidden behind a generic 500.
func writeServiceError(w http.ResponseWriter, endpoint string, err error) {
	var validationErr *billing.ValidationError
	switch {
	case errors.As(err, &validationErr):
		respondWithJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: domain.ErrInvalidConfiguration.Error(), Problems: validationErr.Problems})
	case errors.Is(err, domain.ErrInvalidConfiguration):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrNoApplicableRule):
		writeError(w, http.StatusNotFound, domain.ErrNoApplicableRule.Error())
	case errors.Is(err, domain.ErrCurrencyMismatch), errors.Is(err, app.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrConfigurationNotFound), errors.Is(err, store.ErrInvoiceNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrInvoiceNotOpen), errors.Is(err, app.ErrSweepInProgress):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("level=error component=api endpoint=%s err=%v", endpoint, err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorResponse{Error: message})
}

// respondWithJSON writes JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// decodeJSON reads the request body into dst. An empty body is accepted when
// allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, allowEmpty bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		log.Printf("level=warn component=api path=%s outcome=reject reason=invalid_json err=%v", r.URL.Path, err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
