package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/transfa/freight-billing-service/internal/app"
	"github.com/transfa/freight-billing-service/internal/domain"
)

func (h *Handler) handleGetDunningConfiguration(w http.ResponseWriter, r *http.Request) {
	customerID, ok := uuidParam(w, r, "customerID")
	if !ok {
		return
	}

	cfg, err := h.service.GetDunningConfiguration(r.Context(), customerID)
	if err != nil {
		writeServiceError(w, "get_dunning_configuration", err)
		return
	}
	respondWithJSON(w, http.StatusOK, cfg)
}

func (h *Handler) handlePutDunningConfiguration(w http.ResponseWriter, r *http.Request) {
	customerID, ok := uuidParam(w, r, "customerID")
	if !ok {
		return
	}

	var cfg domain.DunningConfiguration
	if !decodeJSON(w, r, &cfg, false) {
		return
	}

	saved, err := h.service.SaveDunningConfiguration(r.Context(), customerID, cfg)
	if err != nil {
		writeServiceError(w, "put_dunning_configuration", err)
		return
	}
	respondWithJSON(w, http.StatusOK, saved)
}

func (h *Handler) handleGetPaymentTerms(w http.ResponseWriter, r *http.Request) {
	customerID, ok := uuidParam(w, r, "customerID")
	if !ok {
		return
	}

	var issuedAt time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("issued_at")); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "issued_at must be an RFC 3339 timestamp or YYYY-MM-DD date")
			return
		}
		issuedAt = parsed
	}

	terms, err := h.service.GetPaymentTerms(r.Context(), customerID, issuedAt)
	if err != nil {
		writeServiceError(w, "get_payment_terms", err)
		return
	}
	respondWithJSON(w, http.StatusOK, terms)
}

func (h *Handler) handleGetOverdueStatus(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := uuidParam(w, r, "invoiceID")
	if !ok {
		return
	}

	status, err := h.service.GetOverdueStatus(r.Context(), invoiceID)
	if err != nil {
		writeServiceError(w, "get_overdue_status", err)
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

func (h *Handler) handleEvaluateDunning(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := uuidParam(w, r, "invoiceID")
	if !ok {
		return
	}

	evaluation, err := h.service.EvaluateInvoiceDunning(r.Context(), invoiceID)
	if err != nil {
		writeServiceError(w, "evaluate_dunning", err)
		return
	}
	respondWithJSON(w, http.StatusOK, evaluation)
}

type recordPaymentRequest struct {
	PaidAt *time.Time `json:"paid_at"`
}

func (h *Handler) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := uuidParam(w, r, "invoiceID")
	if !ok {
		return
	}

	var req recordPaymentRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	var paidAt time.Time
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}

	result, err := h.service.RecordPayment(r.Context(), invoiceID, paidAt)
	if err != nil {
		writeServiceError(w, "record_payment", err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// handleRunDunningSweep runs detached from the request and gets the same
// budget as the scheduled job.
func (h *Handler) handleRunDunningSweep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), app.DunningSweepTimeout)
	defer cancel()

	result, err := h.service.RunDunningSweep(ctx)
	if err != nil {
		writeServiceError(w, "run_dunning_sweep", err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) handleNextCollectionAction(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := uuidParam(w, r, "invoiceID")
	if !ok {
		return
	}

	advice, err := h.service.NextCollectionAction(r.Context(), invoiceID)
	if err != nil {
		writeServiceError(w, "next_collection_action", err)
		return
	}
	respondWithJSON(w, http.StatusOK, advice)
}

func (h *Handler) handleListCollectionAttempts(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := uuidParam(w, r, "invoiceID")
	if !ok {
		return
	}

	attempts, err := h.service.ListCollectionAttempts(r.Context(), invoiceID)
	if err != nil {
		writeServiceError(w, "list_collection_attempts", err)
		return
	}
	respondWithJSON(w, http.StatusOK, attempts)
}

type recordCollectionAttemptRequest struct {
	Method string     `json:"method"`
	Date   *time.Time `json:"date"`
	Result string     `json:"result"`
	Notes  string     `json:"notes"`
}

func (h *Handler) handleRecordCollectionAttempt(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := uuidParam(w, r, "invoiceID")
	if !ok {
		return
	}

	var req recordCollectionAttemptRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	attempt := domain.CollectionAttempt{
		Method: domain.CollectionMethod(req.Method),
		Result: req.Result,
		Notes:  req.Notes,
	}
	if req.Date != nil {
		attempt.Date = *req.Date
	}
	if staffID, ok := UserFromContext(r.Context()); ok {
		attempt.RecordedBy = staffID
	}

	saved, err := h.service.RecordCollectionAttempt(r.Context(), invoiceID, attempt)
	if err != nil {
		writeServiceError(w, "record_collection_attempt", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, saved)
}
