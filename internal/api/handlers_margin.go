package api

import (
	"net/http"

	"github.com/transfa/freight-billing-service/internal/domain"
)

func (h *Handler) handleGetMarginConfiguration(w http.ResponseWriter, r *http.Request) {
	customerID, ok := uuidParam(w, r, "customerID")
	if !ok {
		return
	}

	cfg, err := h.service.GetMarginConfiguration(r.Context(), customerID)
	if err != nil {
		writeServiceError(w, "get_margin_configuration", err)
		return
	}
	respondWithJSON(w, http.StatusOK, cfg)
}

func (h *Handler) handlePutMarginConfiguration(w http.ResponseWriter, r *http.Request) {
	customerID, ok := uuidParam(w, r, "customerID")
	if !ok {
		return
	}

	var cfg domain.MarginConfiguration
	if !decodeJSON(w, r, &cfg, false) {
		return
	}

	saved, err := h.service.SaveMarginConfiguration(r.Context(), customerID, cfg)
	if err != nil {
		writeServiceError(w, "put_margin_configuration", err)
		return
	}
	respondWithJSON(w, http.StatusOK, saved)
}

func (h *Handler) handleResolveMargin(w http.ResponseWriter, r *http.Request) {
	customerID, ok := uuidParam(w, r, "customerID")
	if !ok {
		return
	}

	var query domain.MarginQuery
	if !decodeJSON(w, r, &query, false) {
		return
	}

	decision, err := h.service.ResolveMargin(r.Context(), customerID, query)
	if err != nil {
		writeServiceError(w, "resolve_margin", err)
		return
	}
	respondWithJSON(w, http.StatusOK, decision)
}

type previewMarginRequest struct {
	Configuration domain.MarginConfiguration `json:"configuration"`
	Query         domain.MarginQuery         `json:"query"`
}

func (h *Handler) handlePreviewMargin(w http.ResponseWriter, r *http.Request) {
	var req previewMarginRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	decision, err := h.service.PreviewMargin(req.Configuration, req.Query)
	if err != nil {
		writeServiceError(w, "preview_margin", err)
		return
	}
	respondWithJSON(w, http.StatusOK, decision)
}
