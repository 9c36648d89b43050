// Package handler exposes the protected-field endpoints: masked reads,
// encrypted writes, and the audited single-field reveal.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"verimed/internal/patient"
	"verimed/internal/platform/middleware"
	"verimed/internal/sensitive"
	"verimed/internal/transport/http/shared"
	"verimed/pkg/domain"
	dErrors "verimed/pkg/domain-errors"
)

type Handler struct {
	logger   *slog.Logger
	fields   *sensitive.Service
	patients *patient.Service
}

func New(fields *sensitive.Service, patients *patient.Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, fields: fields, patients: patients}
}

// Register registers the field routes.
func (h *Handler) Register(r chi.Router) {
	r.Put("/patients/{patientID}/fields/{field}", h.handlePutField)
	r.Get("/patients/{patientID}/fields/{field}", h.handleGetMasked)
	r.Post("/patients/{patientID}/fields/{field}/reveal", h.handleReveal)
}

type putFieldRequest struct {
	Value string `json:"value"`
}

type revealResponse struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (h *Handler) params(w http.ResponseWriter, r *http.Request) (domain.PatientID, domain.FieldName, bool) {
	patientID, err := domain.ParsePatientID(chi.URLParam(r, "patientID"))
	if err != nil {
		shared.WriteError(w, err)
		return domain.PatientID{}, "", false
	}
	field, err := domain.ParseFieldName(chi.URLParam(r, "field"))
	if err != nil {
		shared.WriteError(w, err)
		return domain.PatientID{}, "", false
	}
	return patientID, field, true
}

func (h *Handler) handlePutField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID, field, ok := h.params(w, r)
	if !ok {
		return
	}

	var req putFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.fields.Put(ctx, patientID, field, req.Value); err != nil {
		h.logger.ErrorContext(ctx, "failed to store field",
			"request_id", middleware.GetRequestID(ctx),
			"field", string(field),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetMasked(w http.ResponseWriter, r *http.Request) {
	patientID, field, ok := h.params(w, r)
	if !ok {
		return
	}
	masked, err := h.fields.Masked(r.Context(), patientID, field)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, masked)
}

func (h *Handler) handleReveal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID, field, ok := h.params(w, r)
	if !ok {
		return
	}

	plaintext, err := h.fields.Reveal(ctx, patientID, field, h.patients.OwnerCheck(patientID))
	if err != nil {
		// Denied, locked, and tamper outcomes each carry their own code; the
		// client needs the distinction for remediation.
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, revealResponse{Field: string(field), Value: plaintext})
}
