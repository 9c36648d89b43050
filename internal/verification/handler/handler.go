// Package handler exposes the verification log and status endpoints.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"verimed/internal/pipeline"
	"verimed/internal/platform/middleware"
	"verimed/internal/transport/http/shared"
	"verimed/internal/verification"
	"verimed/pkg/domain"
	dErrors "verimed/pkg/domain-errors"
	"verimed/pkg/requestcontext"
)

// Handler handles verification endpoints. Status updates go through the
// orchestrator so the watched transition can fire its follow-ups.
type Handler struct {
	logger       *slog.Logger
	transactions *verification.Service
	orchestrator *pipeline.Orchestrator
	// derivedDefault reflects whether the source system is trusted for live
	// transaction history; requests can override it per call.
	derivedDefault bool
}

func New(transactions *verification.Service, orchestrator *pipeline.Orchestrator, derivedDefault bool, logger *slog.Logger) *Handler {
	return &Handler{
		logger:         logger,
		transactions:   transactions,
		orchestrator:   orchestrator,
		derivedDefault: derivedDefault,
	}
}

// Register registers the verification routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/patients/{patientID}/transactions", h.handleCreateTransaction)
	r.Get("/patients/{patientID}/verification-status", h.handleStatus)
	r.Put("/patients/{patientID}/verification-status", h.handlePutStatusRecord)

	r.Get("/transactions/{transactionID}", h.handleGetTransaction)
	r.Patch("/transactions/{transactionID}/status", h.handleUpdateStatus)
	r.Post("/transactions/{transactionID}/communications", h.handleAddCommunication)
	r.Get("/transactions/{transactionID}/communications", h.handleListCommunications)
	r.Post("/transactions/{transactionID}/tags", h.handleAddTag)
	r.Get("/transactions/{transactionID}/tags", h.handleListTags)
}

func (h *Handler) patientID(w http.ResponseWriter, r *http.Request) (domain.PatientID, bool) {
	patientID, err := domain.ParsePatientID(chi.URLParam(r, "patientID"))
	if err != nil {
		shared.WriteError(w, err)
		return domain.PatientID{}, false
	}
	return patientID, true
}

func (h *Handler) transactionID(w http.ResponseWriter, r *http.Request) (domain.TransactionID, bool) {
	transactionID, err := domain.ParseTransactionID(chi.URLParam(r, "transactionID"))
	if err != nil {
		shared.WriteError(w, err)
		return domain.TransactionID{}, false
	}
	return transactionID, true
}

func (h *Handler) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID, ok := h.patientID(w, r)
	if !ok {
		return
	}

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	stage, err := domain.ParseStageType(req.Stage)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var status domain.TransactionStatus
	if req.Status != "" {
		if status, err = domain.ParseTransactionStatus(req.Status); err != nil {
			shared.WriteError(w, err)
			return
		}
	}

	transaction, err := h.transactions.Create(ctx, stage, patientID, verification.CreateInput{
		PatientName:       req.PatientName,
		Status:            status,
		StartTime:         req.StartTime,
		InsuranceProvider: req.InsuranceProvider,
		InsuranceRep:      req.InsuranceRep,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create transaction",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toTransactionResponse(transaction))
}

func (h *Handler) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID, ok := h.transactionID(w, r)
	if !ok {
		return
	}
	transaction, err := h.transactions.Get(r.Context(), transactionID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toTransactionResponse(transaction))
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	transactionID, ok := h.transactionID(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	expected, err := domain.ParseTransactionStatus(req.Expected)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	next, err := domain.ParseTransactionStatus(req.Next)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	updated, err := h.orchestrator.UpdateStatus(ctx, transactionID, expected, next, verification.ResultFields{
		StartTime:           req.StartTime,
		EndTime:             req.EndTime,
		EligibilitySummary:  req.EligibilitySummary,
		BenefitsSummary:     req.BenefitsSummary,
		Transcript:          req.Transcript,
		RawProviderResponse: req.RawProviderResponse,
		InsuranceProvider:   req.InsuranceProvider,
		InsuranceRep:        req.InsuranceRep,
	})
	if err != nil {
		// The update itself committed; only the snapshot copy is incomplete.
		// Report it on the success path so the caller does not retry the
		// transition.
		if dErrors.HasCode(err, dErrors.CodeReplicationInconsistency) && updated != nil {
			h.logger.WarnContext(ctx, "replication inconsistency on status update",
				"request_id", middleware.GetRequestID(ctx),
				"transaction_id", transactionID.String(),
				"error", err.Error(),
			)
			resp := toTransactionResponse(updated)
			resp.Replication = "inconsistent"
			shared.WriteJSON(w, http.StatusOK, resp)
			return
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toTransactionResponse(updated))
}

func (h *Handler) handleAddCommunication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	transactionID, ok := h.transactionID(w, r)
	if !ok {
		return
	}

	var req addCommunicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	speaker, err := domain.ParseSpeaker(req.Speaker)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	timestamp := req.Timestamp
	if timestamp.IsZero() {
		timestamp = requestcontext.Now(ctx)
	}

	message := &verification.CallCommunication{
		ID:            uuid.NewString(),
		TransactionID: transactionID,
		Timestamp:     timestamp,
		Speaker:       speaker,
		Body:          req.Body,
		Kind:          req.Kind,
	}
	if err := h.transactions.AddCommunication(ctx, message); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, communicationResponse{
		ID:        message.ID,
		Timestamp: message.Timestamp,
		Speaker:   string(message.Speaker),
		Body:      message.Body,
		Kind:      message.Kind,
	})
}

func (h *Handler) handleListCommunications(w http.ResponseWriter, r *http.Request) {
	transactionID, ok := h.transactionID(w, r)
	if !ok {
		return
	}
	messages, err := h.transactions.ListCommunications(r.Context(), transactionID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]communicationResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, communicationResponse{
			ID:        message.ID,
			Timestamp: message.Timestamp,
			Speaker:   string(message.Speaker),
			Body:      message.Body,
			Kind:      message.Kind,
		})
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleAddTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	transactionID, ok := h.transactionID(w, r)
	if !ok {
		return
	}

	var req addTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Item == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	tag := &verification.VerifiedItemTag{
		ID:            uuid.NewString(),
		TransactionID: transactionID,
		Item:          req.Item,
	}
	if err := h.transactions.AddTag(ctx, tag); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, tagResponse{ID: tag.ID, Item: tag.Item})
}

func (h *Handler) handleListTags(w http.ResponseWriter, r *http.Request) {
	transactionID, ok := h.transactionID(w, r)
	if !ok {
		return
	}
	tags, err := h.transactions.ListTags(r.Context(), transactionID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]tagResponse, 0, len(tags))
	for _, tag := range tags {
		out = append(out, tagResponse{ID: tag.ID, Item: tag.Item})
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	patientID, ok := h.patientID(w, r)
	if !ok {
		return
	}
	derived := h.derivedDefault
	if raw := r.URL.Query().Get("derived"); raw != "" {
		derived = raw == "true"
	}
	verificationStatus, err := h.transactions.Status(r.Context(), patientID, derived)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, verificationStatus)
}

func (h *Handler) handlePutStatusRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID, ok := h.patientID(w, r)
	if !ok {
		return
	}

	var req putStatusRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	record := &verification.StatusRecord{
		PatientID:        patientID,
		FetchPMS:         domain.StageState(req.FetchPMS),
		DocumentAnalysis: domain.StageState(req.DocumentAnalysis),
		APIVerification:  domain.StageState(req.APIVerification),
		CallCenter:       domain.StageState(req.CallCenter),
		SaveToPMS:        domain.StageState(req.SaveToPMS),
		UpdatedAt:        time.Now(),
	}
	if err := h.transactions.PutStatusRecord(ctx, record); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
