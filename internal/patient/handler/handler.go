// Package handler exposes patient creation, masked reads, insurance
// attachment, and the patient cascade deletion.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"verimed/internal/cascade"
	"verimed/internal/crypto"
	"verimed/internal/patient"
	"verimed/internal/platform/middleware"
	"verimed/internal/sensitive"
	"verimed/internal/transport/http/shared"
	"verimed/pkg/domain"
	dErrors "verimed/pkg/domain-errors"
)

type Handler struct {
	logger   *slog.Logger
	patients *patient.Service
	cascade  *cascade.Coordinator
}

func New(patients *patient.Service, coordinator *cascade.Coordinator, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, patients: patients, cascade: coordinator}
}

// Register registers the patient routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/patients", h.handleCreatePatient)
	r.Get("/patients/{patientID}", h.handleGetPatient)
	r.Delete("/patients/{patientID}", h.handleDeletePatient)
	r.Post("/patients/{patientID}/insurances", h.handleAddInsurance)
	r.Get("/patients/{patientID}/insurances", h.handleListInsurances)
}

type createPatientRequest struct {
	DisplayName string `json:"displayName"`
	BirthDate   string `json:"birthDate,omitempty"`
	NationalID  string `json:"nationalId,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	Address     string `json:"address,omitempty"`
}

type addInsuranceRequest struct {
	Provider     string `json:"provider"`
	Rank         int    `json:"rank,omitempty"`
	PolicyNumber string `json:"policyNumber,omitempty"`
	GroupNumber  string `json:"groupNumber,omitempty"`
	SubscriberID string `json:"subscriberId,omitempty"`
}

// patientResponse exposes protected attributes only as masks; plaintext
// leaves the core exclusively through the reveal endpoint.
type patientResponse struct {
	ID          string                `json:"id"`
	DisplayName string                `json:"displayName"`
	BirthDate   sensitive.MaskedField `json:"birthDate"`
	NationalID  sensitive.MaskedField `json:"nationalId"`
	Phone       sensitive.MaskedField `json:"phone"`
	Email       sensitive.MaskedField `json:"email"`
	Address     sensitive.MaskedField `json:"address"`
	CreatedAt   time.Time             `json:"createdAt"`
}

type insuranceResponse struct {
	ID           string                `json:"id"`
	Provider     string                `json:"provider"`
	Rank         int                   `json:"rank"`
	PolicyNumber sensitive.MaskedField `json:"policyNumber"`
	GroupNumber  sensitive.MaskedField `json:"groupNumber"`
	SubscriberID sensitive.MaskedField `json:"subscriberId"`
}

func maskField(field sensitive.Field, name domain.FieldName) sensitive.MaskedField {
	if !field.Encrypted || field.Envelope == nil || *field.Envelope == "" {
		return sensitive.MaskedField{}
	}
	return sensitive.MaskedField{Value: crypto.Mask(name.Kind()), Encrypted: true}
}

func toPatientResponse(p *patient.Patient) patientResponse {
	return patientResponse{
		ID:          p.ID.String(),
		DisplayName: p.DisplayName,
		BirthDate:   maskField(p.BirthDate, domain.FieldBirthDate),
		NationalID:  maskField(p.NationalID, domain.FieldNationalID),
		Phone:       maskField(p.Phone, domain.FieldPhone),
		Email:       maskField(p.Email, domain.FieldEmail),
		Address:     maskField(p.Address, domain.FieldAddress),
		CreatedAt:   p.CreatedAt,
	}
}

func toInsuranceResponse(ins *patient.Insurance) insuranceResponse {
	return insuranceResponse{
		ID:           ins.ID.String(),
		Provider:     ins.Provider,
		Rank:         ins.Rank,
		PolicyNumber: maskField(ins.PolicyNumber, domain.FieldPolicyNumber),
		GroupNumber:  maskField(ins.GroupNumber, domain.FieldGroupNumber),
		SubscriberID: maskField(ins.SubscriberID, domain.FieldSubscriberID),
	}
}

func (h *Handler) patientID(w http.ResponseWriter, r *http.Request) (domain.PatientID, bool) {
	patientID, err := domain.ParsePatientID(chi.URLParam(r, "patientID"))
	if err != nil {
		shared.WriteError(w, err)
		return domain.PatientID{}, false
	}
	return patientID, true
}

func (h *Handler) handleCreatePatient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createPatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	created, err := h.patients.Create(ctx, patient.CreateInput{
		DisplayName: req.DisplayName,
		BirthDate:   req.BirthDate,
		NationalID:  req.NationalID,
		Phone:       req.Phone,
		Email:       req.Email,
		Address:     req.Address,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create patient",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toPatientResponse(created))
}

func (h *Handler) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	patientID, ok := h.patientID(w, r)
	if !ok {
		return
	}
	p, err := h.patients.Get(r.Context(), patientID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toPatientResponse(p))
}

func (h *Handler) handleDeletePatient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID, ok := h.patientID(w, r)
	if !ok {
		return
	}
	// Resolve existence first so a purge event is never recorded for a
	// patient that was never there.
	if _, err := h.patients.Get(ctx, patientID); err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.cascade.DeletePatient(ctx, patientID); err != nil {
		h.logger.ErrorContext(ctx, "patient cascade failed",
			"request_id", middleware.GetRequestID(ctx),
			"patient_id", patientID.String(),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddInsurance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID, ok := h.patientID(w, r)
	if !ok {
		return
	}

	var req addInsuranceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	ins, err := h.patients.AddInsurance(ctx, patientID, patient.InsuranceInput{
		Provider:     req.Provider,
		Rank:         req.Rank,
		PolicyNumber: req.PolicyNumber,
		GroupNumber:  req.GroupNumber,
		SubscriberID: req.SubscriberID,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toInsuranceResponse(ins))
}

func (h *Handler) handleListInsurances(w http.ResponseWriter, r *http.Request) {
	patientID, ok := h.patientID(w, r)
	if !ok {
		return
	}
	insurances, err := h.patients.ListInsurances(r.Context(), patientID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]insuranceResponse, 0, len(insurances))
	for _, ins := range insurances {
		out = append(out, toInsuranceResponse(ins))
	}
	shared.WriteJSON(w, http.StatusOK, out)
}
