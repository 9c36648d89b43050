package patient

import (
	"context"
	"errors"
	"log/slog"

	"verimed/internal/crypto"
	"verimed/internal/sensitive"
	"verimed/pkg/domain"
	dErrors "verimed/pkg/domain-errors"
	"verimed/pkg/platform/sentinel"
	"verimed/pkg/requestcontext"
)

// Service creates and reads the patient read models. Protected attributes
// are encrypted before they ever reach the store; plaintext exists only in
// the request that carried it.
type Service struct {
	store  Store
	crypto *crypto.Service
	logger *slog.Logger
}

func NewService(store Store, cryptoSvc *crypto.Service, logger *slog.Logger) *Service {
	return &Service{store: store, crypto: cryptoSvc, logger: logger}
}

// CreateInput carries the plaintext attributes of a new patient.
type CreateInput struct {
	OwnerUserID string
	DisplayName string
	BirthDate   string
	NationalID  string
	Phone       string
	Email       string
	Address     string
}

// InsuranceInput carries the plaintext identifiers of a new insurance.
type InsuranceInput struct {
	Provider     string
	Rank         int
	PolicyNumber string
	GroupNumber  string
	SubscriberID string
}

func (s *Service) encryptField(plaintext string) (sensitive.Field, error) {
	if plaintext == "" {
		return sensitive.Field{}, nil
	}
	envelope, err := s.crypto.Encrypt(plaintext)
	if err != nil {
		return sensitive.Field{}, dErrors.Wrap(dErrors.CodeInternal, "encrypt field", err)
	}
	return sensitive.Field{Envelope: &envelope, Encrypted: true}, nil
}

// Create encrypts the supplied attributes and persists the patient.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Patient, error) {
	if input.DisplayName == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "display name is required")
	}
	owner := input.OwnerUserID
	if owner == "" {
		owner = requestcontext.RequesterID(ctx)
	}

	p := &Patient{
		ID:          domain.NewPatientID(),
		OwnerUserID: owner,
		DisplayName: input.DisplayName,
		CreatedAt:   requestcontext.Now(ctx),
	}
	var err error
	if p.BirthDate, err = s.encryptField(input.BirthDate); err != nil {
		return nil, err
	}
	if p.NationalID, err = s.encryptField(input.NationalID); err != nil {
		return nil, err
	}
	if p.Phone, err = s.encryptField(input.Phone); err != nil {
		return nil, err
	}
	if p.Email, err = s.encryptField(input.Email); err != nil {
		return nil, err
	}
	if p.Address, err = s.encryptField(input.Address); err != nil {
		return nil, err
	}

	if err := s.store.CreatePatient(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeBadRequest, "patient already exists")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "create patient", err)
	}
	return p, nil
}

// Get loads one patient.
func (s *Service) Get(ctx context.Context, id domain.PatientID) (*Patient, error) {
	p, err := s.store.GetPatient(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "patient not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load patient", err)
	}
	return p, nil
}

// AddInsurance encrypts the policy identifiers and attaches the insurance.
func (s *Service) AddInsurance(ctx context.Context, patientID domain.PatientID, input InsuranceInput) (*Insurance, error) {
	if _, err := s.Get(ctx, patientID); err != nil {
		return nil, err
	}
	rank := input.Rank
	if rank < 1 {
		rank = 1
	}

	ins := &Insurance{
		ID:        domain.NewInsuranceID(),
		PatientID: patientID,
		Provider:  input.Provider,
		Rank:      rank,
	}
	var err error
	if ins.PolicyNumber, err = s.encryptField(input.PolicyNumber); err != nil {
		return nil, err
	}
	if ins.GroupNumber, err = s.encryptField(input.GroupNumber); err != nil {
		return nil, err
	}
	if ins.SubscriberID, err = s.encryptField(input.SubscriberID); err != nil {
		return nil, err
	}

	if err := s.store.AddInsurance(ctx, ins); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "add insurance", err)
	}
	return ins, nil
}

// ListInsurances returns the patient's insurances, primary first.
func (s *Service) ListInsurances(ctx context.Context, patientID domain.PatientID) ([]*Insurance, error) {
	insurances, err := s.store.ListInsurances(ctx, patientID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list insurances", err)
	}
	return insurances, nil
}

// OwnerCheck builds the reveal predicate for a patient: the record owner or
// an elevated role passes. A missing patient fails the check, so existence
// is not learnable through it.
func (s *Service) OwnerCheck(patientID domain.PatientID) sensitive.OwnerCheck {
	return func(ctx context.Context) bool {
		requester := requestcontext.RequesterID(ctx)
		if requester == "" {
			return false
		}
		switch requestcontext.RequesterRole(ctx) {
		case "admin", "compliance":
			return true
		}
		p, err := s.store.GetPatient(ctx, patientID)
		if err != nil {
			return false
		}
		return p.OwnerUserID == requester
	}
}
