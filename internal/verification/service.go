package verification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"verimed/internal/verification/status"
	"verimed/pkg/domain"
	dErrors "verimed/pkg/domain-errors"
	"verimed/pkg/platform/audit"
	"verimed/pkg/platform/sentinel"
	"verimed/pkg/requestcontext"
)

// Service persists verification attempts and answers status questions. It
// keeps orchestration out of handlers: the pipeline package decides what a
// status change triggers, this service only records the change.
type Service struct {
	store  Store
	audit  *audit.Recorder
	logger *slog.Logger
}

func NewService(store Store, recorder *audit.Recorder, logger *slog.Logger) *Service {
	return &Service{store: store, audit: recorder, logger: logger}
}

// CreateInput carries the collaborator-supplied fields for a new attempt.
type CreateInput struct {
	PatientName       string
	Status            domain.TransactionStatus
	StartTime         *time.Time
	InsuranceProvider string
	InsuranceRep      string
}

// Create appends a new verification attempt to the log.
func (s *Service) Create(ctx context.Context, stage domain.StageType, patientID domain.PatientID, input CreateInput) (*Transaction, error) {
	if patientID.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "patient id is required")
	}
	now := requestcontext.Now(ctx)
	transactionStatus := input.Status
	if transactionStatus == "" {
		transactionStatus = domain.StatusWaiting
	}
	transaction := &Transaction{
		ID:                domain.NewTransactionID(),
		RequestID:         NewRequestID(now),
		PatientID:         patientID,
		PatientName:       input.PatientName,
		Stage:             stage,
		Status:            transactionStatus,
		StartTime:         input.StartTime,
		InsuranceProvider: input.InsuranceProvider,
		InsuranceRep:      input.InsuranceRep,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.Create(ctx, transaction); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to create transaction", err)
	}
	s.audit.Record(ctx, audit.Event{
		PatientID: patientID.String(),
		Action:    audit.ActionTransactionCreated,
		Reason:    string(stage),
	})
	return transaction, nil
}

// Get loads one attempt.
func (s *Service) Get(ctx context.Context, id domain.TransactionID) (*Transaction, error) {
	transaction, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "transaction not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to load transaction", err)
	}
	return transaction, nil
}

// UpdateStatus applies a compare-and-set status transition. The caller states
// the status it read (expected); if the stored status moved on since, the
// update is rejected with CodeConcurrentUpdateLost and the caller should
// reread and retry. Exactly one of two racing updates can win, which is what
// makes downstream spawn decisions idempotent.
func (s *Service) UpdateStatus(ctx context.Context, id domain.TransactionID, expected, next domain.TransactionStatus, fields ResultFields) (*Transaction, error) {
	updated, err := s.store.UpdateStatus(ctx, id, expected, next, fields)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "transaction not found")
		case errors.Is(err, sentinel.ErrStaleStatus):
			return nil, dErrors.New(dErrors.CodeConcurrentUpdateLost, "transaction status changed since read")
		default:
			return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to update transaction status", err)
		}
	}
	return updated, nil
}

// AddCommunication appends a transcript message to an attempt.
func (s *Service) AddCommunication(ctx context.Context, message *CallCommunication) error {
	if err := s.store.AddCommunication(ctx, message); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "transaction not found")
		}
		return dErrors.Wrap(dErrors.CodeInternal, "failed to add communication", err)
	}
	return nil
}

// ListCommunications returns an attempt's transcript messages in order.
func (s *Service) ListCommunications(ctx context.Context, transactionID domain.TransactionID) ([]*CallCommunication, error) {
	messages, err := s.store.ListCommunications(ctx, transactionID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to list communications", err)
	}
	return messages, nil
}

// AddTag records a verified-item marker on an attempt.
func (s *Service) AddTag(ctx context.Context, tag *VerifiedItemTag) error {
	if err := s.store.AddTag(ctx, tag); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "transaction not found")
		}
		return dErrors.Wrap(dErrors.CodeInternal, "failed to add tag", err)
	}
	return nil
}

// ListTags returns an attempt's verified-item markers.
func (s *Service) ListTags(ctx context.Context, transactionID domain.TransactionID) ([]*VerifiedItemTag, error) {
	tags, err := s.store.ListTags(ctx, transactionID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to list tags", err)
	}
	return tags, nil
}

// Status answers the five-stage question. With derived=true the ordered
// transaction log governs; otherwise the separately stored, manually edited
// record is authoritative and derivation is bypassed entirely. The toggle
// belongs to the caller: it reflects whether the source system is trusted
// for live transaction history, which this engine cannot know.
func (s *Service) Status(ctx context.Context, patientID domain.PatientID, derived bool) (status.VerificationStatus, error) {
	if derived {
		transactions, err := s.store.ListByPatient(ctx, patientID)
		if err != nil {
			return status.VerificationStatus{}, dErrors.Wrap(dErrors.CodeInternal, "failed to list transactions", err)
		}
		return status.Derive(transactions), nil
	}

	record, err := s.store.GetStatusRecord(ctx, patientID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// No record has been edited yet; everything is still pending.
			return status.VerificationStatus{
				FetchPMS:         domain.StagePending,
				DocumentAnalysis: domain.StagePending,
				APIVerification:  domain.StagePending,
				CallCenter:       domain.StagePending,
				SaveToPMS:        domain.StagePending,
			}, nil
		}
		return status.VerificationStatus{}, dErrors.Wrap(dErrors.CodeInternal, "failed to load status record", err)
	}
	return status.VerificationStatus{
		FetchPMS:         record.FetchPMS,
		DocumentAnalysis: record.DocumentAnalysis,
		APIVerification:  record.APIVerification,
		CallCenter:       record.CallCenter,
		SaveToPMS:        record.SaveToPMS,
	}, nil
}

// PutStatusRecord stores the manually edited status record.
func (s *Service) PutStatusRecord(ctx context.Context, record *StatusRecord) error {
	if err := s.store.PutStatusRecord(ctx, record); err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "failed to store status record", err)
	}
	return nil
}
