package sensitive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"verimed/internal/crypto"
	"verimed/internal/sensitive/throttle"
	dErrors "verimed/pkg/domain-errors"
	"verimed/pkg/domain"
	"verimed/pkg/platform/audit"
	"verimed/pkg/platform/sentinel"
	"verimed/pkg/requestcontext"
)

const (
	// DefaultMaxFailures is the failed-reveal budget before a requester is
	// locked out of a patient's fields.
	DefaultMaxFailures = 5
	// DefaultLockWindow anchors at the first failure and clears on its own.
	DefaultLockWindow = 15 * time.Minute
)

// Service implements the masked-by-default field lifecycle: writes encrypt
// before storage, reads return structural masks, and the single-field Reveal
// path is guarded by lockout, ownership, and authenticated decryption, in
// that order.
type Service struct {
	fields   FieldStore
	crypto   *crypto.Service
	throttle throttle.Store
	audit    *audit.Recorder
	logger   *slog.Logger

	maxFailures int
	lockWindow  time.Duration
}

// ServiceOption tunes a Service.
type ServiceOption func(*Service)

// WithLockout overrides the failure budget and lock window.
func WithLockout(maxFailures int, window time.Duration) ServiceOption {
	return func(s *Service) {
		s.maxFailures = maxFailures
		s.lockWindow = window
	}
}

func NewService(fields FieldStore, cryptoSvc *crypto.Service, throttleStore throttle.Store, auditRec *audit.Recorder, logger *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		fields:      fields,
		crypto:      cryptoSvc,
		throttle:    throttleStore,
		audit:       auditRec,
		logger:      logger,
		maxFailures: DefaultMaxFailures,
		lockWindow:  DefaultLockWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put encrypts plaintext and stores the envelope on the owning entity. An
// empty plaintext clears the field rather than storing an empty envelope.
func (s *Service) Put(ctx context.Context, patientID domain.PatientID, name domain.FieldName, plaintext string) error {
	field := Field{}
	if plaintext != "" {
		envelope, err := s.crypto.Encrypt(plaintext)
		if err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "encrypt field", err)
		}
		field = Field{Envelope: &envelope, Encrypted: true}
	}
	if err := s.fields.PutField(ctx, patientID, name, field); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "patient or field not found")
		}
		return dErrors.Wrap(dErrors.CodeInternal, "store field", err)
	}
	return nil
}

// Masked returns the structural view of a field without touching ciphertext.
// Unset fields report empty and unencrypted.
func (s *Service) Masked(ctx context.Context, patientID domain.PatientID, name domain.FieldName) (MaskedField, error) {
	field, err := s.fields.GetField(ctx, patientID, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return MaskedField{}, dErrors.New(dErrors.CodeNotFound, "patient or field not found")
		}
		return MaskedField{}, dErrors.Wrap(dErrors.CodeInternal, "load field", err)
	}
	if !field.Encrypted || field.Envelope == nil || *field.Envelope == "" {
		return MaskedField{Value: "", Encrypted: false}, nil
	}
	return MaskedField{Value: crypto.Mask(name.Kind()), Encrypted: true}, nil
}

// Reveal decrypts exactly one field for an authorized requester. The guards
// run in a fixed order: lockout first, then the ownership check, then the
// field load, then authenticated decryption. A denied requester learns
// nothing about whether the field exists.
func (s *Service) Reveal(ctx context.Context, patientID domain.PatientID, name domain.FieldName, check OwnerCheck) (string, error) {
	actor := requestcontext.RequesterID(ctx)
	key := throttleKey(actor, patientID)

	if s.throttle != nil {
		count, err := s.throttle.Count(ctx, key)
		if err != nil {
			s.logWarn(ctx, "reveal throttle read failed", err)
		} else if count >= s.maxFailures {
			s.record(ctx, patientID, actor, audit.ActionRevealLocked, name, "failure budget exhausted")
			return "", dErrors.New(dErrors.CodeLocked, "too many failed reveal attempts")
		}
	}

	if check == nil || !check(ctx) {
		s.registerFailure(ctx, key)
		s.record(ctx, patientID, actor, audit.ActionRevealDenied, name, "ownership check failed")
		return "", dErrors.New(dErrors.CodeAccessDenied, "not authorized to reveal this field")
	}

	field, err := s.fields.GetField(ctx, patientID, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "patient or field not found")
		}
		return "", dErrors.Wrap(dErrors.CodeInternal, "load field", err)
	}
	if !field.Encrypted || field.Envelope == nil {
		return "", nil
	}

	plaintext, err := s.crypto.Decrypt(*field.Envelope)
	if err != nil {
		if errors.Is(err, crypto.ErrAuthenticationFailure) {
			s.registerFailure(ctx, key)
			s.record(ctx, patientID, actor, audit.ActionDecryptFailed, name, "ciphertext authentication failed")
			return "", dErrors.Wrap(dErrors.CodeAuthenticationFailure, "field decryption failed", err)
		}
		return "", dErrors.Wrap(dErrors.CodeInternal, "decrypt field", err)
	}

	if s.throttle != nil {
		if err := s.throttle.Reset(ctx, key); err != nil {
			s.logWarn(ctx, "reveal throttle reset failed", err)
		}
	}
	s.record(ctx, patientID, actor, audit.ActionFieldRevealed, name, "")
	return plaintext, nil
}

func (s *Service) registerFailure(ctx context.Context, key string) {
	if s.throttle == nil {
		return
	}
	if _, err := s.throttle.Hit(ctx, key, s.lockWindow); err != nil {
		s.logWarn(ctx, "reveal throttle hit failed", err)
	}
}

func (s *Service) record(ctx context.Context, patientID domain.PatientID, actor string, action audit.Action, name domain.FieldName, reason string) {
	s.audit.Record(ctx, audit.Event{
		PatientID: patientID.String(),
		Actor:     actor,
		Action:    action,
		Field:     string(name),
		Reason:    reason,
	})
}

func (s *Service) logWarn(ctx context.Context, msg string, err error) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, "error", err.Error())
	}
}

func throttleKey(actor string, patientID domain.PatientID) string {
	return fmt.Sprintf("%s:%s", actor, patientID.String())
}
