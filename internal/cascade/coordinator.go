// Package cascade removes a patient and every row referencing them, across
// the transaction log, the interface snapshot store, and the patient-scoped
// collections. The whole cascade runs inside one unit of work: a mid-cascade
// failure aborts everything rather than leaving partial deletion.
package cascade

import (
	"context"
	"log/slog"

	"verimed/internal/export"
	"verimed/internal/patient"
	"verimed/internal/verification"
	"verimed/pkg/domain"
	dErrors "verimed/pkg/domain-errors"
	"verimed/pkg/platform/audit"
	"verimed/pkg/requestcontext"
)

// UnitOfWork wraps the cascade in a transactional scope. The postgres wiring
// opens a database transaction; in-memory wiring passes through.
type UnitOfWork func(ctx context.Context, fn func(ctx context.Context) error) error

// Passthrough runs the cascade without a surrounding transaction.
func Passthrough(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Coordinator executes the ordered patient deletion.
type Coordinator struct {
	transactions verification.Store
	snapshots    export.Store
	patients     patient.Store
	auditTrail   audit.Store
	audit        *audit.Recorder
	unitOfWork   UnitOfWork
	logger       *slog.Logger
}

func NewCoordinator(transactions verification.Store, snapshots export.Store, patients patient.Store, auditTrail audit.Store, recorder *audit.Recorder, unitOfWork UnitOfWork, logger *slog.Logger) *Coordinator {
	if unitOfWork == nil {
		unitOfWork = Passthrough
	}
	return &Coordinator{
		transactions: transactions,
		snapshots:    snapshots,
		patients:     patients,
		auditTrail:   auditTrail,
		audit:        recorder,
		unitOfWork:   unitOfWork,
		logger:       logger,
	}
}

// DeletePatient removes everything the patient owns, children before
// parents: snapshots with their messages and coverage codes, transactions
// with their communications and tags, coverage details with their procedure
// rows, the remaining scoped collections, then the patient record. The
// patient's audit trail goes last inside the same scope; the purge event
// itself is recorded only after the unit of work commits.
func (c *Coordinator) DeletePatient(ctx context.Context, patientID domain.PatientID) error {
	if patientID.IsZero() {
		return dErrors.New(dErrors.CodeBadRequest, "patient id is required")
	}

	err := c.unitOfWork(ctx, func(ctx context.Context) error {
		if err := c.snapshots.DeleteByPatient(ctx, patientID.String()); err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "delete interface snapshots", err)
		}
		if err := c.transactions.DeleteByPatient(ctx, patientID); err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "delete transactions", err)
		}
		if err := c.patients.DeleteCoverageDetails(ctx, patientID); err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "delete coverage details", err)
		}
		if err := c.patients.DeleteScopedCollections(ctx, patientID); err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "delete patient collections", err)
		}
		if err := c.patients.DeletePatient(ctx, patientID); err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "delete patient", err)
		}
		if c.auditTrail != nil {
			if err := c.auditTrail.DeleteByPatient(ctx, patientID.String()); err != nil {
				return dErrors.Wrap(dErrors.CodeInternal, "delete audit trail", err)
			}
		}
		return nil
	})
	if err != nil {
		if c.logger != nil {
			c.logger.ErrorContext(ctx, "patient cascade aborted",
				"patient_id", patientID.String(),
				"error", err.Error(),
			)
		}
		return err
	}

	c.audit.Record(ctx, audit.Event{
		PatientID: patientID.String(),
		Actor:     requestcontext.RequesterID(ctx),
		Action:    audit.ActionPatientPurged,
	})
	return nil
}

// VerifyPurged counts rows still referencing the patient across all stores.
// Zero means the cascade guarantee holds.
func (c *Coordinator) VerifyPurged(ctx context.Context, patientID domain.PatientID) (int, error) {
	remaining, err := c.patients.CountScopedRows(ctx, patientID)
	if err != nil {
		return 0, dErrors.Wrap(dErrors.CodeInternal, "count patient rows", err)
	}
	snapshotRows, err := c.snapshots.CountByPatient(ctx, patientID.String())
	if err != nil {
		return 0, dErrors.Wrap(dErrors.CodeInternal, "count snapshot rows", err)
	}
	transactions, err := c.transactions.ListByPatient(ctx, patientID)
	if err != nil {
		return 0, dErrors.Wrap(dErrors.CodeInternal, "count transactions", err)
	}
	return remaining + snapshotRows + len(transactions), nil
}
