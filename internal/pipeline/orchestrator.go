package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"verimed/internal/export"
	"verimed/internal/patient"
	"verimed/internal/pipeline/metrics"
	"verimed/internal/sensitive"
	"verimed/internal/verification"
	"verimed/pkg/domain"
	dErrors "verimed/pkg/domain-errors"
	"verimed/pkg/platform/audit"
	"verimed/pkg/platform/sentinel"
)

// AutomatedVerificationSource is the verifiedBy marker written by the
// eligibility integration. Coverage rows carrying it are marked verified
// when copied into a snapshot.
const AutomatedVerificationSource = "api_verification"

// PatientReader is the slice of the patient store replication needs: the
// encrypted identifiers of the primary insurance, the patient phone envelope,
// and the current coverage rows. Implemented by patient.Store.
type PatientReader interface {
	GetField(ctx context.Context, patientID domain.PatientID, name domain.FieldName) (sensitive.Field, error)
	ListInsurances(ctx context.Context, patientID domain.PatientID) ([]*patient.Insurance, error)
	ListCoverageByCode(ctx context.Context, patientID domain.PatientID) ([]*patient.CoverageByCode, error)
}

// Orchestrator executes the commands a status transition produces: spawning
// the call-stage work item and replicating an interface snapshot. Replication
// is best-effort relative to the spawn; a spawned transaction is never rolled
// back because its snapshot failed.
type Orchestrator struct {
	transactions *verification.Service
	patients     PatientReader
	snapshots    export.Store
	audit        *audit.Recorder
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

func NewOrchestrator(transactions *verification.Service, patients PatientReader, snapshots export.Store, recorder *audit.Recorder, m *metrics.Metrics, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		transactions: transactions,
		patients:     patients,
		snapshots:    snapshots,
		audit:        recorder,
		metrics:      m,
		logger:       logger,
	}
}

// UpdateStatus applies the compare-and-set transition and executes whatever
// follow-ups the committed edge produces. On a replication failure the
// updated transaction is still returned alongside a
// CodeReplicationInconsistency error, so callers can report the
// inconsistency without treating the update as failed.
func (o *Orchestrator) UpdateStatus(ctx context.Context, id domain.TransactionID, expected, next domain.TransactionStatus, fields verification.ResultFields) (*verification.Transaction, error) {
	updated, err := o.transactions.UpdateStatus(ctx, id, expected, next, fields)
	if err != nil {
		return nil, err
	}
	if err := o.Execute(ctx, FollowUps(expected, updated)); err != nil {
		return updated, err
	}
	return updated, nil
}

// Execute runs follow-up commands in order.
func (o *Orchestrator) Execute(ctx context.Context, commands []Command) error {
	for _, command := range commands {
		switch cmd := command.(type) {
		case SpawnCallStage:
			if err := o.spawnCallStage(ctx, cmd.Trigger); err != nil {
				return err
			}
		default:
			return dErrors.New(dErrors.CodeInternal, fmt.Sprintf("unknown pipeline command %T", command))
		}
	}
	return nil
}

func (o *Orchestrator) spawnCallStage(ctx context.Context, trigger *verification.Transaction) error {
	spawned, err := o.transactions.Create(ctx, domain.StageCall, trigger.PatientID, verification.CreateInput{
		PatientName:       trigger.PatientName,
		Status:            domain.StatusWaiting,
		InsuranceProvider: trigger.InsuranceProvider,
	})
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "spawn call-stage transaction", err)
	}
	o.metrics.IncrementSpawned()
	o.audit.Record(ctx, audit.Event{
		PatientID: trigger.PatientID.String(),
		Action:    audit.ActionCallStageSpawned,
		Reason:    "api verification succeeded: " + trigger.ID.String(),
	})

	start := time.Now()
	err = o.replicate(ctx, trigger, spawned)
	o.metrics.ObserveReplication(start)
	if err != nil {
		o.metrics.IncrementReplicationFailure()
		o.audit.Record(ctx, audit.Event{
			PatientID: trigger.PatientID.String(),
			Action:    audit.ActionReplicationFailed,
			Reason:    err.Error(),
		})
		if o.logger != nil {
			o.logger.ErrorContext(ctx, "snapshot replication failed",
				"transaction_id", spawned.ID.String(),
				"error", err.Error(),
			)
		}
		return dErrors.Wrap(dErrors.CodeReplicationInconsistency, "snapshot replication incomplete", err)
	}
	return nil
}

// replicate copies the spawn into the export store: the snapshot row first,
// then the coverage and message children concurrently. Identifiers stay
// encrypted end to end.
func (o *Orchestrator) replicate(ctx context.Context, trigger, spawned *verification.Transaction) error {
	snapshot := &export.Snapshot{
		ID:                uuid.NewString(),
		PatientID:         trigger.PatientID.String(),
		TransactionID:     spawned.ID.String(),
		RequestID:         spawned.RequestID,
		PatientName:       spawned.PatientName,
		InsuranceProvider: spawned.InsuranceProvider,
		Status:            string(spawned.Status),
		StartTime:         spawned.StartTime,
		EndTime:           spawned.EndTime,
		Transcript:        spawned.Transcript,
		CreatedAt:         spawned.CreatedAt,
	}

	insurances, err := o.patients.ListInsurances(ctx, trigger.PatientID)
	if err != nil {
		return fmt.Errorf("list insurances: %w", err)
	}
	if len(insurances) > 0 {
		primary := insurances[0]
		snapshot.PolicyNumberEnvelope = primary.PolicyNumber.Envelope
		snapshot.GroupNumberEnvelope = primary.GroupNumber.Envelope
		snapshot.SubscriberIDEnvelope = primary.SubscriberID.Envelope
	}

	phone, err := o.patients.GetField(ctx, trigger.PatientID, domain.FieldPhone)
	switch {
	case err == nil:
		snapshot.PhoneEnvelope = phone.Envelope
	case errors.Is(err, sentinel.ErrNotFound):
		// No patient record or phone; the snapshot carries a null envelope.
	default:
		return fmt.Errorf("read phone envelope: %w", err)
	}

	if err := o.snapshots.CreateSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return o.copyCoverage(gctx, trigger.PatientID, snapshot.ID) })
	g.Go(func() error { return o.copyMessages(gctx, trigger.ID, snapshot.ID) })
	return g.Wait()
}

func (o *Orchestrator) copyCoverage(ctx context.Context, patientID domain.PatientID, snapshotID string) error {
	rows, err := o.patients.ListCoverageByCode(ctx, patientID)
	if err != nil {
		return fmt.Errorf("list coverage rows: %w", err)
	}
	for _, row := range rows {
		verified := row.Verified
		if row.VerifiedBy == AutomatedVerificationSource {
			verified = true
		}
		child := &export.CoverageCode{
			ID:            uuid.NewString(),
			SnapshotID:    snapshotID,
			ProcedureCode: row.ProcedureCode,
			Category:      row.Category,
			Verified:      verified,
			Payload:       row.Payload,
		}
		if err := o.snapshots.AddCoverageCode(ctx, child); err != nil {
			return fmt.Errorf("copy coverage row %s: %w", row.ProcedureCode, err)
		}
	}
	return nil
}

func (o *Orchestrator) copyMessages(ctx context.Context, triggerID domain.TransactionID, snapshotID string) error {
	messages, err := o.transactions.ListCommunications(ctx, triggerID)
	if err != nil {
		return fmt.Errorf("list communications: %w", err)
	}
	for _, message := range messages {
		child := &export.Message{
			ID:         uuid.NewString(),
			SnapshotID: snapshotID,
			Timestamp:  message.Timestamp,
			Speaker:    string(message.Speaker),
			Body:       message.Body,
			Kind:       message.Kind,
		}
		if err := o.snapshots.AddMessage(ctx, child); err != nil {
			return fmt.Errorf("copy message %s: %w", message.ID, err)
		}
	}
	return nil
}
