package cascade_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verimed/internal/cascade"
	"verimed/internal/export"
	"verimed/internal/patient"
	"verimed/internal/sensitive"
	"verimed/internal/verification"
	"verimed/pkg/domain"
	"verimed/pkg/platform/audit"
	auditmemory "verimed/pkg/platform/audit/store/memory"
)

type fixture struct {
	coord        *cascade.Coordinator
	transactions *verification.InMemoryStore
	snapshots    *export.InMemoryStore
	patients     *patient.InMemoryStore
	auditLog     *auditmemory.Store
}

func newFixture(t *testing.T, unitOfWork cascade.UnitOfWork) *fixture {
	t.Helper()
	transactions := verification.NewInMemoryStore()
	snapshots := export.NewInMemoryStore()
	patients := patient.NewInMemoryStore()
	auditStore := auditmemory.New()
	recorder := audit.NewRecorder(auditStore, slog.Default())
	coord := cascade.NewCoordinator(transactions, snapshots, patients, auditStore, recorder, unitOfWork, slog.Default())
	return &fixture{
		coord:        coord,
		transactions: transactions,
		snapshots:    snapshots,
		patients:     patients,
		auditLog:     auditStore,
	}
}

func envelope(value string) *string { return &value }

// seed builds the full shape: one patient with one insurance, one
// transaction with a communication and a tag, one snapshot with two coverage
// children and three message children, plus coverage details and the other
// scoped collections.
func seed(t *testing.T, f *fixture) domain.PatientID {
	t.Helper()
	ctx := context.Background()
	patientID := domain.NewPatientID()

	require.NoError(t, f.patients.CreatePatient(ctx, &patient.Patient{
		ID:          patientID,
		OwnerUserID: "user-1",
		DisplayName: "Jordan Doe",
		Phone:       sensitive.Field{Envelope: envelope("enc-phone"), Encrypted: true},
		CreatedAt:   time.Now(),
	}))
	require.NoError(t, f.patients.AddInsurance(ctx, &patient.Insurance{
		ID:        domain.NewInsuranceID(),
		PatientID: patientID,
		Provider:  "Acme Health",
		Rank:      1,
	}))

	transaction := &verification.Transaction{
		ID:        domain.NewTransactionID(),
		RequestID: verification.NewRequestID(time.Now()),
		PatientID: patientID,
		Stage:     domain.StageCall,
		Status:    domain.StatusWaiting,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, f.transactions.Create(ctx, transaction))
	require.NoError(t, f.transactions.AddCommunication(ctx, &verification.CallCommunication{
		ID: "m1", TransactionID: transaction.ID, Timestamp: time.Now(),
		Speaker: domain.SpeakerAgent, Body: "hello",
	}))
	require.NoError(t, f.transactions.AddTag(ctx, &verification.VerifiedItemTag{
		ID: "t1", TransactionID: transaction.ID, Item: "policy_number",
	}))
	require.NoError(t, f.transactions.PutStatusRecord(ctx, &verification.StatusRecord{
		PatientID: patientID,
		FetchPMS:  domain.StageCompleted,
		UpdatedAt: time.Now(),
	}))

	snapshot := &export.Snapshot{
		ID:            "snap-" + patientID.String(),
		PatientID:     patientID.String(),
		TransactionID: transaction.ID.String(),
		PatientName:   "Jordan Doe",
		CreatedAt:     time.Now(),
	}
	require.NoError(t, f.snapshots.CreateSnapshot(ctx, snapshot))
	for _, code := range []string{"D0120", "D1110"} {
		require.NoError(t, f.snapshots.AddCoverageCode(ctx, &export.CoverageCode{
			ID: "cc-" + code, SnapshotID: snapshot.ID, ProcedureCode: code,
		}))
	}
	for i, body := range []string{"a", "b", "c"} {
		require.NoError(t, f.snapshots.AddMessage(ctx, &export.Message{
			ID: body, SnapshotID: snapshot.ID,
			Timestamp: time.Now().Add(time.Duration(i) * time.Second), Body: body,
		}))
	}

	require.NoError(t, f.patients.AddCoverageByCode(ctx, &patient.CoverageByCode{
		ID: "cov-1", PatientID: patientID, ProcedureCode: "D0120",
	}))
	require.NoError(t, f.patients.AddCoverageDetail(ctx, &patient.CoverageDetail{
		ID: "cd-1", PatientID: patientID, PlanName: "PPO",
		Rows: []patient.ProcedureRow{{ID: "pr-1", CoverageDetailID: "cd-1", Code: "D0120"}},
	}))
	require.NoError(t, f.patients.AddCallHistory(ctx, &patient.CallHistory{
		ID: "ch-1", PatientID: patientID, OccurredAt: time.Now(),
	}))
	require.NoError(t, f.patients.AddTreatment(ctx, &patient.Treatment{ID: "tr-1", PatientID: patientID}))
	require.NoError(t, f.patients.AddAppointment(ctx, &patient.Appointment{ID: "ap-1", PatientID: patientID}))
	require.NoError(t, f.patients.AddPostalAddress(ctx, &patient.PostalAddress{ID: "pa-1", PatientID: patientID}))
	require.NoError(t, f.patients.AddContactPoint(ctx, &patient.ContactPoint{ID: "cp-1", PatientID: patientID}))

	return patientID
}

func TestDeletePatientRemovesEverything(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	patientID := seed(t, f)

	require.NoError(t, f.coord.DeletePatient(ctx, patientID))

	remaining, err := f.coord.VerifyPurged(ctx, patientID)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	_, err = f.patients.GetPatient(ctx, patientID)
	assert.Error(t, err)

	_, err = f.transactions.GetStatusRecord(ctx, patientID)
	assert.Error(t, err)
}

func TestDeletePatientPurgesAuditTrailAndRecordsPurge(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	patientID := seed(t, f)

	require.NoError(t, f.auditLog.Append(ctx, audit.Event{
		PatientID: patientID.String(),
		Action:    audit.ActionFieldRevealed,
	}))

	require.NoError(t, f.coord.DeletePatient(ctx, patientID))

	events, err := f.auditLog.ListByPatient(ctx, patientID.String())
	require.NoError(t, err)
	// Only the purge event itself remains; the prior trail is gone.
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionPatientPurged, events[0].Action)
}

func TestDeletePatientLeavesOtherPatientsAlone(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	victim := seed(t, f)
	bystander := seed(t, f)

	require.NoError(t, f.coord.DeletePatient(ctx, victim))

	remaining, err := f.coord.VerifyPurged(ctx, bystander)
	require.NoError(t, err)
	assert.NotZero(t, remaining)
}

func TestSnapshotsOutliveTransactionsButNotTheCascade(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	patientID := seed(t, f)

	// Deleting the transaction log alone leaves snapshots in place; the
	// stores are intentionally decoupled.
	require.NoError(t, f.transactions.DeleteByPatient(ctx, patientID))
	count, err := f.snapshots.CountByPatient(ctx, patientID.String())
	require.NoError(t, err)
	assert.NotZero(t, count)

	require.NoError(t, f.coord.DeletePatient(ctx, patientID))
	count, err = f.snapshots.CountByPatient(ctx, patientID.String())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMidCascadeFailureAborts(t *testing.T) {
	failing := func(ctx context.Context, fn func(ctx context.Context) error) error {
		// Simulates a transactional scope whose commit fails: the work ran
		// but the unit of work reports failure.
		if err := fn(ctx); err != nil {
			return err
		}
		return errors.New("commit failed")
	}
	f := newFixture(t, failing)
	ctx := context.Background()
	patientID := seed(t, f)

	err := f.coord.DeletePatient(ctx, patientID)
	require.Error(t, err)

	events, listErr := f.auditLog.ListByPatient(ctx, patientID.String())
	require.NoError(t, listErr)
	for _, event := range events {
		assert.NotEqual(t, audit.ActionPatientPurged, event.Action)
	}
}

func TestDeletePatientRejectsZeroID(t *testing.T) {
	f := newFixture(t, nil)
	err := f.coord.DeletePatient(context.Background(), domain.PatientID{})
	require.Error(t, err)
}
