//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verimed/internal/verification"
	"verimed/internal/verification/store/postgres"
	"verimed/pkg/domain"
	"verimed/pkg/platform/sentinel"
	"verimed/pkg/testutil/containers"
)

func newTransaction(patientID domain.PatientID, stage domain.StageType, status domain.TransactionStatus) *verification.Transaction {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &verification.Transaction{
		ID:        domain.NewTransactionID(),
		RequestID: verification.NewRequestID(now),
		PatientID: patientID,
		Stage:     stage,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestTransactionRoundTrip(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	store := postgres.New(pc.DB)
	ctx := context.Background()

	txn := newTransaction(domain.NewPatientID(), domain.StageAPIVerify, domain.StatusWaiting)
	txn.InsuranceProvider = "Acme Health"
	require.NoError(t, store.Create(ctx, txn))

	got, err := store.Get(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, txn.RequestID, got.RequestID)
	assert.Equal(t, domain.StageAPIVerify, got.Stage)
	assert.Equal(t, domain.StatusWaiting, got.Status)
	assert.Equal(t, "Acme Health", got.InsuranceProvider)
	assert.Nil(t, got.StartTime)

	_, err = store.Get(ctx, domain.NewTransactionID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestUpdateStatusCompareAndSet(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	store := postgres.New(pc.DB)
	ctx := context.Background()

	txn := newTransaction(domain.NewPatientID(), domain.StageAPIVerify, domain.StatusWaiting)
	require.NoError(t, store.Create(ctx, txn))

	end := time.Now().UTC().Truncate(time.Microsecond)
	summary := "active coverage"
	updated, err := store.UpdateStatus(ctx, txn.ID, domain.StatusWaiting, domain.StatusSuccess, verification.ResultFields{
		EndTime:            &end,
		EligibilitySummary: &summary,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, updated.Status)
	assert.Equal(t, "active coverage", updated.EligibilitySummary)
	require.NotNil(t, updated.EndTime)
	assert.WithinDuration(t, end, *updated.EndTime, time.Millisecond)

	// The losing side of a concurrent race observes a status that no longer
	// matches and must not apply.
	_, err = store.UpdateStatus(ctx, txn.ID, domain.StatusWaiting, domain.StatusFailed, verification.ResultFields{})
	assert.ErrorIs(t, err, sentinel.ErrStaleStatus)

	got, err := store.Get(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, got.Status)
}

func TestListByPatientOrdersUnstartedLast(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	store := postgres.New(pc.DB)
	ctx := context.Background()
	patientID := domain.NewPatientID()

	early := newTransaction(patientID, domain.StageFetch, domain.StatusSuccess)
	earlyStart := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Microsecond)
	early.StartTime = &earlyStart

	late := newTransaction(patientID, domain.StageAPIVerify, domain.StatusWaiting)
	lateStart := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
	late.StartTime = &lateStart

	unstarted := newTransaction(patientID, domain.StageCall, domain.StatusWaiting)

	require.NoError(t, store.Create(ctx, unstarted))
	require.NoError(t, store.Create(ctx, late))
	require.NoError(t, store.Create(ctx, early))

	listed, err := store.ListByPatient(ctx, patientID)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, early.ID, listed[0].ID)
	assert.Equal(t, late.ID, listed[1].ID)
	assert.Equal(t, unstarted.ID, listed[2].ID)
}

func TestCommunicationsAndTags(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	store := postgres.New(pc.DB)
	ctx := context.Background()

	txn := newTransaction(domain.NewPatientID(), domain.StageCall, domain.StatusWaiting)
	require.NoError(t, store.Create(ctx, txn))

	first := &verification.CallCommunication{
		ID:            "msg-1",
		TransactionID: txn.ID,
		Timestamp:     time.Now().UTC().Add(-time.Minute).Truncate(time.Microsecond),
		Speaker:       domain.SpeakerAgent,
		Body:          "calling about eligibility",
	}
	second := &verification.CallCommunication{
		ID:            "msg-2",
		TransactionID: txn.ID,
		Timestamp:     time.Now().UTC().Truncate(time.Microsecond),
		Speaker:       domain.SpeakerCounterparty,
		Body:          "coverage confirmed",
	}
	require.NoError(t, store.AddCommunication(ctx, second))
	require.NoError(t, store.AddCommunication(ctx, first))

	messages, err := store.ListCommunications(ctx, txn.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "msg-1", messages[0].ID)

	require.NoError(t, store.AddTag(ctx, &verification.VerifiedItemTag{
		ID:            "tag-1",
		TransactionID: txn.ID,
		Item:          "deductible",
	}))
	tags, err := store.ListTags(ctx, txn.ID)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "deductible", tags[0].Item)
}

func TestStatusRecordUpsert(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	store := postgres.New(pc.DB)
	ctx := context.Background()
	patientID := domain.NewPatientID()

	_, err := store.GetStatusRecord(ctx, patientID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	record := &verification.StatusRecord{
		PatientID:        patientID,
		FetchPMS:         domain.StageCompleted,
		DocumentAnalysis: domain.StageInProgress,
		APIVerification:  domain.StagePending,
		CallCenter:       domain.StagePending,
		SaveToPMS:        domain.StagePending,
		UpdatedAt:        time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, store.PutStatusRecord(ctx, record))

	record.APIVerification = domain.StageCompleted
	require.NoError(t, store.PutStatusRecord(ctx, record))

	got, err := store.GetStatusRecord(ctx, patientID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageCompleted, got.FetchPMS)
	assert.Equal(t, domain.StageCompleted, got.APIVerification)
}

func TestDeleteByPatientRemovesChildren(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	store := postgres.New(pc.DB)
	ctx := context.Background()
	patientID := domain.NewPatientID()
	bystanderID := domain.NewPatientID()

	txn := newTransaction(patientID, domain.StageCall, domain.StatusSuccess)
	require.NoError(t, store.Create(ctx, txn))
	require.NoError(t, store.AddCommunication(ctx, &verification.CallCommunication{
		ID: "msg-1", TransactionID: txn.ID, Timestamp: time.Now().UTC(), Speaker: domain.SpeakerAgent, Body: "hello",
	}))
	require.NoError(t, store.AddTag(ctx, &verification.VerifiedItemTag{
		ID: "tag-1", TransactionID: txn.ID, Item: "copay",
	}))
	require.NoError(t, store.PutStatusRecord(ctx, &verification.StatusRecord{
		PatientID: patientID, UpdatedAt: time.Now().UTC(),
	}))

	bystander := newTransaction(bystanderID, domain.StageFetch, domain.StatusWaiting)
	require.NoError(t, store.Create(ctx, bystander))

	require.NoError(t, store.DeleteByPatient(ctx, patientID))

	listed, err := store.ListByPatient(ctx, patientID)
	require.NoError(t, err)
	assert.Empty(t, listed)
	_, err = store.GetStatusRecord(ctx, patientID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	kept, err := store.ListByPatient(ctx, bystanderID)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}
