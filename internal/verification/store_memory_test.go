package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verimed/pkg/domain"
	"verimed/pkg/platform/sentinel"
)

func newTransaction(patientID domain.PatientID, stage domain.StageType, start *time.Time) *Transaction {
	now := time.Now()
	return &Transaction{
		ID:        domain.NewTransactionID(),
		RequestID: NewRequestID(now),
		PatientID: patientID,
		Stage:     stage,
		Status:    domain.StatusWaiting,
		StartTime: start,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestUpdateStatusCompareAndSet(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	patientID := domain.NewPatientID()

	transaction := newTransaction(patientID, domain.StageAPIVerify, nil)
	require.NoError(t, store.Create(ctx, transaction))

	updated, err := store.UpdateStatus(ctx, transaction.ID, domain.StatusWaiting, domain.StatusSuccess, ResultFields{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, updated.Status)

	// Second caller read waiting before the first committed: stale.
	_, err = store.UpdateStatus(ctx, transaction.ID, domain.StatusWaiting, domain.StatusSuccess, ResultFields{})
	assert.ErrorIs(t, err, sentinel.ErrStaleStatus)

	_, err = store.UpdateStatus(ctx, domain.NewTransactionID(), domain.StatusWaiting, domain.StatusSuccess, ResultFields{})
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestUpdateStatusAppliesResultFields(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	transaction := newTransaction(domain.NewPatientID(), domain.StageAPIVerify, nil)
	require.NoError(t, store.Create(ctx, transaction))

	end := time.Now()
	summary := "eligible"
	updated, err := store.UpdateStatus(ctx, transaction.ID, domain.StatusWaiting, domain.StatusSuccess, ResultFields{
		EndTime:            &end,
		EligibilitySummary: &summary,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.EndTime)
	assert.Equal(t, "eligible", updated.EligibilitySummary)
	// Untouched members stay as they were.
	assert.Empty(t, updated.BenefitsSummary)
	assert.Nil(t, updated.StartTime)
}

func TestListByPatientOrdering(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	patientID := domain.NewPatientID()

	base := time.Now()
	early := base.Add(-2 * time.Hour)
	late := base.Add(-time.Hour)

	unstarted := newTransaction(patientID, domain.StageCall, nil)
	second := newTransaction(patientID, domain.StageAPIVerify, &late)
	first := newTransaction(patientID, domain.StageFetch, &early)
	for _, transaction := range []*Transaction{unstarted, second, first} {
		require.NoError(t, store.Create(ctx, transaction))
	}
	// Another patient's transaction must not leak in.
	require.NoError(t, store.Create(ctx, newTransaction(domain.NewPatientID(), domain.StageFetch, &early)))

	listed, err := store.ListByPatient(ctx, patientID)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, first.ID, listed[0].ID)
	assert.Equal(t, second.ID, listed[1].ID)
	assert.Equal(t, unstarted.ID, listed[2].ID, "unstarted attempts sort last")
}

func TestDeleteByPatientRemovesChildren(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	patientID := domain.NewPatientID()

	transaction := newTransaction(patientID, domain.StageCall, nil)
	require.NoError(t, store.Create(ctx, transaction))
	require.NoError(t, store.AddCommunication(ctx, &CallCommunication{
		ID: "m1", TransactionID: transaction.ID, Timestamp: time.Now(), Speaker: domain.SpeakerAgent,
	}))
	require.NoError(t, store.AddTag(ctx, &VerifiedItemTag{
		ID: "t1", TransactionID: transaction.ID, Item: "policy_number",
	}))
	require.NoError(t, store.PutStatusRecord(ctx, &StatusRecord{PatientID: patientID}))

	require.NoError(t, store.DeleteByPatient(ctx, patientID))

	listed, err := store.ListByPatient(ctx, patientID)
	require.NoError(t, err)
	assert.Empty(t, listed)
	messages, err := store.ListCommunications(ctx, transaction.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
	_, err = store.GetStatusRecord(ctx, patientID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestAddCommunicationRequiresTransaction(t *testing.T) {
	store := NewInMemoryStore()
	err := store.AddCommunication(context.Background(), &CallCommunication{
		ID: "m1", TransactionID: domain.NewTransactionID(),
	})
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
