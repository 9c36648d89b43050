package export

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verimed/pkg/platform/sentinel"
)

func seedSnapshot(t *testing.T, store *InMemoryStore, id, patientID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateSnapshot(ctx, &Snapshot{
		ID:        id,
		PatientID: patientID,
		CreatedAt: time.Now(),
	}))
	require.NoError(t, store.AddCoverageCode(ctx, &CoverageCode{
		ID: id + "-c1", SnapshotID: id, ProcedureCode: "D0120",
	}))
	require.NoError(t, store.AddMessage(ctx, &Message{
		ID: id + "-m1", SnapshotID: id, Timestamp: time.Now(),
	}))
}

func TestSnapshotChildCascade(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	seedSnapshot(t, store, "snap-1", "patient-1")

	require.NoError(t, store.DeleteSnapshot(ctx, "snap-1"))

	_, err := store.GetSnapshot(ctx, "snap-1")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	coverage, err := store.ListCoverageCodes(ctx, "snap-1")
	require.NoError(t, err)
	assert.Empty(t, coverage)
	messages, err := store.ListMessages(ctx, "snap-1")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestDeleteByPatientScopedToPatient(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	seedSnapshot(t, store, "snap-1", "patient-1")
	seedSnapshot(t, store, "snap-2", "patient-1")
	seedSnapshot(t, store, "snap-3", "patient-2")

	require.NoError(t, store.DeleteByPatient(ctx, "patient-1"))

	count, err := store.CountByPatient(ctx, "patient-1")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = store.CountByPatient(ctx, "patient-2")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestChildrenRequireSnapshot(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	err := store.AddCoverageCode(ctx, &CoverageCode{ID: "c1", SnapshotID: "missing"})
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	err = store.AddMessage(ctx, &Message{ID: "m1", SnapshotID: "missing"})
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, store.CreateSnapshot(ctx, &Snapshot{ID: "snap-1", PatientID: "p"}))
	err = store.CreateSnapshot(ctx, &Snapshot{ID: "snap-1", PatientID: "p"})
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}
