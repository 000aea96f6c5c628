package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*TaskService, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	now := time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC)
	return newTaskService(store, func() time.Time { return now }), store
}

func mustCreate(t *testing.T, ts *TaskService, owner, name string, at time.Time) Task {
	t.Helper()
	task, err := ts.Create(owner, name, CategoryOther, UrgencyGeneral, at)
	require.NoError(t, err)
	return task
}

func TestTaskLifecycleComplete(t *testing.T) {
	ts, store := newTestService(t)
	task := mustCreate(t, ts, "u1", "take pills", time.Date(2025, time.March, 5, 20, 0, 0, 0, time.UTC))

	applied, err := ts.Complete("u1", task.ID)
	require.NoError(t, err)
	assert.True(t, applied)

	got, found, err := store.GetTask("u1", task.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.False(t, got.CompletedAt.IsZero())

	// Terminal states are final: a second complete is a no-op.
	applied, err = ts.Complete("u1", task.ID)
	require.NoError(t, err)
	assert.False(t, applied)

	// So is dismissing a completed task.
	applied, err = ts.Dismiss("u1", task.ID)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestTaskLifecycleGuards(t *testing.T) {
	ts, _ := newTestService(t)
	task := mustCreate(t, ts, "u1", "stretch", time.Date(2025, time.March, 5, 10, 0, 0, 0, time.UTC))

	// Unknown id.
	applied, err := ts.Complete("u1", "nope")
	require.NoError(t, err)
	assert.False(t, applied)

	// Wrong owner cannot touch the task.
	applied, err = ts.Complete("u2", task.ID)
	require.NoError(t, err)
	assert.False(t, applied)

	// Edits only apply while Scheduled.
	_, err = ts.Dismiss("u1", task.ID)
	require.NoError(t, err)
	applied, err = ts.Retime("u1", task.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, applied)
	applied, err = ts.Rename("u1", task.ID, "new name")
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestTaskServicePendingOrdered(t *testing.T) {
	ts, _ := newTestService(t)
	base := time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC)
	late := mustCreate(t, ts, "u1", "late", base.Add(3*time.Hour))
	early := mustCreate(t, ts, "u1", "early", base.Add(1*time.Hour))
	mustCreate(t, ts, "u2", "other owner", base.Add(2*time.Hour))

	pending, err := ts.Pending("u1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, early.ID, pending[0].ID)
	assert.Equal(t, late.ID, pending[1].ID)
}

func TestFindByNameExactBeatsSubstring(t *testing.T) {
	ts, _ := newTestService(t)
	base := time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC)
	mustCreate(t, ts, "u1", "take pills before bed", base.Add(1*time.Hour))
	exact := mustCreate(t, ts, "u1", "pills", base.Add(2*time.Hour))

	// The later-scheduled exact match wins over the earlier substring match.
	got, found, err := ts.FindByName("u1", "Pills")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, exact.ID, got.ID)

	// With no exact match, the earliest-scheduled substring match wins.
	got, found, err = ts.FindByName("u1", "take")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "take pills before bed", got.Name)

	_, found, err = ts.FindByName("u1", "laundry")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCancelByNameFanOut(t *testing.T) {
	ts, store := newTestService(t)
	base := time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC)
	a := mustCreate(t, ts, "u1", "take morning pills", base.Add(1*time.Hour))
	b := mustCreate(t, ts, "u1", "take evening pills", base.Add(2*time.Hour))
	keep := mustCreate(t, ts, "u1", "go for a run", base.Add(3*time.Hour))

	cancelled, err := ts.CancelByName("u1", "pills")
	require.NoError(t, err)
	require.Len(t, cancelled, 2)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, []string{cancelled[0].ID, cancelled[1].ID})

	for _, id := range []string{a.ID, b.ID} {
		got, _, err := store.GetTask("u1", id)
		require.NoError(t, err)
		assert.Equal(t, StatusDismissed, got.Status)
	}
	got, _, err := store.GetTask("u1", keep.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, got.Status)

	// Zero matches is a valid outcome.
	cancelled, err = ts.CancelByName("u1", "pills")
	require.NoError(t, err)
	assert.Empty(t, cancelled)
}

func TestAuditTrail(t *testing.T) {
	ts, store := newTestService(t)
	task := mustCreate(t, ts, "u1", "take pills", time.Date(2025, time.March, 5, 20, 0, 0, 0, time.UTC))

	_, err := ts.Retime("u1", task.ID, time.Date(2025, time.March, 5, 21, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	_, err = ts.Complete("u1", task.ID)
	require.NoError(t, err)

	var actions []string
	for _, rec := range store.audit {
		assert.Equal(t, task.ID, rec.TaskID)
		actions = append(actions, rec.Action)
	}
	assert.Equal(t, []string{"created", "time_updated", "completed"}, actions)
}
