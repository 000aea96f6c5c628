package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreListAllScheduled(t *testing.T) {
	s := newMemoryStore()
	base := time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC)

	a := newTask("u1", "a", CategoryOther, UrgencyGeneral, base.Add(2*time.Hour), base)
	b := newTask("u2", "b", CategoryOther, UrgencyGeneral, base.Add(1*time.Hour), base)
	done := newTask("u1", "done", CategoryOther, UrgencyGeneral, base.Add(3*time.Hour), base)
	for _, task := range []Task{a, b, done} {
		require.NoError(t, s.CreateTask(task))
	}
	_, err := s.UpdateStatus("u1", done.ID, StatusCompleted, base)
	require.NoError(t, err)

	// All owners, Scheduled only, ordered by time.
	got, err := s.ListAllScheduled()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, b.ID, got[0].ID)
	assert.Equal(t, a.ID, got[1].ID)
}

func TestMemoryStoreUpdateGuards(t *testing.T) {
	s := newMemoryStore()
	base := time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC)
	task := newTask("u1", "a", CategoryOther, UrgencyGeneral, base.Add(time.Hour), base)
	require.NoError(t, s.CreateTask(task))

	// Wrong owner sees nothing.
	_, found, err := s.GetTask("u2", task.ID)
	require.NoError(t, err)
	assert.False(t, found)

	applied, err := s.UpdateName("u2", task.ID, "stolen")
	require.NoError(t, err)
	assert.False(t, applied)

	// A terminal task rejects every further mutation.
	applied, err = s.UpdateStatus("u1", task.ID, StatusDismissed, base)
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = s.UpdateTime("u1", task.ID, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, applied)
	applied, err = s.UpdateStatus("u1", task.ID, StatusCompleted, base)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestSortTasksByTimeTiebreak(t *testing.T) {
	at := time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC)
	tasks := []Task{
		{ID: "b", ScheduledAt: at},
		{ID: "a", ScheduledAt: at},
		{ID: "c", ScheduledAt: at.Add(-time.Hour)},
	}
	sortTasksByTime(tasks)
	assert.Equal(t, []string{"c", "a", "b"}, []string{tasks[0].ID, tasks[1].ID, tasks[2].ID})
}
