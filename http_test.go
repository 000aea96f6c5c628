package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	srv   *httptest.Server
	tasks *TaskService
	sched *ReminderScheduler
	now   time.Time
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	now := time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC)
	nowFn := func() time.Time { return now }

	tasks := newTaskService(newMemoryStore(), nowFn)
	sched := newReminderScheduler(logDeliverer{}, time.Minute, time.Second, nowFn)
	t.Cleanup(sched.Stop)

	api := newAPIServer(tasks, sched, time.UTC, nowFn)
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	return &apiFixture{srv: srv, tasks: tasks, sched: sched, now: now}
}

func (f *apiFixture) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func TestAPIHealth(t *testing.T) {
	f := newAPIFixture(t)
	resp, body := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"ok"`)
}

func TestAPICreateAndList(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/tasks",
		`{"owner":"u1","name":"take pills","time":"8pm","category":"Medication","urgency":"Urgent"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created Task
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "take pills", created.Name)
	assert.Equal(t, CategoryMedication, created.Category)
	assert.Equal(t, UrgencyUrgent, created.Urgency)
	assert.Equal(t, time.Date(2025, time.March, 5, 20, 0, 0, 0, time.UTC), created.ScheduledAt)
	assert.Equal(t, 1, f.sched.PendingCount())

	resp, body = f.do(t, http.MethodGet, "/api/tasks?owner=u1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed []Task
	require.NoError(t, json.Unmarshal(body, &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	// The list is owner-scoped.
	resp, body = f.do(t, http.MethodGet, "/api/tasks?owner=u2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &listed))
	assert.Empty(t, listed)
}

func TestAPICreateValidation(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/tasks", `{"owner":"u1","name":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/tasks", `{"owner":"u1","name":"x","time":"whenever"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/tasks", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIComplete(t *testing.T) {
	f := newAPIFixture(t)
	task, err := f.tasks.Create("u1", "take pills", CategoryOther, UrgencyGeneral, f.now.Add(time.Hour))
	require.NoError(t, err)
	f.sched.Schedule("u1", task.ID, task.ScheduledAt, "payload")

	resp, _ := f.do(t, http.MethodPost, "/api/tasks/"+task.ID+"/complete?owner=u1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, f.sched.PendingCount())

	// Second transition on a terminal task is a 404.
	resp, _ = f.do(t, http.MethodPost, "/api/tasks/"+task.ID+"/complete?owner=u1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Owner scoping applies here too.
	resp, _ = f.do(t, http.MethodPost, "/api/tasks/"+task.ID+"/dismiss?owner=u2", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPISnooze(t *testing.T) {
	f := newAPIFixture(t)
	task, err := f.tasks.Create("u1", "take pills", CategoryOther, UrgencyGeneral, f.now.Add(time.Hour))
	require.NoError(t, err)

	resp, body := f.do(t, http.MethodPost, "/api/tasks/"+task.ID+"/snooze?owner=u1", `{"minutes":15}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got Task
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, f.now.Add(15*time.Minute), got.ScheduledAt.UTC())
	assert.Equal(t, 1, f.sched.PendingCount())

	resp, _ = f.do(t, http.MethodPost, "/api/tasks/"+task.ID+"/snooze?owner=u1", `{"minutes":0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIDelete(t *testing.T) {
	f := newAPIFixture(t)
	task, err := f.tasks.Create("u1", "take pills", CategoryOther, UrgencyGeneral, f.now.Add(time.Hour))
	require.NoError(t, err)

	resp, _ := f.do(t, http.MethodDelete, "/api/tasks/"+task.ID+"?owner=u1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	pending, err := f.tasks.Pending("u1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAPIListRequiresOwner(t *testing.T) {
	f := newAPIFixture(t)
	resp, _ := f.do(t, http.MethodGet, "/api/tasks", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
