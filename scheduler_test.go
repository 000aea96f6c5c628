package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanDeliverer records every delivery on a channel.
type chanDeliverer struct {
	ch   chan delivered
	fail error
}

type delivered struct {
	owner   string
	taskID  string
	content string
}

func newChanDeliverer() *chanDeliverer {
	return &chanDeliverer{ch: make(chan delivered, 16)}
}

func (d *chanDeliverer) Deliver(_ context.Context, owner, taskID, content string) error {
	d.ch <- delivered{owner: owner, taskID: taskID, content: content}
	return d.fail
}

func (d *chanDeliverer) wait(t *testing.T) delivered {
	t.Helper()
	select {
	case got := <-d.ch:
		return got
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return delivered{}
	}
}

func (d *chanDeliverer) expectNone(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case got := <-d.ch:
		t.Fatalf("unexpected delivery: %+v", got)
	case <-time.After(within):
	}
}

func newTestScheduler(d Deliverer) *ReminderScheduler {
	return newReminderScheduler(d, time.Minute, time.Second, time.Now)
}

func TestSchedulerDeliversOnce(t *testing.T) {
	d := newChanDeliverer()
	s := newTestScheduler(d)
	defer s.Stop()

	s.Schedule("u1", "t1", time.Now().Add(20*time.Millisecond), "take pills")
	assert.Equal(t, 1, s.PendingCount())

	got := d.wait(t)
	assert.Equal(t, "u1", got.owner)
	assert.Equal(t, "t1", got.taskID)
	assert.Equal(t, "take pills", got.content)

	d.expectNone(t, 100*time.Millisecond)
	assert.Equal(t, 0, s.PendingCount())
}

func TestSchedulerReplaceKeepsOneTimer(t *testing.T) {
	d := newChanDeliverer()
	s := newTestScheduler(d)
	defer s.Stop()

	s.Schedule("u1", "t1", time.Now().Add(50*time.Millisecond), "first")
	s.Schedule("u1", "t1", time.Now().Add(120*time.Millisecond), "second")
	assert.Equal(t, 1, s.PendingCount())

	got := d.wait(t)
	assert.Equal(t, "second", got.content)
	d.expectNone(t, 150*time.Millisecond)
}

func TestSchedulerCancel(t *testing.T) {
	d := newChanDeliverer()
	s := newTestScheduler(d)
	defer s.Stop()

	s.Schedule("u1", "t1", time.Now().Add(30*time.Millisecond), "payload")
	s.Cancel("t1")
	assert.Equal(t, 0, s.PendingCount())
	d.expectNone(t, 120*time.Millisecond)

	// Cancelling an unknown id is a no-op.
	s.Cancel("missing")
}

func TestSchedulerMisfireSkipped(t *testing.T) {
	d := newChanDeliverer()
	// Zero grace: any past fire time gets skipped.
	s := newReminderScheduler(d, 0, time.Second, time.Now)
	defer s.Stop()

	s.Schedule("u1", "t1", time.Now().Add(-5*time.Second), "stale")
	d.expectNone(t, 150*time.Millisecond)
	assert.Equal(t, 0, s.PendingCount())
}

func TestSchedulerPastDueWithinGraceDelivers(t *testing.T) {
	d := newChanDeliverer()
	s := newTestScheduler(d)
	defer s.Stop()

	// A fire time just in the past is still within the one-minute grace.
	s.Schedule("u1", "t1", time.Now().Add(-time.Second), "late but fine")
	got := d.wait(t)
	assert.Equal(t, "late but fine", got.content)
}

func TestSchedulerDeliveryFailureSwallowed(t *testing.T) {
	d := newChanDeliverer()
	d.fail = errors.New("transport down")
	s := newTestScheduler(d)
	defer s.Stop()

	s.Schedule("u1", "t1", time.Now().Add(10*time.Millisecond), "payload")
	d.wait(t)

	// The registration is spent; no retry happens.
	d.expectNone(t, 100*time.Millisecond)
	assert.Equal(t, 0, s.PendingCount())
}

func TestSchedulerStopWaitsForInFlight(t *testing.T) {
	var mu sync.Mutex
	var n int
	slow := deliverFunc(func(context.Context, string, string, string) error {
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		n++
		mu.Unlock()
		return nil
	})
	s := newReminderScheduler(slow, time.Minute, time.Second, time.Now)

	s.Schedule("u1", "t1", time.Now().Add(10*time.Millisecond), "payload")
	time.Sleep(30 * time.Millisecond) // let the fire start
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, n, "Stop must wait for the in-flight delivery")
}

type deliverFunc func(ctx context.Context, owner, taskID, content string) error

func (f deliverFunc) Deliver(ctx context.Context, owner, taskID, content string) error {
	return f(ctx, owner, taskID, content)
}

func TestSchedulerConcurrentScheduleCancel(t *testing.T) {
	d := newChanDeliverer()
	s := newTestScheduler(d)
	defer s.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Schedule("u1", "t1", time.Now().Add(time.Hour), "payload")
			s.Cancel("t1")
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, s.PendingCount(), 1)
}
