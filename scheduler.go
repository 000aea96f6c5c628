package main

import (
	"context"
	"sync"
	"time"
)

// --- Reminder Scheduler ---

// Deliverer pushes a rendered reminder to the owner's channel. Implementations
// are external transports (Telegram, or the log-only fallback).
type Deliverer interface {
	Deliver(ctx context.Context, owner, taskID, content string) error
}

// timerEntry is one registered fire. gen distinguishes a live registration
// from a stale callback of a timer that was replaced or cancelled after its
// function was already queued.
type timerEntry struct {
	timer   *time.Timer
	firesAt time.Time
	gen     uint64
}

// ReminderScheduler holds at most one pending timer per task id and invokes
// the deliverer exactly once per surviving registration. Registration,
// replacement and cancellation are safe for concurrent callers; the registry
// owns its own lock and never holds it across delivery I/O.
type ReminderScheduler struct {
	deliver        Deliverer
	grace          time.Duration // misfire tolerance; later fires are skipped
	deliverTimeout time.Duration
	nowFn          func() time.Time

	mu      sync.Mutex
	timers  map[string]*timerEntry
	nextGen uint64
	wg      sync.WaitGroup
}

func newReminderScheduler(deliver Deliverer, grace, deliverTimeout time.Duration, nowFn func() time.Time) *ReminderScheduler {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &ReminderScheduler{
		deliver:        deliver,
		grace:          grace,
		deliverTimeout: deliverTimeout,
		nowFn:          nowFn,
		timers:         make(map[string]*timerEntry),
	}
}

// Schedule registers a timer for the task, atomically replacing any timer
// already keyed by the same id. Replacement stops the old timer first, so an
// edit or snooze can never double-fire. The payload is captured here and
// handed to the deliverer verbatim at fire time.
func (s *ReminderScheduler) Schedule(owner, taskID string, firesAt time.Time, payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[taskID]; ok {
		old.timer.Stop()
	}
	s.nextGen++
	gen := s.nextGen
	entry := &timerEntry{firesAt: firesAt, gen: gen}
	d := firesAt.Sub(s.nowFn())
	entry.timer = time.AfterFunc(d, func() {
		s.fire(owner, taskID, gen, firesAt, payload)
	})
	s.timers[taskID] = entry
	logInfo("reminder scheduled", "taskId", taskID, "owner", owner, "firesAt", firesAt.Format(time.RFC3339))
}

// Cancel removes any pending timer for the task. Once Cancel returns, no
// later fire for that registration will reach the deliverer, even if the
// timer function was already queued. Cancel on an unknown id is a no-op.
func (s *ReminderScheduler) Cancel(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.timers[taskID]; ok {
		entry.timer.Stop()
		delete(s.timers, taskID)
		logInfo("reminder cancelled", "taskId", taskID)
	}
}

// PendingCount reports how many timers are currently registered.
func (s *ReminderScheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels all timers and waits for in-flight deliveries to finish.
func (s *ReminderScheduler) Stop() {
	s.mu.Lock()
	for id, entry := range s.timers {
		entry.timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// fire runs on the timer's own goroutine. It consumes the registration under
// the lock, then delivers outside it. A registration that was cancelled or
// replaced since this timer was armed is detected by generation mismatch and
// dropped without delivery.
func (s *ReminderScheduler) fire(owner, taskID string, gen uint64, firesAt time.Time, payload string) {
	s.mu.Lock()
	entry, ok := s.timers[taskID]
	if !ok || entry.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.timers, taskID)
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	// Misfire policy: a bounded lateness still counts as on-time; anything
	// later is skipped rather than delivered stale.
	if late := s.nowFn().Sub(firesAt); late > s.grace {
		logWarn("reminder misfire skipped", "taskId", taskID, "late", late.String())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.deliverTimeout)
	defer cancel()
	if err := s.deliver.Deliver(ctx, owner, taskID, payload); err != nil {
		// At-most-once: delivery failures are logged and swallowed. The task
		// stays Scheduled until the user acts on it; the timer is spent.
		logWarn("reminder delivery failed", "taskId", taskID, "owner", owner, "error", err)
		return
	}
	logInfo("reminder delivered", "taskId", taskID, "owner", owner)
}
