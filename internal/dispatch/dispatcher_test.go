package dispatch

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/attend-api/internal/model"
	"github.com/jwalitptl/attend-api/internal/store"
	apperrors "github.com/jwalitptl/attend-api/pkg/errors"
	"github.com/jwalitptl/attend-api/pkg/logger"
	"github.com/jwalitptl/attend-api/pkg/metrics"
)

type scriptedSender struct {
	mu    sync.Mutex
	err   error
	sends []sendRecord
}

type sendRecord struct {
	chatID string
	at     time.Time
}

func (s *scriptedSender) Send(_ context.Context, chatID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, sendRecord{chatID: chatID, at: time.Now()})
	return s.err
}

func (s *scriptedSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sends)
}

func (s *scriptedSender) records() []sendRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sendRecord, len(s.sends))
	copy(out, s.sends)
	return out
}

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []model.DispatchJob
}

func (r *outcomeRecorder) record(job *model.DispatchJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, *job)
}

func (r *outcomeRecorder) all() []model.DispatchJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.DispatchJob, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func newTestJob(t *testing.T, jobs *store.JobStore, groupID, factID string) *model.DispatchJob {
	t.Helper()
	job := model.NewDispatchJob(&model.Group{ID: groupID, ChatID: groupID + "@g.us"}, factID, model.NotifyCheckIn, "✅ hello")
	require.NoError(t, jobs.Create(job))
	return job
}

func TestDeliverySucceeds(t *testing.T) {
	jobs := store.NewJobStore()
	sender := &scriptedSender{}
	rec := &outcomeRecorder{}
	job := newTestJob(t, jobs, "group-1", "fact-1")

	d := New(Config{Workers: 2, MessageDelay: time.Millisecond, MaxRetries: 3, Retry: true}, sender, jobs, nil, rec.record, logger.NewLogger(nil), metrics.NewTestMetrics())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Start(ctx)

	d.Submit(job)

	eventually(t, func() bool { return len(rec.all()) == 1 }, "job never reached an outcome")

	got := rec.all()[0]
	assert.Equal(t, model.JobDelivered, got.Outcome)
	assert.Equal(t, 1, got.Attempts)
	assert.NotNil(t, got.DeliveredAt)

	stored, err := jobs.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobDelivered, stored.Outcome)
	assert.False(t, jobs.HasActive("group-1", "fact-1"), "terminal job must release the pair")
}

func TestTransientFailureExhaustsRetryBudget(t *testing.T) {
	jobs := store.NewJobStore()
	sender := &scriptedSender{err: apperrors.Transient(errors.New("provider 503"))}
	rec := &outcomeRecorder{}
	job := newTestJob(t, jobs, "group-1", "fact-1")

	d := New(Config{Workers: 1, MessageDelay: 2 * time.Millisecond, MaxRetries: 3, Retry: true}, sender, jobs, nil, rec.record, logger.NewLogger(nil), metrics.NewTestMetrics())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Start(ctx)

	d.Submit(job)

	eventually(t, func() bool { return len(rec.all()) == 1 }, "job never reached an outcome")

	got := rec.all()[0]
	assert.Equal(t, model.JobFailedPermanent, got.Outcome)
	assert.Equal(t, 3, got.Attempts, "attempt count must equal the retry budget")
	assert.Contains(t, got.LastError, "provider 503")
	assert.Equal(t, 3, sender.count())

	stored, err := jobs.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailedPermanent, stored.Outcome)
}

func TestPermanentFailureEndsAfterOneAttempt(t *testing.T) {
	jobs := store.NewJobStore()
	sender := &scriptedSender{err: apperrors.Permanent(errors.New("unknown chat"))}
	rec := &outcomeRecorder{}
	job := newTestJob(t, jobs, "group-1", "fact-1")

	d := New(Config{Workers: 1, MessageDelay: time.Millisecond, MaxRetries: 5, Retry: true}, sender, jobs, nil, rec.record, logger.NewLogger(nil), metrics.NewTestMetrics())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Start(ctx)

	d.Submit(job)

	eventually(t, func() bool { return len(rec.all()) == 1 }, "job never reached an outcome")

	got := rec.all()[0]
	assert.Equal(t, model.JobFailedPermanent, got.Outcome)
	assert.Equal(t, 1, got.Attempts, "permanent failures must not retry")
	assert.Contains(t, got.LastError, "unknown chat")
	assert.Equal(t, 1, sender.count())
}

func TestRetryDisabledMakesTransientTerminal(t *testing.T) {
	jobs := store.NewJobStore()
	sender := &scriptedSender{err: apperrors.Transient(errors.New("timeout"))}
	rec := &outcomeRecorder{}
	job := newTestJob(t, jobs, "group-1", "fact-1")

	d := New(Config{Workers: 1, MessageDelay: time.Millisecond, MaxRetries: 5, Retry: false}, sender, jobs, nil, rec.record, logger.NewLogger(nil), metrics.NewTestMetrics())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Start(ctx)

	d.Submit(job)

	eventually(t, func() bool { return len(rec.all()) == 1 }, "job never reached an outcome")
	assert.Equal(t, model.JobFailedPermanent, rec.all()[0].Outcome)
	assert.Equal(t, 1, sender.count())
}

func TestStoredSettingsRetryToggleOverridesConfig(t *testing.T) {
	jobs := store.NewJobStore()
	sender := &scriptedSender{err: apperrors.Transient(errors.New("timeout"))}
	rec := &outcomeRecorder{}
	job := newTestJob(t, jobs, "group-1", "fact-1")

	// Startup config allows retries; the runtime settings turned them off.
	settings := store.NewSettingsStore(model.Settings{
		SyncInterval:        30,
		ConnectionTimeout:   60,
		MaxRetries:          3,
		MessageDelay:        1,
		SummaryTime:         "18:00",
		RetryFailedMessages: false,
	})

	d := New(Config{Workers: 1, MessageDelay: time.Millisecond, MaxRetries: 5, Retry: true}, sender, jobs, settings, rec.record, logger.NewLogger(nil), metrics.NewTestMetrics())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Start(ctx)

	d.Submit(job)

	eventually(t, func() bool { return len(rec.all()) == 1 }, "job never reached an outcome")
	assert.Equal(t, model.JobFailedPermanent, rec.all()[0].Outcome)
	assert.Equal(t, 1, sender.count())
}

func TestShutdownReleasesOverflowSubmit(t *testing.T) {
	jobs := store.NewJobStore()
	sender := &scriptedSender{err: apperrors.Permanent(errors.New("down"))}
	rec := &outcomeRecorder{}

	d := New(Config{Workers: 1, MessageDelay: time.Millisecond, MaxRetries: 3, Retry: true, QueueSize: 1}, sender, jobs, nil, rec.record, logger.NewLogger(nil), metrics.NewTestMetrics())

	// No worker runs yet: the first job fills the queue, the rest park
	// overflow goroutines.
	base := runtime.NumGoroutine()
	d.Submit(newTestJob(t, jobs, "group-1", "fact-1"))
	d.Submit(newTestJob(t, jobs, "group-1", "fact-2"))
	d.Submit(newTestJob(t, jobs, "group-1", "fact-3"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	go d.Start(ctx)

	eventually(t, func() bool { return runtime.NumGoroutine() <= base+1 }, "overflow submit never released after shutdown")
}

func TestPerGroupSpacing(t *testing.T) {
	jobs := store.NewJobStore()
	sender := &scriptedSender{}
	rec := &outcomeRecorder{}
	first := newTestJob(t, jobs, "group-1", "fact-1")
	second := newTestJob(t, jobs, "group-1", "fact-2")

	d := New(Config{Workers: 4, MessageDelay: 40 * time.Millisecond, MaxRetries: 3, Retry: true}, sender, jobs, nil, rec.record, logger.NewLogger(nil), metrics.NewTestMetrics())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Start(ctx)

	d.Submit(first)
	d.Submit(second)

	eventually(t, func() bool { return sender.count() == 2 }, "both jobs should deliver")

	records := sender.records()
	gap := records[1].at.Sub(records[0].at)
	if gap < 0 {
		gap = -gap
	}
	assert.GreaterOrEqual(t, gap, 30*time.Millisecond, "same-group sends must be spaced by the message delay")
}

func TestDifferentGroupsAreNotSerialized(t *testing.T) {
	jobs := store.NewJobStore()
	sender := &scriptedSender{}
	rec := &outcomeRecorder{}
	first := newTestJob(t, jobs, "group-1", "fact-1")
	second := newTestJob(t, jobs, "group-2", "fact-1")

	d := New(Config{Workers: 4, MessageDelay: 500 * time.Millisecond, MaxRetries: 3, Retry: true}, sender, jobs, nil, rec.record, logger.NewLogger(nil), metrics.NewTestMetrics())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Start(ctx)

	start := time.Now()
	d.Submit(first)
	d.Submit(second)

	eventually(t, func() bool { return sender.count() == 2 }, "both jobs should deliver")
	assert.Less(t, time.Since(start), 400*time.Millisecond, "per-group limits must not couple groups")
}
