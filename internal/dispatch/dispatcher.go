package dispatch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jwalitptl/attend-api/internal/model"
	"github.com/jwalitptl/attend-api/internal/store"
	apperrors "github.com/jwalitptl/attend-api/pkg/errors"
	"github.com/jwalitptl/attend-api/pkg/logger"
	"github.com/jwalitptl/attend-api/pkg/metrics"
)

// Sender delivers one rendered message to one channel. Implementations
// classify failures as transient or permanent through pkg/errors.
type Sender interface {
	Send(ctx context.Context, chatID, body string) error
}

// OutcomeFunc observes jobs reaching a terminal outcome.
type OutcomeFunc func(job *model.DispatchJob)

type Config struct {
	Workers      int
	MessageDelay time.Duration
	MaxRetries   int
	Retry        bool
	SendTimeout  time.Duration
	QueueSize    int
}

// Dispatcher drains pending jobs through a worker pool. Deliveries to the
// same group are spaced at least the message delay apart. Transient failures
// retry with exponential backoff until the attempt budget runs out; a
// permanent failure ends the job after a single attempt. The retry toggle
// and message delay are re-read from the settings store per delivery when
// one is installed.
type Dispatcher struct {
	cfg       Config
	sender    Sender
	jobs      *store.JobStore
	settings  *store.SettingsStore
	onOutcome OutcomeFunc
	logger    *logger.Logger
	metrics   *metrics.Metrics

	queue chan *model.DispatchJob
	done  chan struct{}
	wg    sync.WaitGroup

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func New(cfg Config, sender Sender, jobs *store.JobStore, settings *store.SettingsStore, onOutcome OutcomeFunc, log *logger.Logger, m *metrics.Metrics) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	return &Dispatcher{
		cfg:       cfg,
		sender:    sender,
		jobs:      jobs,
		settings:  settings,
		onOutcome: onOutcome,
		logger:    log,
		metrics:   m,
		queue:     make(chan *model.DispatchJob, cfg.QueueSize),
		done:      make(chan struct{}),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Start runs the worker pool until ctx is cancelled, then releases any
// overflow submitter still parked on the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	<-ctx.Done()
	d.wg.Wait()
	close(d.done)
}

// Submit enqueues a job without blocking the caller. When the queue is full
// the job is handed off on a goroutine; delivery order across groups is not
// guaranteed, only per-group spacing.
func (d *Dispatcher) Submit(job *model.DispatchJob) {
	select {
	case d.queue <- job:
	default:
		go func() {
			select {
			case d.queue <- job:
			case <-d.done:
			}
		}()
	}
	d.metrics.QueueDepth.Set(float64(len(d.queue)))
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-d.queue:
			d.deliver(ctx, job)
			d.metrics.QueueDepth.Set(float64(len(d.queue)))
		}
	}
}

// retryPolicy resolves the effective retry toggle and message delay, letting
// runtime settings updates override the startup values.
func (d *Dispatcher) retryPolicy() (bool, time.Duration) {
	if d.settings == nil {
		return d.cfg.Retry, d.cfg.MessageDelay
	}
	s := d.settings.Snapshot()
	return s.RetryFailedMessages, time.Duration(s.MessageDelay) * time.Second
}

func (d *Dispatcher) deliver(ctx context.Context, job *model.DispatchJob) {
	retry, delay := d.retryPolicy()

	if err := d.limiterFor(job.GroupID, delay).Wait(ctx); err != nil {
		return
	}

	job.Attempts++
	start := time.Now()

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	err := d.sender.Send(sendCtx, job.ChatID, job.Body)
	cancel()

	d.metrics.DeliveryLatency.Observe(time.Since(start).Seconds())

	if err == nil {
		now := time.Now()
		job.Outcome = model.JobDelivered
		job.DeliveredAt = &now
		job.LastError = ""
		job.NextRetryAt = nil
		d.finish(job)
		d.metrics.JobsDelivered.Inc()
		d.logger.Info("message delivered",
			"job_id", job.ID.String(), "group_id", job.GroupID,
			"kind", string(job.Kind), "attempts", job.Attempts)
		return
	}

	job.LastError = err.Error()

	retryable := apperrors.IsTransient(err) && retry && job.Attempts < d.cfg.MaxRetries
	if !retryable {
		job.Outcome = model.JobFailedPermanent
		job.NextRetryAt = nil
		d.finish(job)
		d.metrics.JobsFailed.Inc()
		d.logger.Error(err, "message delivery failed",
			"job_id", job.ID.String(), "group_id", job.GroupID,
			"kind", string(job.Kind), "attempts", job.Attempts)
		return
	}

	backoff := delay << (job.Attempts - 1)
	next := time.Now().Add(backoff)
	job.NextRetryAt = &next
	if updateErr := d.jobs.Update(job); updateErr != nil {
		d.logger.Error(updateErr, "failed to persist retry state", "job_id", job.ID.String())
	}
	d.metrics.DeliveryRetries.Inc()
	d.logger.Warn("delivery failed, scheduling retry",
		"job_id", job.ID.String(), "group_id", job.GroupID,
		"attempt", job.Attempts, "backoff", backoff.String(), "error", err.Error())

	time.AfterFunc(backoff, func() {
		select {
		case <-ctx.Done():
		default:
			d.Submit(job)
		}
	})
}

func (d *Dispatcher) finish(job *model.DispatchJob) {
	if err := d.jobs.Update(job); err != nil {
		d.logger.Error(err, "failed to persist job outcome", "job_id", job.ID.String())
	}
	if d.onOutcome != nil {
		d.onOutcome(job)
	}
}

func (d *Dispatcher) limiterFor(groupID string, delay time.Duration) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()

	lim, ok := d.limiters[groupID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(delay), 1)
		d.limiters[groupID] = lim
	} else if lim.Limit() != rate.Every(delay) {
		lim.SetLimit(rate.Every(delay))
	}
	return lim
}
