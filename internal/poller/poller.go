package poller

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/attend-api/internal/model"
	"github.com/jwalitptl/attend-api/internal/registry"
	"github.com/jwalitptl/attend-api/pkg/logger"
	"github.com/jwalitptl/attend-api/pkg/metrics"
)

// ProbeResult is a successful health probe: the device is reachable and may
// have buffered attendance entries since the last sync.
type ProbeResult struct {
	Entries   []model.RawEvent
	UserCount int
}

// DeviceIO is the device collaborator. Probe must be idempotent: the poller
// re-invokes it after timeouts and entries may be delivered more than once.
type DeviceIO interface {
	Probe(ctx context.Context, device model.Device) (*ProbeResult, error)
}

// EventSink receives raw events in per-device order. A sink error keeps the
// device's last-sync watermark in place so entries are re-pulled next cycle.
type EventSink interface {
	HandleRawEvent(ctx context.Context, ev model.RawEvent) error
}

type Config struct {
	Interval   time.Duration
	Timeout    time.Duration
	MaxRetries int
}

// Poller maintains one worker per registered device. Each worker probes on
// the sync interval, drives the device's connection state machine and emits
// raw events. One device's failures never block another's cycle.
type Poller struct {
	cfg      Config
	registry *registry.Registry
	io       DeviceIO
	sink     EventSink
	logger   *logger.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	workers map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfg Config, reg *registry.Registry, io DeviceIO, sink EventSink, log *logger.Logger, m *metrics.Metrics) *Poller {
	return &Poller{
		cfg:      cfg,
		registry: reg,
		io:       io,
		sink:     sink,
		logger:   log,
		metrics:  m,
		workers:  make(map[string]context.CancelFunc),
	}
}

// Start launches the supervisor. It reconciles the worker set against the
// registry once per interval, so newly registered devices are picked up
// automatically. Blocks until ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("starting device poller", "interval", p.cfg.Interval.String())
	p.reconcile(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("shutting down device poller")
			p.stopAll()
			p.wg.Wait()
			return
		case <-ticker.C:
			p.reconcile(ctx)
		}
	}
}

// Untrack cancels the device's worker immediately. Raw events not yet
// handed to the classifier are discarded with the worker.
func (p *Poller) Untrack(deviceID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cancel, ok := p.workers[deviceID]; ok {
		cancel()
		delete(p.workers, deviceID)
		p.metrics.DevicesTracked.Dec()
	}
}

func (p *Poller) reconcile(ctx context.Context) {
	current := make(map[string]bool)
	for _, dev := range p.registry.List() {
		current[dev.ID] = true
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for id, cancel := range p.workers {
		if !current[id] {
			cancel()
			delete(p.workers, id)
			p.metrics.DevicesTracked.Dec()
		}
	}
	for id := range current {
		if _, running := p.workers[id]; running {
			continue
		}
		wctx, cancel := context.WithCancel(ctx)
		p.workers[id] = cancel
		p.metrics.DevicesTracked.Inc()
		p.wg.Add(1)
		go p.runDevice(wctx, id)
	}
}

func (p *Poller) stopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, cancel := range p.workers {
		cancel()
		delete(p.workers, id)
		p.metrics.DevicesTracked.Dec()
	}
}

func (p *Poller) runDevice(ctx context.Context, id string) {
	defer p.wg.Done()

	log := p.logger.WithFields(map[string]interface{}{"device_id": id})

	failures := 0
	alerted := false

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		p.poll(ctx, id, log, &failures, &alerted)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context, id string, log *logger.Logger, failures *int, alerted *bool) {
	dev, err := p.registry.Get(id)
	if err != nil {
		// Deregistered between reconciles; the supervisor will reap us.
		return
	}

	if dev.State == model.StateDisconnected {
		if err := p.registry.SetState(id, model.StateConnecting); err != nil {
			log.Error(err, "failed to enter connecting state")
			return
		}
	}

	pctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	timer := prometheus.NewTimer(p.metrics.ProbeDuration)
	res, err := p.io.Probe(pctx, dev)
	timer.ObserveDuration()
	cancel()

	if ctx.Err() != nil {
		return
	}

	if err != nil {
		p.metrics.ProbesTotal.WithLabelValues("failure").Inc()
		p.onProbeFailure(ctx, id, log, err, failures, alerted)
		return
	}

	p.metrics.ProbesTotal.WithLabelValues("success").Inc()
	*failures = 0
	*alerted = false
	p.onProbeSuccess(ctx, id, log, res)
}

func (p *Poller) onProbeFailure(ctx context.Context, id string, log *logger.Logger, probeErr error, failures *int, alerted *bool) {
	*failures++
	log.Warn("device probe failed", "error", probeErr.Error(), "consecutive_failures", *failures)

	if *failures < p.cfg.MaxRetries {
		// Still reachable as far as we know, but syncs are failing.
		if dev, err := p.registry.Get(id); err == nil && dev.State == model.StateConnected {
			if err := p.registry.SetState(id, model.StateDegraded); err != nil {
				log.Error(err, "failed to degrade device")
			}
		}
		return
	}

	if *alerted {
		// Already reported this failure run; just keep the device out of
		// the connecting state it re-enters before each probe.
		if err := p.registry.SetState(id, model.StateDisconnected); err != nil {
			log.Error(err, "failed to disconnect device")
		}
		return
	}
	*alerted = true

	if dev, err := p.registry.Get(id); err == nil && dev.State == model.StateConnected {
		if err := p.registry.SetState(id, model.StateDegraded); err != nil {
			log.Error(err, "failed to degrade device")
		}
	}
	if err := p.registry.SetState(id, model.StateDisconnected); err != nil {
		log.Error(err, "failed to disconnect device")
	}

	// One device-alert per failure run; it rides the same pipeline as
	// attendance events.
	alert := model.RawEvent{
		DeviceID:  id,
		Kind:      model.RawDeviceAlert,
		Timestamp: time.Now(),
		Payload:   map[string]string{"reason": probeErr.Error()},
	}
	if err := p.sink.HandleRawEvent(ctx, alert); err != nil {
		log.Error(err, "failed to hand device alert to classifier")
	}
}

func (p *Poller) onProbeSuccess(ctx context.Context, id string, log *logger.Logger, res *ProbeResult) {
	dev, err := p.registry.Get(id)
	if err != nil {
		return
	}
	if dev.State != model.StateConnected {
		if err := p.registry.SetState(id, model.StateConnected); err != nil {
			log.Error(err, "failed to mark device connected")
			return
		}
	}

	if res == nil {
		return
	}
	if res.UserCount > 0 {
		_ = p.registry.SetUserCount(id, res.UserCount)
	}

	// Per-device FIFO: entries go to the sink in reported order. The
	// watermark only advances once every entry is handed over, so a sink
	// failure re-delivers the batch (at-least-once; the classifier dedups).
	for _, entry := range res.Entries {
		if err := p.sink.HandleRawEvent(ctx, entry); err != nil {
			log.Error(err, "failed to hand event to classifier, sync not advanced")
			return
		}
	}
	if err := p.registry.MarkSynced(id, time.Now()); err != nil {
		log.Error(err, "failed to advance last sync")
	}
}
