package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/attend-api/internal/model"
	"github.com/jwalitptl/attend-api/internal/registry"
	"github.com/jwalitptl/attend-api/pkg/logger"
	"github.com/jwalitptl/attend-api/pkg/metrics"
)

type fakeIO struct {
	mu      sync.Mutex
	fail    map[string]bool
	hang    map[string]bool
	entries map[string][]model.RawEvent
	probes  map[string]int
}

func newFakeIO() *fakeIO {
	return &fakeIO{
		fail:    make(map[string]bool),
		hang:    make(map[string]bool),
		entries: make(map[string][]model.RawEvent),
		probes:  make(map[string]int),
	}
}

func (f *fakeIO) Probe(ctx context.Context, dev model.Device) (*ProbeResult, error) {
	f.mu.Lock()
	f.probes[dev.ID]++
	fail := f.fail[dev.ID]
	hang := f.hang[dev.ID]
	entries := f.entries[dev.ID]
	f.entries[dev.ID] = nil
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if fail {
		return nil, errors.New("connection refused")
	}
	return &ProbeResult{Entries: entries}, nil
}

func (f *fakeIO) setFail(id string, v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[id] = v
}

func (f *fakeIO) probeCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes[id]
}

type recordingSink struct {
	mu     sync.Mutex
	events []model.RawEvent
	err    error
}

func (s *recordingSink) HandleRawEvent(_ context.Context, ev model.RawEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) all() []model.RawEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.RawEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) alerts() []model.RawEvent {
	var out []model.RawEvent
	for _, ev := range s.all() {
		if ev.Kind == model.RawDeviceAlert {
			out = append(out, ev)
		}
	}
	return out
}

func newTestPoller(reg *registry.Registry, io DeviceIO, sink EventSink, maxRetries int) *Poller {
	return New(Config{
		Interval:   20 * time.Millisecond,
		Timeout:    50 * time.Millisecond,
		MaxRetries: maxRetries,
	}, reg, io, sink, logger.NewLogger(nil), metrics.NewTestMetrics())
}

func registerDevice(t *testing.T, reg *registry.Registry, id string) {
	t.Helper()
	_, err := reg.Register(&model.Device{
		ID: id, Name: "Main Entrance", IP: "192.168.1." + id, Model: "ZKTeco F18", Location: "Building A",
	})
	require.NoError(t, err)
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

func TestSuccessfulProbesReachConnected(t *testing.T) {
	reg := registry.New()
	registerDevice(t, reg, "zk-001")
	io := newFakeIO()
	sink := &recordingSink{}
	p := newTestPoller(reg, io, sink, 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Start(ctx)

	eventually(t, func() bool {
		dev, _ := reg.Get("zk-001")
		return dev.State == model.StateConnected
	}, "device never reached connected")

	// Keep probing; state stays connected.
	eventually(t, func() bool { return io.probeCount("zk-001") >= 3 }, "not enough probes")
	dev, _ := reg.Get("zk-001")
	assert.Equal(t, model.StateConnected, dev.State)
}

func TestFailureRunDisconnectsWithOneAlert(t *testing.T) {
	reg := registry.New()
	registerDevice(t, reg, "zk-001")
	io := newFakeIO()
	io.setFail("zk-001", true)
	sink := &recordingSink{}
	p := newTestPoller(reg, io, sink, 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Start(ctx)

	eventually(t, func() bool {
		dev, _ := reg.Get("zk-001")
		return dev.State == model.StateDisconnected && len(sink.alerts()) == 1
	}, "device never disconnected with an alert")

	// Keep failing; the run must not alert twice.
	eventually(t, func() bool { return io.probeCount("zk-001") >= 6 }, "not enough probes")
	assert.Len(t, sink.alerts(), 1, "exactly one device-alert per failure run")
}

func TestRecoveryResetsFailureRun(t *testing.T) {
	reg := registry.New()
	registerDevice(t, reg, "zk-001")
	io := newFakeIO()
	io.setFail("zk-001", true)
	sink := &recordingSink{}
	p := newTestPoller(reg, io, sink, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Start(ctx)

	eventually(t, func() bool { return len(sink.alerts()) == 1 }, "first failure run never alerted")

	io.setFail("zk-001", false)
	eventually(t, func() bool {
		dev, _ := reg.Get("zk-001")
		return dev.State == model.StateConnected
	}, "device never recovered")

	// A fresh failure run after recovery alerts again.
	io.setFail("zk-001", true)
	eventually(t, func() bool { return len(sink.alerts()) == 2 }, "second failure run never alerted")
}

func TestProbeTimeoutCountsAsFailure(t *testing.T) {
	reg := registry.New()
	registerDevice(t, reg, "zk-001")
	registerDevice(t, reg, "zk-002")
	io := newFakeIO()
	io.hang["zk-001"] = true
	sink := &recordingSink{}
	p := newTestPoller(reg, io, sink, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Start(ctx)

	// The hung device ends up disconnected while the healthy one connects:
	// one device's timeout never blocks another's cycle.
	eventually(t, func() bool {
		d1, _ := reg.Get("zk-001")
		d2, _ := reg.Get("zk-002")
		return d1.State == model.StateDisconnected && d2.State == model.StateConnected
	}, "timeout did not isolate to the hung device")
}

func TestBufferedEntriesFlowToSinkAndAdvanceSync(t *testing.T) {
	reg := registry.New()
	registerDevice(t, reg, "zk-001")
	io := newFakeIO()
	now := time.Now()
	io.entries["zk-001"] = []model.RawEvent{
		{DeviceID: "zk-001", SubjectID: "EMP001", Kind: model.RawCheckIn, Timestamp: now},
		{DeviceID: "zk-001", SubjectID: "EMP002", Kind: model.RawCheckOut, Timestamp: now},
	}
	sink := &recordingSink{}
	p := newTestPoller(reg, io, sink, 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Start(ctx)

	eventually(t, func() bool { return len(sink.all()) == 2 }, "entries never reached the sink")

	events := sink.all()
	assert.Equal(t, "EMP001", events[0].SubjectID, "per-device order must be preserved")
	assert.Equal(t, "EMP002", events[1].SubjectID)

	eventually(t, func() bool {
		dev, _ := reg.Get("zk-001")
		return dev.LastSync != nil
	}, "last sync never advanced")
}

func TestSinkErrorHoldsSyncWatermark(t *testing.T) {
	reg := registry.New()
	registerDevice(t, reg, "zk-001")
	io := newFakeIO()
	io.entries["zk-001"] = []model.RawEvent{
		{DeviceID: "zk-001", SubjectID: "EMP001", Kind: model.RawCheckIn, Timestamp: time.Now()},
	}
	sink := &recordingSink{err: errors.New("classifier unavailable")}
	p := newTestPoller(reg, io, sink, 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Start(ctx)

	eventually(t, func() bool { return io.probeCount("zk-001") >= 2 }, "not enough probes")

	dev, _ := reg.Get("zk-001")
	assert.Nil(t, dev.LastSync, "sync must not advance when the sink rejects entries")
}

func TestUntrackCancelsWorker(t *testing.T) {
	reg := registry.New()
	registerDevice(t, reg, "zk-001")
	io := newFakeIO()
	sink := &recordingSink{}
	p := newTestPoller(reg, io, sink, 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Start(ctx)

	eventually(t, func() bool { return io.probeCount("zk-001") >= 1 }, "device never probed")

	require.NoError(t, reg.Deregister("zk-001"))
	p.Untrack("zk-001")

	n := io.probeCount("zk-001")
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, io.probeCount("zk-001"), n+1, "worker kept probing after untrack")
}
