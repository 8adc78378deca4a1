package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jwalitptl/attend-api/internal/model"
	"github.com/jwalitptl/attend-api/pkg/logger"
	"github.com/jwalitptl/attend-api/pkg/messaging"
)

const (
	// keepLatest bounds the in-memory activity window the dashboard reads.
	keepLatest = 50

	publishTimeout = 2 * time.Second
	channel        = "activity"
)

// Feed is the read-only observable output of the pipeline: device state
// changes, classified facts and dispatch outcomes. It keeps a bounded
// in-memory window for the UI and mirrors entries to the broker
// best-effort. Nothing here applies back-pressure to the core.
type Feed struct {
	mu      sync.RWMutex
	entries []model.Activity

	broker messaging.Broker
	logger *logger.Logger
}

func New(broker messaging.Broker, log *logger.Logger) *Feed {
	return &Feed{
		broker: broker,
		logger: log,
	}
}

// Record appends an entry and mirrors it to the broker without blocking the
// caller.
func (f *Feed) Record(a model.Activity) {
	f.mu.Lock()
	f.entries = append(f.entries, a)
	if len(f.entries) > keepLatest {
		f.entries = f.entries[len(f.entries)-keepLatest:]
	}
	f.mu.Unlock()

	if f.broker == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := f.broker.Publish(ctx, channel, a); err != nil {
			f.logger.Warn("feed publish failed", "error", err.Error())
		}
	}()
}

// Recent returns up to limit entries, newest first.
func (f *Feed) Recent(limit int) []model.Activity {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if limit <= 0 || limit > len(f.entries) {
		limit = len(f.entries)
	}
	out := make([]model.Activity, 0, limit)
	for i := len(f.entries) - 1; i >= len(f.entries)-limit; i-- {
		out = append(out, f.entries[i])
	}
	return out
}

// DeviceStateChanged records a connection state transition.
func (f *Feed) DeviceStateChanged(dev model.Device, from, to model.ConnectionState) {
	status := "success"
	if to == model.StateDisconnected || to == model.StateDegraded {
		status = "error"
	}
	a := model.NewActivity(model.ActivityDeviceState, status)
	a.Device = dev.Name
	a.Details = fmt.Sprintf("%s -> %s", from, to)
	f.Record(a)
}

// FactRecorded records a classified attendance fact.
func (f *Feed) FactRecorded(fact *model.AttendanceFact, deviceName string) {
	var a model.Activity
	switch fact.Kind {
	case model.FactLateCheckIn:
		a = model.NewActivity(model.ActivityLateArrival, "warning")
		if fact.Lateness != nil {
			a.Details = fmt.Sprintf("Arrived %s late", fact.Lateness.Round(time.Minute))
		}
	case model.FactDeviceFault:
		a = model.NewActivity(model.ActivityDeviceAlert, "error")
		a.Details = fact.Details
	case model.FactCheckOut:
		a = model.NewActivity(model.ActivityCheckOut, "success")
	default:
		a = model.NewActivity(model.ActivityCheckIn, "success")
	}
	a.Subject = fact.SubjectID
	a.Device = deviceName
	f.Record(a)
}

// JobOutcome records a dispatch job reaching delivered or failed-permanent.
func (f *Feed) JobOutcome(job *model.DispatchJob, groupName string) {
	var a model.Activity
	switch job.Outcome {
	case model.JobDelivered:
		a = model.NewActivity(model.ActivityMessageSent, "success")
		a.Details = fmt.Sprintf("%s notification sent to %s", job.Kind, groupName)
	case model.JobFailedPermanent:
		a = model.NewActivity(model.ActivityMessageFail, "error")
		a.Details = fmt.Sprintf("%s notification to %s failed: %s", job.Kind, groupName, job.LastError)
	default:
		return
	}
	f.Record(a)
}
