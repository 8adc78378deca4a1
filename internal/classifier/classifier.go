package classifier

import (
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/attend-api/internal/model"
	apperrors "github.com/jwalitptl/attend-api/pkg/errors"
	"github.com/jwalitptl/attend-api/pkg/logger"
	"github.com/jwalitptl/attend-api/pkg/metrics"
)

const (
	seenTTL     = 24 * time.Hour
	seenSweep   = 10 * time.Minute
	faultReason = "reason"
)

// ScheduleSource is the expected-schedule collaborator. NotFound is not an
// error condition for classification: unknown subjects are treated as
// on-time because no lateness can be computed.
type ScheduleSource interface {
	ExpectedArrival(subjectID string) (model.DayTime, error)
}

// Classifier turns raw events into attendance facts. Pure transform plus a
// TTL replay cache so at-least-once delivery from the poller produces each
// fact exactly once.
type Classifier struct {
	schedule ScheduleSource
	grace    time.Duration
	seen     *cache.Cache
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func New(schedule ScheduleSource, grace time.Duration, log *logger.Logger, m *metrics.Metrics) *Classifier {
	return &Classifier{
		schedule: schedule,
		grace:    grace,
		seen:     cache.New(seenTTL, seenSweep),
		logger:   log,
		metrics:  m,
	}
}

// Classify derives the attendance fact for a raw event. Returns (nil, nil)
// for a replayed event. Malformed events fail with InvalidEvent; callers
// drop them and keep the pipeline running.
func (c *Classifier) Classify(ev model.RawEvent) (*model.AttendanceFact, error) {
	if ev.DeviceID == "" {
		return nil, apperrors.InvalidEvent("missing device id")
	}
	if ev.Timestamp.IsZero() {
		return nil, apperrors.InvalidEvent("missing timestamp")
	}

	key := ev.DedupKey()
	if _, replayed := c.seen.Get(key); replayed {
		c.metrics.EventsReplayed.Inc()
		return nil, nil
	}
	c.seen.SetDefault(key, struct{}{})

	fact := &model.AttendanceFact{
		ID:        uuid.New().String(),
		SubjectID: ev.SubjectID,
		DeviceID:  ev.DeviceID,
		Timestamp: ev.Timestamp,
	}

	switch ev.Kind {
	case model.RawCheckOut:
		fact.Kind = model.FactCheckOut

	case model.RawCheckIn:
		fact.Kind = model.FactOnTimeCheckIn
		if expected, err := c.schedule.ExpectedArrival(ev.SubjectID); err == nil {
			delta := ev.Timestamp.Sub(expected.At(ev.Timestamp))
			if delta > c.grace {
				fact.Kind = model.FactLateCheckIn
				fact.Lateness = &delta
			}
		}

	case model.RawDeviceAlert:
		// Device alerts are device-level regardless of any subject tag.
		fact.Kind = model.FactDeviceFault
		fact.SubjectID = ""
		fact.Details = ev.Payload[faultReason]

	default:
		c.seen.Delete(key)
		return nil, apperrors.InvalidEvent("unknown kind " + string(ev.Kind))
	}

	c.metrics.EventsClassified.WithLabelValues(string(fact.Kind)).Inc()
	return fact, nil
}
