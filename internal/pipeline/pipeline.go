package pipeline

import (
	"context"

	"github.com/jwalitptl/attend-api/internal/classifier"
	"github.com/jwalitptl/attend-api/internal/feed"
	"github.com/jwalitptl/attend-api/internal/model"
	"github.com/jwalitptl/attend-api/internal/notifier"
	"github.com/jwalitptl/attend-api/internal/registry"
	apperrors "github.com/jwalitptl/attend-api/pkg/errors"
	"github.com/jwalitptl/attend-api/pkg/logger"
	"github.com/jwalitptl/attend-api/pkg/metrics"
)

// Pipeline wires raw device events through classification into notification
// routing. It is the poller's event sink.
type Pipeline struct {
	classifier *classifier.Classifier
	router     *notifier.Router
	registry   *registry.Registry
	feed       *feed.Feed
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

func New(c *classifier.Classifier, r *notifier.Router, reg *registry.Registry, fd *feed.Feed, log *logger.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		classifier: c,
		router:     r,
		registry:   reg,
		feed:       fd,
		logger:     log,
		metrics:    m,
	}
}

// HandleRawEvent classifies one raw event and routes the resulting fact.
// Malformed events are dropped with a warning rather than propagated back to
// the poller; a bad entry must not hold up a device's sync watermark.
func (p *Pipeline) HandleRawEvent(ctx context.Context, ev model.RawEvent) error {
	fact, err := p.classifier.Classify(ev)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrInvalidEvent) {
			p.metrics.EventsDropped.Inc()
			p.logger.Warn("dropping malformed event",
				"device_id", ev.DeviceID, "kind", string(ev.Kind), "error", err.Error())
			return nil
		}
		return err
	}
	if fact == nil {
		// Replay of an already classified event.
		return nil
	}

	deviceName := ev.DeviceID
	if dev, getErr := p.registry.Get(ev.DeviceID); getErr == nil {
		deviceName = dev.Name
	}
	p.feed.FactRecorded(fact, deviceName)

	p.router.HandleFact(ctx, fact)
	return nil
}
