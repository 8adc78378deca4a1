package notifier

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jwalitptl/attend-api/internal/feed"
	"github.com/jwalitptl/attend-api/internal/model"
	"github.com/jwalitptl/attend-api/internal/store"
	"github.com/jwalitptl/attend-api/pkg/logger"
	"github.com/jwalitptl/attend-api/pkg/metrics"
)

const dayFormat = "2006-01-02"

// Dispatcher accepts jobs for asynchronous delivery. Submit never blocks.
type Dispatcher interface {
	Submit(job *model.DispatchJob)
}

// Directory resolves subjects to display names and provides the full roster
// for absentee counting.
type Directory interface {
	Lookup(subjectID string) (model.User, error)
	FullRoster() []string
}

// DeviceSource resolves device ids for template fields.
type DeviceSource interface {
	Get(id string) (model.Device, error)
}

type Config struct {
	SummaryTime model.DayTime
}

// Router fans classified facts out to subscribed groups. For every (active
// group, fact) match it renders the kind's template and creates one dispatch
// job, honoring the dedup invariant. It also keeps the running day counters
// behind the daily summary. Per-kind enable toggles and the summary time are
// read from the settings store on every decision, so updates apply without a
// restart.
type Router struct {
	cfg        Config
	groups     *store.GroupStore
	templates  *store.TemplateStore
	jobs       *store.JobStore
	settings   *store.SettingsStore
	dispatcher Dispatcher
	directory  Directory
	devices    DeviceSource
	feed       *feed.Feed
	logger     *logger.Logger
	metrics    *metrics.Metrics

	mu    sync.Mutex
	stats map[string]*dayStats
}

type dayStats struct {
	checkIns  int
	late      int
	checkOuts int
	present   map[string]struct{}
}

func NewRouter(
	cfg Config,
	groups *store.GroupStore,
	templates *store.TemplateStore,
	jobs *store.JobStore,
	settings *store.SettingsStore,
	dispatcher Dispatcher,
	directory Directory,
	devices DeviceSource,
	fd *feed.Feed,
	log *logger.Logger,
	m *metrics.Metrics,
) *Router {
	return &Router{
		cfg:        cfg,
		groups:     groups,
		templates:  templates,
		jobs:       jobs,
		settings:   settings,
		dispatcher: dispatcher,
		directory:  directory,
		devices:    devices,
		feed:       fd,
		logger:     log,
		metrics:    m,
		stats:      make(map[string]*dayStats),
	}
}

// HandleFact routes one classified fact. Per-item failures are isolated: a
// bad template or group never stops the fan-out to the others.
func (r *Router) HandleFact(ctx context.Context, fact *model.AttendanceFact) {
	r.recordStats(fact)

	kind := fact.Kind.Notification()
	if !r.enabled(kind) {
		return
	}

	r.fanOut(kind, fact.ID, r.varsFor(fact))
}

// enabled reads the current settings snapshot; a toggle flipped over the API
// takes effect on the next fact.
func (r *Router) enabled(kind model.NotificationKind) bool {
	s := r.settings.Snapshot()
	switch kind {
	case model.NotifyCheckIn:
		return s.NotifyOnCheckIn
	case model.NotifyCheckOut:
		return s.NotifyOnCheckOut
	case model.NotifyLateArrival:
		return s.NotifyOnLateArrival
	case model.NotifyDeviceFault:
		return s.NotifyOnDeviceError
	case model.NotifyDailySummary:
		return s.DailySummary
	default:
		return false
	}
}

// summaryTime reads the configured summary trigger, falling back to the
// startup value if the stored string stops parsing.
func (r *Router) summaryTime() model.DayTime {
	dt, err := model.ParseDayTime(r.settings.Snapshot().SummaryTime)
	if err != nil {
		return r.cfg.SummaryTime
	}
	return dt
}

func (r *Router) fanOut(kind model.NotificationKind, factID string, vars map[string]string) {
	tmpl, err := r.templates.Get(kind)
	if err != nil {
		r.logger.Error(err, "no template for notification kind", "kind", string(kind))
		return
	}

	for _, group := range r.groups.ListActive() {
		g := group
		if !g.Subscribed(kind) {
			continue
		}
		if r.jobs.HasActive(g.ID, factID) {
			continue
		}

		body, err := RenderTemplate(tmpl, vars)
		if err != nil {
			// Terminal by contract: re-rendering cannot succeed without a
			// template fix.
			job := model.NewDispatchJob(&g, factID, kind, "")
			job.Outcome = model.JobFailedPermanent
			job.LastError = err.Error()
			if createErr := r.jobs.Create(job); createErr != nil {
				r.logger.Error(createErr, "failed to record template failure")
			}
			r.metrics.TemplateErrors.Inc()
			r.feed.JobOutcome(job, g.Name)
			r.logger.Error(err, "template rendering failed",
				"group_id", g.ID, "kind", string(kind))
			continue
		}

		job := model.NewDispatchJob(&g, factID, kind, body)
		if err := r.jobs.Create(job); err != nil {
			// Lost the race to another router call; dedup holds.
			continue
		}
		r.metrics.JobsCreated.WithLabelValues(string(kind)).Inc()
		r.dispatcher.Submit(job)
	}
}

// RunSummaryLoop emits the daily summary at the configured time until ctx is
// cancelled.
func (r *Router) RunSummaryLoop(ctx context.Context) {
	for {
		next := r.summaryTime().Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			r.EmitDailySummary(next.Format(dayFormat))
		}
	}
}

// EmitDailySummary aggregates the day's facts and fans the summary out to
// daily-summary subscribers.
func (r *Router) EmitDailySummary(date string) {
	if !r.enabled(model.NotifyDailySummary) {
		return
	}

	summary := r.BuildSummary(date)
	vars := map[string]string{
		"checkins": strconv.Itoa(summary.CheckIns),
		"late":     strconv.Itoa(summary.Late),
		"present":  strconv.Itoa(summary.Present),
		"absent":   strconv.Itoa(summary.Absent),
		"date":     summary.Date,
	}
	r.fanOut(model.NotifyDailySummary, summary.FactID(), vars)
	r.logger.Info("daily summary emitted", "date", date,
		"checkins", summary.CheckIns, "late", summary.Late, "absent", summary.Absent)
}

// BuildSummary computes the aggregate for one day against the full roster.
func (r *Router) BuildSummary(date string) model.DailySummary {
	r.mu.Lock()
	stats, ok := r.stats[date]
	var summary model.DailySummary
	summary.Date = date
	if ok {
		summary.CheckIns = stats.checkIns
		summary.Late = stats.late
		summary.CheckOuts = stats.checkOuts
		summary.Present = len(stats.present)
	}
	present := make(map[string]struct{})
	if ok {
		for s := range stats.present {
			present[s] = struct{}{}
		}
	}
	r.mu.Unlock()

	for _, subject := range r.directory.FullRoster() {
		if _, there := present[subject]; !there {
			summary.Absent++
		}
	}
	return summary
}

// SendTest pushes a plain test message to one group through the normal
// dispatch path.
func (r *Router) SendTest(groupID string) error {
	g, err := r.groups.Get(groupID)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("🔔 Test message from the attendance system at %s", time.Now().Format("15:04"))
	job := model.NewDispatchJob(&g, "test-"+time.Now().Format("20060102150405"), model.NotificationKind("test"), body)
	if err := r.jobs.Create(job); err != nil {
		return err
	}
	r.dispatcher.Submit(job)
	return nil
}

func (r *Router) recordStats(fact *model.AttendanceFact) {
	date := fact.Timestamp.Format(dayFormat)

	r.mu.Lock()
	defer r.mu.Unlock()

	stats, ok := r.stats[date]
	if !ok {
		stats = &dayStats{present: make(map[string]struct{})}
		r.stats[date] = stats
		// Drop stale days so the map cannot grow unbounded.
		for d := range r.stats {
			if d < date {
				delete(r.stats, d)
			}
		}
	}

	switch fact.Kind {
	case model.FactOnTimeCheckIn:
		stats.checkIns++
		stats.present[fact.SubjectID] = struct{}{}
	case model.FactLateCheckIn:
		stats.checkIns++
		stats.late++
		stats.present[fact.SubjectID] = struct{}{}
	case model.FactCheckOut:
		stats.checkOuts++
	}
}

func (r *Router) varsFor(fact *model.AttendanceFact) map[string]string {
	name := fact.SubjectID
	if user, err := r.directory.Lookup(fact.SubjectID); err == nil {
		name = user.Name
	}

	deviceName := fact.DeviceID
	location := ""
	if dev, err := r.devices.Get(fact.DeviceID); err == nil {
		deviceName = dev.Name
		location = dev.Location
	}

	vars := map[string]string{
		"name":     name,
		"time":     fact.Timestamp.Format("15:04"),
		"device":   deviceName,
		"location": location,
		"reason":   fact.Details,
	}
	if fact.Lateness != nil {
		vars["expected_time"] = fact.Timestamp.Add(-*fact.Lateness).Format("15:04")
	}
	return vars
}
