package notifier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/attend-api/internal/feed"
	"github.com/jwalitptl/attend-api/internal/model"
	"github.com/jwalitptl/attend-api/internal/store"
	apperrors "github.com/jwalitptl/attend-api/pkg/errors"
	"github.com/jwalitptl/attend-api/pkg/logger"
	"github.com/jwalitptl/attend-api/pkg/metrics"
)

type fakeDispatcher struct {
	mu   sync.Mutex
	jobs []*model.DispatchJob
}

func (d *fakeDispatcher) Submit(job *model.DispatchJob) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
}

func (d *fakeDispatcher) submitted() []*model.DispatchJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*model.DispatchJob, len(d.jobs))
	copy(out, d.jobs)
	return out
}

type fakeDirectory struct {
	users  map[string]model.User
	roster []string
}

func (f *fakeDirectory) Lookup(subjectID string) (model.User, error) {
	u, ok := f.users[subjectID]
	if !ok {
		return model.User{}, apperrors.NewNotFound("subject", nil)
	}
	return u, nil
}

func (f *fakeDirectory) FullRoster() []string { return f.roster }

type fakeDevices struct {
	devices map[string]model.Device
}

func (f *fakeDevices) Get(id string) (model.Device, error) {
	d, ok := f.devices[id]
	if !ok {
		return model.Device{}, apperrors.UnknownDevice(id)
	}
	return d, nil
}

type fixture struct {
	router     *Router
	groups     *store.GroupStore
	templates  *store.TemplateStore
	jobs       *store.JobStore
	settings   *store.SettingsStore
	dispatcher *fakeDispatcher
}

func allEnabled() model.Settings {
	return model.Settings{
		SyncInterval:        30,
		ConnectionTimeout:   60,
		MaxRetries:          3,
		MessageDelay:        2,
		SummaryTime:         "18:00",
		NotifyOnCheckIn:     true,
		NotifyOnCheckOut:    true,
		NotifyOnLateArrival: true,
		NotifyOnDeviceError: true,
		DailySummary:        true,
	}
}

func newFixture(t *testing.T, initial model.Settings) *fixture {
	t.Helper()

	groups := store.NewGroupStore()
	templates := store.NewTemplateStore()
	jobs := store.NewJobStore()
	settings := store.NewSettingsStore(initial)
	dispatcher := &fakeDispatcher{}

	directory := &fakeDirectory{
		users: map[string]model.User{
			"EMP001": {Name: "John Doe", EmployeeID: "EMP001"},
		},
		roster: []string{"EMP001", "EMP002", "EMP003"},
	}
	devices := &fakeDevices{devices: map[string]model.Device{
		"zk-001": {ID: "zk-001", Name: "Main Entrance", Location: "Building A - Entrance"},
	}}

	router := NewRouter(
		Config{SummaryTime: model.DayTime{Hour: 18}},
		groups, templates, jobs, settings, dispatcher, directory, devices,
		feed.New(nil, logger.NewLogger(nil)),
		logger.NewLogger(nil), metrics.NewTestMetrics(),
	)
	return &fixture{router: router, groups: groups, templates: templates, jobs: jobs, settings: settings, dispatcher: dispatcher}
}

func hrGroup(kinds ...model.NotificationKind) *model.Group {
	return &model.Group{
		ID:            "group-1",
		Name:          "HR Department",
		ChatID:        "+1234567890-1234567890@g.us",
		Status:        model.GroupActive,
		Notifications: kinds,
	}
}

func lateFact() *model.AttendanceFact {
	delta := 5 * time.Minute
	return &model.AttendanceFact{
		ID:        "fact-1",
		Kind:      model.FactLateCheckIn,
		SubjectID: "EMP001",
		DeviceID:  "zk-001",
		Timestamp: time.Date(2024, 3, 11, 9, 5, 0, 0, time.UTC),
		Lateness:  &delta,
	}
}

func TestLateArrivalScenario(t *testing.T) {
	// Device zk-001 reports EMP001 checking in at 09:05 against a 09:00
	// expectation; the HR group gets exactly one rendered late-arrival job.
	f := newFixture(t, allEnabled())
	_, err := f.groups.Create(hrGroup(model.NotifyLateArrival))
	require.NoError(t, err)

	f.router.HandleFact(context.Background(), lateFact())

	jobs := f.dispatcher.submitted()
	require.Len(t, jobs, 1)
	assert.Equal(t, "group-1", jobs[0].GroupID)
	assert.Equal(t, model.NotifyLateArrival, jobs[0].Kind)
	assert.Equal(t, "⚠️ Late arrival: John Doe checked in at 09:05 (Expected: 09:00)", jobs[0].Body)
	assert.Equal(t, model.JobPending, jobs[0].Outcome)
}

func TestFanOutSkipsUnsubscribedAndInactive(t *testing.T) {
	f := newFixture(t, allEnabled())

	_, err := f.groups.Create(hrGroup(model.NotifyLateArrival))
	require.NoError(t, err)

	unsubscribed := hrGroup(model.NotifyCheckOut)
	unsubscribed.ID = "group-2"
	unsubscribed.ChatID = "+1@g.us"
	_, err = f.groups.Create(unsubscribed)
	require.NoError(t, err)

	inactive := hrGroup(model.NotifyLateArrival)
	inactive.ID = "group-3"
	inactive.ChatID = "+2@g.us"
	inactive.Status = model.GroupInactive
	_, err = f.groups.Create(inactive)
	require.NoError(t, err)

	f.router.HandleFact(context.Background(), lateFact())

	jobs := f.dispatcher.submitted()
	require.Len(t, jobs, 1)
	assert.Equal(t, "group-1", jobs[0].GroupID)
}

func TestReRoutingSameFactCreatesNoSecondJob(t *testing.T) {
	f := newFixture(t, allEnabled())
	_, err := f.groups.Create(hrGroup(model.NotifyLateArrival))
	require.NoError(t, err)

	fact := lateFact()
	f.router.HandleFact(context.Background(), fact)
	f.router.HandleFact(context.Background(), fact)

	assert.Len(t, f.dispatcher.submitted(), 1)
}

func TestDistinctFactsEachGetAJob(t *testing.T) {
	f := newFixture(t, allEnabled())
	_, err := f.groups.Create(hrGroup(model.NotifyLateArrival))
	require.NoError(t, err)

	first := lateFact()
	second := lateFact()
	second.ID = "fact-2"

	f.router.HandleFact(context.Background(), first)
	f.router.HandleFact(context.Background(), second)

	assert.Len(t, f.dispatcher.submitted(), 2)
}

func TestTemplateErrorIsTerminal(t *testing.T) {
	f := newFixture(t, allEnabled())
	_, err := f.groups.Create(hrGroup(model.NotifyLateArrival))
	require.NoError(t, err)

	require.NoError(t, f.templates.Set(model.NotifyLateArrival, "{name} owes {beers} beers"))

	f.router.HandleFact(context.Background(), lateFact())

	assert.Empty(t, f.dispatcher.submitted(), "template failures must not reach the dispatcher")

	jobs := f.jobs.List()
	require.Len(t, jobs, 1)
	assert.Equal(t, model.JobFailedPermanent, jobs[0].Outcome)
	assert.Contains(t, jobs[0].LastError, "beers")
}

func TestDisabledKindIsNotRouted(t *testing.T) {
	initial := allEnabled()
	initial.NotifyOnLateArrival = false
	f := newFixture(t, initial)
	_, err := f.groups.Create(hrGroup(model.NotifyLateArrival))
	require.NoError(t, err)

	f.router.HandleFact(context.Background(), lateFact())
	assert.Empty(t, f.dispatcher.submitted())
}

func TestSettingsUpdateTogglesRouting(t *testing.T) {
	// Flipping a kind off through the settings store stops routing on the
	// very next fact, without rebuilding the router.
	f := newFixture(t, allEnabled())
	_, err := f.groups.Create(hrGroup(model.NotifyLateArrival))
	require.NoError(t, err)

	f.router.HandleFact(context.Background(), lateFact())
	require.Len(t, f.dispatcher.submitted(), 1)

	off := allEnabled()
	off.NotifyOnLateArrival = false
	require.NoError(t, f.settings.Update(off))

	second := lateFact()
	second.ID = "fact-2"
	f.router.HandleFact(context.Background(), second)
	assert.Len(t, f.dispatcher.submitted(), 1, "disabled kind must not be routed")

	require.NoError(t, f.settings.Update(allEnabled()))

	third := lateFact()
	third.ID = "fact-3"
	f.router.HandleFact(context.Background(), third)
	assert.Len(t, f.dispatcher.submitted(), 2, "re-enabled kind routes again")
}

func TestDeviceFaultFansOutWithoutSubject(t *testing.T) {
	f := newFixture(t, allEnabled())
	_, err := f.groups.Create(hrGroup(model.NotifyDeviceFault))
	require.NoError(t, err)

	f.router.HandleFact(context.Background(), &model.AttendanceFact{
		ID:        "fact-9",
		Kind:      model.FactDeviceFault,
		DeviceID:  "zk-001",
		Timestamp: time.Now(),
		Details:   "connection timeout",
	})

	jobs := f.dispatcher.submitted()
	require.Len(t, jobs, 1)
	assert.Equal(t, "🔌 Device alert: Main Entrance at Building A - Entrance - connection timeout", jobs[0].Body)
}

func TestDailySummaryAggregation(t *testing.T) {
	f := newFixture(t, allEnabled())
	_, err := f.groups.Create(hrGroup(model.NotifyDailySummary))
	require.NoError(t, err)

	day := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	facts := []*model.AttendanceFact{
		{ID: "f1", Kind: model.FactOnTimeCheckIn, SubjectID: "EMP001", DeviceID: "zk-001", Timestamp: day},
		{ID: "f2", Kind: model.FactLateCheckIn, SubjectID: "EMP002", DeviceID: "zk-001", Timestamp: day.Add(30 * time.Minute)},
		{ID: "f3", Kind: model.FactCheckOut, SubjectID: "EMP001", DeviceID: "zk-001", Timestamp: day.Add(9 * time.Hour)},
	}
	for _, fact := range facts {
		f.router.HandleFact(context.Background(), fact)
	}

	summary := f.router.BuildSummary("2024-03-11")
	assert.Equal(t, 2, summary.CheckIns)
	assert.Equal(t, 1, summary.Late)
	assert.Equal(t, 1, summary.CheckOuts)
	assert.Equal(t, 2, summary.Present)
	assert.Equal(t, 1, summary.Absent, "EMP003 never checked in")

	f.router.EmitDailySummary("2024-03-11")

	jobs := f.dispatcher.submitted()
	var summaryJobs []*model.DispatchJob
	for _, j := range jobs {
		if j.Kind == model.NotifyDailySummary {
			summaryJobs = append(summaryJobs, j)
		}
	}
	require.Len(t, summaryJobs, 1)
	assert.Contains(t, summaryJobs[0].Body, "Total Check-ins: 2")
	assert.Contains(t, summaryJobs[0].Body, "Late Arrivals: 1")
	assert.Contains(t, summaryJobs[0].Body, "Present: 2")
	assert.Contains(t, summaryJobs[0].Body, "Absent: 1")
}

func TestRenderTemplateUnresolvedPlaceholder(t *testing.T) {
	_, err := RenderTemplate("hello {name}, you are {mood}", map[string]string{"name": "John"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrTemplate))

	out, err := RenderTemplate("hello {name}", map[string]string{"name": "John"})
	require.NoError(t, err)
	assert.Equal(t, "hello John", out)
}
