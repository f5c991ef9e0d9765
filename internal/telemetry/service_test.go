package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"zyberhero/internal/apperr"
	"zyberhero/internal/database"
	"zyberhero/internal/identity"
	"zyberhero/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	channel, msgType string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakePublisher) Broadcast(channel, msgType string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{channel, msgType})
}

type fixture struct {
	svc      *Service
	resolver *identity.Resolver
	devices  *database.DeviceRepo
	events   *fakePublisher
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	db := testutil.SetupTestDB(t)
	resolver := identity.NewResolver(db)
	events := &fakePublisher{}
	f := &fixture{
		resolver: resolver,
		devices:  database.NewDeviceRepo(db),
		events:   events,
		clock:    time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(db, resolver, events, Options{Location: time.UTC})
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) register(t *testing.T, mac string) *database.Device {
	d, err := f.resolver.Register(context.Background(), identity.Registration{MACAddress: mac})
	require.NoError(t, err)
	return d
}

func (f *fixture) record(t *testing.T, in ActivityInput) {
	_, err := f.svc.RecordActivity(context.Background(), in)
	require.NoError(t, err)
}

func TestRecordActivity_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.register(t, "AA:BB")

	_, err := f.svc.RecordActivity(ctx, ActivityInput{Device: identity.Identifier{DeviceID: int64(d.ID)}})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = f.svc.RecordActivity(ctx, ActivityInput{AppName: "chrome"})
	assert.True(t, errors.Is(err, apperr.ErrMissingIdentifier))

	_, err = f.svc.RecordActivity(ctx, ActivityInput{AppName: "chrome", Device: identity.Identifier{DeviceUUID: "nope"}})
	assert.True(t, errors.Is(err, apperr.ErrDeviceNotRegistered))

	_, err = f.svc.RecordActivity(ctx, ActivityInput{AppName: "chrome", DurationSeconds: -1, Device: identity.Identifier{DeviceID: int64(d.ID)}})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestRecordActivity_ByUUID(t *testing.T) {
	f := newFixture(t)
	d := f.register(t, "AA:BB")

	row, err := f.svc.RecordActivity(context.Background(), ActivityInput{
		Device:          identity.Identifier{DeviceUUID: d.DeviceUUID},
		AppName:         "Code",
		DurationSeconds: 30,
	})
	require.NoError(t, err)
	assert.NotZero(t, row.ID)
	assert.Equal(t, d.ID, row.DeviceID)
	assert.Equal(t, f.clock, row.Timestamp)
}

func TestDailyComparison_YouTubeScenario(t *testing.T) {
	f := newFixture(t)
	d, err := f.resolver.Register(context.Background(), identity.Registration{MACAddress: "AA:BB"})
	require.NoError(t, err)
	require.NotEmpty(t, d.DeviceUUID)

	f.record(t, ActivityInput{
		Device:          identity.Identifier{DeviceID: int64(d.ID)},
		AppName:         "chrome",
		WindowTitle:     "YouTube - video",
		DurationSeconds: 120,
		ScreenTime:      false,
	})

	res, err := f.svc.DailyComparison(context.Background(), Scope{DeviceID: int64(d.ID)}, "")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", res.Date)
	require.Len(t, res.Apps, 1)
	assert.Equal(t, "youtube", res.Apps[0].App)
	assert.Equal(t, int64(120), res.Apps[0].FocusedTimeSeconds)
	assert.Equal(t, "2m", res.Apps[0].FocusedTimeFormatted)
	assert.Equal(t, int64(120), res.Summary.TotalFocusedSeconds)
}

func TestDailyComparison_Idempotent(t *testing.T) {
	f := newFixture(t)
	d := f.register(t, "AA:BB")
	for _, app := range []string{"chrome", "Code", "chrome"} {
		f.record(t, ActivityInput{Device: identity.Identifier{DeviceID: int64(d.ID)}, AppName: app, DurationSeconds: 40})
	}

	first, err := f.svc.DailyComparison(context.Background(), Scope{}, "2024-05-01")
	require.NoError(t, err)
	second, err := f.svc.DailyComparison(context.Background(), Scope{}, "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDailyComparison_DayBoundaries(t *testing.T) {
	f := newFixture(t)
	d := f.register(t, "AA:BB")
	id := identity.Identifier{DeviceID: int64(d.ID)}

	inDay := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	nextDay := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	f.record(t, ActivityInput{Device: id, AppName: "a", DurationSeconds: 10, Timestamp: &inDay})
	f.record(t, ActivityInput{Device: id, AppName: "b", DurationSeconds: 10, Timestamp: &nextDay})

	res, err := f.svc.DailyComparison(context.Background(), Scope{DeviceID: int64(d.ID)}, "2024-05-01")
	require.NoError(t, err)
	require.Len(t, res.Apps, 1)
	assert.Equal(t, "a", res.Apps[0].App)
}

func TestDailyComparison_Scopes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "AA")
	b := f.register(t, "BB")
	f.record(t, ActivityInput{Device: identity.Identifier{DeviceID: int64(a.ID)}, AppName: "x", DurationSeconds: 10})
	f.record(t, ActivityInput{Device: identity.Identifier{DeviceID: int64(b.ID)}, AppName: "y", DurationSeconds: 20})
	_, err := f.devices.AssignChild(ctx, b.ID, 5)
	require.NoError(t, err)

	global, err := f.svc.DailyComparison(ctx, Scope{}, "")
	require.NoError(t, err)
	assert.Len(t, global.Apps, 2)

	byUUID, err := f.svc.DailyComparison(ctx, Scope{DeviceUUID: a.DeviceUUID}, "")
	require.NoError(t, err)
	require.Len(t, byUUID.Apps, 1)
	assert.Equal(t, "x", byUUID.Apps[0].App)

	byChild, err := f.svc.DailyComparison(ctx, Scope{ChildID: 5}, "")
	require.NoError(t, err)
	require.Len(t, byChild.Apps, 1)
	assert.Equal(t, "y", byChild.Apps[0].App)

	noDevices, err := f.svc.DailyComparison(ctx, Scope{ChildID: 99}, "")
	require.NoError(t, err)
	assert.Empty(t, noDevices.Apps)
	assert.Zero(t, noDevices.Summary.TotalFocusedSeconds)

	_, err = f.svc.DailyComparison(ctx, Scope{DeviceID: 999}, "")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = f.svc.DailyComparison(ctx, Scope{}, "01/05/2024")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestScreenTimeTotal(t *testing.T) {
	f := newFixture(t)
	d := f.register(t, "AA:BB")
	id := identity.Identifier{DeviceID: int64(d.ID)}
	f.record(t, ActivityInput{Device: id, AppName: "a", DurationSeconds: 3661, ScreenTime: true})
	f.record(t, ActivityInput{Device: id, AppName: "b", DurationSeconds: 45})

	total, err := f.svc.ScreenTimeTotal(context.Background(), Scope{DeviceID: int64(d.ID)}, "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, int64(3661), total.TotalScreenTimeSeconds)
	assert.Equal(t, "1h 1m", total.TotalScreenTimeFormatted)
	assert.Equal(t, int64(45), total.TotalFocusedTimeSeconds)
	assert.Equal(t, "45s", total.TotalFocusedTimeFormatted)
	assert.Equal(t, int64(3706), total.TotalTimeSeconds)
}

func TestRecentActivity(t *testing.T) {
	f := newFixture(t)
	d := f.register(t, "AA:BB")
	for i := 0; i < 3; i++ {
		ts := f.clock.Add(time.Duration(i) * time.Minute)
		f.record(t, ActivityInput{Device: identity.Identifier{DeviceID: int64(d.ID)}, AppName: "a", DurationSeconds: i, Timestamp: &ts})
	}

	logs, err := f.svc.RecentActivity(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, 2, logs[0].DurationSeconds)
}

func TestReportLive_Aging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.register(t, "AA:BB")
	dev := identity.Identifier{DeviceID: int64(d.ID)}

	_, err := f.svc.ReportLive(ctx, LiveReport{Device: dev, Apps: []LiveApp{{AppName: "a"}, {AppName: "b"}}})
	require.NoError(t, err)

	f.clock = f.clock.Add(10 * time.Second)
	_, err = f.svc.ReportLive(ctx, LiveReport{Device: dev, Apps: []LiveApp{{AppName: "a"}}})
	require.NoError(t, err)

	live, err := f.svc.LiveApps(ctx, dev, 0)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "a", live[0].AppName)

	f.clock = f.clock.Add(2 * time.Minute)
	live, err = f.svc.LiveApps(ctx, dev, 0)
	require.NoError(t, err)
	assert.Empty(t, live, "stale rows are hidden")

	live, err = f.svc.LiveApps(ctx, dev, 600)
	require.NoError(t, err)
	assert.Len(t, live, 1)

	assert.Len(t, f.events.events, 2)
}

func TestReportLive_NameFallbackAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.register(t, "AA:BB")

	_, err := f.svc.ReportLive(ctx, LiveReport{Device: identity.Identifier{DeviceID: int64(d.ID)}})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	n, err := f.svc.ReportLive(ctx, LiveReport{
		Device: identity.Identifier{MachineName: "missing"},
		Apps:   []LiveApp{},
	})
	assert.Zero(t, n)
	assert.True(t, errors.Is(err, apperr.ErrDeviceNotRegistered))

	n, err = f.svc.ReportLive(ctx, LiveReport{
		Device: identity.Identifier{DeviceUUID: d.DeviceUUID},
		Apps:   []LiveApp{{WindowTitle: "Untitled - Notepad"}, {}, {AppName: "x"}, {AppName: "x", WindowTitle: "second"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	live, err := f.svc.LiveApps(ctx, identity.Identifier{DeviceUUID: d.DeviceUUID}, 0)
	require.NoError(t, err)
	names := make([]string, 0, len(live))
	for _, l := range live {
		names = append(names, l.AppName)
	}
	assert.ElementsMatch(t, []string{"Untitled - Notepad", "unknown", "x"}, names)

	_, err = f.svc.LiveApps(ctx, identity.Identifier{}, 0)
	assert.True(t, errors.Is(err, apperr.ErrMissingIdentifier))
}
