package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"zyberhero/internal/alerts"
	"zyberhero/internal/children"
	"zyberhero/internal/control"
	"zyberhero/internal/handlers"
	"zyberhero/internal/identity"
	"zyberhero/internal/location"
	"zyberhero/internal/telemetry"
	"zyberhero/internal/testutil"
	"zyberhero/internal/web"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*httptest.Server, *control.Queue) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	resolver := identity.NewResolver(db)
	queue := control.NewQueue(db, resolver, nil)

	rt := web.NewRouter()
	handlers.Register(rt, handlers.Services{
		Resolver:  resolver,
		Telemetry: telemetry.NewService(db, resolver, nil, telemetry.Options{}),
		Commands:  queue,
		Alerts:    alerts.NewStore(db, resolver, nil, nil, alerts.Options{}),
		Locations: location.NewTracker(db, resolver, nil, location.Options{}),
		Children:  children.NewService(db),
	})
	srv := httptest.NewServer(web.Chain(rt, web.RequestIDMiddleware))
	t.Cleanup(srv.Close)
	return srv, queue
}

func newTestSimulator(t *testing.T, url string) *Simulator {
	return NewSimulator(NewClient(url, "", 5*time.Second), Options{
		MAC:         "02:00:00:00:00:09",
		MachineName: "test-pc",
		Latitude:    51.5,
		Longitude:   -0.12,
		TickSeconds: 30,
	}, 7)
}

func TestSimulator_RegisterAndTick(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()
	sim := newTestSimulator(t, srv.URL)

	require.NoError(t, sim.Register(ctx))
	assert.Len(t, sim.uuid, 36)

	for i := 0; i < 3; i++ {
		require.NoError(t, sim.Tick(ctx))
	}
	assert.NotEmpty(t, sim.running)
}

func TestSimulator_AppliesCommands(t *testing.T) {
	srv, queue := newServer(t)
	ctx := context.Background()
	sim := newTestSimulator(t, srv.URL)
	require.NoError(t, sim.Register(ctx))

	dev := identity.Identifier{DeviceUUID: sim.uuid}
	_, err := queue.Kill(ctx, control.Input{Device: dev, AppName: "discord"})
	require.NoError(t, err)
	_, err = queue.Schedule(ctx, control.Input{Device: dev, AppName: "minecraft", Schedule: "sat 10:00-12:00"})
	require.NoError(t, err)

	require.NoError(t, sim.Tick(ctx))
	assert.True(t, sim.blocked["discord"])
	assert.NotContains(t, sim.running, "discord")

	cmds, err := sim.client.Pending(ctx, sim.uuid)
	require.NoError(t, err)
	require.Len(t, cmds, 1, "schedule consumed, kill still pending")
	assert.Equal(t, "kill", cmds[0].Action)

	for i := 0; i < 20; i++ {
		assert.NotEqual(t, "discord", sim.pick().app)
	}

	_, err = queue.Relaunch(ctx, control.Input{Device: dev, AppName: "discord"})
	require.NoError(t, err)
	require.NoError(t, sim.Tick(ctx))
	assert.False(t, sim.blocked["discord"])
}

func TestClient_APIError(t *testing.T) {
	srv, _ := newServer(t)
	c := NewClient(srv.URL, "", 5*time.Second)

	_, err := c.Pending(context.Background(), "missing")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "%v", err)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "DEVICE_NOT_REGISTERED", apiErr.Code)

	_, err = c.Register(context.Background(), "", "", "", "")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}
