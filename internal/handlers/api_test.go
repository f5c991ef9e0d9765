package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"zyberhero/internal/alerts"
	"zyberhero/internal/children"
	"zyberhero/internal/control"
	"zyberhero/internal/database"
	"zyberhero/internal/identity"
	"zyberhero/internal/location"
	"zyberhero/internal/notify"
	"zyberhero/internal/telemetry"
	"zyberhero/internal/testutil"
	"zyberhero/internal/web"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	channel, msgType string
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) Broadcast(channel, msgType string, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{channel, msgType})
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.msgType)
	}
	return out
}

type testAPI struct {
	handler http.Handler
	events  *recorder
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db := testutil.SetupTestDB(t)
	events := &recorder{}
	resolver := identity.NewResolver(db)

	rt := web.NewRouter()
	Register(rt, Services{
		Resolver:  resolver,
		Telemetry: telemetry.NewService(db, resolver, events, telemetry.Options{Location: time.UTC}),
		Commands:  control.NewQueue(db, resolver, events),
		Alerts:    alerts.NewStore(db, resolver, events, nil, alerts.Options{}),
		Locations: location.NewTracker(db, resolver, events, location.Options{Location: time.UTC}),
		Children:  children.NewService(db),
		Settings:  database.NewSettingRepo(db),
		Notifier:  notify.NewManager(),
		Audit:     database.NewAuditLogRepo(db),
		Events:    events,
	})
	return &testAPI{
		handler: web.Chain(rt, web.RecoveryMiddleware, web.RequestIDMiddleware),
		events:  events,
	}
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	ErrorCode string          `json:"error_code"`
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func data(t *testing.T, env envelope) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &m), string(env.Data))
	return m
}

func list(t *testing.T, env envelope) []map[string]interface{} {
	t.Helper()
	var l []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &l), string(env.Data))
	return l
}

func (a *testAPI) register(t *testing.T, mac string) (float64, string) {
	t.Helper()
	code, env := a.do(t, http.MethodPost, "/api/v1/devices/register", map[string]interface{}{"macAddress": mac})
	require.Equal(t, http.StatusOK, code, env.Message)
	d := data(t, env)
	return d["deviceId"].(float64), d["deviceUuid"].(string)
}

func TestRegisterThenDailyComparison(t *testing.T) {
	api := newTestAPI(t)

	code, env := api.do(t, http.MethodPost, "/api/v1/devices/register", map[string]interface{}{"macAddress": "AA:BB"})
	require.Equal(t, http.StatusOK, code)
	d := data(t, env)
	assert.Len(t, d["deviceUuid"], 36)
	assert.Nil(t, d["childId"])
	id := d["deviceId"].(float64)

	code, env = api.do(t, http.MethodPost, "/api/v1/activity", map[string]interface{}{
		"deviceId":        id,
		"appName":         "chrome",
		"windowTitle":     "YouTube - video",
		"durationSeconds": 120,
		"screenTime":      false,
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.NotZero(t, data(t, env)["id"])

	code, env = api.do(t, http.MethodGet, "/api/v1/activity/daily-comparison?deviceId=1", nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	out := data(t, env)
	apps := out["apps"].([]interface{})
	require.Len(t, apps, 1)
	app := apps[0].(map[string]interface{})
	assert.Equal(t, "youtube", app["app"])
	assert.Equal(t, float64(120), app["focusedTimeSeconds"])
	assert.Equal(t, "2m", app["focusedTimeFormatted"])

	code, env = api.do(t, http.MethodGet, "/api/v1/activity/screen-time?deviceId=1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(120), data(t, env)["totalFocusedTimeSeconds"])

	assert.Contains(t, api.events.types(), "device.registered")
}

func TestLocationRequiresRegisteredDevice(t *testing.T) {
	api := newTestAPI(t)
	fix := map[string]interface{}{"macAddress": "CC:DD", "latitude": 51.5, "longitude": -0.12}

	code, env := api.do(t, http.MethodPost, "/api/v1/location", fix)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Device not registered", env.Message)

	_, uuid := api.register(t, "CC:DD")

	code, env = api.do(t, http.MethodPost, "/api/v1/location", fix)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.NotZero(t, data(t, env)["locationId"])
	code, _ = api.do(t, http.MethodPost, "/api/v1/location", fix)
	require.Equal(t, http.StatusOK, code)

	code, env = api.do(t, http.MethodGet, "/api/v1/location/latest?deviceUuid="+uuid, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 51.5, data(t, env)["latitude"])

	code, env = api.do(t, http.MethodGet, "/api/v1/location/history?deviceUuid="+uuid+"&limit=1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, list(t, env), 1)

	code, env = api.do(t, http.MethodGet, "/api/v1/devices/"+uuid+"/location", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, -0.12, data(t, env)["longitude"])
}

func TestLocation_DeviceMacField(t *testing.T) {
	api := newTestAPI(t)
	fix := map[string]interface{}{"deviceMac": "AA:11", "latitude": 1, "longitude": 2}

	code, env := api.do(t, http.MethodPost, "/api/v1/location", fix)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "DEVICE_NOT_REGISTERED", env.ErrorCode)

	_, uuid := api.register(t, "AA:11")

	code, env = api.do(t, http.MethodPost, "/api/v1/location", fix)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.NotZero(t, data(t, env)["locationId"])

	code, env = api.do(t, http.MethodGet, "/api/v1/location/latest?deviceUuid="+uuid, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), data(t, env)["latitude"])
}

func TestLocation_NoDataAndBadInput(t *testing.T) {
	api := newTestAPI(t)
	_, uuid := api.register(t, "EE:FF")

	code, env := api.do(t, http.MethodGet, "/api/v1/location/latest?deviceUuid="+uuid, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "No location data found", env.Message)

	code, env = api.do(t, http.MethodGet, "/api/v1/location/history?deviceUuid="+uuid, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, list(t, env))

	code, _ = api.do(t, http.MethodGet, "/api/v1/location/history?deviceUuid="+uuid+"&limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(t, http.MethodPost, "/api/v1/location", map[string]interface{}{"macAddress": "EE:FF"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCommandsLifecycle(t *testing.T) {
	api := newTestAPI(t)
	_, uuid := api.register(t, "11:22")

	code, env := api.do(t, http.MethodPost, "/api/v1/commands/kill", map[string]interface{}{"deviceUuid": uuid, "appName": "Chrome"})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, "chrome", data(t, env)["appName"])

	code, env = api.do(t, http.MethodGet, "/api/v1/commands/pending?deviceUuid="+uuid, nil)
	require.Equal(t, http.StatusOK, code)
	pending := list(t, env)
	require.Len(t, pending, 1)
	assert.Equal(t, "kill", pending[0]["action"])
	killID := pending[0]["id"]

	// kill stays active until acked
	_, env = api.do(t, http.MethodGet, "/api/v1/commands/pending?deviceUuid="+uuid, nil)
	assert.Len(t, list(t, env), 1)

	code, _ = api.do(t, http.MethodPost, "/api/v1/commands/ack", map[string]interface{}{"id": killID})
	require.Equal(t, http.StatusOK, code)
	_, env = api.do(t, http.MethodGet, "/api/v1/commands/pending?deviceUuid="+uuid, nil)
	assert.Empty(t, list(t, env))

	code, _ = api.do(t, http.MethodPost, "/api/v1/commands/schedule", map[string]interface{}{
		"deviceUuid": uuid, "appName": "game", "schedule": "mon-fri 16:00-18:00",
	})
	require.Equal(t, http.StatusOK, code)
	_, env = api.do(t, http.MethodGet, "/api/v1/commands/pending?deviceUuid="+uuid, nil)
	pending = list(t, env)
	require.Len(t, pending, 1)
	assert.Equal(t, "mon-fri 16:00-18:00", pending[0]["schedule"])
	_, env = api.do(t, http.MethodGet, "/api/v1/commands/pending?deviceUuid="+uuid, nil)
	assert.Empty(t, list(t, env), "schedule is one-shot")

	assert.Contains(t, api.events.types(), "command.issued")
}

func TestCommands_Validation(t *testing.T) {
	api := newTestAPI(t)
	_, uuid := api.register(t, "33:44")

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"kill without app", http.MethodPost, "/api/v1/commands/kill", map[string]interface{}{"deviceUuid": uuid}, 400, "VALIDATION_FAILED"},
		{"kill without device", http.MethodPost, "/api/v1/commands/kill", map[string]interface{}{"appName": "x"}, 400, "MISSING_IDENTIFIER"},
		{"schedule without payload", http.MethodPost, "/api/v1/commands/schedule", map[string]interface{}{"deviceUuid": uuid, "appName": "x"}, 400, "VALIDATION_FAILED"},
		{"pending without device", http.MethodGet, "/api/v1/commands/pending", nil, 400, "MISSING_IDENTIFIER"},
		{"pending unknown uuid", http.MethodGet, "/api/v1/commands/pending?deviceUuid=nope", nil, 404, "DEVICE_NOT_REGISTERED"},
		{"pending malformed id", http.MethodGet, "/api/v1/commands/pending?deviceId=abc", nil, 400, "INVALID_ID"},
		{"ack zero", http.MethodPost, "/api/v1/commands/ack", map[string]interface{}{"id": 0}, 400, "INVALID_ID"},
		{"ack malformed", http.MethodPost, "/api/v1/commands/ack", `{"id":"abc"}`, 400, "INVALID_ID"},
		{"ack bad json", http.MethodPost, "/api/v1/commands/ack", `{"id":`, 400, "INVALID_BODY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := api.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, status, env.Message)
			assert.Equal(t, tt.code, env.ErrorCode)
		})
	}

	status, _ := api.do(t, http.MethodPost, "/api/v1/commands/ack", map[string]interface{}{"id": "999"})
	assert.Equal(t, http.StatusOK, status, "unknown id acks cleanly")
}

func TestLiveStatus(t *testing.T) {
	api := newTestAPI(t)
	_, uuid := api.register(t, "55:66")

	code, env := api.do(t, http.MethodPost, "/api/v1/live-status", map[string]interface{}{
		"deviceUuid": uuid,
		"apps":       []map[string]string{{"appName": "a"}, {"appName": "b"}},
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, float64(2), data(t, env)["running"])

	code, _ = api.do(t, http.MethodPost, "/api/v1/live-status", map[string]interface{}{
		"deviceUuid": uuid,
		"apps":       []map[string]string{{"appName": "a"}},
	})
	require.Equal(t, http.StatusOK, code)

	code, env = api.do(t, http.MethodGet, "/api/v1/live-status?deviceUuid="+uuid, nil)
	require.Equal(t, http.StatusOK, code)
	apps := list(t, env)
	require.Len(t, apps, 1)
	assert.Equal(t, "a", apps[0]["appName"])

	code, _ = api.do(t, http.MethodPost, "/api/v1/live-status", map[string]interface{}{"deviceUuid": uuid, "apps": "a"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(t, http.MethodGet, "/api/v1/live-status", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAlerts(t *testing.T) {
	api := newTestAPI(t)
	id, _ := api.register(t, "77:88")

	code, env := api.do(t, http.MethodPost, "/api/v1/alerts", map[string]interface{}{
		"deviceId": id,
		"type":     "Danger_Keyword",
		"url":      "http://example.com",
		"details":  "not json",
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, "critical", data(t, env)["severity"])

	code, _ = api.do(t, http.MethodPost, "/api/v1/alerts", map[string]interface{}{"deviceId": id})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = api.do(t, http.MethodGet, "/api/v1/alerts/latest?deviceId=1", nil)
	require.Equal(t, http.StatusOK, code)
	latest := data(t, env)
	assert.Equal(t, "unknown", latest["appName"])
	details := latest["details"].(map[string]interface{})
	assert.Equal(t, "not json", details["raw"])
	assert.Equal(t, "http://example.com", details["url"])

	_, env = api.do(t, http.MethodGet, "/api/v1/alerts/count?deviceId=1", nil)
	assert.Equal(t, float64(1), data(t, env)["count"])

	_, env = api.do(t, http.MethodGet, "/api/v1/alerts?deviceId=1", nil)
	assert.Len(t, list(t, env), 1)

	code, env = api.do(t, http.MethodGet, "/api/v1/alerts/history?page=1&page_size=10", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), data(t, env)["total"])

	code, _ = api.do(t, http.MethodGet, "/api/v1/alerts/history?start_time=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	assert.Contains(t, api.events.types(), "alert.created")
}

func TestChildrenAndZones(t *testing.T) {
	api := newTestAPI(t)
	id, uuid := api.register(t, "99:00")

	code, env := api.do(t, http.MethodPost, "/api/v1/children", map[string]interface{}{
		"name": "Sam", "age": 9, "dob": "2016-05-01", "deviceId": id,
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	child := data(t, env)
	assert.Len(t, child["devices"], 1)

	code, env = api.do(t, http.MethodPost, "/api/v1/children", map[string]interface{}{"name": "Lee", "deviceId": 4242})
	require.Equal(t, http.StatusOK, code, "device link failure is not fatal")
	assert.Empty(t, data(t, env)["devices"])

	code, _ = api.do(t, http.MethodPost, "/api/v1/children", map[string]interface{}{"age": 3})
	assert.Equal(t, http.StatusBadRequest, code)

	_, env = api.do(t, http.MethodGet, "/api/v1/children", nil)
	assert.Len(t, list(t, env), 2)

	code, _ = api.do(t, http.MethodGet, "/api/v1/children/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = api.do(t, http.MethodGet, "/api/v1/children/404", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = api.do(t, http.MethodPost, "/api/v1/location/safe-zones", map[string]interface{}{
		"deviceUuid": uuid, "name": "Home", "latitude": 51.5, "longitude": -0.12, "radius": 200,
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	zoneID := data(t, env)["id"].(float64)

	_, env = api.do(t, http.MethodGet, "/api/v1/children/1/safe-zones", nil)
	assert.Len(t, list(t, env), 1)

	code, _ = api.do(t, http.MethodPost, "/api/v1/location", map[string]interface{}{"deviceId": id, "latitude": 51.5005, "longitude": -0.12})
	require.Equal(t, http.StatusOK, code)
	code, env = api.do(t, http.MethodGet, "/api/v1/location/zone-status?deviceUuid="+uuid, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, []interface{}{"Home"}, data(t, env)["inside"])

	code, _ = api.do(t, http.MethodDelete, "/api/v1/location/safe-zones/"+jsonNumber(zoneID), nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = api.do(t, http.MethodDelete, "/api/v1/location/safe-zones/"+jsonNumber(zoneID), nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAuditTrail(t *testing.T) {
	api := newTestAPI(t)
	_, uuid := api.register(t, "AD:17")

	code, _ := api.do(t, http.MethodPost, "/api/v1/children", map[string]interface{}{"name": "Sam"})
	require.Equal(t, http.StatusOK, code)
	code, _ = api.do(t, http.MethodPost, "/api/v1/children", map[string]interface{}{"age": 3})
	require.Equal(t, http.StatusBadRequest, code)
	code, _ = api.do(t, http.MethodPost, "/api/v1/commands/kill", map[string]interface{}{"deviceUuid": uuid, "appName": "Chrome"})
	require.Equal(t, http.StatusOK, code)
	code, _ = api.do(t, http.MethodDelete, "/api/v1/location/safe-zones/77", nil)
	require.Equal(t, http.StatusNotFound, code)

	code, env := api.do(t, http.MethodGet, "/api/v1/audit-logs?action=child.create", nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	page := data(t, env)
	assert.Equal(t, float64(2), page["total"])
	rows := page["list"].([]interface{})
	require.Len(t, rows, 2)
	newest := rows[0].(map[string]interface{})
	assert.Equal(t, "failed", newest["result"])
	assert.Equal(t, "anonymous", newest["subject"])

	_, env = api.do(t, http.MethodGet, "/api/v1/audit-logs?page_size=10", nil)
	assert.Equal(t, float64(4), data(t, env)["total"])

	code, env = api.do(t, http.MethodGet, "/api/v1/audit-logs?start_time=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_PARAM", env.ErrorCode)
}

func TestDeviceLookups(t *testing.T) {
	api := newTestAPI(t)
	_, uuid := api.register(t, "AB:CD")

	code, env := api.do(t, http.MethodGet, "/api/v1/devices/uuid-by-mac?macAddress=AB:CD", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, uuid, data(t, env)["deviceUuid"])

	code, _ = api.do(t, http.MethodGet, "/api/v1/devices/uuid-by-mac?macAddress=FF:FF", nil)
	assert.Equal(t, http.StatusNotFound, code)

	_, env = api.do(t, http.MethodGet, "/api/v1/devices", nil)
	assert.Len(t, list(t, env), 1)
	_, env = api.do(t, http.MethodGet, "/api/v1/devices/unassigned", nil)
	assert.Len(t, list(t, env), 1)

	code, env = api.do(t, http.MethodPost, "/api/v1/devices/register", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "macAddress is required", env.Message)
}

func TestHealthAndMethodNotAllowed(t *testing.T) {
	api := newTestAPI(t)

	code, env := api.do(t, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", data(t, env)["status"])

	code, env = api.do(t, http.MethodDelete, "/api/v1/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", env.ErrorCode)
}

func TestNotifyConfig(t *testing.T) {
	api := newTestAPI(t)

	code, _ := api.do(t, http.MethodPut, "/api/v1/notify/config", map[string]string{"unrelated": "x"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := api.do(t, http.MethodPut, "/api/v1/notify/config", map[string]string{
		"notify_discord_token":      "abcdefgh1234",
		"notify_discord_channel_id": "42",
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, []interface{}{"discord"}, data(t, env)["active_channels"])

	_, env = api.do(t, http.MethodGet, "/api/v1/notify/config", nil)
	cfg := data(t, env)["config"].(map[string]interface{})
	assert.Equal(t, "****1234", cfg["notify_discord_token"])
	assert.Equal(t, "42", cfg["notify_discord_channel_id"])
}

func TestNotifyTest_NoChannels(t *testing.T) {
	api := newTestAPI(t)
	code, env := api.do(t, http.MethodPost, "/api/v1/notify/test", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "NO_CHANNELS", env.ErrorCode)
}

func jsonNumber(f float64) string {
	b, _ := json.Marshal(int64(f))
	return string(b)
}
