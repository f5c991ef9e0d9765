package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"zyberhero/internal/database"
	"zyberhero/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReload_NoSettings(t *testing.T) {
	settings := database.NewSettingRepo(testutil.SetupTestDB(t))
	m := NewManager()

	require.NoError(t, m.Reload(context.Background(), settings))
	assert.False(t, m.HasChannels())
	assert.Empty(t, m.ChannelNames())

	// no channels: send is a no-op
	m.SendAlert(context.Background(), "high", "nothing configured", "")
}

func TestReload_IncompleteChannelsSkipped(t *testing.T) {
	settings := database.NewSettingRepo(testutil.SetupTestDB(t))
	ctx := context.Background()
	require.NoError(t, settings.SetBatch(ctx, map[string]string{
		"notify_telegram_token":   "123:abc",
		"notify_slack_channel_id": "C1",
	}))

	m := NewManager()
	require.NoError(t, m.Reload(ctx, settings))
	assert.False(t, m.HasChannels())
}

func TestSendAlert_Webhook(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
		method string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		method = r.Method
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	settings := database.NewSettingRepo(testutil.SetupTestDB(t))
	ctx := context.Background()
	require.NoError(t, settings.SetBatch(ctx, map[string]string{
		"notify_webhook_url":     srv.URL,
		"notify_webhook_headers": "X-Token: secret",
	}))

	m := NewManager()
	require.NoError(t, m.Reload(ctx, settings))
	assert.Equal(t, []string{"webhook"}, m.ChannelNames())

	m.SendAlert(ctx, "critical", "inappropriate_content on chrome", "")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 1)
	assert.Equal(t, http.MethodPost, method)
	assert.Contains(t, bodies[0], "inappropriate_content on chrome")
	assert.Contains(t, bodies[0], "[critical]")
}

func TestEscapeJSON(t *testing.T) {
	assert.Equal(t, `a\"b\nc\\d`, escapeJSON("a\"b\nc\\d"))
}
