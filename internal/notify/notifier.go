// Package notify fans alert notifications out to the channels configured in
// the settings table.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"zyberhero/internal/constants"
	"zyberhero/internal/database"
	"zyberhero/internal/logger"

	nfy "github.com/nikoksr/notify"
	nfydc "github.com/nikoksr/notify/service/discord"
	nfyhttp "github.com/nikoksr/notify/service/http"
	nfyslack "github.com/nikoksr/notify/service/slack"
	nfytg "github.com/nikoksr/notify/service/telegram"
)

// SettingPrefix is the key prefix of notification settings rows.
const SettingPrefix = "notify_"

const sendTimeout = 15 * time.Second

// Manager wraps nikoksr/notify.Notify and manages channel lifecycle.
type Manager struct {
	mu           sync.RWMutex
	notifier     *nfy.Notify
	channelNames []string
}

func NewManager() *Manager {
	return &Manager{
		notifier: nfy.New(),
	}
}

// Reload rebuilds the channel set from notify_* settings.
func (m *Manager) Reload(ctx context.Context, settings *database.SettingRepo) error {
	cfg, err := settings.WithPrefix(ctx, SettingPrefix)
	if err != nil {
		return err
	}

	n := nfy.New()
	var names []string

	// ── Telegram ──
	if token, chat := cfg["telegram_token"], cfg["telegram_chat_id"]; token != "" && chat != "" {
		svc, err := nfytg.New(token)
		if err != nil {
			logger.Notify.Warn().Err(err).Msg("telegram init failed")
		} else if id, err := strconv.ParseInt(chat, 10, 64); err != nil {
			logger.Notify.Warn().Str("chat_id", chat).Msg("invalid telegram chat id")
		} else {
			svc.AddReceivers(id)
			n.UseServices(svc)
			names = append(names, "telegram")
		}
	}

	// ── Discord ──
	if token, channel := cfg["discord_token"], cfg["discord_channel_id"]; token != "" && channel != "" {
		svc := nfydc.New()
		if err := svc.AuthenticateWithBotToken(token); err != nil {
			logger.Notify.Warn().Err(err).Msg("discord init failed")
		} else {
			svc.AddReceivers(channel)
			n.UseServices(svc)
			names = append(names, "discord")
		}
	}

	// ── Slack ──
	if token, channel := cfg["slack_token"], cfg["slack_channel_id"]; token != "" && channel != "" {
		svc := nfyslack.New(token)
		svc.AddReceivers(channel)
		n.UseServices(svc)
		names = append(names, "slack")
	}

	// ── Webhook ──
	if url := cfg["webhook_url"]; url != "" {
		n.UseServices(webhookService(url, cfg["webhook_method"], cfg["webhook_headers"], cfg["webhook_template"]))
		names = append(names, "webhook")
	}

	m.mu.Lock()
	m.notifier = n
	m.channelNames = names
	m.mu.Unlock()

	logger.Notify.Info().Int("channels", len(names)).Strs("names", names).Msg("notification channels reloaded")
	return nil
}

func webhookService(url, method, headers, tmpl string) *nfyhttp.Service {
	if method == "" {
		method = http.MethodPost
	}

	hdrs := make(http.Header)
	for _, h := range strings.Split(headers, ",") {
		parts := strings.SplitN(strings.TrimSpace(h), ":", 2)
		if len(parts) == 2 {
			hdrs.Set(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
		}
	}

	contentType := "text/plain; charset=utf-8"
	trimmed := strings.TrimSpace(tmpl)
	if (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")) {
		contentType = "application/json; charset=utf-8"
	}

	svc := nfyhttp.New()
	svc.AddReceivers(&nfyhttp.Webhook{
		URL:         url,
		Header:      hdrs,
		ContentType: contentType,
		Method:      method,
		BuildPayload: func(subject, message string) (payload any) {
			text := subject + "\n" + message
			if tmpl != "" {
				// {message} is substituted inside a JSON string when the template is JSON
				if contentType != "text/plain; charset=utf-8" {
					text = escapeJSON(text)
				}
				text = strings.ReplaceAll(tmpl, "{message}", text)
			}
			return text
		},
	})
	return svc
}

// Send dispatches a message to all configured channels.
func (m *Manager) Send(ctx context.Context, subject, text string) {
	m.mu.RLock()
	n, channels := m.notifier, len(m.channelNames)
	m.mu.RUnlock()

	if n == nil || channels == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := n.Send(ctx, subject, text); err != nil {
		logger.Notify.Warn().Err(err).Msg("notification send failed")
	}
}

// SendAlert formats and sends an alert notification.
func (m *Manager) SendAlert(ctx context.Context, severity, message, detail string) {
	emoji := "⚠️"
	switch severity {
	case constants.SeverityCritical:
		emoji = "\U0001f6a8"
	case constants.SeverityHigh:
		emoji = "\U0001f534"
	case constants.SeverityMedium:
		emoji = "\U0001f7e1"
	case constants.SeverityLow:
		emoji = "\U0001f7e2"
	}
	text := fmt.Sprintf("%s [%s] %s", emoji, severity, message)
	if detail != "" && len(detail) < 200 {
		text += "\n" + detail
	}
	m.Send(ctx, "Zyberhero alert", text)
}

// HasChannels returns true if at least one channel is configured.
func (m *Manager) HasChannels() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channelNames) > 0
}

// ChannelNames returns the names of all configured channels.
func (m *Manager) ChannelNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]string, len(m.channelNames))
	copy(result, m.channelNames)
	return result
}

func escapeJSON(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return r.Replace(s)
}
