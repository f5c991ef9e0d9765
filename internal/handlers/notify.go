package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"zyberhero/internal/constants"
	"zyberhero/internal/database"
	"zyberhero/internal/logger"
	"zyberhero/internal/notify"
	"zyberhero/internal/web"
)

// NotifyHandler manages notification channel configuration.
type NotifyHandler struct {
	settings *database.SettingRepo
	manager  *notify.Manager
	audit    *auditor
}

func NewNotifyHandler(settings *database.SettingRepo, manager *notify.Manager) *NotifyHandler {
	return &NotifyHandler{settings: settings, manager: manager}
}

func (h *NotifyHandler) SetAuditRepo(repo *database.AuditLogRepo) {
	h.audit = newAuditor(repo)
}

// notifySettingKeys are the settings rows the manager reads.
var notifySettingKeys = []string{
	"notify_telegram_token",
	"notify_telegram_chat_id",
	"notify_discord_token",
	"notify_discord_channel_id",
	"notify_slack_token",
	"notify_slack_channel_id",
	"notify_webhook_url",
	"notify_webhook_method",
	"notify_webhook_headers",
	"notify_webhook_template",
}

// GetConfig returns the notification settings with tokens masked.
func (h *NotifyHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	stored, err := h.settings.WithPrefix(r.Context(), notify.SettingPrefix)
	if err != nil {
		logger.Notify.Error().Err(err).Msg("failed to read notification settings")
		web.FailErr(w, r, web.ErrInternalError)
		return
	}
	result := make(map[string]string, len(notifySettingKeys))
	for _, key := range notifySettingKeys {
		v := stored[strings.TrimPrefix(key, notify.SettingPrefix)]
		if strings.HasSuffix(key, "_token") {
			v = mask(v)
		}
		result[key] = v
	}
	web.OK(w, r, map[string]interface{}{
		"config":          result,
		"active_channels": h.manager.ChannelNames(),
	})
}

// UpdateConfig saves notification settings and reloads the manager.
func (h *NotifyHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var items map[string]string
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		web.FailErr(w, r, web.ErrInvalidBody)
		return
	}

	allowed := make(map[string]bool, len(notifySettingKeys))
	for _, k := range notifySettingKeys {
		allowed[k] = true
	}
	filtered := make(map[string]string)
	for k, v := range items {
		// a masked token echoed back by the dashboard is not a change
		if allowed[k] && !(strings.HasSuffix(k, "_token") && strings.HasPrefix(v, maskPrefix)) {
			filtered[k] = strings.TrimSpace(v)
		}
	}
	if len(filtered) == 0 {
		web.FailErr(w, r, web.ErrInvalidParam, "no known notification keys")
		return
	}

	keys := make([]string, 0, len(filtered))
	for k := range filtered {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	detail := strings.Join(keys, ",")

	if err := h.settings.SetBatch(r.Context(), filtered); err != nil {
		h.audit.record(r, constants.AuditNotifyUpdate, "notify", detail, constants.AuditResultFailed)
		logger.Notify.Error().Err(err).Msg("failed to save notification settings")
		web.FailErr(w, r, web.ErrInternalError)
		return
	}
	if err := h.manager.Reload(r.Context(), h.settings); err != nil {
		logger.Notify.Error().Err(err).Msg("failed to reload notification channels")
		web.FailErr(w, r, web.ErrInternalError)
		return
	}

	h.audit.record(r, constants.AuditNotifyUpdate, "notify", detail, constants.AuditResultSuccess)
	logger.Notify.Info().Str("subject", web.GetSubject(r)).Int("keys", len(filtered)).Msg("notification config updated")
	web.OK(w, r, map[string]interface{}{
		"active_channels": h.manager.ChannelNames(),
	})
}

// TestSend sends a test notification to all configured channels.
func (h *NotifyHandler) TestSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Message == "" {
		req.Message = "Zyberhero notification test"
	}
	if !h.manager.HasChannels() {
		web.Fail(w, r, "NO_CHANNELS", "no notification channels configured", http.StatusBadRequest)
		return
	}
	h.manager.Send(r.Context(), "Zyberhero", req.Message)
	web.OK(w, r, map[string]interface{}{"channels": h.manager.ChannelNames()})
}

const maskPrefix = "****"

func mask(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return maskPrefix
	}
	return maskPrefix + v[len(v)-4:]
}
