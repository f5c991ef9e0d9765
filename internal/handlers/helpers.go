package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"zyberhero/internal/apperr"
	"zyberhero/internal/identity"
	"zyberhero/internal/web"
)

// Publisher pushes events to dashboard subscribers.
type Publisher interface {
	Broadcast(channel, msgType string, data interface{})
}

// deviceRef is the identifier block shared by agent request bodies.
type deviceRef struct {
	DeviceID    web.FlexID `json:"deviceId"`
	DeviceUUID  string     `json:"deviceUuid"`
	MACAddress  string     `json:"macAddress"`
	MachineName string     `json:"machineName"`
}

func (d deviceRef) identifier() identity.Identifier {
	return identity.Identifier{
		DeviceID:    d.DeviceID.Int64(),
		DeviceUUID:  strings.TrimSpace(d.DeviceUUID),
		MACAddress:  strings.TrimSpace(d.MACAddress),
		MachineName: strings.TrimSpace(d.MachineName),
	}
}

// decode reads a JSON body into v and writes the failure response itself.
// An empty body decodes to the zero value.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		web.Fail(w, r, "BODY_TOO_LARGE", "request body too large", http.StatusRequestEntityTooLarge)
		return false
	}
	web.FailErr(w, r, web.ErrInvalidBody, err.Error())
	return false
}

// queryIdentifier reads deviceId, deviceUuid, macAddress and machineName
// from the query string. A malformed deviceId is an InvalidID error.
func queryIdentifier(r *http.Request) (identity.Identifier, error) {
	q := r.URL.Query()
	id := identity.Identifier{
		DeviceUUID:  strings.TrimSpace(q.Get("deviceUuid")),
		MACAddress:  strings.TrimSpace(q.Get("macAddress")),
		MachineName: strings.TrimSpace(q.Get("machineName")),
	}
	if v := strings.TrimSpace(q.Get("deviceId")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return id, apperr.InvalidID("deviceId must be a positive integer")
		}
		id.DeviceID = n
	}
	return id, nil
}

// queryInt reads an optional integer parameter; malformed values are a
// validation error naming the parameter.
func queryInt(r *http.Request, key string) (int, error) {
	n, ok := web.QueryInt64(r, key)
	if !ok {
		return 0, apperr.Validationf("%s must be an integer", key)
	}
	return int(n), nil
}
