package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// APIError is a non-success envelope returned by the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	ErrorCode string          `json:"error_code"`
}

// Client speaks the agent side of the zyberhero API.
type Client struct {
	http *resty.Client
}

func NewClient(server, token string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(server, "/")+"/api/v1").
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetHeader("Content-Type", "application/json")
	if token != "" {
		c.SetAuthToken(token)
	}
	return &Client{http: c}
}

func (c *Client) do(ctx context.Context, method, path string, query map[string]string, body, out interface{}) error {
	var env envelope
	req := c.http.R().SetContext(ctx).SetResult(&env).SetError(&env)
	if query != nil {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() || !env.Success {
		return &APIError{Status: resp.StatusCode(), Code: env.ErrorCode, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

type Registration struct {
	DeviceID   uint   `json:"deviceId"`
	DeviceUUID string `json:"deviceUuid"`
	ChildID    *uint  `json:"childId"`
}

func (c *Client) Register(ctx context.Context, mac, machine, user, osName string) (*Registration, error) {
	var reg Registration
	err := c.do(ctx, http.MethodPost, "/devices/register", nil, map[string]interface{}{
		"macAddress":  mac,
		"machineName": machine,
		"userName":    user,
		"os":          osName,
	}, &reg)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

type Activity struct {
	AppName         string `json:"appName"`
	WindowTitle     string `json:"windowTitle"`
	DurationSeconds int    `json:"durationSeconds"`
	ScreenTime      bool   `json:"screenTime"`
}

func (c *Client) Activity(ctx context.Context, deviceUUID string, a Activity) error {
	return c.do(ctx, http.MethodPost, "/activity", nil, map[string]interface{}{
		"deviceUuid":      deviceUUID,
		"appName":         a.AppName,
		"windowTitle":     a.WindowTitle,
		"durationSeconds": a.DurationSeconds,
		"screenTime":      a.ScreenTime,
	}, nil)
}

type LiveApp struct {
	AppName     string `json:"appName"`
	WindowTitle string `json:"windowTitle"`
}

func (c *Client) LiveStatus(ctx context.Context, deviceUUID string, apps []LiveApp) error {
	if apps == nil {
		apps = []LiveApp{}
	}
	return c.do(ctx, http.MethodPost, "/live-status", nil, map[string]interface{}{
		"deviceUuid": deviceUUID,
		"apps":       apps,
	}, nil)
}

type Command struct {
	ID       uint    `json:"id"`
	AppName  string  `json:"appName"`
	Action   string  `json:"action"`
	Schedule *string `json:"schedule"`
}

func (c *Client) Pending(ctx context.Context, deviceUUID string) ([]Command, error) {
	var cmds []Command
	err := c.do(ctx, http.MethodGet, "/commands/pending", map[string]string{"deviceUuid": deviceUUID}, nil, &cmds)
	return cmds, err
}

func (c *Client) Ack(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodPost, "/commands/ack", nil, map[string]string{"id": strconv.FormatUint(uint64(id), 10)}, nil)
}

func (c *Client) Alert(ctx context.Context, deviceUUID, alertType, appName, windowTitle string) error {
	return c.do(ctx, http.MethodPost, "/alerts", nil, map[string]interface{}{
		"deviceUuid":  deviceUUID,
		"type":        alertType,
		"appName":     appName,
		"windowTitle": windowTitle,
	}, nil)
}

func (c *Client) Location(ctx context.Context, mac string, lat, lon, accuracy float64) error {
	return c.do(ctx, http.MethodPost, "/location", nil, map[string]interface{}{
		"macAddress": mac,
		"latitude":   lat,
		"longitude":  lon,
		"accuracy":   accuracy,
	}, nil)
}
