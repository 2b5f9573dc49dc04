// Package client provides a REST client for the leadloop server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/leadloop/leadloop-go/internal/models"
)

// Client is a REST client for the leadloop server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a new REST client.
// If baseURL is empty, uses LEADLOOP_SERVER_URL env var or defaults to localhost:8486.
// The bearer token comes from LEADLOOP_API_TOKEN when token is empty.
func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("LEADLOOP_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8486"
	}
	if token == "" {
		token = os.Getenv("LEADLOOP_API_TOKEN")
	}

	timeout := 2 * time.Minute
	if t := os.Getenv("LEADLOOP_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// apiError is the server's error envelope.
type apiError struct {
	Error string `json:"error"`
}

// do executes one request, decoding the JSON response into result when
// result is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e apiError
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("server error: %s", e.Error)
		}
		return fmt.Errorf("server error: %s - %s", resp.Status, string(data))
	}

	if result == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// CreateSchedule creates a schedule.
func (c *Client) CreateSchedule(ctx context.Context, in models.ScheduleInput) (*models.Schedule, error) {
	var s models.Schedule
	if err := c.do(ctx, http.MethodPost, "/schedules", in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSchedules returns all schedules for the authenticated user.
func (c *Client) ListSchedules(ctx context.Context) ([]models.Schedule, error) {
	var out struct {
		Schedules []models.Schedule `json:"schedules"`
	}
	if err := c.do(ctx, http.MethodGet, "/schedules", nil, &out); err != nil {
		return nil, err
	}
	return out.Schedules, nil
}

// GetSchedule fetches one schedule.
func (c *Client) GetSchedule(ctx context.Context, id string) (*models.Schedule, error) {
	var s models.Schedule
	if err := c.do(ctx, http.MethodGet, "/schedules/"+id, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSchedule applies a partial update.
func (c *Client) UpdateSchedule(ctx context.Context, id string, upd models.ScheduleUpdate) (*models.Schedule, error) {
	var s models.Schedule
	if err := c.do(ctx, http.MethodPatch, "/schedules/"+id, upd, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSchedule removes a schedule.
func (c *Client) DeleteSchedule(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/schedules/"+id, nil, nil)
}

// ForceRun makes a schedule due on the next tick.
func (c *Client) ForceRun(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/schedules/"+id+"/run", nil, nil)
}

// ListRuns returns recent run logs for a schedule.
func (c *Client) ListRuns(ctx context.Context, scheduleID string, limit int) ([]models.ScheduleRunLog, error) {
	path := "/schedules/" + scheduleID + "/runs"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	var out struct {
		Runs []models.ScheduleRunLog `json:"runs"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

// UpsertNotificationSettings saves delivery preferences.
func (c *Client) UpsertNotificationSettings(ctx context.Context, s models.NotificationSettings) error {
	return c.do(ctx, http.MethodPut, "/settings/notifications", s, nil)
}
