package shock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/strayware/go-collar/internal/httpc"
)

// opVibrate and opShock are the device API operation codes.
const (
	opShock   = 0
	opVibrate = 1
)

// apiName is reported to the device API as the requesting application.
const apiName = "go-collar"

// Client talks to a PiShock-style `apioperate` HTTP endpoint.
type Client struct {
	apiURL   string
	username string
	apiKey   string
	http     *http.Client
}

// NewClient creates a device API client. The underlying HTTP client uses a
// short timeout so a hung device API cannot block the trigger coordinator.
func NewClient(apiURL, username, apiKey string) *Client {
	return &Client{
		apiURL:   apiURL,
		username: username,
		apiKey:   apiKey,
		http:     httpc.NewClient(5 * time.Second),
	}
}

type operateRequest struct {
	Username  string `json:"Username"`
	APIKey    string `json:"Apikey"`
	Code      string `json:"Code"`
	Name      string `json:"Name"`
	Op        int    `json:"Op"`
	Intensity int    `json:"Intensity"`
	Duration  int    `json:"Duration"`
}

// Send issues one shock command. The device API answers 200 with a plain-text
// body; anything other than an "Operation Succeeded" style response is a
// failure.
func (c *Client) Send(ctx context.Context, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	op := opShock
	if cmd.Vibrate {
		op = opVibrate
	}
	payload := operateRequest{
		Username:  c.username,
		APIKey:    c.apiKey,
		Code:      cmd.Target,
		Name:      apiName,
		Op:        op,
		Intensity: cmd.Intensity,
		Duration:  durationSeconds(cmd.Duration),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("device request failed: %w", err)
	}
	defer resp.Body.Close()

	text, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d: %s", ErrAPIFailure, resp.StatusCode, strings.TrimSpace(string(text)))
	}
	if !strings.Contains(strings.ToLower(string(text)), "succeeded") {
		return fmt.Errorf("%w: %s", ErrAPIFailure, strings.TrimSpace(string(text)))
	}
	return nil
}

// durationSeconds converts to whole seconds the way the device API expects,
// rounding sub-second pulses up to 1.
func durationSeconds(d time.Duration) int {
	secs := int(d / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
