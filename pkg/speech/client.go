// Package speech consumes finalized transcription utterances from a
// local speech-to-text service over websocket and publishes them as
// speech events.
package speech

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/strayware/go-collar/internal/log"
	"github.com/strayware/go-collar/pkg/event"
)

const (
	handshakeTimeout = 10 * time.Second
	readTimeout      = 120 * time.Second
	maxBackoff       = 30 * time.Second
)

// utterance is the wire format the transcription service emits, one
// JSON object per finalized utterance. Timestamps are RFC 3339.
type utterance struct {
	Role  string    `json:"role"`
	Text  string    `json:"text"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Client maintains a websocket connection to the transcription service
// and republishes its utterances on the bus. Lost connections are
// redialed with exponential backoff until the context is cancelled.
type Client struct {
	url string
	bus *event.Bus
}

// NewClient builds a client publishing to bus.
func NewClient(url string, bus *event.Bus) *Client {
	return &Client{url: url, bus: bus}
}

// Run dials and reads until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		delivered, err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if delivered {
			backoff = time.Second
		}
		log.Warn("speech: connection lost, reconnecting", "err", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

// session runs one connection to completion. It reports whether any
// utterance was delivered, so the caller can reset its backoff.
func (c *Client) session(ctx context.Context) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()
	log.Info("speech: connected", "url", c.url)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	delivered := false
	for {
		var u utterance
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		if err := conn.ReadJSON(&u); err != nil {
			return delivered, err
		}
		if c.publish(u) {
			delivered = true
		}
	}
}

func (c *Client) publish(u utterance) bool {
	role := event.Role(u.Role)
	if role != event.RoleTrainer && role != event.RolePet {
		log.Debug("speech: unknown role, dropping utterance", "role", u.Role)
		return false
	}
	if u.Text == "" {
		return false
	}
	end := u.End
	if end.IsZero() {
		end = time.Now()
	}
	c.bus.Publish(event.SpeechEvent{
		Role:  role,
		Text:  u.Text,
		Start: u.Start,
		End:   end,
	})
	return true
}
