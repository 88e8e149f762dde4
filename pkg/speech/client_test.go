package speech

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/strayware/go-collar/pkg/event"
)

// transcriptServer upgrades each connection and sends every payload
// before closing it.
func transcriptServer(t *testing.T, payloads []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for _, p := range payloads {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(p)); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func collectSpeech(t *testing.T, sub *event.Subscription, want int) []event.SpeechEvent {
	t.Helper()
	var out []event.SpeechEvent
	deadline := time.After(2 * time.Second)
	for len(out) < want {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				t.Fatalf("bus closed after %d events, want %d", len(out), want)
			}
			if se, isSpeech := ev.(event.SpeechEvent); isSpeech {
				out = append(out, se)
			}
		case <-deadline:
			t.Fatalf("timed out after %d events, want %d", len(out), want)
		}
	}
	return out
}

func TestClient_PublishesUtterances(t *testing.T) {
	srv := transcriptServer(t, []string{
		`{"role":"trainer","text":"sit","start":"2026-01-02T15:04:05Z","end":"2026-01-02T15:04:06Z"}`,
		`{"role":"pet","text":"okay","start":"2026-01-02T15:04:07Z","end":"2026-01-02T15:04:08Z"}`,
	})
	defer srv.Close()

	bus := event.NewBus()
	defer bus.Close()
	sub := bus.Subscribe("test")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewClient(wsURL(srv), bus).Run(ctx)

	got := collectSpeech(t, sub, 2)
	if got[0].Role != event.RoleTrainer || got[0].Text != "sit" {
		t.Errorf("unexpected first event: %+v", got[0])
	}
	wantEnd := time.Date(2026, 1, 2, 15, 4, 6, 0, time.UTC)
	if !got[0].End.Equal(wantEnd) {
		t.Errorf("got end %v, want %v", got[0].End, wantEnd)
	}
	if !got[0].When().Equal(wantEnd) {
		t.Errorf("When() should be the utterance end time")
	}
	if got[1].Role != event.RolePet || got[1].Text != "okay" {
		t.Errorf("unexpected second event: %+v", got[1])
	}
}

func TestClient_DropsMalformedUtterances(t *testing.T) {
	srv := transcriptServer(t, []string{
		`{"role":"narrator","text":"ignored"}`,
		`{"role":"pet","text":""}`,
		`{"role":"pet","text":"kept"}`,
	})
	defer srv.Close()

	bus := event.NewBus()
	defer bus.Close()
	sub := bus.Subscribe("test")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewClient(wsURL(srv), bus).Run(ctx)

	got := collectSpeech(t, sub, 1)
	if got[0].Text != "kept" {
		t.Errorf("got %q, want %q", got[0].Text, "kept")
	}
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	srv := transcriptServer(t, []string{
		`{"role":"pet","text":"first"}`,
	})
	defer srv.Close()

	bus := event.NewBus()
	defer bus.Close()
	sub := bus.Subscribe("test")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewClient(wsURL(srv), bus).Run(ctx)

	// The server drops the connection after each message, so a second
	// utterance proves the client redialed.
	got := collectSpeech(t, sub, 2)
	if got[0].Text != "first" || got[1].Text != "first" {
		t.Errorf("unexpected events: %+v", got)
	}
}

func TestClient_StopsOnCancel(t *testing.T) {
	srv := transcriptServer(t, nil)
	defer srv.Close()

	bus := event.NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- NewClient(wsURL(srv), bus).Run(ctx) }()
	cancel()

	select {
	case err := <-errc:
		if err != context.Canceled {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
