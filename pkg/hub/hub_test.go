package hub

import (
	"testing"
	"time"
)

// testClient registers a bare client without websocket pumps. The send
// buffer size controls how fast the hub sees it.
func testClient(h *Hub, buffer int) *Client {
	c := &Client{hub: h, send: make(chan []byte, buffer)}
	h.register <- c
	return c
}

func waitForCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count is %d, want %d", h.ClientCount(), want)
}

func TestHub_BroadcastFanOut(t *testing.T) {
	h := New("test")
	go h.Run()

	a := testClient(h, 8)
	b := testClient(h, 8)
	waitForCount(t, h, 2)

	h.Broadcast([]byte(`{"n":1}`))

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.send:
			if string(msg) != `{"n":1}` {
				t.Errorf("got %q, want %q", msg, `{"n":1}`)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("client never received broadcast")
		}
	}
}

// A slow client is dropped on the broadcast path while another goroutine
// polls ClientCount; both touch the client map, so this test fails under
// the race detector if the drop happens without the write lock.
func TestHub_DropsSlowClientWhileCounting(t *testing.T) {
	h := New("test")
	go h.Run()

	slow := testClient(h, 0)
	fast := testClient(h, 64)
	waitForCount(t, h, 2)

	counting := make(chan struct{})
	go func() {
		defer close(counting)
		for i := 0; i < 500; i++ {
			h.ClientCount()
		}
	}()

	for i := 0; i < 10; i++ {
		h.Broadcast([]byte(`{}`))
	}
	<-counting

	waitForCount(t, h, 1)

	// The slow client's channel is closed by the drop.
	select {
	case _, ok := <-slow.send:
		if ok {
			t.Error("slow client channel should be closed, got a message")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("slow client channel never closed")
	}

	select {
	case <-fast.send:
	case <-time.After(2 * time.Second):
		t.Fatal("fast client starved after slow client drop")
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	h := New("test")
	go h.Run()

	c := testClient(h, 8)
	waitForCount(t, h, 1)

	h.unregister <- c
	waitForCount(t, h, 0)

	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed after unregister")
	}
}
