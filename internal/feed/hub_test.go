package feed

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/goleak"
)

func TestHubFiltersBySession(t *testing.T) {
	h := NewHub(nil, nil)
	_, all := h.Subscribe("")
	_, one := h.Subscribe("sess-1")

	h.Publish(EventTurn, "sess-2", nil)
	h.Publish(EventTurn, "sess-1", map[string]any{"stage": 1})

	if got := len(all); got != 2 {
		t.Errorf("unfiltered subscriber got %d events, want 2", got)
	}
	if got := len(one); got != 1 {
		t.Fatalf("filtered subscriber got %d events, want 1", got)
	}
	ev := <-one
	if ev.SessionID != "sess-1" || ev.Type != EventTurn || ev.ID == "" {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	h := NewHub(nil, nil)
	_, events := h.Subscribe("")

	for i := 0; i < subscriberBuffer+1; i++ {
		h.Publish(EventTurn, "s", nil)
	}
	if h.Len() != 0 {
		t.Fatalf("Len = %d, want slow subscriber dropped", h.Len())
	}

	n := 0
	for range events {
		n++
	}
	if n != subscriberBuffer {
		t.Errorf("drained %d events, want %d", n, subscriberBuffer)
	}
}

func TestHubCloseIsIdempotent(t *testing.T) {
	h := NewHub(nil, nil)
	id, events := h.Subscribe("")
	h.Close()
	h.Close()
	h.Unsubscribe(id)
	h.Publish(EventTurn, "s", nil)

	if _, ok := <-events; ok {
		t.Error("expected closed channel")
	}
	if _, late := h.Subscribe(""); late == nil {
		t.Error("expected a closed channel for late subscriber")
	}
}

func TestHubServeHTTPStreamsEvents(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := NewHub(nil, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?session_id=abc"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	deadline := time.Now().Add(2 * time.Second)
	for h.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	h.Publish(EventReportSent, "abc", map[string]any{"total_messages": 8})

	var got Event
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != EventReportSent || got.SessionID != "abc" {
		t.Errorf("unexpected event %+v", got)
	}

	_ = conn.Close(websocket.StatusNormalClosure, "")
	deadline = time.Now().Add(2 * time.Second)
	for h.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if h.Len() != 0 {
		t.Errorf("subscriber not removed after client close")
	}
}
