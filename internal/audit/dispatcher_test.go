package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

func TestDispatcherDeliversEvents(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)
	defer d.Close()

	d.Emit(context.Background(), Event{
		Timestamp: time.Now(),
		EventType: EventLoginSuccess,
		UserID:    "u1",
		Success:   true,
	})

	select {
	case ev := <-sink.Events():
		if ev.EventType != EventLoginSuccess || ev.UserID != "u1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event delivery")
	}
}

func TestDispatcherCloseFlushesBuffer(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 32}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: EventLogout})
	}
	d.Close()

	if got := sink.count.Load(); got != 10 {
		t.Fatalf("expected 10 events after close, got %d", got)
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected disabled dispatcher to be nil")
	}

	// Emitting through a nil dispatcher must be a safe no-op.
	d.Emit(context.Background(), Event{EventType: EventRegister})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher should report zero drops")
	}
}

func TestDropIfFullCountsDrops(t *testing.T) {
	gate := make(chan struct{})
	blocked := sinkFunc(func(context.Context, Event) { <-gate })

	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, blocked)

	// First event occupies the worker, second fills the buffer, the rest drop.
	for i := 0; i < 8; i++ {
		d.Emit(context.Background(), Event{EventType: EventLoginFailure})
	}

	deadline := time.Now().Add(2 * time.Second)
	for d.Dropped() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops when buffer is full")
	}

	close(gate)
	d.Close()
}

type sinkFunc func(context.Context, Event)

func (f sinkFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

func TestJSONWriterSinkOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{EventType: EventRefreshReuse, UserID: "u9", Error: "refresh token reuse detected"})
	sink.Emit(context.Background(), Event{EventType: EventLogout, UserID: "u9", Success: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var ev Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if ev.EventType != EventRefreshReuse {
		t.Fatalf("unexpected event type %q", ev.EventType)
	}
}
