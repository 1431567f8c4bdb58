package goIdentity

import (
	"context"
	"sync"
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

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type captureSink struct {
	events chan Event
}

func newCaptureSink(buffer int) *captureSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &captureSink{
		events: make(chan Event, buffer),
	}
}

func (s *captureSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

type panicSink struct{}

func (panicSink) Emit(context.Context, Event) {
	panic("sink blew up")
}

func TestBusDeliversToTypedSubscribers(t *testing.T) {
	bus := NewBus(EventConfig{BufferSize: 8, DropIfFull: false})
	defer bus.Close()

	sink := newCaptureSink(8)
	bus.Subscribe(sink, EventTokenCreated)

	bus.Publish(context.Background(), Event{Type: EventLoginFailed, UserID: "u1"})
	bus.Publish(context.Background(), Event{Type: EventTokenCreated, TokenID: "token_1"})

	select {
	case ev := <-sink.events:
		if ev.Type != EventTokenCreated {
			t.Fatalf("expected token_created, got %s", ev.Type)
		}
		if ev.TokenID != "token_1" {
			t.Fatalf("expected token id token_1, got %q", ev.TokenID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected typed subscriber to receive its event")
	}

	select {
	case ev := <-sink.events:
		t.Fatalf("unexpected extra delivery: %s", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusDeliversToGlobalSubscribers(t *testing.T) {
	bus := NewBus(EventConfig{BufferSize: 8, DropIfFull: false})
	defer bus.Close()

	sink := &countingSink{}
	bus.Subscribe(sink)

	bus.Publish(context.Background(), Event{Type: EventLogin})
	bus.Publish(context.Background(), Event{Type: EventTokenRevoked})
	bus.Publish(context.Background(), Event{Type: EventReaperSweep})

	deadline := time.After(2 * time.Second)
	for sink.Count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected 3 deliveries, got %d", sink.Count())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestBusBufferFullDropIfFullTrueDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	bus := NewBus(EventConfig{BufferSize: 1, DropIfFull: true})
	bus.Subscribe(sink)
	defer func() {
		close(sink.gate)
		bus.Close()
	}()

	bus.Publish(context.Background(), Event{Type: "e1"})
	bus.Publish(context.Background(), Event{Type: "e2"})

	start := time.Now()
	bus.Publish(context.Background(), Event{Type: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking publish when DropIfFull is true")
	}
	if bus.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestBusBufferFullDropIfFullFalseBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	bus := NewBus(EventConfig{BufferSize: 1, DropIfFull: false})
	bus.Subscribe(sink)
	defer func() {
		close(sink.gate)
		bus.Close()
	}()

	bus.Publish(context.Background(), Event{Type: "e1"})
	bus.Publish(context.Background(), Event{Type: "e2"})

	done := make(chan struct{})
	go func() {
		bus.Publish(context.Background(), Event{Type: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected publish to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked publish to proceed after space is available")
	}
}

func TestBusCloseDrainsPendingEvents(t *testing.T) {
	sink := &countingSink{}
	bus := NewBus(EventConfig{BufferSize: 16, DropIfFull: true})
	bus.Subscribe(sink)

	for i := 0; i < 10; i++ {
		bus.Publish(context.Background(), Event{Type: EventTokenUsed})
	}
	bus.Close()

	if got := sink.Count(); got != 10 {
		t.Fatalf("expected close to drain all 10 events, got %d", got)
	}
}

func TestBusCloseIdempotentAndPublishAfterCloseSafe(t *testing.T) {
	bus := NewBus(EventConfig{BufferSize: 4, DropIfFull: true})
	bus.Subscribe(&countingSink{})

	bus.Publish(context.Background(), Event{Type: "e1"})
	bus.Close()
	bus.Close()
	bus.Publish(context.Background(), Event{Type: "e2"})
}

func TestBusSinkPanicDoesNotKillDispatcher(t *testing.T) {
	counting := &countingSink{}
	bus := NewBus(EventConfig{BufferSize: 8, DropIfFull: false})
	bus.Subscribe(panicSink{})
	bus.Subscribe(counting)

	bus.Publish(context.Background(), Event{Type: EventLoginFailed})
	bus.Publish(context.Background(), Event{Type: EventLoginFailed})
	bus.Close()

	if got := counting.Count(); got != 2 {
		t.Fatalf("expected panicking sibling sink not to break delivery, got %d of 2", got)
	}
}

func TestJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	event := Event{
		Timestamp: time.Now().UTC(),
		Type:      EventLogin,
		UserID:    "u1",
		IP:        "127.0.0.1",
		Success:   true,
	}
	sink.Emit(context.Background(), event)

	if !buf.Contains("\"event_type\":\"login\"") {
		t.Fatal("expected JSON log line to contain event type")
	}
	if !buf.Contains("\"user_id\":\"u1\"") {
		t.Fatal("expected JSON log line to contain user id")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) Contains(v string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return stringContains(string(b.buf), v)
}

func stringContains(s, sub string) bool {
	if len(sub) == 0 {
		return true
	}
	if len(sub) > len(s) {
		return false
	}
	for i := 0; i <= len(s)-len(sub); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
