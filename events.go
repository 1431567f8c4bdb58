package goIdentity

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// EventType defines a public type used by goIdentity APIs.
//
// EventType instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EventType string

const (
	EventUserCreated     EventType = "user_created"
	EventUserDeactivated EventType = "user_deactivated"
	EventPasswordChanged EventType = "password_changed"
	EventMFAEnabled      EventType = "mfa_enabled"
	EventMFADisabled     EventType = "mfa_disabled"

	EventLogin       EventType = "login"
	EventLogout      EventType = "logout"
	EventLoginFailed EventType = "login_failed"
	EventUserLocked  EventType = "user_locked"

	EventTokenCreated   EventType = "token_created"
	EventTokenUsed      EventType = "token_used"
	EventTokenExpired   EventType = "token_expired"
	EventTokenRevoked   EventType = "token_revoked"
	EventTokenSuspended EventType = "token_suspended"
	EventTokenRefreshed EventType = "token_refreshed"

	EventSessionCreated EventType = "session_created"
	EventSessionRevoked EventType = "session_revoked"
	EventSessionExpired EventType = "session_expired"

	EventSuspiciousUsage EventType = "suspicious_usage"
	EventReaperSweep     EventType = "reaper_sweep"
)

type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	TokenID   string            `json:"token_id,omitempty"`
	ClientID  string            `json:"client_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type EventSink interface {
	Emit(ctx context.Context, event Event)
}

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// Bus defines a public type used by goIdentity APIs.
//
// Bus instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// A single dispatcher goroutine fans events out to subscribers, so a sink
// never observes two concurrent Emit calls from the same bus. Slow sinks
// delay delivery, not the publishing hot path.
type Bus struct {
	cfg       EventConfig
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once

	mu     sync.RWMutex
	typed  map[EventType][]EventSink
	global []EventSink
}

// NewBus describes the newbus operation and its observable behavior.
//
// NewBus may return an error when input validation, dependency calls, or security checks fail.
// NewBus does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewBus(cfg EventConfig) *Bus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}

	b := &Bus{
		cfg:   cfg,
		ch:    make(chan Event, cfg.BufferSize),
		done:  make(chan struct{}),
		typed: make(map[EventType][]EventSink),
	}

	b.wg.Add(1)
	go b.run()

	return b
}

// Subscribe describes the subscribe operation and its observable behavior.
//
// Subscribe may return an error when input validation, dependency calls, or security checks fail.
// Subscribe does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Bus) Subscribe(sink EventSink, types ...EventType) {
	if b == nil || sink == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(types) == 0 {
		b.global = append(b.global, sink)
		return
	}
	for _, t := range types {
		b.typed[t] = append(b.typed[t], sink)
	}
}

// Publish describes the publish operation and its observable behavior.
//
// Publish may return an error when input validation, dependency calls, or security checks fail.
// Publish does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Bus) Publish(ctx context.Context, event Event) {
	if b == nil || b.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if b.cfg.DropIfFull {
		select {
		case b.ch <- event:
		case <-b.done:
		default:
			b.dropped.Add(1)
		}
		return
	}

	select {
	case b.ch <- event:
	case <-ctx.Done():
	case <-b.done:
	}
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		close(b.done)
		b.wg.Wait()
	})
}

// Dropped describes the dropped operation and its observable behavior.
//
// Dropped may return an error when input validation, dependency calls, or security checks fail.
// Dropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Bus) Dropped() uint64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}

func (b *Bus) run() {
	defer b.wg.Done()

	for {
		select {
		case event := <-b.ch:
			b.deliver(event)
		case <-b.done:
			for {
				select {
				case event := <-b.ch:
					b.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) deliver(event Event) {
	b.mu.RLock()
	sinks := make([]EventSink, 0, len(b.global)+len(b.typed[event.Type]))
	sinks = append(sinks, b.global...)
	sinks = append(sinks, b.typed[event.Type]...)
	b.mu.RUnlock()

	for _, sink := range sinks {
		b.emit(sink, event)
	}
}

func (b *Bus) emit(sink EventSink, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Print("goidentity: event sink panic: ", r)
		}
	}()
	sink.Emit(context.Background(), event)
}
