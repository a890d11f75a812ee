package midiout

import (
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
)

// Event is a sent message stamped with its offset from the start of a recording.
type Event struct {
	Offset  time.Duration
	Message midi.Message
}

// Recorder forwards messages to an inner Sink and keeps a timestamped copy of
// each one that was delivered.
type Recorder struct {
	mu     sync.Mutex
	inner  Sink
	now    func() time.Time
	start  time.Time
	events []Event
}

// NewRecorder wraps inner. A nil clock uses time.Now.
func NewRecorder(inner Sink, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{inner: inner, now: now, start: now()}
}

// Send forwards msg and records it on success.
func (r *Recorder) Send(msg midi.Message) error {
	if err := r.inner.Send(msg); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{
		Offset:  max(r.now().Sub(r.start), 0),
		Message: append(midi.Message(nil), msg...),
	})
	return nil
}

// Close closes the inner sink. Recorded events stay available.
func (r *Recorder) Close() error {
	return r.inner.Close()
}

// Start returns when the recording began.
func (r *Recorder) Start() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.start
}

// Rebase moves the recording start to t. Events already recorded keep their
// wall position and are shifted to match, never below zero.
func (r *Recorder) Rebase(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	shift := r.start.Sub(t)
	for i := range r.events {
		r.events[i].Offset = max(r.events[i].Offset+shift, 0)
	}
	r.start = t
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// MemorySink collects messages without sending them anywhere.
type MemorySink struct {
	mu       sync.Mutex
	messages []midi.Message
	closed   bool
	err      error
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// SetError makes subsequent sends fail with err.
func (m *MemorySink) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Send records msg.
func (m *MemorySink) Send(msg midi.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrPortClosed
	}
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, append(midi.Message(nil), msg...))
	return nil
}

// Close marks the sink closed.
func (m *MemorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MemorySink) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Messages returns a copy of everything sent so far.
func (m *MemorySink) Messages() []midi.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]midi.Message(nil), m.messages...)
}

// Reset discards recorded messages.
func (m *MemorySink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}
