package audio

import (
	"log/slog"

	"github.com/google/uuid"
)

// Session drives one stream through start, format negotiation, per-frame
// decoding and stop. The host serializes all calls; a Session is not safe
// for concurrent use.
type Session struct {
	id     string
	engine Engine
	sink   Sink

	dc       *DecodeContext
	switcher *OutputFormatSwitcher

	pendingRate     int
	pendingChannels int
	negotiated      bool
	stopped         bool

	observers []Observer
	stats     Stats
}

// Option configures a Session
type Option func(*Session)

// WithObserver registers an observer for session events
func WithObserver(observer Observer) Option {
	return func(s *Session) {
		if observer != nil {
			s.observers = append(s.observers, observer)
		}
	}
}

// WithSessionID overrides the generated identifier of the first stream.
// A restart after Stop always gets a fresh one.
func WithSessionID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// NewSession creates a session that decodes with engine and delivers to sink
func NewSession(engine Engine, sink Sink, opts ...Option) *Session {
	s := &Session{
		id:       uuid.NewString(),
		engine:   engine,
		sink:     sink,
		switcher: NewOutputFormatSwitcher(),
	}
	for _, opt := range opts {
		opt(s)
	}

	slog.Debug("created decode session", "session_id", s.id, "engine", engine.Name())
	return s
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Stats returns a snapshot of the session counters
func (s *Session) Stats() Stats {
	return s.stats
}

// Context returns the live decode context, or nil when not started
func (s *Session) Context() *DecodeContext {
	return s.dc
}

// Negotiated reports whether a format has been successfully negotiated
func (s *Session) Negotiated() bool {
	return s.negotiated
}

// PendingFormat returns the negotiated rate and channel count
func (s *Session) PendingFormat() (sampleRate, channels int) {
	return s.pendingRate, s.pendingChannels
}

// LastAnnounced returns the last output format announced to the sink
func (s *Session) LastAnnounced() (OutputFormat, bool) {
	return s.switcher.Last()
}

// Start allocates a fresh decode context. Calling Start on a running
// session is a no-op; calling it after Stop begins a new stream with a new
// identifier and zeroed counters.
func (s *Session) Start() error {
	if s.dc != nil {
		slog.Warn("session already started", "session_id", s.id)
		return nil
	}

	if s.stopped {
		previous := s.id
		s.id = uuid.NewString()
		s.stats = Stats{}
		slog.Debug("restarting session as a new stream", "previous_session_id", previous, "session_id", s.id)
	}

	s.dc = NewDecodeContext()
	s.switcher.Reset()
	s.negotiated = false
	s.stopped = false
	s.pendingRate, s.pendingChannels = 0, 0

	slog.Info("decode session started", "session_id", s.id, "engine", s.engine.Name())
	s.emit(Event{Kind: EventStarted})
	return nil
}

// Stop releases the engine state and extradata. It is safe to call before
// negotiation completed, before Start, and more than once.
func (s *Session) Stop() error {
	if s.dc == nil {
		slog.Debug("stop on idle session", "session_id", s.id)
		return nil
	}

	err := s.dc.Close()
	s.dc = nil
	s.switcher.Reset()
	s.negotiated = false
	s.stopped = true

	slog.Info("decode session stopped",
		"session_id", s.id,
		"frames_in", s.stats.FramesIn,
		"frames_decoded", s.stats.FramesDecoded,
		"frames_dropped", s.stats.FramesDropped,
		"bytes_out", s.stats.BytesOut)

	s.emit(Event{Kind: EventStopped, Err: err, Stats: s.stats})
	return err
}

// checkRunning returns the lifecycle error for calls that need a context
func (s *Session) checkRunning() error {
	if s.dc != nil {
		return nil
	}
	if s.stopped {
		return ErrSessionClosed
	}
	return ErrNotStarted
}

func (s *Session) emit(event Event) {
	event.SessionID = s.id
	for _, observer := range s.observers {
		observer(event)
	}
}
