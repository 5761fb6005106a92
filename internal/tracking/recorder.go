package tracking

import (
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"wmadec.click/internal/audio"
)

// Recorder persists session events to the tracking database. The first
// database error disables it so tracking never interrupts decoding.
type Recorder struct {
	db       *sql.DB
	source   string
	engine   string
	now      func() time.Time
	disabled bool

	sessionRef int64 // decode_sessions.id of the current session
}

// RecorderOption is a functional option for configuring Recorder
type RecorderOption func(*Recorder)

// WithClock overrides the time source used for timestamps
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder creates a recorder for sessions decoding source with engine
func NewRecorder(db *sql.DB, source, engine string, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		db:     db,
		source: source,
		engine: engine,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Observe records one session event
func (r *Recorder) Observe(ev audio.Event) {
	if r.disabled {
		return
	}

	var err error
	switch ev.Kind {
	case audio.EventStarted:
		err = r.startSession(ev.SessionID)
	case audio.EventNegotiated:
		err = r.updateFormat(ev)
	case audio.EventFrameDropped:
		err = r.insertFrameError(ev)
	case audio.EventStopped:
		err = r.finishSession(ev.Stats)
	default:
		return
	}

	if err != nil {
		slog.Warn("session tracking failed", "event", ev.Kind.String(), "session_id", ev.SessionID, "error", err)
		r.disabled = true
		return
	}

	slog.Debug("session tracking recorded event", "event", ev.Kind.String(), "session_id", ev.SessionID)
}

// GetObserver returns the Observer for use with audio.WithObserver
func (r *Recorder) GetObserver() audio.Observer {
	return r.Observe
}

func (r *Recorder) startSession(sessionID string) error {
	result, err := r.db.Exec(`
		INSERT INTO decode_sessions (session_id, started_at, source, engine)
		VALUES (?, ?, ?, ?)`,
		sessionID,
		r.now().Unix(),
		r.source,
		r.engine)
	if err != nil {
		return err
	}

	r.sessionRef, err = result.LastInsertId()
	return err
}

func (r *Recorder) updateFormat(ev audio.Event) error {
	if r.sessionRef == 0 {
		return nil
	}
	_, err := r.db.Exec(`
		UPDATE decode_sessions
		SET variant = ?, sample_rate = ?, channels = ?
		WHERE id = ?`,
		ev.Variant.String(),
		ev.Format.SampleRate,
		ev.Format.Channels,
		r.sessionRef)
	return err
}

func (r *Recorder) insertFrameError(ev audio.Event) error {
	if r.sessionRef == 0 {
		return nil
	}

	status := -1
	var statusErr *audio.StatusError
	if errors.As(ev.Err, &statusErr) {
		status = statusErr.Status
	}
	message := ""
	if ev.Err != nil {
		message = ev.Err.Error()
	}

	_, err := r.db.Exec(`
		INSERT INTO frame_errors (session_ref, frame_index, status, message)
		VALUES (?, ?, ?, ?)`,
		r.sessionRef,
		ev.FrameIndex,
		status,
		message)
	return err
}

func (r *Recorder) finishSession(stats audio.Stats) error {
	if r.sessionRef == 0 {
		return nil
	}
	_, err := r.db.Exec(`
		UPDATE decode_sessions
		SET ended_at = ?, negotiations = ?, announcements = ?, frames_in = ?,
		    frames_decoded = ?, frames_dropped = ?, bytes_out = ?
		WHERE id = ?`,
		r.now().Unix(),
		stats.Negotiations,
		stats.Announcements,
		stats.FramesIn,
		stats.FramesDecoded,
		stats.FramesDropped,
		stats.BytesOut,
		r.sessionRef)
	r.sessionRef = 0
	return err
}
