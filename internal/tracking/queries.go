package tracking

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNilDatabase = errors.New("database connection is nil")

// SessionRecord is one persisted decode session
type SessionRecord struct {
	SessionID     string     `json:"session_id"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	Source        string     `json:"source"`
	Engine        string     `json:"engine"`
	Variant       string     `json:"variant"`
	SampleRate    int        `json:"sample_rate"`
	Channels      int        `json:"channels"`
	Negotiations  int        `json:"negotiations"`
	Announcements int        `json:"announcements"`
	FramesIn      int64      `json:"frames_in"`
	FramesDecoded int64      `json:"frames_decoded"`
	FramesDropped int64      `json:"frames_dropped"`
	BytesOut      int64      `json:"bytes_out"`
}

// FrameError is one dropped superframe
type FrameError struct {
	FrameIndex int64  `json:"frame_index"`
	Status     int    `json:"status"`
	Message    string `json:"message"`
}

// Summary aggregates sessions matching a filter
type Summary struct {
	Sessions      int            `json:"sessions"`
	FramesIn      int64          `json:"frames_in"`
	FramesDecoded int64          `json:"frames_decoded"`
	FramesDropped int64          `json:"frames_dropped"`
	BytesOut      int64          `json:"bytes_out"`
	DropRate      float64        `json:"drop_rate"`
	ByVariant     map[string]int `json:"by_variant"`
}

func withWhere(query string, filter QueryFilter, now time.Time) (string, []interface{}) {
	whereClause, args := filter.BuildWhereClause(now)
	if whereClause != "" {
		query += " WHERE " + whereClause
	}
	return query, args
}

// ListSessions returns matching sessions, newest first
func ListSessions(db *sql.DB, filter QueryFilter) ([]SessionRecord, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}

	query, args := withWhere(`
		SELECT session_id, started_at, ended_at, source, engine, variant,
		       sample_rate, channels, negotiations, announcements,
		       frames_in, frames_decoded, frames_dropped, bytes_out
		FROM decode_sessions`, filter, time.Now())

	query += " ORDER BY started_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var results []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var started int64
		var ended sql.NullInt64

		err := rows.Scan(&rec.SessionID, &started, &ended, &rec.Source, &rec.Engine, &rec.Variant,
			&rec.SampleRate, &rec.Channels, &rec.Negotiations, &rec.Announcements,
			&rec.FramesIn, &rec.FramesDecoded, &rec.FramesDropped, &rec.BytesOut)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}

		rec.StartedAt = time.Unix(started, 0)
		if ended.Valid {
			t := time.Unix(ended.Int64, 0)
			rec.EndedAt = &t
		}
		results = append(results, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}

	return results, nil
}

// GetSummary aggregates the sessions matching filter
func GetSummary(db *sql.DB, filter QueryFilter) (*Summary, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}

	now := time.Now()
	query, args := withWhere(`
		SELECT COUNT(*),
		       COALESCE(SUM(frames_in), 0),
		       COALESCE(SUM(frames_decoded), 0),
		       COALESCE(SUM(frames_dropped), 0),
		       COALESCE(SUM(bytes_out), 0)
		FROM decode_sessions`, filter, now)

	var summary Summary
	err := db.QueryRow(query, args...).Scan(&summary.Sessions, &summary.FramesIn,
		&summary.FramesDecoded, &summary.FramesDropped, &summary.BytesOut)
	if err != nil {
		return nil, fmt.Errorf("failed to query session summary: %w", err)
	}

	if summary.FramesIn > 0 {
		summary.DropRate = float64(summary.FramesDropped) / float64(summary.FramesIn)
	}

	query, args = withWhere(`SELECT variant, COUNT(*) FROM decode_sessions`, filter, now)
	query += " GROUP BY variant ORDER BY variant"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query variant distribution: %w", err)
	}
	defer rows.Close()

	summary.ByVariant = make(map[string]int)
	for rows.Next() {
		var variant string
		var count int
		if err := rows.Scan(&variant, &count); err != nil {
			return nil, fmt.Errorf("failed to scan variant distribution: %w", err)
		}
		summary.ByVariant[variant] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating variant rows: %w", err)
	}

	return &summary, nil
}

// GetFrameErrors returns the dropped frames of one session in frame order
func GetFrameErrors(db *sql.DB, sessionID string) ([]FrameError, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}

	rows, err := db.Query(`
		SELECT fe.frame_index, fe.status, fe.message
		FROM frame_errors fe
		JOIN decode_sessions ds ON ds.id = fe.session_ref
		WHERE ds.session_id = ?
		ORDER BY fe.frame_index`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query frame errors: %w", err)
	}
	defer rows.Close()

	var results []FrameError
	for rows.Next() {
		var fe FrameError
		if err := rows.Scan(&fe.FrameIndex, &fe.Status, &fe.Message); err != nil {
			return nil, fmt.Errorf("failed to scan frame error row: %w", err)
		}
		results = append(results, fe)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating frame error rows: %w", err)
	}

	return results, nil
}
