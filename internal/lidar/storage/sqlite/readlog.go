package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/scanfile/internal/lidar/scanfile"
	"github.com/banshee-data/scanfile/internal/monitoring"
)

// Session is one recorded scan file open.
type Session struct {
	SessionID   string `json:"session_id"`
	PrimaryPath string `json:"primary_path"`
	WavePath    string `json:"wave_path,omitempty"`
	StartedAt   int64  `json:"started_at"`
}

// ReadRecord is one recorded ReadData call.
type ReadRecord struct {
	ReadID     int64           `json:"read_id"`
	SessionID  string          `json:"session_id"`
	HandleID   string          `json:"handle_id"`
	Start      int             `json:"window_start"`
	End        int             `json:"window_end"`
	Action     scanfile.Action `json:"action"`
	Pulses     int             `json:"pulses"`
	Points     int             `json:"points"`
	Units      int             `json:"units"`
	Observed   int             `json:"observed"`
	Finished   bool            `json:"finished"`
	StartedAt  int64           `json:"started_at"`
	DurationNs int64           `json:"duration_ns"`
}

// Duration returns the recorded read duration.
func (r *ReadRecord) Duration() time.Duration { return time.Duration(r.DurationNs) }

// ReadLog persists read sessions.
type ReadLog struct {
	db  *sql.DB
	now func() time.Time
}

// OpenReadLog opens or creates the database at path and applies any
// pending migrations.
func OpenReadLog(path string) (*ReadLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open read log %s: %w", path, err)
	}
	// PRAGMAs apply per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &ReadLog{db: db, now: time.Now}, nil
}

// Close closes the database.
func (l *ReadLog) Close() error {
	return l.db.Close()
}

// StartSession records a new session and returns its ID.
func (l *ReadLog) StartSession(primary, wave string) (string, error) {
	id := uuid.New().String()
	startedAt := l.now().UnixNano()
	err := retryOnBusy(func() error {
		_, err := l.db.Exec(`
			INSERT INTO read_sessions (session_id, primary_path, wave_path, started_at)
			VALUES (?, ?, ?, ?)`,
			id, primary, wave, startedAt,
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to start read session: %w", err)
	}
	return id, nil
}

// RecordRead stores ev under sessionID.
func (l *ReadLog) RecordRead(sessionID string, ev scanfile.ReadEvent) error {
	finished := 0
	if ev.Finished {
		finished = 1
	}
	err := retryOnBusy(func() error {
		_, err := l.db.Exec(`
			INSERT INTO read_windows (
				session_id, handle_id, window_start, window_end, action,
				pulses, points, units, observed, finished, started_at, duration_ns
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sessionID, ev.HandleID, ev.Start, ev.End, string(ev.Action),
			ev.Pulses, ev.Points, ev.Units, ev.Observed, finished,
			ev.StartedAt.UnixNano(), ev.Duration.Nanoseconds(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to record read [%d, %d): %w", ev.Start, ev.End, err)
	}
	return nil
}

// ListReads returns the reads of a session in the order they happened.
func (l *ReadLog) ListReads(sessionID string) ([]ReadRecord, error) {
	rows, err := l.db.Query(`
		SELECT read_id, session_id, handle_id, window_start, window_end, action,
		       pulses, points, units, observed, finished, started_at, duration_ns
		FROM read_windows
		WHERE session_id = ?
		ORDER BY read_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reads: %w", err)
	}
	defer rows.Close()

	var out []ReadRecord
	for rows.Next() {
		var r ReadRecord
		var action string
		var finished int
		if err := rows.Scan(&r.ReadID, &r.SessionID, &r.HandleID, &r.Start, &r.End, &action,
			&r.Pulses, &r.Points, &r.Units, &r.Observed, &finished, &r.StartedAt, &r.DurationNs); err != nil {
			return nil, fmt.Errorf("failed to scan read: %w", err)
		}
		r.Action = scanfile.Action(action)
		r.Finished = finished != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetSession returns the session with the given ID.
func (l *ReadLog) GetSession(sessionID string) (*Session, error) {
	var s Session
	err := l.db.QueryRow(`
		SELECT session_id, primary_path, wave_path, started_at
		FROM read_sessions WHERE session_id = ?`, sessionID,
	).Scan(&s.SessionID, &s.PrimaryPath, &s.WavePath, &s.StartedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("read session %s not found", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get read session: %w", err)
	}
	return &s, nil
}

// DeleteSession removes a session and its reads.
func (l *ReadLog) DeleteSession(sessionID string) error {
	return retryOnBusy(func() error {
		_, err := l.db.Exec(`DELETE FROM read_sessions WHERE session_id = ?`, sessionID)
		return err
	})
}

// SessionObserver returns an observer that records every read under
// sessionID. Failures are logged rather than returned so a diagnostics
// problem never fails a read.
func (l *ReadLog) SessionObserver(sessionID string) scanfile.ReadObserver {
	return scanfile.ReadObserverFunc(func(ev scanfile.ReadEvent) {
		if err := l.RecordRead(sessionID, ev); err != nil {
			monitoring.Logf("read log: %v", err)
		}
	})
}
