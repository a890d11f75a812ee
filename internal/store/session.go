package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is one recorded performance.
type Session struct {
	ID        string     `json:"id"`
	PortName  string     `json:"port_name"`
	Channel   int        `json:"channel"`
	Scale     string     `json:"scale"`
	Events    int        `json:"events"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Duration returns how long the session ran, or zero while it is open.
func (s *Session) Duration() time.Duration {
	if s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Event is a raw MIDI message at an offset from the session start.
type Event struct {
	Offset time.Duration
	Data   []byte
}

// SessionRepository stores sessions and their events.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a session, assigning a new ID when empty.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, port_name, channel, scale, events, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.PortName, sess.Channel, sess.Scale, sess.Events, sess.StartedAt, sess.EndedAt,
	)
	return err
}

const sessionColumns = `id, port_name, channel, scale, events, started_at, ended_at`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	sess := &Session{}
	var ended sql.NullTime
	if err := row.Scan(&sess.ID, &sess.PortName, &sess.Channel, &sess.Scale, &sess.Events, &sess.StartedAt, &ended); err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}
	return sess, nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	sess, err := scanSession(r.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// List returns all sessions, newest first.
func (r *SessionRepository) List() ([]*Session, error) {
	rows, err := r.db.Query(`SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Finish stamps the end time of a session.
func (r *SessionRepository) Finish(id string, endedAt time.Time) error {
	result, err := r.db.Exec(`UPDATE sessions SET ended_at = ? WHERE id = ?`, endedAt, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a session and its events.
func (r *SessionRepository) Delete(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM session_events WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete session events: %w", err)
	}
	result, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// AddEvents appends events to a session in one transaction and bumps its
// event count.
func (r *SessionRepository) AddEvents(id string, events []Event) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRow(`SELECT events FROM sessions WHERE id = ?`, id).Scan(&next); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO session_events (session_id, seq, offset_us, data) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, ev := range events {
		if _, err := stmt.Exec(id, next+i, ev.Offset.Microseconds(), ev.Data); err != nil {
			return fmt.Errorf("insert event %d: %w", i, err)
		}
	}

	if _, err := tx.Exec(`UPDATE sessions SET events = ? WHERE id = ?`, next+len(events), id); err != nil {
		return err
	}

	return tx.Commit()
}

// Events returns a session's events in recording order.
func (r *SessionRepository) Events(id string) ([]Event, error) {
	if _, err := r.GetByID(id); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(`SELECT offset_us, data FROM session_events WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var us int64
		var data []byte
		if err := rows.Scan(&us, &data); err != nil {
			return nil, err
		}
		events = append(events, Event{Offset: time.Duration(us) * time.Microsecond, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
