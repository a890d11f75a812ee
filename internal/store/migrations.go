package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Sessions table - one row per recorded performance
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			port_name TEXT NOT NULL DEFAULT '',
			channel INTEGER NOT NULL CHECK(channel BETWEEN 1 AND 16),
			scale TEXT NOT NULL DEFAULT '',
			events INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL,
			ended_at DATETIME
		)`,

		// Session events table - raw MIDI messages with their offset into the session
		`CREATE TABLE IF NOT EXISTS session_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			offset_us INTEGER NOT NULL,
			data BLOB NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_session_events_session_id ON session_events(session_id, seq)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
