package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file should exist after creating store")
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"settings", "sessions", "session_events"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q should exist after migrations: %v", table, err)
		}
	}
}

func TestNewStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := s.Settings().Set(SettingScale, "Pentatonic"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s.Close()

	v, err := s.Settings().Get(SettingScale)
	if err != nil || v != "Pentatonic" {
		t.Errorf("Get() after reopen = %q, %v", v, err)
	}
}

func TestSettings(t *testing.T) {
	repo := newTestStore(t).Settings()

	if _, err := repo.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
	if v, err := repo.GetOr("missing", "Major"); err != nil || v != "Major" {
		t.Errorf("GetOr(missing) = %q, %v", v, err)
	}

	if err := repo.Set(SettingScale, "Chromatic"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := repo.Set(SettingScale, "Minor blues"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	if v, _ := repo.Get(SettingScale); v != "Minor blues" {
		t.Errorf("Get() = %q, want Minor blues", v)
	}

	if err := repo.Delete(SettingScale); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(SettingScale); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete error = %v", err)
	}
}

func TestSessions_Lifecycle(t *testing.T) {
	repo := newTestStore(t).Sessions()

	started := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	sess := &Session{PortName: "My virtual output", Channel: 1, Scale: "Major", StartedAt: started}
	if err := repo.Create(sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if sess.ID == "" {
		t.Fatal("Create() did not assign an ID")
	}

	events := []Event{
		{Offset: 0, Data: []byte{0x90, 60, 100}},
		{Offset: 1500 * time.Microsecond, Data: []byte{0xD0, 90}},
	}
	if err := repo.AddEvents(sess.ID, events); err != nil {
		t.Fatalf("AddEvents() error = %v", err)
	}
	if err := repo.AddEvents(sess.ID, []Event{{Offset: time.Second, Data: []byte{0xB0, 123, 0}}}); err != nil {
		t.Fatalf("AddEvents() second batch error = %v", err)
	}

	ended := started.Add(2 * time.Minute)
	if err := repo.Finish(sess.ID, ended); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	got, err := repo.GetByID(sess.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Events != 3 || got.Channel != 1 || got.Scale != "Major" {
		t.Errorf("GetByID() = %+v", got)
	}
	if got.EndedAt == nil || got.Duration() != 2*time.Minute {
		t.Errorf("Duration() = %v, want 2m", got.Duration())
	}

	stored, err := repo.Events(sess.ID)
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("len(Events()) = %d, want 3", len(stored))
	}
	if stored[1].Offset != 1500*time.Microsecond || !bytes.Equal(stored[1].Data, []byte{0xD0, 90}) {
		t.Errorf("Events()[1] = %+v", stored[1])
	}
	if !bytes.Equal(stored[2].Data, []byte{0xB0, 123, 0}) {
		t.Errorf("Events()[2] = %+v", stored[2])
	}

	list, err := repo.List()
	if err != nil || len(list) != 1 {
		t.Fatalf("List() = %d sessions, %v", len(list), err)
	}

	if err := repo.Delete(sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Events(sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Events() after Delete error = %v, want ErrNotFound", err)
	}

	var n int
	repo.db.QueryRow(`SELECT COUNT(*) FROM session_events`).Scan(&n)
	if n != 0 {
		t.Errorf("%d orphaned events after cascade delete", n)
	}
}

func TestSessions_DeleteFromAnyConnection(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	sess := &Session{Channel: 1, Scale: "Major", StartedAt: time.Now()}
	if err := repo.Create(sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.AddEvents(sess.ID, []Event{{Data: []byte{0x90, 60, 100}}}); err != nil {
		t.Fatalf("AddEvents() error = %v", err)
	}

	// Keep the first pooled connection busy so later work lands on new ones.
	busy, err := s.DB().Begin()
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	defer busy.Rollback()

	conn, err := s.DB().Conn(context.Background())
	if err != nil {
		t.Fatalf("Conn() error = %v", err)
	}
	var fk int
	if err := conn.QueryRowContext(context.Background(), `PRAGMA foreign_keys`).Scan(&fk); err != nil {
		t.Fatalf("read foreign_keys: %v", err)
	}
	conn.Close()
	if fk != 1 {
		t.Errorf("foreign_keys on a new connection = %d, want 1", fk)
	}

	if err := repo.Delete(sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM session_events WHERE session_id = ?`, sess.ID).Scan(&n); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if n != 0 {
		t.Errorf("%d events left after Delete", n)
	}
}

func TestSessions_NotFound(t *testing.T) {
	repo := newTestStore(t).Sessions()

	if _, err := repo.GetByID("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v", err)
	}
	if err := repo.Finish("nope", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Finish() error = %v", err)
	}
	if err := repo.Delete("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v", err)
	}
	if err := repo.AddEvents("nope", []Event{{Data: []byte{0x90, 1, 1}}}); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddEvents() error = %v", err)
	}
}

func TestSessions_ListOrder(t *testing.T) {
	repo := newTestStore(t).Sessions()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := repo.Create(&Session{Channel: 1, StartedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	list, err := repo.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for i := 1; i < len(list); i++ {
		if list[i].StartedAt.After(list[i-1].StartedAt) {
			t.Errorf("List() not newest first at %d", i)
		}
	}
}
