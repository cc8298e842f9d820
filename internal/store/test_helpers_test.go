package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/fitsync/internal/derive"
	"github.com/roach88/fitsync/internal/model"
	"github.com/roach88/fitsync/internal/testutil"
)

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temp directory with predictable
// IDs and a clock that advances one second per row.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(NewSequenceGenerator("id")), WithNow(testutil.NewManualClock(testEpoch).Ticker(time.Second)))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestProfile inserts a profile whose ID equals its username.
func createTestProfile(t *testing.T, s *Store, username string) model.Profile {
	t.Helper()
	p, err := s.PutProfile(context.Background(), model.Profile{ID: username, Username: username})
	if err != nil {
		t.Fatalf("PutProfile(%s) failed: %v", username, err)
	}
	return p
}

// createTestSession inserts a session for ownerID on the given YYYY-MM-DD date.
func createTestSession(t *testing.T, s *Store, ownerID, date string) model.Session {
	t.Helper()
	d, err := derive.ParseDate(date)
	if err != nil {
		t.Fatal(err)
	}
	sess, err := s.PutSession(context.Background(), model.Session{
		UserID:  ownerID,
		Title:   "session " + date,
		Date:    d,
		Feeling: 3,
	})
	if err != nil {
		t.Fatalf("PutSession() failed: %v", err)
	}
	return sess
}
