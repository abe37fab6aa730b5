package diag

import (
	"context"
	"testing"
	"time"
)

func newTestSQLiteSink(t *testing.T) *SQLiteSink {
	t.Helper()
	s, err := NewSQLiteSink(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteSink: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteSink_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteSink(t)

	s.Record("first")
	s.Record("second")
	s.Record("third")

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent returned %d entries, want 2", len(got))
	}
	if got[0].Message != "third" || got[1].Message != "second" {
		t.Errorf("Recent messages = [%q %q], want [third second]", got[0].Message, got[1].Message)
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("CreatedAt is zero, want a timestamp")
	}
}

func TestSQLiteSink_RecentEmpty(t *testing.T) {
	s := newTestSQLiteSink(t)

	got, err := s.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Recent on empty table = %#v, want empty non-nil slice", got)
	}
}

func TestSQLiteSink_DeleteBefore(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteSink(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	s.Record("old")
	s.now = func() time.Time { return base.Add(48 * time.Hour) }
	s.Record("new")

	n, err := s.DeleteBefore(ctx, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteBefore removed %d, want 1", n)
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].Message != "new" {
		t.Errorf("remaining = %+v, want only %q", got, "new")
	}
	if !got[0].CreatedAt.Equal(base.Add(48 * time.Hour)) {
		t.Errorf("CreatedAt = %v, want %v", got[0].CreatedAt, base.Add(48*time.Hour))
	}
}

func TestSQLiteSink_StartRetention(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestSQLiteSink(t)

	s.now = func() time.Time { return time.Now().Add(-time.Hour) }
	s.Record("stale")
	s.now = time.Now

	s.StartRetention(ctx, time.Minute, 10*time.Millisecond)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, err := s.Recent(ctx, 10)
		if err != nil {
			t.Fatalf("Recent: %v", err)
		}
		if len(got) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("retention did not remove the stale entry")
}
