package store

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/solvex/internal/config"
	"github.com/stemsi/solvex/internal/model"
)

func newRedisBackend(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisBackend(rdb), mr
}

// backends runs fn against every backend that does not need an external server.
func backends(t *testing.T, fn func(t *testing.T, b Backend)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryBackend()) })
	t.Run("redis", func(t *testing.T) {
		b, _ := newRedisBackend(t)
		fn(t, b)
	})
}

func sampleSnapshot() *model.SessionSnapshot {
	return &model.SessionSnapshot{
		UserID:          "u7",
		ExamID:          "e42",
		Answers:         map[string]string{"q1": "True", "q2": ""},
		StartTime:       1_700_000_000_000,
		DurationMinutes: 1,
		Status:          model.SessionActive,
		SessionID:       "7f1c8a52-3a55-4e55-9b8c-9a4a3c3d2f10",
	}
}

func TestAttemptStatusRoundTrip(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		s := New(b, zerolog.Nop())

		got, err := s.ReadAttemptStatus(ctx, "u7", "e42")
		if err != nil || got != model.AttemptNotStarted {
			t.Fatalf("empty store status = %q, %v; want NOT_STARTED", got, err)
		}

		for _, status := range []model.AttemptStatus{model.AttemptInProgress, model.AttemptSubmitted} {
			if err := s.WriteAttemptStatus(ctx, "u7", "e42", status); err != nil {
				t.Fatalf("WriteAttemptStatus(%s): %v", status, err)
			}
			if got, _ := s.ReadAttemptStatus(ctx, "u7", "e42"); got != status {
				t.Fatalf("status = %q, want %q", got, status)
			}
		}

		if err := s.WriteAttemptStatus(ctx, "u7", "e42", model.AttemptNotStarted); err != nil {
			t.Fatalf("clear status: %v", err)
		}
		if _, found, _ := b.Get(ctx, config.CacheKey.AttemptStatusKey("u7", "e42")); found {
			t.Fatal("writing NOT_STARTED should remove the status key")
		}
	})
}

func TestMalformedStatusReadsAsNotStarted(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		_ = b.Set(ctx, config.CacheKey.AttemptStatusKey("u7", "e42"), "{garbage")

		got, err := New(b, zerolog.Nop()).ReadAttemptStatus(ctx, "u7", "e42")
		if err != nil || got != model.AttemptNotStarted {
			t.Fatalf("status = %q, %v; want NOT_STARTED", got, err)
		}
	})
}

func TestSessionSnapshotRoundTrip(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		s := New(b, zerolog.Nop())

		snap, err := s.ReadSessionSnapshot(ctx, "u7", "e42")
		if err != nil || snap != nil {
			t.Fatalf("empty store snapshot = %+v, %v; want nil", snap, err)
		}

		want := sampleSnapshot()
		if err := s.WriteSessionSnapshot(ctx, "u7", "e42", want); err != nil {
			t.Fatalf("WriteSessionSnapshot: %v", err)
		}
		got, err := s.ReadSessionSnapshot(ctx, "u7", "e42")
		if err != nil || got == nil {
			t.Fatalf("ReadSessionSnapshot = %v, %v", got, err)
		}
		if got.StartTime != want.StartTime || got.SessionID != want.SessionID || got.Status != want.Status {
			t.Fatalf("snapshot mismatch: got %+v want %+v", got, want)
		}
		if got.Answers["q1"] != "True" || len(got.Answers) != 2 {
			t.Fatalf("answers = %v", got.Answers)
		}

		// Full overwrite: answers missing from the new snapshot are gone.
		want.Answers = map[string]string{"q2": "free text"}
		_ = s.WriteSessionSnapshot(ctx, "u7", "e42", want)
		got, _ = s.ReadSessionSnapshot(ctx, "u7", "e42")
		if _, ok := got.Answers["q1"]; ok || got.Answers["q2"] != "free text" {
			t.Fatalf("snapshot was merged instead of replaced: %v", got.Answers)
		}

		if err := s.DeleteSessionSnapshot(ctx, "u7", "e42"); err != nil {
			t.Fatalf("DeleteSessionSnapshot: %v", err)
		}
		if got, _ := s.ReadSessionSnapshot(ctx, "u7", "e42"); got != nil {
			t.Fatalf("snapshot survived delete: %+v", got)
		}
	})
}

func TestMalformedSnapshotReadsAsAbsent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{{{"},
		{"unknown status", `{"user_id":"u7","exam_id":"e42","start_time":1,"duration_minutes":1,"status":"paused"}`},
		{"missing timing", `{"user_id":"u7","exam_id":"e42","status":"session_active"}`},
	}
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		s := New(b, zerolog.Nop())
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_ = b.Set(ctx, config.CacheKey.SessionSnapshotKey("u7", "e42"), tt.raw)
				snap, err := s.ReadSessionSnapshot(ctx, "u7", "e42")
				if err != nil || snap != nil {
					t.Fatalf("snapshot = %+v, %v; want nil, nil", snap, err)
				}
			})
		}
	})
}

func TestResetAttempt(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		s := New(b, zerolog.Nop())
		_ = s.WriteAttemptStatus(ctx, "u7", "e42", model.AttemptSubmitted)
		_ = s.WriteSessionSnapshot(ctx, "u7", "e42", sampleSnapshot())
		_ = s.WriteAttemptStatus(ctx, "u7", "e99", model.AttemptInProgress)

		if err := s.ResetAttempt(ctx, "u7", "e42"); err != nil {
			t.Fatalf("ResetAttempt: %v", err)
		}
		if got, _ := s.ReadAttemptStatus(ctx, "u7", "e42"); got != model.AttemptNotStarted {
			t.Fatalf("status after reset = %q", got)
		}
		if got, _ := s.ReadSessionSnapshot(ctx, "u7", "e42"); got != nil {
			t.Fatal("snapshot survived reset")
		}
		if got, _ := s.ReadAttemptStatus(ctx, "u7", "e99"); got != model.AttemptInProgress {
			t.Fatal("reset touched another exam")
		}
	})
}

func TestBackendErrorsAreWrapped(t *testing.T) {
	b, mr := newRedisBackend(t)
	s := New(b, zerolog.Nop())
	mr.Close()

	ctx := context.Background()
	if _, err := s.ReadAttemptStatus(ctx, "u7", "e42"); !errors.Is(err, ErrBackend) {
		t.Fatalf("ReadAttemptStatus err = %v, want ErrBackend", err)
	}
	if _, err := s.ReadSessionSnapshot(ctx, "u7", "e42"); !errors.Is(err, ErrBackend) {
		t.Fatalf("ReadSessionSnapshot err = %v, want ErrBackend", err)
	}
	if err := s.WriteSessionSnapshot(ctx, "u7", "e42", sampleSnapshot()); !errors.Is(err, ErrBackend) {
		t.Fatalf("WriteSessionSnapshot err = %v, want ErrBackend", err)
	}
}
