//go:build integration
// +build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stemsi/solvex/internal/model"
)

// Run with: DATABASE_URL=... go test -tags integration ./internal/store/
// The attempt_kv migration must be applied first (cmd/migrate up).
func TestPostgresBackend(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	s := New(NewPostgresBackend(pool), zerolog.Nop())
	t.Cleanup(func() { _ = s.ResetAttempt(ctx, "it-user", "it-exam") })

	if err := s.WriteAttemptStatus(ctx, "it-user", "it-exam", model.AttemptInProgress); err != nil {
		t.Fatalf("WriteAttemptStatus: %v", err)
	}
	snap := sampleSnapshot()
	snap.UserID, snap.ExamID = "it-user", "it-exam"
	if err := s.WriteSessionSnapshot(ctx, "it-user", "it-exam", snap); err != nil {
		t.Fatalf("WriteSessionSnapshot: %v", err)
	}
	got, err := s.ReadSessionSnapshot(ctx, "it-user", "it-exam")
	if err != nil || got == nil || got.SessionID != snap.SessionID {
		t.Fatalf("ReadSessionSnapshot = %+v, %v", got, err)
	}
	if err := s.ResetAttempt(ctx, "it-user", "it-exam"); err != nil {
		t.Fatalf("ResetAttempt: %v", err)
	}
	if status, _ := s.ReadAttemptStatus(ctx, "it-user", "it-exam"); status != model.AttemptNotStarted {
		t.Fatalf("status after reset = %q", status)
	}
}
