// Package store persists in-flight exam attempts as two records per
// (user, exam) pair: the attempt status and the live session snapshot.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/solvex/internal/config"
	"github.com/stemsi/solvex/internal/model"
)

// ErrBackend wraps every failure reported by a Backend.
var ErrBackend = errors.New("store backend")

// Backend is a string key-value substrate. Get reports found=false for a
// missing key; errors are transport failures only.
type Backend interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Store implements the attempt Session Store on top of a Backend.
type Store struct {
	backend Backend
	log     zerolog.Logger
}

// New creates a Store over backend.
func New(backend Backend, log zerolog.Logger) *Store {
	return &Store{
		backend: backend,
		log:     log.With().Str("component", "session_store").Logger(),
	}
}

// ReadAttemptStatus returns the stored status. A missing or unrecognized value
// reads as AttemptNotStarted.
func (s *Store) ReadAttemptStatus(ctx context.Context, userID, examID string) (model.AttemptStatus, error) {
	raw, found, err := s.backend.Get(ctx, config.CacheKey.AttemptStatusKey(userID, examID))
	if err != nil {
		return model.AttemptNotStarted, fmt.Errorf("%w: read attempt status: %v", ErrBackend, err)
	}
	if !found {
		return model.AttemptNotStarted, nil
	}
	return decodeStatus(raw), nil
}

// WriteAttemptStatus overwrites the stored status. Writing AttemptNotStarted
// removes the record, since absence is how NotStarted is represented.
func (s *Store) WriteAttemptStatus(ctx context.Context, userID, examID string, status model.AttemptStatus) error {
	key := config.CacheKey.AttemptStatusKey(userID, examID)
	if status == model.AttemptNotStarted {
		if err := s.backend.Delete(ctx, key); err != nil {
			return fmt.Errorf("%w: clear attempt status: %v", ErrBackend, err)
		}
		return nil
	}
	if err := s.backend.Set(ctx, key, string(status)); err != nil {
		return fmt.Errorf("%w: write attempt status: %v", ErrBackend, err)
	}
	return nil
}

// ReadSessionSnapshot returns the stored snapshot, or nil when it is absent or
// cannot be decoded.
func (s *Store) ReadSessionSnapshot(ctx context.Context, userID, examID string) (*model.SessionSnapshot, error) {
	key := config.CacheKey.SessionSnapshotKey(userID, examID)
	raw, found, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: read session snapshot: %v", ErrBackend, err)
	}
	if !found {
		return nil, nil
	}
	snap, err := decodeSnapshot(raw)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Discarding malformed session snapshot")
		return nil, nil
	}
	return snap, nil
}

// WriteSessionSnapshot replaces the stored snapshot.
func (s *Store) WriteSessionSnapshot(ctx context.Context, userID, examID string, snap *model.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode session snapshot: %w", err)
	}
	if err := s.backend.Set(ctx, config.CacheKey.SessionSnapshotKey(userID, examID), string(data)); err != nil {
		return fmt.Errorf("%w: write session snapshot: %v", ErrBackend, err)
	}
	return nil
}

// DeleteSessionSnapshot removes the live snapshot.
func (s *Store) DeleteSessionSnapshot(ctx context.Context, userID, examID string) error {
	if err := s.backend.Delete(ctx, config.CacheKey.SessionSnapshotKey(userID, examID)); err != nil {
		return fmt.Errorf("%w: delete session snapshot: %v", ErrBackend, err)
	}
	return nil
}

// ResetAttempt removes both records so the user can start the exam again.
func (s *Store) ResetAttempt(ctx context.Context, userID, examID string) error {
	err := s.backend.Delete(ctx,
		config.CacheKey.AttemptStatusKey(userID, examID),
		config.CacheKey.SessionSnapshotKey(userID, examID),
	)
	if err != nil {
		return fmt.Errorf("%w: reset attempt: %v", ErrBackend, err)
	}
	s.log.Info().Str("user_id", userID).Str("exam_id", examID).Msg("Attempt reset")
	return nil
}

func decodeStatus(raw string) model.AttemptStatus {
	switch model.AttemptStatus(strings.TrimSpace(raw)) {
	case model.AttemptInProgress:
		return model.AttemptInProgress
	case model.AttemptSubmitted:
		return model.AttemptSubmitted
	default:
		return model.AttemptNotStarted
	}
}

func decodeSnapshot(raw string) (*model.SessionSnapshot, error) {
	var snap model.SessionSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("decode session snapshot: %w", err)
	}
	switch snap.Status {
	case model.SessionActive, model.SessionRefreshPendingSubmit, model.SessionSubmitting:
	default:
		return nil, fmt.Errorf("decode session snapshot: unknown status %q", snap.Status)
	}
	if snap.StartTime <= 0 || snap.DurationMinutes <= 0 {
		return nil, errors.New("decode session snapshot: missing timing")
	}
	if snap.Answers == nil {
		snap.Answers = make(map[string]string)
	}
	return &snap, nil
}
