package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/solvex/internal/attempt"
	"github.com/stemsi/solvex/internal/identity"
	"github.com/stemsi/solvex/internal/model"
)

// ExamFetcher loads exam papers from the exam service.
type ExamFetcher interface {
	FetchSnapshot(ctx context.Context, examID, token string) (*model.ExamSnapshot, error)
}

// AnswerSubmitter posts finished attempts for grading.
type AnswerSubmitter interface {
	Submit(ctx context.Context, token, examID string, answers map[string]string) (*model.SubmitResult, error)
}

// AttemptStore is the session store plus the operator reset.
type AttemptStore interface {
	attempt.Store
	ResetAttempt(ctx context.Context, userID, examID string) error
}

// LobbyStatus represents the concrete state of an exam in the lobby.
type LobbyStatus string

const (
	LobbyStatusAvailable  LobbyStatus = "AVAILABLE"
	LobbyStatusInProgress LobbyStatus = "IN_PROGRESS"
	LobbyStatusCompleted  LobbyStatus = "COMPLETED"
)

// LobbyExam is one exam as the lobby should offer it.
type LobbyExam struct {
	ExamID        string              `json:"exam_id"`
	LobbyStatus   LobbyStatus         `json:"lobby_status"`
	AttemptStatus model.AttemptStatus `json:"attempt_status"`
}

// AttemptSummary is the stored state of one attempt.
type AttemptSummary struct {
	UserID  string              `json:"user_id"`
	ExamID  string              `json:"exam_id"`
	Status  model.AttemptStatus `json:"status"`
	Session *SessionSummary     `json:"session,omitempty"`
}

// SessionSummary describes a stored snapshot without its answers.
type SessionSummary struct {
	Status          model.SessionStatus `json:"status"`
	SessionID       string              `json:"session_id,omitempty"`
	StartedAt       time.Time           `json:"started_at"`
	DurationMinutes int                 `json:"duration_minutes"`
	TimeLeft        int                 `json:"time_left"`
	Answered        int                 `json:"answered"`
}

// AttemptService mounts attempt managers and reports stored attempt state.
type AttemptService struct {
	exams         ExamFetcher
	submissions   AnswerSubmitter
	store         AttemptStore
	submitTimeout time.Duration
	now           func() time.Time
	log           zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(exams ExamFetcher, submissions AnswerSubmitter, store AttemptStore, submitTimeout time.Duration, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		exams:         exams,
		submissions:   submissions,
		store:         store,
		submitTimeout: submitTimeout,
		now:           time.Now,
		log:           log,
	}
}

// Mount fetches the exam paper and runs the attempt initialization for one
// page mount. presentedSessionID is what the client kept from a previous
// mount; an empty or malformed value gets a fresh identity.
func (s *AttemptService) Mount(ctx context.Context, examID string, user model.User, presentedSessionID string) (*attempt.Manager, error) {
	exam, err := s.exams.FetchSnapshot(ctx, examID, user.Token)
	if err != nil {
		return nil, err
	}

	submit := attempt.SubmitFunc(func(ctx context.Context, examID string, answers map[string]string) (*model.SubmitResult, error) {
		return s.submissions.Submit(ctx, user.Token, examID, answers)
	})

	m := attempt.New(exam, user, identity.Resolve(presentedSessionID), s.store, submit, attempt.Options{
		Now:           s.now,
		SubmitTimeout: s.submitTimeout,
		Logger:        s.log,
	})
	m.Init(ctx)
	return m, nil
}

// Lobby reports, for each exam id, what the lobby should offer the user.
func (s *AttemptService) Lobby(ctx context.Context, userID string, examIDs []string) ([]LobbyExam, error) {
	lobby := make([]LobbyExam, 0, len(examIDs))
	for _, examID := range examIDs {
		status, err := s.store.ReadAttemptStatus(ctx, userID, examID)
		if err != nil {
			return nil, fmt.Errorf("read status for exam %s: %w", examID, err)
		}
		lobby = append(lobby, LobbyExam{
			ExamID:        examID,
			LobbyStatus:   lobbyStatus(status),
			AttemptStatus: status,
		})
	}
	return lobby, nil
}

func lobbyStatus(status model.AttemptStatus) LobbyStatus {
	switch status {
	case model.AttemptSubmitted:
		return LobbyStatusCompleted
	case model.AttemptInProgress:
		return LobbyStatusInProgress
	}
	return LobbyStatusAvailable
}

// Attempt returns the stored status and snapshot summary for one attempt.
func (s *AttemptService) Attempt(ctx context.Context, userID, examID string) (*AttemptSummary, error) {
	status, err := s.store.ReadAttemptStatus(ctx, userID, examID)
	if err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}
	snap, err := s.store.ReadSessionSnapshot(ctx, userID, examID)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	summary := &AttemptSummary{UserID: userID, ExamID: examID, Status: status}
	if snap != nil && snap.BelongsTo(userID, examID) {
		answered := 0
		for _, v := range snap.Answers {
			if v != "" {
				answered++
			}
		}
		summary.Session = &SessionSummary{
			Status:          snap.Status,
			SessionID:       snap.SessionID,
			StartedAt:       time.UnixMilli(snap.StartTime).UTC(),
			DurationMinutes: snap.DurationMinutes,
			TimeLeft:        attempt.Remaining(snap, s.now()),
			Answered:        answered,
		}
	}
	return summary, nil
}

// Reset removes every stored record of the attempt so the user can start over.
func (s *AttemptService) Reset(ctx context.Context, userID, examID string) error {
	if err := s.store.ResetAttempt(ctx, userID, examID); err != nil {
		return fmt.Errorf("reset attempt: %w", err)
	}
	s.log.Info().Str("user_id", userID).Str("exam_id", examID).Msg("Attempt reset")
	return nil
}
