package model

// AttemptStatus is the durable marker for one user's attempt at one exam.
// Absence of a stored value reads as AttemptNotStarted.
type AttemptStatus string

const (
	AttemptNotStarted AttemptStatus = "NOT_STARTED"
	AttemptInProgress AttemptStatus = "IN_PROGRESS"
	AttemptSubmitted  AttemptStatus = "SUBMITTED"
)

// SessionStatus is the liveness marker carried inside a SessionSnapshot.
type SessionStatus string

const (
	SessionActive               SessionStatus = "session_active"
	SessionRefreshPendingSubmit SessionStatus = "refresh_pending_submit"
	SessionSubmitting           SessionStatus = "submitting"
)

// PendingSubmit reports whether the status asks the next mount to finish immediately.
func (s SessionStatus) PendingSubmit() bool {
	return s == SessionRefreshPendingSubmit || s == SessionSubmitting
}

// SessionSnapshot is the persisted record of an in-progress attempt. It is
// overwritten wholesale on every write.
type SessionSnapshot struct {
	UserID          string            `json:"user_id"`
	ExamID          string            `json:"exam_id"`
	Answers         map[string]string `json:"answers"`
	StartTime       int64             `json:"start_time"` // epoch millis
	DurationMinutes int               `json:"duration_minutes"`
	Status          SessionStatus     `json:"status"`
	SessionID       string            `json:"session_id,omitempty"`
}

// BelongsTo reports whether the snapshot was written for the given user and exam.
func (s *SessionSnapshot) BelongsTo(userID, examID string) bool {
	return s.UserID == userID && s.ExamID == examID
}
