// Package attempt implements the exam attempt session state machine: it decides
// on mount whether an attempt starts fresh, resumes, or is blocked, runs the
// countdown, writes every answer through to the session store, and reconciles
// the outcome of the final submission.
package attempt

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stemsi/solvex/internal/model"
)

// State is the caller-visible phase of an attempt.
type State string

const (
	StateInitializing    State = "initializing"
	StateActive          State = "active"
	StateDeniedDuplicate State = "resuming_denied_duplicate"
	StateDeniedSubmitted State = "resuming_denied_submitted"
	StateSubmitting      State = "submitting"
	StateSubmitted       State = "submitted"
	StateErrorSubmitting State = "error_submitting"
	StateError           State = "error"
)

// Terminal reports whether no further transition can happen for this mount.
func (s State) Terminal() bool {
	switch s {
	case StateDeniedDuplicate, StateDeniedSubmitted, StateSubmitted, StateError:
		return true
	}
	return false
}

var (
	ErrInvalidExam     = errors.New("invalid exam data")
	ErrNotAccepting    = errors.New("attempt is not accepting this action")
	ErrNotConfirmed    = errors.New("finish was not confirmed")
	ErrUnknownQuestion = errors.New("unknown question")
	ErrSubmitFailed    = errors.New("submission failed")
)

// Store is the session store the manager reads and writes. Implementations
// report transport failures as errors; the manager never lets them block an attempt.
type Store interface {
	ReadAttemptStatus(ctx context.Context, userID, examID string) (model.AttemptStatus, error)
	WriteAttemptStatus(ctx context.Context, userID, examID string, status model.AttemptStatus) error
	ReadSessionSnapshot(ctx context.Context, userID, examID string) (*model.SessionSnapshot, error)
	WriteSessionSnapshot(ctx context.Context, userID, examID string, snap *model.SessionSnapshot) error
	DeleteSessionSnapshot(ctx context.Context, userID, examID string) error
}

// Submitter sends the final answers to the exam service.
type Submitter interface {
	Submit(ctx context.Context, examID string, answers map[string]string) (*model.SubmitResult, error)
}

// SubmitFunc adapts a function to Submitter.
type SubmitFunc func(ctx context.Context, examID string, answers map[string]string) (*model.SubmitResult, error)

func (f SubmitFunc) Submit(ctx context.Context, examID string, answers map[string]string) (*model.SubmitResult, error) {
	return f(ctx, examID, answers)
}

// ConfirmFunc asks the user a synchronous yes/no before a manual finish.
type ConfirmFunc func(ctx context.Context) bool

type confirmKey struct{}

// WithConfirmation attaches the user's answer to the finish prompt to ctx.
func WithConfirmation(ctx context.Context, confirmed bool) context.Context {
	return context.WithValue(ctx, confirmKey{}, confirmed)
}

// ConfirmFromContext is the default ConfirmFunc: it reads the answer stored by
// WithConfirmation and declines when none is present.
func ConfirmFromContext(ctx context.Context) bool {
	ok, _ := ctx.Value(confirmKey{}).(bool)
	return ok
}

// Options tune a Manager. Zero values pick production defaults.
type Options struct {
	Now           func() time.Time
	Confirm       ConfirmFunc
	SubmitTimeout time.Duration
	Logger        zerolog.Logger
}

// View is a copy of the manager's state for rendering.
type View struct {
	State         State               `json:"state"`
	ExamID        string              `json:"exam_id"`
	Title         string              `json:"title"`
	SessionID     string              `json:"session_id"`
	TimeLeft      int                 `json:"time_left"`
	Answers       map[string]string   `json:"answers,omitempty"`
	Resumed       bool                `json:"resumed"`
	PendingSubmit bool                `json:"pending_submit"`
	Result        *model.SubmitResult `json:"result,omitempty"`
	Error         string              `json:"error,omitempty"`
}

var examValidator = govalidator.New(govalidator.WithRequiredStructEnabled())

// Manager owns one mount of one attempt. It is safe for use from several
// goroutines; the lock is not held while the submission is in flight.
type Manager struct {
	mu        sync.Mutex
	exam      *model.ExamSnapshot
	user      model.User
	sessionID string
	store     Store
	submitter Submitter
	now       func() time.Time
	confirm   ConfirmFunc
	timeout   time.Duration
	log       zerolog.Logger

	initialized   bool
	state         State
	answers       map[string]string
	startTime     int64
	duration      int
	timeLeft      int
	resumed       bool
	pendingSubmit bool
	result        *model.SubmitResult
	lastErr       error
}

// New creates a Manager in StateInitializing. Call Init before anything else.
func New(exam *model.ExamSnapshot, user model.User, sessionID string, store Store, submitter Submitter, opts Options) *Manager {
	m := &Manager{
		exam:      exam,
		user:      user,
		sessionID: sessionID,
		store:     store,
		submitter: submitter,
		now:       opts.Now,
		confirm:   opts.Confirm,
		timeout:   opts.SubmitTimeout,
		state:     StateInitializing,
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.confirm == nil {
		m.confirm = ConfirmFromContext
	}
	if m.timeout <= 0 {
		m.timeout = 30 * time.Second
	}

	examID := ""
	if exam != nil {
		examID = exam.ExamID
	}
	m.log = opts.Logger.With().
		Str("component", "attempt").
		Str("user_id", user.ID).
		Str("exam_id", examID).
		Str("session_id", sessionID).
		Logger()
	return m
}

// Init decides how this mount starts. It runs once; later calls return the
// current state without touching the store.
func (m *Manager) Init(ctx context.Context) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return m.state
	}
	m.initialized = true

	if err := m.validate(); err != nil {
		m.state = StateError
		m.lastErr = err
		m.log.Error().Err(err).Msg("Rejecting attempt mount")
		return m.state
	}

	userID, examID := m.user.ID, m.exam.ExamID

	status, err := m.store.ReadAttemptStatus(ctx, userID, examID)
	if err != nil {
		m.log.Warn().Err(err).Msg("Attempt status unreadable, starting fresh")
		m.startFresh(ctx)
		return m.state
	}
	if status == model.AttemptSubmitted {
		m.state = StateDeniedSubmitted
		m.log.Info().Msg("Attempt already submitted")
		return m.state
	}

	snap, err := m.store.ReadSessionSnapshot(ctx, userID, examID)
	if err != nil {
		m.log.Warn().Err(err).Msg("Session snapshot unreadable, starting fresh")
		m.startFresh(ctx)
		return m.state
	}
	if snap == nil || !snap.BelongsTo(userID, examID) {
		m.startFresh(ctx)
		return m.state
	}

	switch {
	case snap.Status == model.SessionActive && snap.SessionID != m.sessionID && status == model.AttemptInProgress:
		m.denyDuplicate(snap)
	case snap.Status.PendingSubmit():
		if snap.SessionID == m.sessionID || (snap.SessionID == "" && status == model.AttemptInProgress) {
			m.adoptPendingSubmit(snap)
		} else {
			m.denyDuplicate(snap)
		}
	default:
		m.resume(ctx, snap, status)
	}
	return m.state
}

func (m *Manager) validate() error {
	if m.user.ID == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidExam)
	}
	if m.exam == nil {
		return fmt.Errorf("%w: missing exam", ErrInvalidExam)
	}
	if err := examValidator.Struct(m.exam); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExam, err)
	}
	return nil
}

func (m *Manager) blankAnswers() map[string]string {
	answers := make(map[string]string, len(m.exam.Questions))
	for _, q := range m.exam.Questions {
		answers[q.ID] = ""
	}
	return answers
}

func (m *Manager) startFresh(ctx context.Context) {
	m.startTime = m.now().UnixMilli()
	m.duration = m.exam.DurationMinutes
	m.answers = m.blankAnswers()
	m.timeLeft = m.duration * 60
	m.state = StateActive

	m.persist(ctx, model.SessionActive)
	m.writeStatus(ctx, model.AttemptInProgress)
	m.log.Info().Int("time_left", m.timeLeft).Msg("Attempt started")
}

func (m *Manager) denyDuplicate(snap *model.SessionSnapshot) {
	m.state = StateDeniedDuplicate
	m.log.Warn().Str("owner_session_id", snap.SessionID).Msg("Attempt is open in another session")
}

func (m *Manager) restoreAnswers(snap *model.SessionSnapshot) {
	m.answers = m.blankAnswers()
	maps.Copy(m.answers, snap.Answers)
}

// adoptPendingSubmit keeps the stored forced-submit marker and zeroes the
// countdown so the next expiry check finishes the attempt.
func (m *Manager) adoptPendingSubmit(snap *model.SessionSnapshot) {
	m.restoreAnswers(snap)
	m.startTime = snap.StartTime
	m.duration = snap.DurationMinutes
	m.timeLeft = 0
	m.resumed = true
	m.pendingSubmit = true
	m.state = StateActive
	m.log.Info().Str("stored_status", string(snap.Status)).Msg("Resuming pending submission")
}

func (m *Manager) resume(ctx context.Context, snap *model.SessionSnapshot, status model.AttemptStatus) {
	m.restoreAnswers(snap)

	now := m.now().UnixMilli()
	m.startTime = now
	if snap.SessionID == m.sessionID {
		m.startTime = snap.StartTime
	}
	m.duration = snap.DurationMinutes
	m.timeLeft = remainingSeconds(m.duration, m.startTime, now)
	m.resumed = true
	m.state = StateActive

	m.persist(ctx, model.SessionActive)
	if status != model.AttemptInProgress {
		m.writeStatus(ctx, model.AttemptInProgress)
	}
	m.log.Info().Int("time_left", m.timeLeft).Msg("Attempt resumed")
}

func remainingSeconds(durationMinutes int, startMillis, nowMillis int64) int {
	elapsed := (nowMillis - startMillis) / 1000
	if elapsed < 0 {
		elapsed = 0
	}
	left := int64(durationMinutes)*60 - elapsed
	if left < 0 {
		return 0
	}
	return int(left)
}

// persist overwrites the stored snapshot from memory. Failures are logged only.
func (m *Manager) persist(ctx context.Context, status model.SessionStatus) {
	snap := &model.SessionSnapshot{
		UserID:          m.user.ID,
		ExamID:          m.exam.ExamID,
		Answers:         maps.Clone(m.answers),
		StartTime:       m.startTime,
		DurationMinutes: m.duration,
		Status:          status,
		SessionID:       m.sessionID,
	}
	if err := m.store.WriteSessionSnapshot(ctx, m.user.ID, m.exam.ExamID, snap); err != nil {
		m.log.Warn().Err(err).Str("status", string(status)).Msg("Session snapshot write failed")
	}
}

func (m *Manager) writeStatus(ctx context.Context, status model.AttemptStatus) {
	if err := m.store.WriteAttemptStatus(ctx, m.user.ID, m.exam.ExamID, status); err != nil {
		m.log.Warn().Err(err).Str("status", string(status)).Msg("Attempt status write failed")
	}
}

// accepting reports whether answers may still change. StateErrorSubmitting
// accepts too: after a failed submission the student keeps editing until the
// retry.
func (m *Manager) accepting() bool {
	if m.state != StateActive && m.state != StateErrorSubmitting {
		return false
	}
	return m.timeLeft > 0 && !m.pendingSubmit
}

// SetAnswer records one answer and writes the full snapshot through.
func (m *Manager) SetAnswer(ctx context.Context, questionID, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.accepting() {
		return ErrNotAccepting
	}
	if !m.exam.HasQuestion(questionID) {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}

	m.answers[questionID] = value
	m.persist(ctx, model.SessionActive)
	return nil
}

// TimerRunning reports whether Tick would count down.
func (m *Manager) TimerRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timerRunning()
}

// timerRunning covers StateErrorSubmitting as well; a failed submission does
// not stop the clock.
func (m *Manager) timerRunning() bool {
	return (m.state == StateActive || m.state == StateErrorSubmitting) && m.timeLeft > 0
}

// Tick advances the countdown by one second. When it reaches zero the attempt
// is finished without confirmation and the finish error, if any, is returned.
func (m *Manager) Tick(ctx context.Context) error {
	m.mu.Lock()
	if !m.timerRunning() {
		m.mu.Unlock()
		return nil
	}
	m.timeLeft--
	expired := m.timeLeft == 0
	m.mu.Unlock()

	if !expired {
		return nil
	}
	m.log.Info().Msg("Time is up, submitting")
	_, err := m.Finish(ctx, true)
	if errors.Is(err, ErrNotAccepting) {
		return nil
	}
	return err
}

// CheckExpiry finishes an active attempt whose countdown is already at zero,
// which is how a pending forced submission found on mount gets sent.
func (m *Manager) CheckExpiry(ctx context.Context) error {
	m.mu.Lock()
	due := m.state == StateActive && m.timeLeft == 0
	m.mu.Unlock()

	if !due {
		return nil
	}
	_, err := m.Finish(ctx, true)
	if errors.Is(err, ErrNotAccepting) {
		return nil
	}
	return err
}

// Suspend is called when the hosting page is about to go away. It marks the
// stored snapshot so the next mount of the same session submits immediately.
// It reports whether anything was written.
func (m *Manager) Suspend(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive && m.state != StateErrorSubmitting {
		return false
	}
	m.persist(ctx, model.SessionRefreshPendingSubmit)
	m.log.Info().Int("time_left", m.timeLeft).Msg("Attempt suspended")
	return true
}

func (m *Manager) canFinish() bool {
	return m.state == StateActive || m.state == StateErrorSubmitting
}

// Finish submits the attempt. A manual finish (auto=false) needs confirmation.
// While a submission is in flight or after it succeeded, Finish returns
// ErrNotAccepting. A failed submission leaves the attempt resumable and the
// returned error wraps ErrSubmitFailed.
func (m *Manager) Finish(ctx context.Context, auto bool) (*model.SubmitResult, error) {
	m.mu.Lock()
	if !m.canFinish() {
		m.mu.Unlock()
		return nil, ErrNotAccepting
	}
	m.mu.Unlock()

	if !auto && !m.confirm(ctx) {
		return nil, ErrNotConfirmed
	}

	m.mu.Lock()
	if !m.canFinish() {
		m.mu.Unlock()
		return nil, ErrNotAccepting
	}
	m.persist(ctx, model.SessionSubmitting)
	m.state = StateSubmitting
	m.lastErr = nil
	answers := maps.Clone(m.answers)
	examID := m.exam.ExamID
	m.mu.Unlock()

	m.log.Info().Bool("auto", auto).Int("answers", len(answers)).Msg("Submitting attempt")

	// The submission outlives the caller: a page that goes away mid-submit
	// must not turn a successful submit into a failed one.
	subCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	result, err := m.submitter.Submit(subCtx, examID, answers)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.state = StateErrorSubmitting
		m.lastErr = err
		m.pendingSubmit = false
		m.rollbackSubmitting(ctx)
		m.log.Error().Err(err).Msg("Submission failed, attempt kept resumable")
		return nil, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}

	m.state = StateSubmitted
	m.result = result
	if err := m.store.DeleteSessionSnapshot(ctx, m.user.ID, examID); err != nil {
		m.log.Warn().Err(err).Msg("Session snapshot delete failed")
	}
	m.writeStatus(ctx, model.AttemptSubmitted)
	m.log.Info().Msg("Attempt submitted")
	return result, nil
}

// rollbackSubmitting undoes the submitting marker after a failed submission.
func (m *Manager) rollbackSubmitting(ctx context.Context) {
	snap, err := m.store.ReadSessionSnapshot(ctx, m.user.ID, m.exam.ExamID)
	if err != nil {
		m.log.Warn().Err(err).Msg("Cannot read snapshot for rollback, rewriting from memory")
	}
	if snap != nil && snap.Status != model.SessionSubmitting {
		return
	}
	m.persist(ctx, model.SessionActive)
	m.writeStatus(ctx, model.AttemptInProgress)
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SessionID returns the identity this mount runs under.
func (m *Manager) SessionID() string {
	return m.sessionID
}

// Err returns the error behind StateError or StateErrorSubmitting.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// View returns a snapshot of the state for rendering. Answers are only
// included while the attempt can still be worked on or is being submitted.
func (m *Manager) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := View{
		State:         m.state,
		SessionID:     m.sessionID,
		TimeLeft:      m.timeLeft,
		Resumed:       m.resumed,
		PendingSubmit: m.pendingSubmit,
		Result:        m.result,
	}
	if m.exam != nil {
		v.ExamID = m.exam.ExamID
		v.Title = m.exam.Title
	}
	switch m.state {
	case StateActive, StateSubmitting, StateErrorSubmitting:
		v.Answers = maps.Clone(m.answers)
	}
	if m.lastErr != nil {
		v.Error = m.lastErr.Error()
	}
	return v
}
