package websocket

import (
	"github.com/stemsi/solvex/internal/attempt"
	"github.com/stemsi/solvex/internal/model"
	"github.com/stemsi/solvex/internal/response"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer  Action = "answer"
	ActionFinish  Action = "finish"
	ActionSuspend Action = "suspend"
	ActionPing    Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action" binding:"required,oneof=answer finish suspend ping"`
}

// AnswerRequest is sent by the client to record a single answer.
type AnswerRequest struct {
	Action Action `json:"action"`
	QID    string `json:"q_id" binding:"required,max=128"`
	Answer string `json:"ans" binding:"max=10000"`
}

// FinishRequest asks to end the attempt. Confirmed carries the user's answer
// to the "are you sure" prompt.
type FinishRequest struct {
	Action    Action `json:"action"`
	Confirmed bool   `json:"confirmed"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState     Event = "state"
	EventTick      Event = "tick"
	EventSaved     Event = "saved"
	EventSubmitted Event = "submitted"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// StateResponse carries the full attempt view. Sent on mount and on every
// state change.
type StateResponse struct {
	Event Event        `json:"event"`
	View  attempt.View `json:"view"`
}

type TickResponse struct {
	Event    Event `json:"event"`
	TimeLeft int   `json:"time_left"`
}

type SavedResponse struct {
	Event Event  `json:"event"`
	QID   string `json:"q_id"`
}

type SubmittedResponse struct {
	Event  Event               `json:"event"`
	Result *model.SubmitResult `json:"result"`
}

type ErrorResponse struct {
	Event Event            `json:"event"`
	Code  response.ErrCode `json:"code"`
	Error string           `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
