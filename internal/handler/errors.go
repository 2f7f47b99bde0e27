package handler

import (
	"errors"
	"net/http"

	"github.com/stemsi/solvex/internal/attempt"
	"github.com/stemsi/solvex/internal/repository"
	"github.com/stemsi/solvex/internal/response"
)

// mountError maps a failure to load the exam paper to a status and code.
func mountError(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, repository.ErrExamNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, repository.ErrExamNotOpen):
		return http.StatusForbidden, response.ErrExamNotAvailable
	case errors.Is(err, repository.ErrNoQuestions):
		return http.StatusUnprocessableEntity, response.ErrNoQuestions
	case errors.Is(err, repository.ErrUnauthorized):
		return http.StatusUnauthorized, response.ErrTokenInvalid
	}
	return http.StatusServiceUnavailable, response.ErrExamServiceDown
}

// attemptError maps a manager error to a code for the stream.
func attemptError(err error) response.ErrCode {
	switch {
	case errors.Is(err, attempt.ErrNotConfirmed):
		return response.ErrFinishUnconfirmed
	case errors.Is(err, attempt.ErrUnknownQuestion):
		return response.ErrUnknownQuestion
	case errors.Is(err, attempt.ErrNotAccepting):
		return response.ErrAttemptLocked
	case errors.Is(err, attempt.ErrSubmitFailed):
		return response.ErrSubmissionFailed
	case errors.Is(err, attempt.ErrInvalidExam):
		return response.ErrInvalidExamData
	}
	return response.ErrInternal
}

// deniedCode explains why a mount ended in a terminal state.
func deniedCode(state attempt.State) response.ErrCode {
	switch state {
	case attempt.StateDeniedDuplicate:
		return response.ErrDuplicateSession
	case attempt.StateDeniedSubmitted:
		return response.ErrAlreadySubmitted
	case attempt.StateError:
		return response.ErrInvalidExamData
	}
	return response.ErrAttemptLocked
}
