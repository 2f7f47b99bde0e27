package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Exam-specific ─────────────────────────────────────────────────
	ErrExamNotAvailable ErrCode = "EXAM_NOT_AVAILABLE"
	ErrExamNotPublished ErrCode = "EXAM_NOT_PUBLISHED"
	ErrNoQuestions      ErrCode = "NO_QUESTIONS"
	ErrInvalidExamData  ErrCode = "INVALID_EXAM_DATA"

	// ─── Attempt-specific ──────────────────────────────────────────────
	ErrDuplicateSession  ErrCode = "ATTEMPT_OPEN_ELSEWHERE"
	ErrAlreadySubmitted  ErrCode = "ATTEMPT_ALREADY_SUBMITTED"
	ErrAttemptLocked     ErrCode = "ATTEMPT_NOT_ACCEPTING"
	ErrFinishUnconfirmed ErrCode = "FINISH_NOT_CONFIRMED"
	ErrUnknownQuestion   ErrCode = "UNKNOWN_QUESTION"
	ErrSubmissionFailed  ErrCode = "SUBMISSION_FAILED"
	ErrSessionReplaced   ErrCode = "SESSION_REPLACED"

	// ─── Upstream ──────────────────────────────────────────────────────
	ErrExamServiceDown ErrCode = "EXAM_SERVICE_UNAVAILABLE"

	// ─── Server ────────────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"
	ErrInternal          ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid or expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Exam-specific ─────────────────────────────────────────────────
	case ErrExamNotAvailable:
		return "This exam is not currently available."
	case ErrExamNotPublished:
		return "This exam has not been published yet."
	case ErrNoQuestions:
		return "This exam has no questions."
	case ErrInvalidExamData:
		return "The exam data is invalid. Please reload the exam."

	// ─── Attempt-specific ──────────────────────────────────────────────
	case ErrDuplicateSession:
		return "This exam is already open in another tab or browser. Close it to continue there."
	case ErrAlreadySubmitted:
		return "You have already submitted this exam."
	case ErrAttemptLocked:
		return "This attempt no longer accepts changes."
	case ErrFinishUnconfirmed:
		return "Please confirm that you want to finish the exam."
	case ErrUnknownQuestion:
		return "The question does not belong to this exam."
	case ErrSubmissionFailed:
		return "Your answers could not be submitted. They are saved; please try again."
	case ErrSessionReplaced:
		return "This exam was reopened with the same session. This connection is no longer used."

	// ─── Upstream ──────────────────────────────────────────────────────
	case ErrExamServiceDown:
		return "The exam service is unreachable. Please try again shortly."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please slow down."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
