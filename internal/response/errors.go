package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Session engine ────────────────────────────────────────────────
	ErrNoActiveSession ErrCode = "NO_ACTIVE_SESSION"
	ErrStartInFlight   ErrCode = "START_IN_FLIGHT"
	ErrStartFailed     ErrCode = "START_FAILED"
	ErrGenerationFatal ErrCode = "GENERATION_FATAL"
	ErrInvalidPhase    ErrCode = "INVALID_PHASE"
	ErrInvalidArgument ErrCode = "INVALID_ARGUMENT"
	ErrNotStartable    ErrCode = "NOT_STARTABLE"
	ErrSubmission      ErrCode = "SUBMISSION_FAILED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "The request payload is invalid."
	case ErrNoActiveSession:
		return "You have no test session in progress."
	case ErrStartInFlight:
		return "A test is already being prepared for you."
	case ErrStartFailed:
		return "The test could not be started. Please try again."
	case ErrGenerationFatal:
		return "Question generation failed and the test cannot continue."
	case ErrInvalidPhase:
		return "This action is not available in the current test phase."
	case ErrInvalidArgument:
		return "The question or option reference is not valid."
	case ErrNotStartable:
		return "The test has no questions available yet."
	case ErrSubmission:
		return "Your answers could not be submitted. Nothing was lost; please retry."
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
