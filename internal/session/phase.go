package session

// Phase enumerates the lifecycle states of a test attempt.
//
// Transitions are monotonic:
//
//	Idle → Generating → Instructions → Active → Submitting → Completed
//	                 ↘ Failed        ↘ Failed (fatal generation)  ↘ Failed
//
// The single sanctioned re-entry is Failed → Submitting when the failure was
// a remote submission error: the session stays in memory with its answers so
// the user can retry without data loss.
type Phase string

const (
	PhaseIdle         Phase = "IDLE"
	PhaseGenerating   Phase = "GENERATING"
	PhaseInstructions Phase = "INSTRUCTIONS"
	PhaseActive       Phase = "ACTIVE"
	PhaseSubmitting   Phase = "SUBMITTING"
	PhaseCompleted    Phase = "COMPLETED"
	PhaseFailed       Phase = "FAILED"
)

// Terminal reports whether the phase admits no further transitions
// (Failed-by-submission still admits a submit retry; callers that need that
// distinction check FailureKind).
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// FailureKind records why a session entered PhaseFailed.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureStart      FailureKind = "START_FAILED"
	FailureGeneration FailureKind = "GENERATION_FATAL"
	FailureSubmission FailureKind = "SUBMISSION_FAILED"
)
