package session

import "errors"

// Engine errors. Handlers map these onto response codes.
var (
	// ErrStartInFlight rejects a second start while one has already been
	// issued for this controller. The backing generator is expensive and
	// non-idempotent, so the flag is set before the remote call goes out.
	ErrStartInFlight = errors.New("a start has already been issued for this session")

	// ErrStartFailed wraps a failed initial generation/load request.
	// Retriable with a fresh controller.
	ErrStartFailed = errors.New("initial start request failed")

	// ErrInvalidPhase rejects an operation outside its allowed phases.
	ErrInvalidPhase = errors.New("operation not allowed in current phase")

	// ErrInvalidArgument flags caller misuse: an option index outside 0-3
	// or a question id that is not part of the session.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotStartable rejects Begin before any question is available.
	ErrNotStartable = errors.New("no questions available yet")

	// ErrSubmissionFailed wraps a failed remote submission. The session and
	// its answers stay intact; RequestSubmit may be retried.
	ErrSubmissionFailed = errors.New("submission failed")
)
