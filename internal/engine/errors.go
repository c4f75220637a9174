package engine

// Typed failures. Every operation reports exactly one of these (or wraps
// repo.ErrNotFound); nothing fails silently and nothing retries.

// ValidationError means the input itself is malformed and must be corrected
// by the caller.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

// StateConflictError means the operation is illegal in the entity's current
// state: task already assigned, project finalized, employee unavailable, and
// the like.
type StateConflictError struct {
	Msg string
}

func (e StateConflictError) Error() string { return e.Msg }

// ResourceExhaustedError means no employee was available for assignment. The
// affected project is forced to pending as an observable side effect even
// though the assignment itself failed.
type ResourceExhaustedError struct {
	Msg string
}

func (e ResourceExhaustedError) Error() string { return e.Msg }
