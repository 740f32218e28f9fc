package schemas

import "fmt"

// SessionError means the browser session is unusable. It aborts the whole
// run; the worker that hit it cancels the remaining work.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("browser session: %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// NewSessionError wraps err as fatal for the scan run.
func NewSessionError(op string, err error) *SessionError {
	return &SessionError{Op: op, Err: err}
}

// NavigationError means one domain could not be loaded. The domain is
// recorded with the failure and the run continues.
type NavigationError struct {
	Domain string
	Result NavigationResult
	Err    error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate %s: %s: %v", e.Domain, e.Result.Status, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// DetectionError means the snapshot or classification failed on an otherwise
// loaded page. Recorded per domain, never fatal.
type DetectionError struct {
	Domain string
	Err    error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("detect %s: %v", e.Domain, e.Err)
}

func (e *DetectionError) Unwrap() error { return e.Err }

// InteractionError means one click failed. Recorded on the outcome; the
// remaining clickables are still attempted.
type InteractionError struct {
	Domain string
	Target string
	Err    error
}

func (e *InteractionError) Error() string {
	return fmt.Sprintf("interact %s (%s): %v", e.Domain, e.Target, e.Err)
}

func (e *InteractionError) Unwrap() error { return e.Err }
