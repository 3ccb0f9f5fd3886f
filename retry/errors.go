package retry

import (
	"fmt"
	"time"
)

// ExhaustedError is returned when a retryable failure persisted until the
// attempt limit or the elapsed-time limit. Err is the last attempt's error;
// errors.As and outcall.KindOf see through it.
type ExhaustedError struct {
	Attempts int
	Elapsed  time.Duration
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("outcall: retries exhausted after %d attempt(s) in %s: %v", e.Attempts, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }
