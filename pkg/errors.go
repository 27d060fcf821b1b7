package pkg

import (
	"errors"
	"fmt"
	"time"
)

// ErrValidationExhausted is reported when a policy violation survives its
// single reformulation round and local repair is used instead.
var ErrValidationExhausted = errors.New("validation exhausted")

// UpstreamError wraps a failure from the reasoner or another remote dependency
type UpstreamError struct {
	Dependency string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream %s failed with status %d: %v", e.Dependency, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s failed: %v", e.Dependency, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// StoreError wraps a failure of the external state store
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// CircuitOpenError is returned when a breaker rejects a call
type CircuitOpenError struct {
	Name    string
	RetryIn time.Duration
}

func (e *CircuitOpenError) Error() string {
	secs := int(e.RetryIn.Round(time.Second) / time.Second)
	return fmt.Sprintf("circuit %s open, retry in %ds", e.Name, secs)
}

// RetryError is the terminal failure of a retried operation
type RetryError struct {
	Op       string
	Attempts int
	Elapsed  time.Duration
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s) in %s: %v", e.Op, e.Attempts, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}
