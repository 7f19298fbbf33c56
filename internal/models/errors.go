package models

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited marks an externally reported rate-limit rejection.
	// Call sites back off and retry; after bounded attempts it degrades the
	// single affected analyst, never the run.
	ErrRateLimited = errors.New("rate limited")

	// ErrAgentTimeout marks an analyst task that exceeded its deadline.
	ErrAgentTimeout = errors.New("analyst timed out")

	// ErrDataUnavailable marks a data-tool result that came back empty or
	// failed; downstream stages flag low confidence instead of aborting.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrSynthesisFailed marks a synthesis step that could not produce a
	// decision. This is fatal to the run.
	ErrSynthesisFailed = errors.New("synthesis failed")

	// ErrRunInFlight is returned when a run is requested for a symbol whose
	// previous run has not reached a terminal state.
	ErrRunInFlight = errors.New("run already in flight for symbol")

	// ErrExecutionFailed marks a failed order submission. The decision
	// itself stays valid and unexecuted; there is no silent retry.
	ErrExecutionFailed = errors.New("execution failed")
)

// ConfigError is a fail-fast configuration problem detected before any run
// starts: malformed symbol, disallowed asset-class/feature combination.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// StageError records which pipeline stage aborted a run and why.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
