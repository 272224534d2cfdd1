package cmd

import (
	"errors"
	"strconv"
)

// Exit codes for hammx CLI
const (
	// ExitSuccess indicates the request succeeded
	ExitSuccess = 0

	// ExitFailure indicates an HTTP error status with --fail, a schema
	// violation or an unmatched --select
	ExitFailure = 1

	// ExitThresholdFailure indicates a bench threshold was not met
	ExitThresholdFailure = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// ExitError carries the process exit code for err.
type ExitError struct {
	Code int
	Err  error
	// Quiet suppresses the "Error:" line, for failures already reported.
	Quiet bool
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return "exit status " + strconv.Itoa(e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: code, Err: err}
}

func usageError(err error) error {
	return withCode(ExitUsageError, err)
}

func configError(err error) error {
	return withCode(ExitConfigError, err)
}

// exitCode maps err to a process exit code. Errors without a code exit 1.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}
