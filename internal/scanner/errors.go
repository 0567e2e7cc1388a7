package scanner

import (
	"errors"
	"fmt"
)

// ErrScanAlreadyRunning rejects a trigger while another scan is in flight.
// The rejected trigger performs no work and creates no scan log.
var ErrScanAlreadyRunning = errors.New("a scan is already running")

// ErrNoRunningScan rejects a cancellation when nothing is in flight
var ErrNoRunningScan = errors.New("no scan is running")

// FatalScanError aborts the whole run. Only universe refresh, regime
// classification and persistence failures qualify; per-asset failures are
// collected in the scan log instead.
type FatalScanError struct {
	Stage string
	Err   error
}

func (e *FatalScanError) Error() string {
	return fmt.Sprintf("scan failed during %s: %v", e.Stage, e.Err)
}

func (e *FatalScanError) Unwrap() error {
	return e.Err
}

func fatal(stage string, err error) *FatalScanError {
	return &FatalScanError{Stage: stage, Err: err}
}
