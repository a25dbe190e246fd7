package engine

import (
	"errors"
	"fmt"

	"github.com/caarlos0/smsalarm/smsproto"
)

var (
	// ErrExchangePending is returned by Send when an exchange is already
	// in flight. The transport carries no correlation token, so a second
	// request would make the reply unattributable.
	ErrExchangePending = errors.New("an exchange is already pending")

	// ErrReplyTimeout means no recognized reply arrived before the
	// deadline. The engine never retries on its own.
	ErrReplyTimeout = errors.New("no reply from panel before deadline")

	// ErrSessionRunning is returned by Session.Start while a download is
	// already in progress.
	ErrSessionRunning = errors.New("configuration session already running")
)

// TransportError wraps a failure to hand the SMS to the OS messaging
// stack. It is surfaced synchronously and no timeout is armed.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("could not transmit: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PanelError is an explicit ERR: reply. The code is opaque to the engine
// and passed through verbatim.
type PanelError struct {
	Code string
}

func (e *PanelError) Error() string {
	return fmt.Sprintf("panel error %s: %s", e.Code, panelErrorText(e.Code))
}

// DesyncError means a reply arrived but did not match the response kind
// the current configuration step expects. It is never silently retried:
// masking a panel that drifted out of sync is worse than failing.
type DesyncError struct {
	Step int
	Want smsproto.Kind
	Got  smsproto.Kind
}

func (e *DesyncError) Error() string {
	return fmt.Sprintf("protocol desync at step %d: want %s, got %s", e.Step, e.Want, e.Got)
}

// StepError carries which configuration step failed so callers can render
// a useful message.
type StepError struct {
	Step int
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("configuration step %d failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Known panel error codes. The lookup is advisory: unknown codes still
// round-trip verbatim.
var panelErrors = map[string]string{
	"E01": "command refused",
	"E02": "invalid credentials",
	"E03": "open zones",
	"E04": "unknown scenario",
	"E05": "busy, try again later",
}

func panelErrorText(code string) string {
	if s, ok := panelErrors[code]; ok {
		return s
	}
	return "unknown error"
}
