package grbl

import (
	"errors"
	"fmt"
	"time"

	"scarif/internal/hardware/comm"
	"scarif/pkg/types"
)

// ErrTransportNotOpen is returned when a command is issued before the port is open.
var ErrTransportNotOpen = fmt.Errorf("grbl: %w", comm.ErrNotOpen)

// MalformedCommandError reports a command that does not carry the prefix its
// class requires. Nothing is written to the wire.
type MalformedCommandError struct {
	Command string
	Prefix  string
}

func (e *MalformedCommandError) Error() string {
	return fmt.Sprintf("malformed command %q: does not start with %s", e.Command, e.Prefix)
}

// ControllerBusyError is returned when a move is requested while the
// controller is not idle.
type ControllerBusyError struct {
	State     types.MachineState
	Requested types.MotionRequest
}

func (e *ControllerBusyError) Error() string {
	return fmt.Sprintf("controller busy: state is %s and not %s, cannot %s to %s",
		e.State, types.StateIdle, e.Requested.Mode, e.Requested.Target)
}

// UnsupportedMotionModeError is returned for motion words the controller
// understands but this system does not issue.
type UnsupportedMotionModeError struct {
	Mode types.MotionMode
}

func (e *UnsupportedMotionModeError) Error() string {
	return fmt.Sprintf("motion mode %s not implemented", e.Mode)
}

// InvalidMotionModeError is returned for strings that are not motion words.
type InvalidMotionModeError struct {
	Mode types.MotionMode
}

func (e *InvalidMotionModeError) Error() string {
	return fmt.Sprintf("%q is not a valid motion mode", string(e.Mode))
}

// MotionTimeoutError is returned when a move does not converge within the
// configured maximum wait.
type MotionTimeoutError struct {
	Target types.Point
	Last   types.StatusSnapshot
	Waited time.Duration
}

func (e *MotionTimeoutError) Error() string {
	return fmt.Sprintf("move to %s not complete after %s: state %s, work position %s",
		e.Target, e.Waited, e.Last.State, e.Last.WorkPosition)
}

// ControllerError is an "error:N" or "ALARM:N" line reported in a response.
type ControllerError struct {
	Command string
	Line    string
}

func (e *ControllerError) Error() string {
	return fmt.Sprintf("controller rejected %q: %s", e.Command, e.Line)
}

// IsValidation reports whether err was raised before any wire I/O.
func IsValidation(err error) bool {
	var (
		malformed   *MalformedCommandError
		unsupported *UnsupportedMotionModeError
		invalid     *InvalidMotionModeError
		limit       *types.SoftLimitExceededError
	)
	return errors.As(err, &malformed) || errors.As(err, &unsupported) ||
		errors.As(err, &invalid) || errors.As(err, &limit)
}
