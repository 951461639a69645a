// Package types defines the value types shared by the rail controller, the head,
// the picker and the command line tools: machine states, status snapshots, coordinates,
// motion requests and soft limits.
package types

import (
	"fmt"
	"strconv"
)

// MachineState is the state token reported by the motion controller.
type MachineState string

const (
	StateIdle    MachineState = "Idle"
	StateRun     MachineState = "Run"
	StateHold    MachineState = "Hold"
	StateDoor    MachineState = "Door"
	StateHome    MachineState = "Home"
	StateAlarm   MachineState = "Alarm"
	StateCheck   MachineState = "Check"
	StateUnknown MachineState = "Unknown"
)

// MachineStates lists every state the controller can report. The status
// parser matches them as alternatives in this order.
var MachineStates = []MachineState{
	StateIdle, StateRun, StateHold, StateDoor, StateHome, StateAlarm, StateCheck,
}

// Unresolved marks a coordinate that no status report has provided.
const Unresolved = "Unknown"

// Position is an X/Y pair exactly as the controller printed it.
type Position struct {
	X string `json:"x" yaml:"x"`
	Y string `json:"y" yaml:"y"`
}

// UnresolvedPosition is the position of a snapshot built without a status report.
func UnresolvedPosition() Position {
	return Position{X: Unresolved, Y: Unresolved}
}

// Resolved reports whether both coordinates parse as numbers.
func (p Position) Resolved() bool {
	_, err := p.Point()
	return err == nil
}

// Point parses the position into floating point coordinates.
func (p Position) Point() (Point, error) {
	x, err := strconv.ParseFloat(p.X, 64)
	if err != nil {
		return Point{}, fmt.Errorf("x coordinate %q: %w", p.X, err)
	}
	y, err := strconv.ParseFloat(p.Y, 64)
	if err != nil {
		return Point{}, fmt.Errorf("y coordinate %q: %w", p.Y, err)
	}
	return Point{X: x, Y: y}, nil
}

func (p Position) String() string {
	return fmt.Sprintf("(%s, %s)", p.X, p.Y)
}

// StatusSnapshot is one decoded status report. Snapshots are never mutated
// after the parser returns them.
type StatusSnapshot struct {
	State           MachineState `json:"state"`
	MachinePosition Position     `json:"m_pos"`
	WorkPosition    Position     `json:"w_pos"`
}

// UnknownStatus is the snapshot used when no status report was received.
func UnknownStatus() StatusSnapshot {
	return StatusSnapshot{
		State:           StateUnknown,
		MachinePosition: UnresolvedPosition(),
		WorkPosition:    UnresolvedPosition(),
	}
}

// IsIdle reports whether the controller can accept a new move.
func (s StatusSnapshot) IsIdle() bool { return s.State == StateIdle }

// Point is an X/Y coordinate in millimetres.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// FormatCoord renders a coordinate the way the controller compares it: three decimals.
func FormatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// Position renders the point with three decimal places.
func (p Point) Position() Position {
	return Position{X: FormatCoord(p.X), Y: FormatCoord(p.Y)}
}

func (p Point) String() string {
	return fmt.Sprintf("(%s, %s)", FormatCoord(p.X), FormatCoord(p.Y))
}

// MotionMode is the G-code motion word used for a move.
type MotionMode string

const (
	ModeRapid     MotionMode = "G0"
	ModeLinear    MotionMode = "G1"
	ModeArcCW     MotionMode = "G2"
	ModeArcCCW    MotionMode = "G3"
	ModeProbe2    MotionMode = "G38.2"
	ModeProbe3    MotionMode = "G38.3"
	ModeProbe4    MotionMode = "G38.4"
	ModeProbe5    MotionMode = "G38.5"
	ModeCancelled MotionMode = "G80"
)

// Supported reports whether moves in this mode can be issued.
func (m MotionMode) Supported() bool { return m == ModeRapid }

// Recognized reports whether the mode is a valid motion word, supported or not.
func (m MotionMode) Recognized() bool {
	switch m {
	case ModeRapid, ModeLinear, ModeArcCW, ModeArcCCW,
		ModeProbe2, ModeProbe3, ModeProbe4, ModeProbe5, ModeCancelled:
		return true
	}
	return false
}

// MotionRequest is one requested X/Y move.
type MotionRequest struct {
	Target Point
	Mode   MotionMode
}

// NewMotionRequest builds a rapid move request to (x, y).
func NewMotionRequest(x, y float64) MotionRequest {
	return MotionRequest{Target: Point{X: x, Y: y}, Mode: ModeRapid}
}
