// Package grbl is the client for the rail motion controller: command framing,
// dispatch, status decoding, synchronous moves and the settings table.
package grbl

import "strings"

// Kind is the wire class of a command.
type Kind int

const (
	KindSystem Kind = iota
	KindMotion
	KindRealtime
)

func (k Kind) String() string {
	switch k {
	case KindSystem:
		return "system"
	case KindMotion:
		return "motion"
	case KindRealtime:
		return "realtime"
	}
	return "unknown"
}

// Prefix returns the leading character a command of this kind must carry.
func (k Kind) Prefix() string {
	switch k {
	case KindSystem:
		return "$"
	case KindMotion:
		return "G"
	}
	return ""
}

// Real-time control bytes. They are never newline terminated and the
// controller acts on them whatever it is doing.
const (
	RealtimeCycleStart byte = '~'
	RealtimeFeedHold   byte = '!'
	RealtimeStatus     byte = '?'
	RealtimeReset      byte = 0x18
)

// Command is a classified command ready for the framer.
type Command struct {
	kind Kind
	text string
}

// NewSystemCommand classifies a '$' command.
func NewSystemCommand(s string) (Command, error) {
	return newFramed(KindSystem, s)
}

// NewMotionCommand classifies a 'G' command.
func NewMotionCommand(s string) (Command, error) {
	return newFramed(KindMotion, s)
}

func newFramed(kind Kind, s string) (Command, error) {
	if !strings.HasPrefix(s, kind.Prefix()) {
		return Command{}, &MalformedCommandError{Command: s, Prefix: kind.Prefix()}
	}
	return Command{kind: kind, text: s}, nil
}

// Realtime wraps a control byte.
func Realtime(b byte) Command {
	return Command{kind: KindRealtime, text: string([]byte{b})}
}

// Kind returns the command class.
func (c Command) Kind() Kind { return c.kind }

// Text returns the command without framing.
func (c Command) Text() string { return c.text }

// Wire returns the bytes written to the transport.
func (c Command) Wire() []byte {
	if c.kind == KindRealtime {
		return []byte(c.text)
	}
	return []byte(c.text + "\n")
}

func (c Command) String() string {
	if c.kind == KindRealtime && c.text[0] == RealtimeReset {
		return "ctrl-x"
	}
	return c.text
}
