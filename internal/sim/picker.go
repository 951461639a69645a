package sim

import (
	"context"
	"fmt"
	"sync"

	"scarif/internal/hardware/comm"
)

var pickerSequences = map[byte][]string{
	'i': {"insert", "extend", "release", "retract", "end insert"},
	'r': {"retrieve", "extend", "grip", "retract", "end retrieve"},
	'h': {"home", "end home"},
}

// Picker simulates the picker board: each token byte produces a few
// progress lines and a final line starting with "end".
type Picker struct {
	mu     sync.Mutex
	open   bool
	out    []string
	tokens []byte
	// Mute drops the "end" line, as a board that stalls mid-sequence.
	Mute bool
}

var _ comm.Transport = (*Picker)(nil)

// NewPicker 创建模拟机械手
func NewPicker() *Picker {
	return &Picker{}
}

// Open marks the transport open.
func (p *Picker) Open(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = true
	return nil
}

// Close marks the transport closed.
func (p *Picker) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = false
	return nil
}

// IsOpen reports whether Open was called.
func (p *Picker) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Tokens returns every token received.
func (p *Picker) Tokens() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.tokens)
}

// Write accepts token bytes.
func (p *Picker) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return 0, comm.ErrNotOpen
	}
	for _, t := range b {
		p.tokens = append(p.tokens, t)
		seq, ok := pickerSequences[t]
		if !ok {
			p.out = append(p.out, fmt.Sprintf("unknown token %q", t), "end")
			continue
		}
		if p.Mute {
			seq = seq[:len(seq)-1]
		}
		p.out = append(p.out, seq...)
	}
	return len(b), nil
}

// ReadLine returns the next queued line, or "" when none is queued.
func (p *Picker) ReadLine() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return "", comm.ErrNotOpen
	}
	if len(p.out) == 0 {
		return "", nil
	}
	line := p.out[0]
	p.out = p.out[1:]
	return line + "\n", nil
}
