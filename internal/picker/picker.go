// Package picker drives the tape picker board. The board takes a single
// token byte per sequence and prints progress lines, the last of which
// starts with "end".
package picker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"scarif/internal/hardware/comm"
	"scarif/internal/logging"
)

// Sequence tokens understood by the board.
const (
	TokenInsert   byte = 'i'
	TokenRetrieve byte = 'r'
	TokenHome     byte = 'h'
)

// EndSentinel prefixes the last line of every sequence.
const EndSentinel = "end"

// ErrPickerTimeout is returned when a sequence does not finish within MaxWait.
var ErrPickerTimeout = errors.New("picker: sequence did not finish")

// Config bounds how long a sequence may run. Zero waits indefinitely.
type Config struct {
	MaxWait time.Duration `yaml:"max_wait"`
}

// Picker 机械手客户端
type Picker struct {
	transport comm.Transport
	config    Config
	logger    *logging.Logger
}

// New wraps a transport. The transport is opened by Open.
func New(transport comm.Transport, config Config, logger *logging.Logger) *Picker {
	return &Picker{transport: transport, config: config, logger: logger}
}

// Open opens the port to the board.
func (p *Picker) Open(ctx context.Context) error {
	return p.transport.Open(ctx)
}

// Close closes the port to the board.
func (p *Picker) Close() error {
	return p.transport.Close()
}

// Configure prepares the picker. The board needs no setup today.
func (p *Picker) Configure(ctx context.Context) error {
	return nil
}

// Insert moves a tape from the picker into a slot or drive.
func (p *Picker) Insert(ctx context.Context) ([]string, error) {
	return p.run(ctx, TokenInsert)
}

// Retrieve moves a tape from a slot or drive into the picker.
func (p *Picker) Retrieve(ctx context.Context) ([]string, error) {
	return p.run(ctx, TokenRetrieve)
}

// Home resets the picker mechanism.
func (p *Picker) Home(ctx context.Context) ([]string, error) {
	return p.run(ctx, TokenHome)
}

func (p *Picker) run(ctx context.Context, token byte) ([]string, error) {
	if !p.transport.IsOpen() {
		return nil, fmt.Errorf("picker %c: %w", token, comm.ErrNotOpen)
	}
	if _, err := p.transport.Write([]byte{token}); err != nil {
		return nil, fmt.Errorf("picker %c: %w", token, err)
	}

	start := time.Now()
	var lines []string
	for {
		if err := ctx.Err(); err != nil {
			return lines, err
		}
		if p.config.MaxWait > 0 && time.Since(start) >= p.config.MaxWait {
			return lines, fmt.Errorf("%w: token %c after %s", ErrPickerTimeout, token, p.config.MaxWait)
		}

		data, err := p.transport.ReadLine()
		if err != nil {
			return lines, fmt.Errorf("picker %c: %w", token, err)
		}
		if data == "" {
			continue
		}
		line := strings.TrimRight(data, "\r\n")
		p.logger.Debug(line, "token", string(token))
		lines = append(lines, line)
		if strings.HasPrefix(line, EndSentinel) {
			return lines, nil
		}
	}
}
