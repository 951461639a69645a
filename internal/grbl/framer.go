package grbl

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"scarif/internal/hardware/comm"
	"scarif/internal/logging"
)

// AckToken is the line the controller sends when it has processed a framed command.
const AckToken = "ok"

// Response holds the lines read back for one command, terminator stripped.
// When the controller acknowledged the command the last line is AckToken.
type Response struct {
	Command  string
	Lines    []string
	TimedOut bool
}

// Acknowledged reports whether the exchange ended on AckToken.
func (r Response) Acknowledged() bool {
	return len(r.Lines) > 0 && r.Lines[len(r.Lines)-1] == AckToken
}

// Err returns the first error or alarm line the controller reported, if any.
func (r Response) Err() error {
	for _, line := range r.Lines {
		if strings.HasPrefix(line, "error:") || strings.HasPrefix(line, "ALARM:") {
			return &ControllerError{Command: r.Command, Line: line}
		}
	}
	return nil
}

// Framer writes commands in their wire form and collects the lines of the
// reply. Only one exchange is in flight at a time.
type Framer struct {
	transport comm.Transport
	logger    *logging.Logger
	mu        sync.Mutex
}

// NewFramer 创建帧处理器
func NewFramer(transport comm.Transport, logger *logging.Logger) *Framer {
	return &Framer{transport: transport, logger: logger}
}

// Transport returns the underlying transport.
func (f *Framer) Transport() comm.Transport { return f.transport }

// Send writes cmd and reads lines until the acknowledgment arrives or a read
// times out. A timeout is not an error: the lines gathered so far are
// returned with TimedOut set.
func (f *Framer) Send(ctx context.Context, cmd Command) (Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	resp := Response{Command: cmd.String()}

	if !f.transport.IsOpen() {
		return resp, ErrTransportNotOpen
	}
	if err := ctx.Err(); err != nil {
		return resp, err
	}

	n, err := f.transport.Write(cmd.Wire())
	if err != nil {
		return resp, fmt.Errorf("send %q: %w", cmd, err)
	}
	f.logger.Debug("cmd", "command", cmd.String(), "kind", cmd.Kind(), "written", n)

	done := completion(cmd)
	for {
		if err := ctx.Err(); err != nil {
			return resp, err
		}
		raw, err := f.transport.ReadLine()
		if err != nil {
			return resp, fmt.Errorf("read reply to %q: %w", cmd, err)
		}
		if raw == "" {
			f.logger.Warn("Timeout encountered on read", "command", cmd.String(), "lines", len(resp.Lines))
			resp.TimedOut = true
			return resp, nil
		}
		line := strings.TrimSpace(raw)
		f.logger.Debug("res", "line", line)
		resp.Lines = append(resp.Lines, line)
		if done(line) {
			return resp, nil
		}
	}
}

// completion returns the predicate that ends the read loop for cmd. The
// controller never acknowledges a status query, so its report closes it.
func completion(cmd Command) func(string) bool {
	if cmd.Kind() == KindRealtime && cmd.Text() == string(RealtimeStatus) {
		return func(line string) bool { return line == AckToken || isStatusReport(line) }
	}
	return func(line string) bool { return line == AckToken }
}
