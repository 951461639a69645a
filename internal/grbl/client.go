package grbl

import (
	"context"
	"fmt"

	"scarif/internal/hardware/comm"
	"scarif/internal/logging"
	"scarif/pkg/types"
)

// Client issues classified commands to the controller. Prefix checks happen
// before the framer is touched, so a rejected command never reaches the wire.
type Client struct {
	framer *Framer
	logger *logging.Logger
}

// NewClient wraps an already constructed transport.
func NewClient(transport comm.Transport, logger *logging.Logger) *Client {
	return &Client{
		framer: NewFramer(transport, logger.Named("framer")),
		logger: logger,
	}
}

// Open opens the transport.
func (c *Client) Open(ctx context.Context) error {
	return c.framer.Transport().Open(ctx)
}

// Close closes the transport.
func (c *Client) Close() error {
	return c.framer.Transport().Close()
}

// Send passes an already classified command to the framer.
func (c *Client) Send(ctx context.Context, cmd Command) (Response, error) {
	return c.framer.Send(ctx, cmd)
}

// DispatchSystem sends a '$' command.
func (c *Client) DispatchSystem(ctx context.Context, s string) (Response, error) {
	cmd, err := NewSystemCommand(s)
	if err != nil {
		return Response{}, err
	}
	return c.framer.Send(ctx, cmd)
}

// DispatchMotion sends a 'G' command.
func (c *Client) DispatchMotion(ctx context.Context, s string) (Response, error) {
	cmd, err := NewMotionCommand(s)
	if err != nil {
		return Response{}, err
	}
	return c.framer.Send(ctx, cmd)
}

// Real-time commands. These may be issued whatever the controller is doing.

// CycleStart resumes after a feed hold (~).
func (c *Client) CycleStart(ctx context.Context) (Response, error) {
	return c.framer.Send(ctx, Realtime(RealtimeCycleStart))
}

// FeedHold decelerates the active cycle to a stop (!). The controller does
// not acknowledge it, so the response normally times out.
func (c *Client) FeedHold(ctx context.Context) (Response, error) {
	return c.framer.Send(ctx, Realtime(RealtimeFeedHold))
}

// CurrentStatus requests a status report (?).
func (c *Client) CurrentStatus(ctx context.Context) (Response, error) {
	return c.framer.Send(ctx, Realtime(RealtimeStatus))
}

// Reset soft-resets the controller (ctrl-x).
func (c *Client) Reset(ctx context.Context) (Response, error) {
	return c.framer.Send(ctx, Realtime(RealtimeReset))
}

// Status queries and decodes the current status.
func (c *Client) Status(ctx context.Context) (types.StatusSnapshot, error) {
	resp, err := c.CurrentStatus(ctx)
	if err != nil {
		return types.UnknownStatus(), err
	}
	return ParseStatus(resp.Lines), nil
}

// System commands.

// ViewSettings lists the controller settings ($$).
func (c *Client) ViewSettings(ctx context.Context) (Response, error) {
	return c.DispatchSystem(ctx, "$$")
}

// ViewParameters lists the # parameters ($#).
func (c *Client) ViewParameters(ctx context.Context) (Response, error) {
	return c.DispatchSystem(ctx, "$#")
}

// ViewParserState shows the G-code parser state ($G).
func (c *Client) ViewParserState(ctx context.Context) (Response, error) {
	return c.DispatchSystem(ctx, "$G")
}

// ViewBuildInfo shows the firmware build info ($I).
func (c *Client) ViewBuildInfo(ctx context.Context) (Response, error) {
	return c.DispatchSystem(ctx, "$I")
}

// ViewStartupBlocks lists the startup blocks ($N).
func (c *Client) ViewStartupBlocks(ctx context.Context) (Response, error) {
	return c.DispatchSystem(ctx, "$N")
}

// SaveSetting stores one numbered setting ($x=value).
func (c *Client) SaveSetting(ctx context.Context, number int, value string) (Response, error) {
	return c.DispatchSystem(ctx, fmt.Sprintf("$%d=%s", number, value))
}

// SaveStartupBlock stores startup block x ($Nx=line).
func (c *Client) SaveStartupBlock(ctx context.Context, number int, line string) (Response, error) {
	return c.DispatchSystem(ctx, fmt.Sprintf("$N%d=%s", number, line))
}

// CheckGCodeMode toggles check mode ($C).
func (c *Client) CheckGCodeMode(ctx context.Context) (Response, error) {
	return c.DispatchSystem(ctx, "$C")
}

// RunHomingCycle homes the axes ($H). Homing routinely outlasts the read
// timeout; callers look at Response.TimedOut rather than an error.
func (c *Client) RunHomingCycle(ctx context.Context) (Response, error) {
	resp, err := c.DispatchSystem(ctx, "$H")
	if err == nil && resp.TimedOut {
		c.logger.Info("Homing cycle still running after read timeout")
	}
	return resp, err
}

// KillAlarmLock clears the alarm lock ($X).
func (c *Client) KillAlarmLock(ctx context.Context) (Response, error) {
	return c.DispatchSystem(ctx, "$X")
}

// StepperMotorsAlwaysOn keeps the steppers energised between moves ($1=255).
func (c *Client) StepperMotorsAlwaysOn(ctx context.Context) (Response, error) {
	return c.DispatchSystem(ctx, "$1=255")
}

// StepperMotorsSleep lets the steppers idle ($1=0).
func (c *Client) StepperMotorsSleep(ctx context.Context) (Response, error) {
	return c.DispatchSystem(ctx, "$1=0")
}
