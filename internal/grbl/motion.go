package grbl

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"scarif/internal/logging"
	"scarif/pkg/types"
)

// DefaultPollInterval is the pause between status queries while a move runs.
const DefaultPollInterval = 500 * time.Millisecond

// Controller is the part of the client a Motion needs.
type Controller interface {
	DispatchMotion(ctx context.Context, s string) (Response, error)
	CurrentStatus(ctx context.Context) (Response, error)
}

var _ Controller = (*Client)(nil)

// MotionConfig tunes the completion poll. A zero MaxWait polls until the
// move converges or the context ends.
type MotionConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxWait      time.Duration `yaml:"max_wait"`
}

// Motion issues X/Y moves and waits for the controller to reach them.
type Motion struct {
	ctrl         Controller
	logger       *logging.Logger
	pollInterval time.Duration
	maxWait      time.Duration
}

// NewMotion 创建运动同步器
func NewMotion(ctrl Controller, cfg MotionConfig, logger *logging.Logger) *Motion {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Motion{
		ctrl:         ctrl,
		logger:       logger,
		pollInterval: cfg.PollInterval,
		maxWait:      cfg.MaxWait,
	}
}

// Status queries and decodes the current status.
func (m *Motion) Status(ctx context.Context) (types.StatusSnapshot, error) {
	resp, err := m.ctrl.CurrentStatus(ctx)
	if err != nil {
		return types.UnknownStatus(), err
	}
	return ParseStatus(resp.Lines), nil
}

// MoveAsync validates the mode, checks that the controller is idle and
// dispatches the move. It does not wait for the move to finish.
func (m *Motion) MoveAsync(ctx context.Context, req types.MotionRequest) error {
	return m.dispatch(ctx, req, m.logger)
}

func (m *Motion) dispatch(ctx context.Context, req types.MotionRequest, logger *logging.Logger) error {
	if !req.Mode.Recognized() {
		return &InvalidMotionModeError{Mode: req.Mode}
	}
	if !req.Mode.Supported() {
		return &UnsupportedMotionModeError{Mode: req.Mode}
	}

	status, err := m.Status(ctx)
	if err != nil {
		return fmt.Errorf("status before move: %w", err)
	}
	if !status.IsIdle() {
		return &ControllerBusyError{State: status.State, Requested: req}
	}

	command := motionCommand(req)
	resp, err := m.ctrl.DispatchMotion(ctx, command)
	if err != nil {
		return err
	}
	logger.Debug("Move dispatched", "command", command, "response", resp.Lines)
	return resp.Err()
}

// MoveTo dispatches the move and polls the status until the controller is
// idle at the target work position.
func (m *Motion) MoveTo(ctx context.Context, req types.MotionRequest) (types.StatusSnapshot, error) {
	logger := m.logger.With("move_id", uuid.NewString(), "target", req.Target.String())
	if err := m.dispatch(ctx, req, logger); err != nil {
		return types.UnknownStatus(), err
	}

	target := quantize(req.Target)
	start := time.Now()
	timer := time.NewTimer(m.pollInterval)
	defer timer.Stop()

	for polls := 1; ; polls++ {
		status, err := m.Status(ctx)
		if err != nil {
			return status, err
		}

		dx, dy, ok := offset(target, status.WorkPosition)
		logger.Debug("Polling move", "state", status.State,
			"x", status.WorkPosition.X, "dx", dx, "y", status.WorkPosition.Y, "dy", dy)
		if ok && status.IsIdle() && dx == 0.0 && dy == 0.0 {
			logger.Info("Move complete", "polls", polls, "elapsed", time.Since(start))
			return status, nil
		}

		waited := time.Since(start)
		if m.maxWait > 0 && waited >= m.maxWait {
			return status, &MotionTimeoutError{Target: req.Target, Last: status, Waited: waited}
		}

		timer.Reset(m.pollInterval)
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-timer.C:
		}
	}
}

// motionCommand renders the move with three decimals, the precision the
// controller reports positions in.
func motionCommand(req types.MotionRequest) string {
	return fmt.Sprintf("%s X%s Y%s", req.Mode, types.FormatCoord(req.Target.X), types.FormatCoord(req.Target.Y))
}

// quantize returns the target as the controller received it.
func quantize(p types.Point) types.Point {
	x, _ := strconv.ParseFloat(types.FormatCoord(p.X), 64)
	y, _ := strconv.ParseFloat(types.FormatCoord(p.Y), 64)
	return types.Point{X: x, Y: y}
}

func offset(target types.Point, pos types.Position) (float64, float64, bool) {
	cur, err := pos.Point()
	if err != nil {
		return 0, 0, false
	}
	return target.X - cur.X, target.Y - cur.Y, true
}
