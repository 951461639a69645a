// Package head moves the tape library head on its X/Y rails. Every target is
// checked against the soft limits before anything is sent to the controller.
package head

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"scarif/internal/grbl"
	"scarif/internal/logging"
	"scarif/pkg/types"
)

// Settings that carry the per-axis rates used before relative moves.
const (
	settingHorizontalRate = 110
	settingVerticalRate   = 111
)

// Config describes the head. Accelerations are in mm/min.
type Config struct {
	AccelH    int                    `yaml:"accel_h"`
	AccelV    int                    `yaml:"accel_v"`
	Limits    types.SoftLimits       `yaml:"limits"`
	Positions map[string]types.Point `yaml:"positions"`
}

// Head composes the controller client and the motion synchronizer.
type Head struct {
	client *grbl.Client
	motion *grbl.Motion
	config Config
	logger *logging.Logger
}

// New 创建机头
func New(client *grbl.Client, motion *grbl.Motion, config Config, logger *logging.Logger) (*Head, error) {
	if err := config.Limits.Validate(); err != nil {
		return nil, fmt.Errorf("head soft limits: %w", err)
	}
	return &Head{client: client, motion: motion, config: config, logger: logger}, nil
}

// Limits returns the configured soft limits.
func (h *Head) Limits() types.SoftLimits { return h.config.Limits }

// Configure clears the alarm lock and keeps the steppers energised.
func (h *Head) Configure(ctx context.Context) error {
	if err := replyErr(h.client.KillAlarmLock(ctx)); err != nil {
		return fmt.Errorf("kill alarm lock: %w", err)
	}
	if err := replyErr(h.client.StepperMotorsAlwaysOn(ctx)); err != nil {
		return fmt.Errorf("steppers always on: %w", err)
	}
	return nil
}

// replyErr folds a controller error line into the transport error.
func replyErr(resp grbl.Response, err error) error {
	if err != nil {
		return err
	}
	return resp.Err()
}

// Status returns the current controller status.
func (h *Head) Status(ctx context.Context) (types.StatusSnapshot, error) {
	return h.motion.Status(ctx)
}

// GoTo moves to the work coordinates (x, y) and waits for arrival.
func (h *Head) GoTo(ctx context.Context, x, y float64) (types.StatusSnapshot, error) {
	if err := h.config.Limits.Check(x, y); err != nil {
		return types.UnknownStatus(), err
	}
	return h.motion.MoveTo(ctx, types.NewMotionRequest(x, y))
}

// GoToString is GoTo for coordinates as the operator typed them.
func (h *Head) GoToString(ctx context.Context, x, y string) (types.StatusSnapshot, error) {
	p, err := types.Position{X: x, Y: y}.Point()
	if err != nil {
		return types.UnknownStatus(), err
	}
	return h.GoTo(ctx, p.X, p.Y)
}

// GoToPosition moves to a named position from the configuration.
func (h *Head) GoToPosition(ctx context.Context, name string) (types.StatusSnapshot, error) {
	p, ok := h.config.Positions[name]
	if !ok {
		return types.UnknownStatus(), fmt.Errorf("unknown position %q (known: %v)", name, h.PositionNames())
	}
	h.logger.Info("Moving to position", "name", name, "target", p.String())
	return h.GoTo(ctx, p.X, p.Y)
}

// PositionNames lists the configured positions.
func (h *Head) PositionNames() []string {
	names := make([]string, 0, len(h.config.Positions))
	for name := range h.config.Positions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetHorizontalAcceleration writes the horizontal rate setting ($110).
func (h *Head) SetHorizontalAcceleration(ctx context.Context, mmMin int) error {
	return replyErr(h.client.SaveSetting(ctx, settingHorizontalRate, strconv.Itoa(mmMin)))
}

// SetVerticalAcceleration writes the vertical rate setting ($111).
func (h *Head) SetVerticalAcceleration(ctx context.Context, mmMin int) error {
	return replyErr(h.client.SaveSetting(ctx, settingVerticalRate, strconv.Itoa(mmMin)))
}

// Up moves count mm along the vertical travel, which is the controller's X axis.
func (h *Head) Up(ctx context.Context, count float64) (types.StatusSnapshot, error) {
	if err := h.SetVerticalAcceleration(ctx, h.config.AccelV); err != nil {
		return types.UnknownStatus(), err
	}
	return h.relative(ctx, count, 0)
}

// Down is Up in the other direction.
func (h *Head) Down(ctx context.Context, count float64) (types.StatusSnapshot, error) {
	return h.Up(ctx, -count)
}

// Left moves count mm along the horizontal travel, the controller's Y axis.
func (h *Head) Left(ctx context.Context, count float64) (types.StatusSnapshot, error) {
	if err := h.SetHorizontalAcceleration(ctx, h.config.AccelH); err != nil {
		return types.UnknownStatus(), err
	}
	return h.relative(ctx, 0, count)
}

// Right is Left in the other direction.
func (h *Head) Right(ctx context.Context, count float64) (types.StatusSnapshot, error) {
	return h.Left(ctx, -count)
}

func (h *Head) relative(ctx context.Context, dx, dy float64) (types.StatusSnapshot, error) {
	status, err := h.motion.Status(ctx)
	if err != nil {
		return status, err
	}
	cur, err := status.WorkPosition.Point()
	if err != nil {
		return status, fmt.Errorf("current work position unknown (state %s): %w", status.State, err)
	}
	return h.GoTo(ctx, cur.X+dx, cur.Y+dy)
}
