package grbl

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scarif/internal/logging"
	"scarif/internal/sim"
	"scarif/pkg/types"
)

func newSimMotion(t *testing.T, opts sim.ControllerOptions, cfg MotionConfig) (*Motion, *sim.Controller) {
	t.Helper()
	c, ctrl := newSimClient(t, opts)
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Millisecond
	}
	return NewMotion(c, cfg, logging.Discard()), ctrl
}

func motionWrites(writes []string) []string {
	var out []string
	for _, w := range writes {
		if strings.HasPrefix(w, "G") {
			out = append(out, w)
		}
	}
	return out
}

func TestNewMotionDefaultsPollInterval(t *testing.T) {
	m := NewMotion(nil, MotionConfig{}, logging.Discard())
	assert.Equal(t, DefaultPollInterval, m.pollInterval)
	assert.Zero(t, m.maxWait)
}

func TestMoveToConverges(t *testing.T) {
	m, _ := newSimMotion(t, sim.ControllerOptions{StepsPerMove: 4}, MotionConfig{})

	targets := []types.Point{
		{X: 10, Y: 20},
		{X: 12.3456, Y: 7.0004},
		{X: 0.0005, Y: 99.9995},
		{X: 250.1, Y: 0},
	}
	for _, target := range targets {
		status, err := m.MoveTo(context.Background(), types.NewMotionRequest(target.X, target.Y))
		require.NoError(t, err)
		assert.Equal(t, types.StateIdle, status.State)
		assert.Equal(t, target.Position(), status.WorkPosition, "arrives at the target to three decimals")
	}
}

func TestMoveToCommandFormat(t *testing.T) {
	m, ctrl := newSimMotion(t, sim.ControllerOptions{}, MotionConfig{})

	_, err := m.MoveTo(context.Background(), types.NewMotionRequest(1.5, -2.25))
	require.NoError(t, err)
	assert.Equal(t, []string{"G0 X1.500 Y-2.250\n"}, motionWrites(ctrl.Writes()))
	assert.Equal(t, "?", ctrl.Writes()[0], "status is checked before the move")
}

func TestMoveRefusedWhenBusy(t *testing.T) {
	for _, state := range []types.MachineState{
		types.StateRun, types.StateHold, types.StateAlarm, types.StateDoor, types.StateHome, types.StateCheck,
	} {
		t.Run(string(state), func(t *testing.T) {
			m, ctrl := newSimMotion(t, sim.ControllerOptions{State: state}, MotionConfig{})

			_, err := m.MoveTo(context.Background(), types.NewMotionRequest(1, 1))
			var busy *ControllerBusyError
			require.ErrorAs(t, err, &busy)
			assert.Equal(t, state, busy.State)
			assert.Empty(t, motionWrites(ctrl.Writes()))
		})
	}
}

func TestMoveRefusedWhenStatusMissing(t *testing.T) {
	m, ctrl := newSimMotion(t, sim.ControllerOptions{SilentStatus: true}, MotionConfig{})

	err := m.MoveAsync(context.Background(), types.NewMotionRequest(1, 1))
	var busy *ControllerBusyError
	require.ErrorAs(t, err, &busy)
	assert.Equal(t, types.StateUnknown, busy.State)
	assert.Empty(t, motionWrites(ctrl.Writes()))
}

func TestMoveModeValidation(t *testing.T) {
	m, ctrl := newSimMotion(t, sim.ControllerOptions{}, MotionConfig{})
	ctx := context.Background()

	for _, mode := range []types.MotionMode{types.ModeLinear, types.ModeArcCW, types.ModeArcCCW, types.ModeProbe2, types.ModeCancelled} {
		req := types.MotionRequest{Target: types.Point{X: 1, Y: 1}, Mode: mode}
		err := m.MoveAsync(ctx, req)
		var unsupported *UnsupportedMotionModeError
		require.ErrorAs(t, err, &unsupported, "mode %s", mode)
		assert.Contains(t, err.Error(), "not implemented")
	}

	_, err := m.MoveTo(ctx, types.MotionRequest{Target: types.Point{X: 1, Y: 1}, Mode: "M3"})
	var invalid *InvalidMotionModeError
	require.ErrorAs(t, err, &invalid)
	assert.True(t, IsValidation(err))

	assert.Empty(t, ctrl.Writes(), "mode checks happen before any status query")
}

func TestMoveAsyncDoesNotWait(t *testing.T) {
	m, ctrl := newSimMotion(t, sim.ControllerOptions{StepsPerMove: 5}, MotionConfig{})

	require.NoError(t, m.MoveAsync(context.Background(), types.NewMotionRequest(3, 4)))
	assert.Equal(t, types.StateRun, ctrl.State())
}

func TestMoveToMaxWait(t *testing.T) {
	m, _ := newSimMotion(t, sim.ControllerOptions{StepsPerMove: 1 << 20}, MotionConfig{
		PollInterval: time.Millisecond,
		MaxWait:      20 * time.Millisecond,
	})

	status, err := m.MoveTo(context.Background(), types.NewMotionRequest(100, 100))
	var timeout *MotionTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, types.Point{X: 100, Y: 100}, timeout.Target)
	assert.GreaterOrEqual(t, timeout.Waited, 20*time.Millisecond)
	assert.Equal(t, types.StateRun, status.State)
}

func TestMoveToContextCancel(t *testing.T) {
	m, _ := newSimMotion(t, sim.ControllerOptions{StepsPerMove: 1 << 20}, MotionConfig{PollInterval: time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := m.MoveTo(ctx, types.NewMotionRequest(100, 100))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFeedHoldDuringMove(t *testing.T) {
	c, ctrl := newSimClient(t, sim.ControllerOptions{StepsPerMove: 200})
	m := NewMotion(c, MotionConfig{PollInterval: time.Millisecond, MaxWait: 10 * time.Second}, logging.Discard())
	ctx := context.Background()

	type result struct {
		status types.StatusSnapshot
		err    error
	}
	done := make(chan result, 1)
	go func() {
		status, err := m.MoveTo(ctx, types.NewMotionRequest(5, 5))
		done <- result{status, err}
	}()

	require.Eventually(t, func() bool {
		return len(motionWrites(ctrl.Writes())) == 1 && ctrl.State() == types.StateRun
	}, 2*time.Second, time.Millisecond)

	_, err := c.FeedHold(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.StateHold, ctrl.State())

	held := ctrl.WorkPosition()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, held, ctrl.WorkPosition(), "a held move does not advance")
	select {
	case r := <-done:
		t.Fatalf("move returned while held: %+v", r)
	default:
	}

	_, err = c.CycleStart(ctx)
	require.NoError(t, err)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, types.StateIdle, r.status.State)
		assert.Equal(t, types.Position{X: "5.000", Y: "5.000"}, r.status.WorkPosition)
	case <-time.After(5 * time.Second):
		t.Fatal("move did not resume")
	}
	assert.Contains(t, ctrl.Writes(), "!")
	assert.Contains(t, ctrl.Writes(), "~")
}

// scriptedController answers status queries with a fixed report and motion
// commands with a fixed reply.
type scriptedController struct {
	report  string
	reply   []string
	motions []string
}

func (s *scriptedController) DispatchMotion(_ context.Context, cmd string) (Response, error) {
	s.motions = append(s.motions, cmd)
	return Response{Command: cmd, Lines: s.reply}, nil
}

func (s *scriptedController) CurrentStatus(context.Context) (Response, error) {
	return Response{Command: "?", Lines: []string{s.report}}, nil
}

func TestMoveRejectedByController(t *testing.T) {
	ctrl := &scriptedController{
		report: "<Idle|MPos:0.000,0.000,0.000|WPos:0.000,0.000,0.000>",
		reply:  []string{"error:15"},
	}
	m := NewMotion(ctrl, MotionConfig{PollInterval: time.Millisecond}, logging.Discard())

	_, err := m.MoveTo(context.Background(), types.NewMotionRequest(1, 1))
	var ce *ControllerError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "error:15", ce.Line)
	assert.Equal(t, []string{"G0 X1.000 Y1.000"}, ctrl.motions)
}

func TestMoveToUnresolvedPositionNeverConverges(t *testing.T) {
	ctrl := &scriptedController{
		report: "<Idle>",
		reply:  []string{"ok"},
	}
	m := NewMotion(ctrl, MotionConfig{PollInterval: time.Millisecond, MaxWait: 10 * time.Millisecond}, logging.Discard())

	_, err := m.MoveTo(context.Background(), types.NewMotionRequest(0, 0))
	var timeout *MotionTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, types.UnresolvedPosition(), timeout.Last.WorkPosition)
}
