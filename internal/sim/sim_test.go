package sim

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scarif/internal/hardware/comm"
	"scarif/internal/logging"
	"scarif/pkg/types"
)

func drain(t *testing.T, tr comm.Transport) []string {
	t.Helper()
	var lines []string
	for {
		line, err := tr.ReadLine()
		require.NoError(t, err)
		if line == "" {
			return lines
		}
		lines = append(lines, strings.TrimRight(line, "\r\n"))
	}
}

func openController(t *testing.T, opts ControllerOptions) *Controller {
	t.Helper()
	c := NewController(opts)
	require.NoError(t, c.Open(context.Background()))
	return c
}

func TestControllerClosed(t *testing.T) {
	c := NewController(ControllerOptions{})
	_, err := c.Write([]byte("?"))
	assert.ErrorIs(t, err, comm.ErrNotOpen)
	_, err = c.ReadLine()
	assert.ErrorIs(t, err, comm.ErrNotOpen)
}

func TestControllerMoveSettles(t *testing.T) {
	c := openController(t, ControllerOptions{StepsPerMove: 3, WorkOffset: types.Point{X: -10, Y: -10}})

	_, err := c.Write([]byte("G0 X20.000 Y40.000\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, drain(t, c))
	assert.Equal(t, types.StateRun, c.State())

	var reports []string
	for i := 0; i < 3; i++ {
		_, err := c.Write([]byte{'?'})
		require.NoError(t, err)
		reports = append(reports, drain(t, c)...)
	}
	assert.Equal(t, []string{
		"<Run|MPos:0.000,10.000,0.000|WPos:10.000,20.000,0.000>",
		"<Run|MPos:5.000,20.000,0.000|WPos:15.000,30.000,0.000>",
		"<Idle|MPos:10.000,30.000,0.000|WPos:20.000,40.000,0.000>",
	}, reports)
}

func TestControllerIgnoresNonRapidMoves(t *testing.T) {
	c := openController(t, ControllerOptions{})

	_, err := c.Write([]byte("G1 X5 Y5\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, drain(t, c))
	assert.Equal(t, types.Point{}, c.WorkPosition())
}

func TestControllerSplitWrites(t *testing.T) {
	c := openController(t, ControllerOptions{})

	_, _ = c.Write([]byte("$1"))
	assert.Empty(t, drain(t, c))
	_, _ = c.Write([]byte("10=500\r\n"))
	assert.Equal(t, []string{"ok"}, drain(t, c))
	v, _ := c.Setting(110)
	assert.Equal(t, "500", v)
}

func TestControllerRejectsBadAssignments(t *testing.T) {
	c := openController(t, ControllerOptions{})

	for line, want := range map[string]string{
		"$Q\n":     "error:3",
		"$110=x\n": "error:2",
		"$Nx=G0\n": "error:3",
	} {
		_, _ = c.Write([]byte(line))
		assert.Equal(t, []string{want}, drain(t, c), line)
	}
}

func TestControllerSoftReset(t *testing.T) {
	c := openController(t, ControllerOptions{StepsPerMove: 5})
	_, _ = c.Write([]byte("G0 X1 Y1\n"))
	_, _ = c.Write([]byte{0x18})

	assert.Equal(t, []string{"", Banner}, drain(t, c))
	assert.Equal(t, types.StateAlarm, c.State())
}

func TestPickerUnknownToken(t *testing.T) {
	p := NewPicker()
	require.NoError(t, p.Open(context.Background()))

	_, _ = p.Write([]byte{'z'})
	assert.Equal(t, []string{`unknown token 'z'`, "end"}, drain(t, p))
}

func TestServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctrl := NewController(ControllerOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(ctrl, logging.Discard()).Serve(ctx, ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))

	_, err = conn.Write([]byte("$G\n"))
	require.NoError(t, err)
	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "[GC:G0 G54 G17 G21 G90 G94 M5 M9 T0 F0 S0]\r\n", line)
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ok\r\n", line)

	require.NoError(t, conn.Close())
	cancel()
	assert.NoError(t, <-done)
	assert.False(t, ctrl.IsOpen())
}
