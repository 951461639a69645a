package picker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scarif/internal/hardware/comm"
	"scarif/internal/logging"
	"scarif/internal/sim"
)

func newTestPicker(t *testing.T, cfg Config) (*Picker, *sim.Picker) {
	t.Helper()
	board := sim.NewPicker()
	p := New(board, cfg, logging.Discard())
	require.NoError(t, p.Open(context.Background()))
	t.Cleanup(func() { _ = p.Close() })
	return p, board
}

func TestSequences(t *testing.T) {
	p, board := newTestPicker(t, Config{})
	ctx := context.Background()

	lines, err := p.Insert(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"insert", "extend", "release", "retract", "end insert"}, lines)

	lines, err = p.Retrieve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "end retrieve", lines[len(lines)-1])

	lines, err = p.Home(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"home", "end home"}, lines)

	assert.Equal(t, "irh", board.Tokens())
	assert.NoError(t, p.Configure(ctx))
}

func TestMaxWait(t *testing.T) {
	p, board := newTestPicker(t, Config{MaxWait: 20 * time.Millisecond})
	board.Mute = true

	lines, err := p.Insert(context.Background())
	require.ErrorIs(t, err, ErrPickerTimeout)
	assert.Equal(t, []string{"insert", "extend", "release", "retract"}, lines)
}

func TestContextCancel(t *testing.T) {
	p, board := newTestPicker(t, Config{})
	board.Mute = true
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Home(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNotOpen(t *testing.T) {
	board := sim.NewPicker()
	p := New(board, Config{}, logging.Discard())

	_, err := p.Insert(context.Background())
	assert.ErrorIs(t, err, comm.ErrNotOpen)
	assert.Empty(t, board.Tokens())
}
