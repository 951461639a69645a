// Package sim provides in-memory stand-ins for the rail controller and the
// picker board. Both implement comm.Transport and answer synchronously, so a
// read with nothing queued behaves like a transport timeout.
package sim

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/256dpi/gcode"

	"scarif/internal/hardware/comm"
	"scarif/pkg/types"
)

// Banner is printed after a soft reset.
const Banner = "Grbl 1.1f ['$' for help]"

// defaultSettings is the $$ listing of a stock controller.
var defaultSettings = map[int]string{
	0: "10", 1: "25", 2: "0", 3: "3", 4: "0", 5: "0", 6: "0",
	10: "3", 11: "0.010", 12: "0.002", 13: "0",
	20: "0", 21: "0", 22: "1", 23: "3", 24: "25.000", 25: "500.000", 26: "250", 27: "1.000",
	100: "250.000", 101: "250.000", 102: "250.000",
	110: "8000.000", 111: "8000.000", 112: "500.000",
	120: "10.000", 121: "10.000", 122: "10.000",
	130: "800.000", 131: "900.000", 132: "200.000",
}

// ControllerOptions shapes the simulated machine.
type ControllerOptions struct {
	// StepsPerMove is the number of status reports a move stays in Run
	// before arriving. Zero completes moves immediately.
	StepsPerMove int
	// WorkOffset is the work coordinate offset: MPos = WPos + WorkOffset.
	WorkOffset types.Point
	// Start is the initial work position.
	Start types.Point
	// State is the initial state; empty means Idle.
	State types.MachineState
	// SilentStatus drops status reports, as a controller that is not reporting.
	SilentStatus bool
}

// Controller simulates the motion controller firmware.
type Controller struct {
	mu        sync.Mutex
	opts      ControllerOptions
	open      bool
	pending   []byte
	out       []string
	writes    []string
	state     types.MachineState
	work      types.Point
	target    types.Point
	remaining int
	settings  map[int]string
	startup   map[int]string
}

var _ comm.Transport = (*Controller)(nil)

// NewController 创建模拟控制器
func NewController(opts ControllerOptions) *Controller {
	c := &Controller{
		opts:     opts,
		settings: make(map[int]string, len(defaultSettings)),
		startup:  make(map[int]string),
	}
	for k, v := range defaultSettings {
		c.settings[k] = v
	}
	c.state = opts.State
	if c.state == "" {
		c.state = types.StateIdle
	}
	c.work = opts.Start
	c.target = opts.Start
	return c
}

// Open marks the transport open.
func (c *Controller) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	return nil
}

// Close marks the transport closed.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

// IsOpen reports whether Open was called.
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Writes returns every chunk written so far.
func (c *Controller) Writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.writes...)
}

// SetState forces the machine state.
func (c *Controller) SetState(s types.MachineState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// State returns the current machine state.
func (c *Controller) State() types.MachineState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// WorkPosition returns the current work position.
func (c *Controller) WorkPosition() types.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.work
}

// Setting returns the stored value of setting n.
func (c *Controller) Setting(n int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.settings[n]
	return v, ok
}

// Write feeds bytes to the simulated firmware. Real-time bytes act at once,
// everything else is buffered until a newline.
func (c *Controller) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return 0, comm.ErrNotOpen
	}
	c.writes = append(c.writes, string(p))

	for _, b := range p {
		switch b {
		case '?':
			c.statusReport()
		case '!':
			if c.state == types.StateRun {
				c.state = types.StateHold
			}
		case '~':
			if c.state == types.StateHold {
				c.state = types.StateRun
			}
		case 0x18:
			c.softReset()
		case '\r':
		case '\n':
			line := strings.TrimSpace(string(c.pending))
			c.pending = c.pending[:0]
			if line != "" {
				c.processLine(line)
			}
		default:
			c.pending = append(c.pending, b)
		}
	}
	return len(p), nil
}

// ReadLine returns the next queued reply, or "" when none is queued.
func (c *Controller) ReadLine() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return "", comm.ErrNotOpen
	}
	if len(c.out) == 0 {
		return "", nil
	}
	line := c.out[0]
	c.out = c.out[1:]
	return line + "\r\n", nil
}

func (c *Controller) reply(lines ...string) {
	c.out = append(c.out, lines...)
}

func (c *Controller) processLine(line string) {
	if strings.HasPrefix(line, "$") {
		c.systemCommand(line)
		return
	}
	c.gcodeLine(line)
}

func (c *Controller) systemCommand(line string) {
	switch line {
	case "$$":
		keys := make([]int, 0, len(c.settings))
		for k := range c.settings {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		for _, k := range keys {
			c.reply(fmt.Sprintf("$%d=%s", k, c.settings[k]))
		}
		c.reply("ok")
	case "$#":
		c.reply(fmt.Sprintf("[G54:%s,%s,0.000]", types.FormatCoord(c.opts.WorkOffset.X), types.FormatCoord(c.opts.WorkOffset.Y)), "ok")
	case "$G":
		c.reply("[GC:G0 G54 G17 G21 G90 G94 M5 M9 T0 F0 S0]", "ok")
	case "$I":
		c.reply("[VER:1.1f.20170801:]", "[OPT:V,15,128]", "ok")
	case "$N":
		for i := 0; i < 2; i++ {
			c.reply(fmt.Sprintf("$N%d=%s", i, c.startup[i]))
		}
		c.reply("ok")
	case "$C":
		if c.state == types.StateCheck {
			c.state = types.StateIdle
		} else if c.state == types.StateIdle {
			c.state = types.StateCheck
		}
		c.reply("ok")
	case "$X":
		if c.state == types.StateAlarm {
			c.state = types.StateIdle
		}
		c.reply("[MSG:Caution: Unlocked]", "ok")
	case "$H":
		c.work = types.Point{X: -c.opts.WorkOffset.X, Y: -c.opts.WorkOffset.Y}
		c.target = c.work
		c.remaining = 0
		c.state = types.StateIdle
		c.reply("ok")
	default:
		c.assignment(line)
	}
}

func (c *Controller) assignment(line string) {
	key, value, ok := strings.Cut(strings.TrimPrefix(line, "$"), "=")
	if !ok {
		c.reply("error:3")
		return
	}
	if rest, isStartup := strings.CutPrefix(key, "N"); isStartup {
		n, err := strconv.Atoi(rest)
		if err != nil {
			c.reply("error:3")
			return
		}
		c.startup[n] = value
		c.reply("ok")
		return
	}
	n, err := strconv.Atoi(key)
	if err != nil {
		c.reply("error:3")
		return
	}
	if _, err := strconv.ParseFloat(value, 64); err != nil {
		c.reply("error:2")
		return
	}
	c.settings[n] = value
	c.reply("ok")
}

func (c *Controller) gcodeLine(line string) {
	parsed, err := gcode.ParseLine(line)
	if err != nil {
		c.reply("error:2")
		return
	}
	if c.state == types.StateAlarm {
		c.reply("error:9")
		return
	}

	mode := -1.0
	target := c.target
	for _, code := range parsed.Codes {
		switch code.Letter {
		case "G":
			mode = code.Value
		case "X":
			target.X = code.Value
		case "Y":
			target.Y = code.Value
		}
	}
	if mode != 0 {
		// Only rapid moves change position on this machine.
		c.reply("ok")
		return
	}

	c.target = target
	if c.state == types.StateCheck {
		c.reply("ok")
		return
	}
	if c.opts.StepsPerMove <= 0 {
		c.work = target
	} else {
		c.remaining = c.opts.StepsPerMove
		c.state = types.StateRun
	}
	c.reply("ok")
}

func (c *Controller) statusReport() {
	if c.state == types.StateRun {
		c.advance()
	}
	if c.opts.SilentStatus {
		return
	}
	mx := c.work.X + c.opts.WorkOffset.X
	my := c.work.Y + c.opts.WorkOffset.Y
	c.reply(fmt.Sprintf("<%s|MPos:%s,%s,0.000|WPos:%s,%s,0.000>",
		c.state,
		types.FormatCoord(mx), types.FormatCoord(my),
		types.FormatCoord(c.work.X), types.FormatCoord(c.work.Y)))
}

// advance moves half the remaining distance per report. A Run state forced
// with SetState has no move behind it and never completes.
func (c *Controller) advance() {
	if c.remaining <= 0 {
		return
	}
	c.remaining--
	if c.remaining <= 0 {
		c.work = c.target
		c.state = types.StateIdle
		return
	}
	c.work.X += (c.target.X - c.work.X) / 2
	c.work.Y += (c.target.Y - c.work.Y) / 2
}

func (c *Controller) softReset() {
	c.pending = c.pending[:0]
	c.out = c.out[:0]
	c.target = c.work
	c.remaining = 0
	if c.state == types.StateRun || c.state == types.StateHold {
		c.state = types.StateAlarm
	}
	c.reply("", Banner)
}
