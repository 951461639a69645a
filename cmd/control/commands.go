package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"scarif/internal/grbl"
	"scarif/pkg/types"
)

// needs says which ports a command opens before it runs.
type needs int

const (
	needsNothing needs = iota
	needsController
	needsPicker
	needsBoth
)

type command struct {
	name  string
	usage string
	help  string
	needs needs
	nargs int // minimum argument count
	run   func(ctx context.Context, rs *RobotSystem, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{"status", "status", "Print the controller state and positions", needsController, 0, cmdStatus},
		{"goto", "goto X Y", "Move to work coordinates", needsController, 2, cmdGoTo},
		{"position", "position NAME", "Move to a named position", needsController, 1, cmdPosition},
		{"up", "up COUNT", "Move COUNT mm up", needsController, 1, jog((*RobotSystem).up)},
		{"down", "down COUNT", "Move COUNT mm down", needsController, 1, jog((*RobotSystem).down)},
		{"left", "left COUNT", "Move COUNT mm left", needsController, 1, jog((*RobotSystem).left)},
		{"right", "right COUNT", "Move COUNT mm right", needsController, 1, jog((*RobotSystem).right)},
		{"home", "home", "Run the homing cycle ($H)", needsController, 0, cmdHome},
		{"hold", "hold", "Feed hold (!)", needsController, 0, realtime((*grbl.Client).FeedHold)},
		{"resume", "resume", "Cycle start (~)", needsController, 0, realtime((*grbl.Client).CycleStart)},
		{"reset", "reset", "Soft reset (ctrl-x)", needsController, 0, realtime((*grbl.Client).Reset)},
		{"settings", "settings show|export F|import F|describe", "Inspect or transfer controller settings", needsNothing, 1, cmdSettings},
		{"picker", "picker insert|retrieve|home", "Drive the picker", needsPicker, 1, cmdPicker},
		{"run", "run SLOT...", "Swap each slot through home", needsBoth, 1, cmdRun},
		{"info", "info", "Print the loaded configuration", needsNothing, 0, cmdInfo},
		{"shell", "shell", "Interactive prompt", needsNothing, 0, cmdShell},
	}
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// Run executes one command line. Non-interactive commands are cancelled by
// SIGINT or SIGTERM, and an interrupted move is followed by a feed hold.
func (rs *RobotSystem) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return nil
	}
	c, ok := lookupCommand(args[0])
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}
	if len(args)-1 < c.nargs {
		return fmt.Errorf("usage: %s", c.usage)
	}

	if c.name != "shell" {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
	}

	if err := rs.open(ctx, c.needs); err != nil {
		return err
	}

	err := c.run(ctx, rs, args[1:])
	if err != nil && errors.Is(err, context.Canceled) && rs.controllerOpen {
		rs.holdAfterInterrupt()
	}
	return err
}

func (rs *RobotSystem) open(ctx context.Context, n needs) error {
	if n == needsController || n == needsBoth {
		if err := rs.OpenController(ctx); err != nil {
			return fmt.Errorf("open controller: %w", err)
		}
	}
	if n == needsPicker || n == needsBoth {
		if err := rs.OpenPicker(ctx); err != nil {
			return fmt.Errorf("open picker: %w", err)
		}
	}
	return nil
}

func (rs *RobotSystem) holdAfterInterrupt() {
	rs.logger.Warn("Interrupted, sending feed hold")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if _, err := rs.client.FeedHold(ctx); err != nil {
		rs.logger.Error("Feed hold failed", "error", err)
	}
}

func printStatus(s types.StatusSnapshot) {
	fmt.Printf("state: %s\nmachine: %s\nwork:    %s\n", s.State, s.MachinePosition, s.WorkPosition)
}

func cmdStatus(ctx context.Context, rs *RobotSystem, _ []string) error {
	s, err := rs.head.Status(ctx)
	if err != nil {
		return err
	}
	printStatus(s)
	return nil
}

func cmdGoTo(ctx context.Context, rs *RobotSystem, args []string) error {
	s, err := rs.head.GoToString(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	printStatus(s)
	return nil
}

func cmdPosition(ctx context.Context, rs *RobotSystem, args []string) error {
	s, err := rs.head.GoToPosition(ctx, args[0])
	if err != nil {
		return err
	}
	printStatus(s)
	return nil
}

func (rs *RobotSystem) up(ctx context.Context, n float64) (types.StatusSnapshot, error) {
	return rs.head.Up(ctx, n)
}

func (rs *RobotSystem) down(ctx context.Context, n float64) (types.StatusSnapshot, error) {
	return rs.head.Down(ctx, n)
}

func (rs *RobotSystem) left(ctx context.Context, n float64) (types.StatusSnapshot, error) {
	return rs.head.Left(ctx, n)
}

func (rs *RobotSystem) right(ctx context.Context, n float64) (types.StatusSnapshot, error) {
	return rs.head.Right(ctx, n)
}

func jog(move func(*RobotSystem, context.Context, float64) (types.StatusSnapshot, error)) func(context.Context, *RobotSystem, []string) error {
	return func(ctx context.Context, rs *RobotSystem, args []string) error {
		n, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("count %q: %w", args[0], err)
		}
		s, err := move(rs, ctx, n)
		if err != nil {
			return err
		}
		printStatus(s)
		return nil
	}
}

func realtime(send func(*grbl.Client, context.Context) (grbl.Response, error)) func(context.Context, *RobotSystem, []string) error {
	return func(ctx context.Context, rs *RobotSystem, _ []string) error {
		resp, err := send(rs.client, ctx)
		if err != nil {
			return err
		}
		printLines(resp.Lines)
		return resp.Err()
	}
}

func cmdHome(ctx context.Context, rs *RobotSystem, _ []string) error {
	resp, err := rs.client.RunHomingCycle(ctx)
	if err != nil {
		return err
	}
	printLines(resp.Lines)
	return resp.Err()
}

func printLines(lines []string) {
	for _, l := range lines {
		fmt.Println(l)
	}
}

func cmdSettings(ctx context.Context, rs *RobotSystem, args []string) error {
	switch args[0] {
	case "describe":
		fmt.Println(grbl.DescribeCatalog())
		return nil
	case "show":
		if err := rs.OpenController(ctx); err != nil {
			return err
		}
		s, err := grbl.ReadSettingsFromController(ctx, rs.client)
		if err != nil {
			return err
		}
		fmt.Println(grbl.Render(s))
		return nil
	case "export", "import":
		if len(args) < 2 {
			return fmt.Errorf("usage: settings %s FILE", args[0])
		}
		if err := rs.OpenController(ctx); err != nil {
			return err
		}
		if args[0] == "export" {
			s, err := grbl.ReadSettingsFromController(ctx, rs.client)
			if err != nil {
				return err
			}
			if err := grbl.WriteSettingsFile(args[1], s); err != nil {
				return err
			}
			fmt.Printf("exported %d settings to %s\n", s.Len(), args[1])
			return nil
		}
		s, err := grbl.ReadSettingsFile(args[1])
		if err != nil {
			return err
		}
		if err := grbl.WriteSettingsToController(ctx, rs.client, s); err != nil {
			return err
		}
		fmt.Printf("imported %d settings from %s\n", s.Len(), args[1])
		return nil
	default:
		return fmt.Errorf("unknown settings action %q", args[0])
	}
}

func cmdPicker(ctx context.Context, rs *RobotSystem, args []string) error {
	var (
		lines []string
		err   error
	)
	switch args[0] {
	case "insert":
		lines, err = rs.picker.Insert(ctx)
	case "retrieve":
		lines, err = rs.picker.Retrieve(ctx)
	case "home":
		lines, err = rs.picker.Home(ctx)
	default:
		return fmt.Errorf("unknown picker action %q", args[0])
	}
	printLines(lines)
	return err
}

func cmdRun(ctx context.Context, rs *RobotSystem, args []string) error {
	if err := rs.library.Configure(ctx); err != nil {
		return err
	}
	return rs.library.RunCycle(ctx, args)
}

func cmdInfo(_ context.Context, rs *RobotSystem, _ []string) error {
	rs.printSystemInfo()
	return nil
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".scarif_history")
}

func cmdShell(ctx context.Context, rs *RobotSystem, _ []string) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) []string {
		var out []string
		for _, c := range commands {
			if c.name != "shell" && strings.HasPrefix(c.name, prefix) {
				out = append(out, c.name)
			}
		}
		return out
	})

	hist := historyPath()
	if hist != "" {
		if f, err := os.Open(hist); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}

	rs.printSystemInfo()
	for {
		input, err := line.Prompt("scarif> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		fields := strings.Fields(input)
		if len(fields) == 0 {
			continue
		}
		line.AppendHistory(input)

		switch fields[0] {
		case "exit", "quit":
			return saveHistory(line, hist)
		case "help":
			usage()
			continue
		case "shell":
			continue
		}
		if err := rs.Run(ctx, fields); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	fmt.Println()
	return saveHistory(line, hist)
}

func saveHistory(line *liner.State, path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	_, err = line.WriteHistory(f)
	return err
}
