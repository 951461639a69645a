// Command simulator serves a simulated rail controller and picker over TCP
// so that control can be exercised without the robot. Point control at it
// with driver "tcp" and addresses matching -controller and -picker.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"scarif/internal/config"
	"scarif/internal/library"
	"scarif/internal/logging"
	"scarif/internal/sim"
	"scarif/pkg/types"
)

type Simulator struct {
	controller *sim.Controller
	picker     *sim.Picker
	logger     *logging.Logger
}

func NewSimulator(home types.Point, steps int, logger *logging.Logger) *Simulator {
	return &Simulator{
		controller: sim.NewController(sim.ControllerOptions{
			StepsPerMove: steps,
			WorkOffset:   types.Point{X: -home.X, Y: -home.Y},
			Start:        home,
		}),
		picker: sim.NewPicker(),
		logger: logger,
	}
}

// Serve blocks until ctx is done or a listener fails.
func (s *Simulator) Serve(ctx context.Context, controllerAddr, pickerAddr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	servers := []struct {
		addr   string
		server *sim.Server
	}{
		{controllerAddr, sim.NewServer(s.controller, s.logger.Named("controller"))},
		{pickerAddr, sim.NewServer(s.picker, s.logger.Named("picker"))},
	}

	errs := make(chan error, len(servers))
	for _, srv := range servers {
		ln, err := net.Listen("tcp", srv.addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", srv.addr, err)
		}
		go func() { errs <- srv.server.Serve(ctx, ln) }()
	}

	var first error
	for range servers {
		if err := <-errs; err != nil && first == nil {
			first = err
			cancel()
		}
	}
	return first
}

func main() {
	var (
		configPath     = flag.String("config", "config.yaml", "Configuration file for the home position")
		controllerAddr = flag.String("controller", "127.0.0.1:2300", "Listen address of the rail controller")
		pickerAddr     = flag.String("picker", "127.0.0.1:2301", "Listen address of the picker")
		steps          = flag.Int("steps", 3, "Status polls a move takes to settle")
		logLevel       = flag.String("log-level", "info", "Log level")
	)
	flag.Parse()

	manager := config.NewConfigManager(*configPath)
	if err := manager.LoadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := manager.GetConfig()

	logCfg := cfg.Logging
	logCfg.Level = *logLevel
	logger, err := logging.NewLogger(&logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := NewSimulator(cfg.Head.Positions[library.HomePosition], *steps, logger.Named("simulator"))
	if err := s.Serve(ctx, *controllerAddr, *pickerAddr); err != nil {
		logger.Error("Simulator stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Simulator stopped")
}
