// Command control operates the tape library robot: it moves the head on its
// X/Y rails, drives the picker, and imports or exports the rail controller
// settings. Run "control help" for the command list.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"scarif/internal/config"
	"scarif/internal/grbl"
	"scarif/internal/hardware"
	"scarif/internal/head"
	"scarif/internal/library"
	"scarif/internal/logging"
	"scarif/internal/picker"
)

// shutdownTimeout bounds the feed hold sent when a move is interrupted.
const shutdownTimeout = 10 * time.Second

// RobotSystem wires the configured components together.
type RobotSystem struct {
	config  config.Config
	logger  *logging.Logger
	client  *grbl.Client
	head    *head.Head
	picker  *picker.Picker
	library *library.Library

	controllerOpen bool
	pickerOpen     bool
}

// NewRobotSystem builds every component without opening any port.
func NewRobotSystem(cfg config.Config, logger *logging.Logger, simulate bool) (*RobotSystem, error) {
	factory := hardware.NewHardwareFactory(logger.Named("hardware"), simulate)

	home := cfg.Head.Positions[library.HomePosition]
	controllerPort, err := factory.ControllerTransport(cfg.Controller.ConnectionConfig, home)
	if err != nil {
		return nil, fmt.Errorf("controller transport: %w", err)
	}
	pickerPort, err := factory.PickerTransport(cfg.Picker.ConnectionConfig)
	if err != nil {
		return nil, fmt.Errorf("picker transport: %w", err)
	}

	client := grbl.NewClient(controllerPort, logger.Named("grbl"))
	motion := grbl.NewMotion(client, cfg.Controller.Motion, logger.Named("motion"))
	h, err := head.New(client, motion, cfg.Head, logger.Named("head"))
	if err != nil {
		return nil, err
	}
	p := picker.New(pickerPort, cfg.Picker.Config, logger.Named("picker"))

	return &RobotSystem{
		config:  cfg,
		logger:  logger,
		client:  client,
		head:    h,
		picker:  p,
		library: library.New(h, p, logger.Named("library")),
	}, nil
}

// OpenController opens the rail controller port once.
func (rs *RobotSystem) OpenController(ctx context.Context) error {
	if rs.controllerOpen {
		return nil
	}
	if err := rs.client.Open(ctx); err != nil {
		return err
	}
	rs.controllerOpen = true
	return nil
}

// OpenPicker opens the picker port once.
func (rs *RobotSystem) OpenPicker(ctx context.Context) error {
	if rs.pickerOpen {
		return nil
	}
	if err := rs.picker.Open(ctx); err != nil {
		return err
	}
	rs.pickerOpen = true
	return nil
}

// Stop closes whatever was opened.
func (rs *RobotSystem) Stop() {
	if rs.controllerOpen {
		if err := rs.client.Close(); err != nil {
			rs.logger.Error("Closing controller port", "error", err)
		}
		rs.controllerOpen = false
	}
	if rs.pickerOpen {
		if err := rs.picker.Close(); err != nil {
			rs.logger.Error("Closing picker port", "error", err)
		}
		rs.pickerOpen = false
	}
}

func (rs *RobotSystem) printSystemInfo() {
	c := rs.config
	fmt.Println("==========================================")
	fmt.Println("  Tape Library Robot")
	fmt.Println("==========================================")
	fmt.Printf("  Controller: %s @ %d (%s, timeout %v)\n", c.Controller.Address, c.Controller.BaudRate, c.Controller.Driver, c.Controller.Timeout)
	fmt.Printf("  Picker:     %s @ %d (%s, timeout %v)\n", c.Picker.Address, c.Picker.BaudRate, c.Picker.Driver, c.Picker.Timeout)
	fmt.Printf("  Poll:       every %v, max wait %v\n", c.Controller.Motion.PollInterval, c.Controller.Motion.MaxWait)
	fmt.Printf("  Limits:     x [%s %s]  y [%s %s]\n", c.Head.Limits.X.Min, c.Head.Limits.X.Max, c.Head.Limits.Y.Min, c.Head.Limits.Y.Max)
	for _, name := range rs.head.PositionNames() {
		fmt.Printf("  Position %-8s %s\n", name, c.Head.Positions[name])
	}
	fmt.Println("==========================================")
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <command> [args]\n\nCommands:\n", os.Args[0])
	for _, c := range commands {
		fmt.Fprintf(flag.CommandLine.Output(), "  %-28s %s\n", c.usage, c.help)
	}
	fmt.Fprintf(flag.CommandLine.Output(), "  %-28s %s\n", "init", "Write the default configuration to -config")
	fmt.Fprintf(flag.CommandLine.Output(), "\nFlags:\n")
	flag.PrintDefaults()
}

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "Path to configuration file")
		envFile    = flag.String("env", ".env", "Path to .env overrides")
		simulate   = flag.Bool("simulate", false, "Use in-memory simulators instead of serial ports")
		verbose    = flag.Bool("v", false, "Log wire traffic")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	if flag.Arg(0) == "help" {
		usage()
		return
	}

	manager := config.NewConfigManager(*configPath, *envFile)
	if flag.Arg(0) == "init" {
		if err := manager.CreateDefaultConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write configuration: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote default configuration to %s\n", manager.Path())
		return
	}
	if err := manager.LoadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := manager.GetConfig()
	if *verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	system, err := NewRobotSystem(cfg, logger, *simulate)
	if err != nil {
		logger.Error("Failed to create robot system", "error", err)
		os.Exit(1)
	}

	err = system.Run(context.Background(), flag.Args())
	system.Stop()
	if err != nil {
		logger.Error("Command failed", "command", flag.Arg(0), "error", err)
		os.Exit(1)
	}
}
