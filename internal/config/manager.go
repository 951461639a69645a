// Package config loads the rail controller, picker, head and logging
// settings from a YAML file, with overrides from a .env file and the
// environment. The loaded configuration is read-only.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"scarif/internal/grbl"
	"scarif/internal/hardware/comm"
	"scarif/internal/head"
	"scarif/internal/logging"
	"scarif/internal/picker"
	"scarif/pkg/types"
)

// ControllerConfig is the rail controller link and move polling.
type ControllerConfig struct {
	comm.ConnectionConfig `yaml:",inline"`
	Motion                grbl.MotionConfig `yaml:"motion"`
}

// PickerConfig is the picker board link.
type PickerConfig struct {
	comm.ConnectionConfig `yaml:",inline"`
	picker.Config         `yaml:",inline"`
}

// Config is the whole system configuration.
type Config struct {
	Controller ControllerConfig `yaml:"controller"`
	Picker     PickerConfig     `yaml:"picker"`
	Head       head.Config      `yaml:"head"`
	Logging    logging.Config   `yaml:"logging"`
}

// ConfigManager owns the loaded configuration.
type ConfigManager struct {
	config     Config
	configPath string
	envFiles   []string
}

// NewConfigManager 创建配置管理器. envFiles are loaded with godotenv before
// the environment is consulted; missing files are ignored.
func NewConfigManager(configPath string, envFiles ...string) *ConfigManager {
	return &ConfigManager{
		configPath: configPath,
		envFiles:   envFiles,
	}
}

// LoadConfig reads the YAML file, applies environment overrides, fills
// defaults and validates. A missing file falls back to DefaultConfig.
func (cm *ConfigManager) LoadConfig() error {
	config := DefaultConfig()

	data, err := os.ReadFile(cm.configPath)
	switch {
	case err == nil:
		// yaml merges into maps; file positions replace the defaults.
		defaults := config.Head.Positions
		config.Head.Positions = nil
		if err := yaml.Unmarshal(data, &config); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
		if config.Head.Positions == nil {
			config.Head.Positions = defaults
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := loadEnvFiles(cm.envFiles); err != nil {
		return err
	}
	if err := applyEnv(&config); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	if err := validateConfig(&config); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	cm.config = config
	return nil
}

// GetConfig returns a copy of the loaded configuration.
func (cm *ConfigManager) GetConfig() Config {
	c := cm.config
	c.Head.Positions = maps.Clone(cm.config.Head.Positions)
	return c
}

// Path returns the configuration file path.
func (cm *ConfigManager) Path() string {
	return cm.configPath
}

// CreateDefaultConfig writes DefaultConfig to the config path.
func (cm *ConfigManager) CreateDefaultConfig() error {
	return Save(cm.configPath, DefaultConfig())
}

// Save writes config as YAML.
func Save(path string, config Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DefaultConfig mirrors the bench setup of the library robot.
func DefaultConfig() Config {
	return Config{
		Controller: ControllerConfig{
			ConnectionConfig: comm.ConnectionConfig{
				Address:  "/dev/ttyUSB0",
				BaudRate: 115200,
				Timeout:  5 * time.Second,
				Driver:   "jacobsa",
			},
			Motion: grbl.MotionConfig{
				PollInterval: grbl.DefaultPollInterval,
			},
		},
		Picker: PickerConfig{
			ConnectionConfig: comm.ConnectionConfig{
				Address:  "/dev/ttyACM0",
				BaudRate: 9600,
				Timeout:  100 * time.Millisecond,
				Driver:   "jacobsa",
			},
		},
		Head: head.Config{
			AccelH: 8000,
			AccelV: 8000,
			Limits: types.SoftLimits{
				X: types.Range{Min: "38.100", Max: "770.0"},
				Y: types.Range{Min: "12.700", Max: "875.0"},
			},
			Positions: map[string]types.Point{
				"home":  {X: 38.1, Y: 12.7},
				"slot1": {X: 238.1, Y: 212.7},
				"slot2": {X: 648.6, Y: 612.7},
			},
		},
		Logging: *logging.DefaultConfig(),
	}
}

func loadEnvFiles(files []string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

func applyEnv(c *Config) error {
	setString("SCARIF_CONTROLLER_PORT", &c.Controller.Address)
	setString("SCARIF_CONTROLLER_DRIVER", &c.Controller.Driver)
	setString("SCARIF_PICKER_PORT", &c.Picker.Address)
	setString("SCARIF_PICKER_DRIVER", &c.Picker.Driver)
	setString("SCARIF_LOG_LEVEL", &c.Logging.Level)
	setString("SCARIF_LOG_FORMAT", &c.Logging.Format)

	if err := setInt("SCARIF_CONTROLLER_BAUD", &c.Controller.BaudRate); err != nil {
		return err
	}
	if err := setInt("SCARIF_PICKER_BAUD", &c.Picker.BaudRate); err != nil {
		return err
	}
	if err := setDuration("SCARIF_CONTROLLER_TIMEOUT", &c.Controller.Timeout); err != nil {
		return err
	}
	if err := setDuration("SCARIF_PICKER_TIMEOUT", &c.Picker.Timeout); err != nil {
		return err
	}
	if err := setDuration("SCARIF_POLL_INTERVAL", &c.Controller.Motion.PollInterval); err != nil {
		return err
	}
	return setDuration("SCARIF_MAX_WAIT", &c.Controller.Motion.MaxWait)
}

func setString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func validateConfig(config *Config) error {
	if config.Controller.Motion.PollInterval <= 0 {
		config.Controller.Motion.PollInterval = grbl.DefaultPollInterval
	}
	if config.Controller.Motion.MaxWait < 0 {
		return fmt.Errorf("controller motion max_wait must not be negative")
	}
	if config.Picker.MaxWait < 0 {
		return fmt.Errorf("picker max_wait must not be negative")
	}

	for name, link := range map[string]*comm.ConnectionConfig{
		"controller": &config.Controller.ConnectionConfig,
		"picker":     &config.Picker.ConnectionConfig,
	} {
		if link.Address == "" {
			return fmt.Errorf("%s must have an address", name)
		}
		if link.BaudRate <= 0 {
			return fmt.Errorf("%s must have a positive baud rate", name)
		}
		if link.Timeout <= 0 {
			return fmt.Errorf("%s must have a positive timeout", name)
		}
	}

	if config.Head.AccelH <= 0 || config.Head.AccelV <= 0 {
		return fmt.Errorf("head accelerations must be positive")
	}
	if err := config.Head.Limits.Validate(); err != nil {
		return fmt.Errorf("head limits: %w", err)
	}
	for name, p := range config.Head.Positions {
		if err := config.Head.Limits.Check(p.X, p.Y); err != nil {
			return fmt.Errorf("position %s: %w", name, err)
		}
	}
	return nil
}
