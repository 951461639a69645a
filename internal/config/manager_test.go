package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scarif/internal/grbl"
	"scarif/pkg/types"
)

const sampleYAML = `
controller:
  address: /dev/ttyUSB1
  baud_rate: 115200
  timeout: 2s
  driver: tarm
  motion:
    poll_interval: 250ms
    max_wait: 2m
picker:
  address: tcp://127.0.0.1:2301
  driver: tcp
  timeout: 50ms
  max_wait: 30s
head:
  accel_h: 7000
  accel_v: 6500
  positions:
    home: {x: 40, y: 15}
    drive: {x: 700, y: 800}
logging:
  level: debug
  format: json
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigFromYAML(t *testing.T) {
	cm := NewConfigManager(writeFile(t, "config.yaml", sampleYAML))
	require.NoError(t, cm.LoadConfig())
	cfg := cm.GetConfig()

	assert.Equal(t, "/dev/ttyUSB1", cfg.Controller.Address)
	assert.Equal(t, "tarm", cfg.Controller.Driver)
	assert.Equal(t, 2*time.Second, cfg.Controller.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Controller.Motion.PollInterval)
	assert.Equal(t, 2*time.Minute, cfg.Controller.Motion.MaxWait)

	assert.Equal(t, "tcp", cfg.Picker.Driver)
	assert.Equal(t, 9600, cfg.Picker.BaudRate, "unset fields keep their defaults")
	assert.Equal(t, 30*time.Second, cfg.Picker.MaxWait)

	assert.Equal(t, 6500, cfg.Head.AccelV)
	assert.Equal(t, DefaultConfig().Head.Limits, cfg.Head.Limits)
	assert.Equal(t, map[string]types.Point{
		"home":  {X: 40, Y: 15},
		"drive": {X: 700, Y: 800},
	}, cfg.Head.Positions, "file positions replace the defaults")

	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cm := NewConfigManager(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, cm.LoadConfig())
	assert.Equal(t, DefaultConfig(), cm.GetConfig())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("SCARIF_CONTROLLER_PORT", "tcp://10.0.0.5:23")
	t.Setenv("SCARIF_CONTROLLER_DRIVER", "tcp")
	t.Setenv("SCARIF_PICKER_BAUD", "19200")
	t.Setenv("SCARIF_MAX_WAIT", "45s")
	t.Setenv("SCARIF_LOG_LEVEL", "warn")

	cm := NewConfigManager(writeFile(t, "config.yaml", sampleYAML))
	require.NoError(t, cm.LoadConfig())
	cfg := cm.GetConfig()

	assert.Equal(t, "tcp://10.0.0.5:23", cfg.Controller.Address)
	assert.Equal(t, "tcp", cfg.Controller.Driver)
	assert.Equal(t, 19200, cfg.Picker.BaudRate)
	assert.Equal(t, 45*time.Second, cfg.Controller.Motion.MaxWait)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadConfigBadEnv(t *testing.T) {
	t.Setenv("SCARIF_POLL_INTERVAL", "soon")
	cm := NewConfigManager(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, cm.LoadConfig(), "SCARIF_POLL_INTERVAL")
}

func TestLoadConfigDotEnv(t *testing.T) {
	// godotenv never overrides variables already set; start from a known state.
	t.Setenv("SCARIF_PICKER_PORT", "")
	require.NoError(t, os.Unsetenv("SCARIF_PICKER_PORT"))
	t.Cleanup(func() { _ = os.Unsetenv("SCARIF_PICKER_PORT") })

	env := writeFile(t, ".env", "SCARIF_PICKER_PORT=/dev/ttyACM3\n")
	cm := NewConfigManager(filepath.Join(t.TempDir(), "absent.yaml"), env, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, cm.LoadConfig())
	assert.Equal(t, "/dev/ttyACM3", cm.GetConfig().Picker.Address)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no controller address", func(c *Config) { c.Controller.Address = "" }, "controller must have an address"},
		{"bad picker baud", func(c *Config) { c.Picker.BaudRate = 0 }, "picker must have a positive baud rate"},
		{"zero timeout", func(c *Config) { c.Controller.Timeout = 0 }, "positive timeout"},
		{"negative max wait", func(c *Config) { c.Controller.Motion.MaxWait = -time.Second }, "max_wait"},
		{"zero acceleration", func(c *Config) { c.Head.AccelV = 0 }, "accelerations"},
		{"inverted limits", func(c *Config) { c.Head.Limits.X = types.Range{Min: "9", Max: "1"} }, "head limits"},
		{"position outside limits", func(c *Config) { c.Head.Positions["far"] = types.Point{X: 5000, Y: 100} }, "position far"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorContains(t, validateConfig(&cfg), tt.want)
		})
	}
}

func TestValidateConfigDefaultsPollInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Controller.Motion.PollInterval = 0
	require.NoError(t, validateConfig(&cfg))
	assert.Equal(t, grbl.DefaultPollInterval, cfg.Controller.Motion.PollInterval)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cm := NewConfigManager(path)
	require.NoError(t, cm.CreateDefaultConfig())

	require.NoError(t, cm.LoadConfig())
	assert.Equal(t, DefaultConfig(), cm.GetConfig())
	assert.Equal(t, path, cm.Path())
}

func TestGetConfigReturnsCopy(t *testing.T) {
	cm := NewConfigManager(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, cm.LoadConfig())

	cfg := cm.GetConfig()
	cfg.Head.Positions["home"] = types.Point{X: 1, Y: 1}
	assert.Equal(t, types.Point{X: 38.1, Y: 12.7}, cm.GetConfig().Head.Positions["home"])
}
