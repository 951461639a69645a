// Package hardware builds the transports for the two boards of the robot.
package hardware

import (
	"sync/atomic"

	"scarif/internal/hardware/comm"
	"scarif/internal/hardware/protocols/serial"
	"scarif/internal/logging"
	"scarif/internal/sim"
	"scarif/pkg/types"
)

// HardwareFactory 硬件工厂
type HardwareFactory struct {
	logger   *logging.Logger
	simulate bool
}

// NewHardwareFactory returns a factory for real ports, or for in-memory
// simulators when simulate is set.
func NewHardwareFactory(logger *logging.Logger, simulate bool) *HardwareFactory {
	return &HardwareFactory{logger: logger, simulate: simulate}
}

// ControllerTransport returns the link to the rail controller.
func (hf *HardwareFactory) ControllerTransport(config comm.ConnectionConfig, home types.Point) (comm.Transport, error) {
	if hf.simulate {
		hf.logger.Info("Using simulated rail controller")
		return sim.NewController(sim.ControllerOptions{
			StepsPerMove: 3,
			WorkOffset:   types.Point{X: -home.X, Y: -home.Y},
			Start:        home,
		}), nil
	}
	return hf.serialTransport(config, "controller_port")
}

// PickerTransport returns the link to the picker board.
func (hf *HardwareFactory) PickerTransport(config comm.ConnectionConfig) (comm.Transport, error) {
	if hf.simulate {
		hf.logger.Info("Using simulated picker")
		return sim.NewPicker(), nil
	}
	return hf.serialTransport(config, "picker_port")
}

func (hf *HardwareFactory) serialTransport(config comm.ConnectionConfig, name string) (comm.Transport, error) {
	logger := hf.logger.Named(name)
	st, err := serial.NewSerialTransport(config, logger)
	if err != nil {
		return nil, err
	}
	st.AddEventHandler(NewLinkMonitor(logger))
	return st, nil
}

// LinkMonitor logs connection changes and counts read timeouts.
type LinkMonitor struct {
	comm.NopEventHandler
	logger   *logging.Logger
	timeouts atomic.Int64
}

// NewLinkMonitor 创建链路监视器
func NewLinkMonitor(logger *logging.Logger) *LinkMonitor {
	return &LinkMonitor{logger: logger}
}

func (m *LinkMonitor) OnConnected() { m.logger.Debug("Link up") }

func (m *LinkMonitor) OnDisconnected() {
	m.logger.Debug("Link down", "read_timeouts", m.timeouts.Load())
}

func (m *LinkMonitor) OnError(err error) { m.logger.Warn("Link error", "error", err) }

func (m *LinkMonitor) OnReadTimeout() { m.timeouts.Add(1) }

// Timeouts returns the number of reads that timed out.
func (m *LinkMonitor) Timeouts() int64 { return m.timeouts.Load() }
