// Package serial implements comm.Transport over a serial port (or a TCP
// socket for the simulator) using one of several driver back ends.
package serial

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"scarif/internal/hardware/comm"
	"scarif/internal/logging"
)

// SerialTransport 串口客户端
type SerialTransport struct {
	*comm.BaseCommunication
	driver Driver
	port   io.ReadWriteCloser
	reader *comm.LineReader
	mu     sync.Mutex
}

var _ comm.Transport = (*SerialTransport)(nil)

// NewSerialTransport builds a closed transport. Open must be called before use.
func NewSerialTransport(config comm.ConnectionConfig, logger *logging.Logger) (*SerialTransport, error) {
	driver, err := LookupDriver(config.Driver)
	if err != nil {
		return nil, err
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Second
	}
	return &SerialTransport{
		BaseCommunication: comm.NewBaseCommunication(config, logger.With("address", config.Address)),
		driver:            driver,
	}, nil
}

// Open 打开串口
func (st *SerialTransport) Open(ctx context.Context) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.port != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	st.SetStatus(comm.StatusConnecting)
	cfg := st.Config()
	port, isTimeout, err := st.driver.Open(cfg)
	if err != nil {
		st.SetStatus(comm.StatusError)
		return st.HandleWithError(fmt.Errorf("failed to open %s: %w", cfg.Address, err))
	}

	st.port = port
	st.reader = comm.NewLineReader(port, isTimeout)
	st.SetStatus(comm.StatusConnected)
	st.EmitConnected()
	st.Logger().Info("Port opened", "driver", st.driver.Name, "baud_rate", cfg.BaudRate, "timeout", cfg.Timeout)
	return nil
}

// Close 关闭串口
func (st *SerialTransport) Close() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.port == nil {
		return nil
	}
	err := st.port.Close()
	st.port = nil
	st.reader = nil
	st.SetStatus(comm.StatusDisconnected)
	st.EmitDisconnected()
	if err != nil {
		return st.HandleWithError(fmt.Errorf("failed to close %s: %w", st.Config().Address, err))
	}
	return nil
}

// Write sends p as is; framing is the caller's job.
func (st *SerialTransport) Write(p []byte) (int, error) {
	st.mu.Lock()
	port := st.port
	st.mu.Unlock()

	if port == nil {
		return 0, comm.ErrNotOpen
	}
	n, err := port.Write(p)
	if err != nil {
		return n, st.HandleWithError(fmt.Errorf("write: %w", err))
	}
	st.EmitLineSent(p[:n])
	return n, nil
}

// ReadLine 读取一行
func (st *SerialTransport) ReadLine() (string, error) {
	st.mu.Lock()
	reader := st.reader
	st.mu.Unlock()

	if reader == nil {
		return "", comm.ErrNotOpen
	}
	line, err := reader.ReadLine()
	if err != nil {
		return "", st.HandleWithError(fmt.Errorf("read: %w", err))
	}
	if line == "" {
		st.EmitReadTimeout()
		return "", nil
	}
	st.EmitLineReceived(line)
	return line, nil
}
