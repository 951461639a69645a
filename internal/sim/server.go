package sim

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"scarif/internal/hardware/comm"
	"scarif/internal/logging"
)

// Server exposes a simulated board on a TCP listener so the command line
// tools can reach it with the tcp transport driver.
type Server struct {
	device comm.Transport
	logger *logging.Logger
	mu     sync.Mutex
}

// NewServer 创建模拟服务
func NewServer(device comm.Transport, logger *logging.Logger) *Server {
	return &Server{device: device, logger: logger}
}

// Serve accepts connections until ctx ends. Connections are served one at a
// time against the same device, as a serial port would be.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	if err := s.device.Open(ctx); err != nil {
		return err
	}
	defer s.device.Close()

	s.logger.Info("Simulator listening", "address", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.logger.With("remote", conn.RemoteAddr().String())
	logger.Info("Client connected")

	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if _, werr := s.device.Write(buf[:n]); werr != nil {
				logger.Error("Device write failed", "error", werr)
				return
			}
			if err := s.flush(conn); err != nil {
				logger.Error("Client write failed", "error", err)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn("Client read failed", "error", err)
			}
			logger.Info("Client disconnected")
			return
		}
	}
}

func (s *Server) flush(w io.Writer) error {
	for {
		line, err := s.device.ReadLine()
		if err != nil {
			return err
		}
		if line == "" {
			return nil
		}
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
}
