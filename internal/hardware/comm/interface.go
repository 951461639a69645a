// Package comm defines the line-oriented transport both boards are reached
// through, together with connection state and diagnostic events.
package comm

import (
	"context"
	"errors"
	"time"
)

// ConnectionStatus 表示连接状态
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusError
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	}
	return "invalid"
}

// ErrNotOpen is returned by transport operations attempted before Open.
var ErrNotOpen = errors.New("transport is not open")

// ConnectionConfig 基础连接配置
type ConnectionConfig struct {
	Address  string        `yaml:"address"`   // device path, or tcp://host:port
	BaudRate int           `yaml:"baud_rate"` // ignored for tcp
	Timeout  time.Duration `yaml:"timeout"`   // per-line read timeout
	Driver   string        `yaml:"driver"`    // jacobsa, goburrow, tarm, tcp
}

// Transport is a blocking, line-buffered byte stream.
//
// ReadLine returns the next line including its terminator. An empty string
// with a nil error means the read timed out before a full line arrived; any
// partial data stays buffered for the next call.
type Transport interface {
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool
	Write(p []byte) (int, error)
	ReadLine() (string, error)
}

// EventHandler 事件处理接口
type EventHandler interface {
	OnConnected()
	OnDisconnected()
	OnError(err error)
	OnLineSent(data []byte)
	OnLineReceived(line string)
	OnReadTimeout()
}
