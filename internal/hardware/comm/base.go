package comm

import (
	"sync"

	"scarif/internal/logging"
)

// BaseCommunication holds the bookkeeping every transport shares: connection
// status, the last error and the diagnostic event handlers.
type BaseCommunication struct {
	config        ConnectionConfig
	status        ConnectionStatus
	lastError     error
	eventHandlers []EventHandler
	mutex         sync.RWMutex
	logger        *logging.Logger
}

// NewBaseCommunication 创建基础通信实例
func NewBaseCommunication(config ConnectionConfig, logger *logging.Logger) *BaseCommunication {
	return &BaseCommunication{
		config:        config,
		status:        StatusDisconnected,
		eventHandlers: make([]EventHandler, 0),
		logger:        logger,
	}
}

// Config returns the connection settings the transport was built with.
func (bc *BaseCommunication) Config() ConnectionConfig {
	return bc.config
}

// Logger returns the transport logger.
func (bc *BaseCommunication) Logger() *logging.Logger {
	return bc.logger
}

// GetStatus 获取连接状态
func (bc *BaseCommunication) GetStatus() ConnectionStatus {
	bc.mutex.RLock()
	defer bc.mutex.RUnlock()
	return bc.status
}

// SetStatus 设置状态
func (bc *BaseCommunication) SetStatus(status ConnectionStatus) {
	bc.mutex.Lock()
	defer bc.mutex.Unlock()
	bc.status = status
}

// IsOpen reports whether the transport is connected.
func (bc *BaseCommunication) IsOpen() bool {
	return bc.GetStatus() == StatusConnected
}

// SetLastError 设置最后错误
func (bc *BaseCommunication) SetLastError(err error) {
	bc.mutex.Lock()
	defer bc.mutex.Unlock()
	bc.lastError = err
}

// GetLastError 获取最后错误
func (bc *BaseCommunication) GetLastError() error {
	bc.mutex.RLock()
	defer bc.mutex.RUnlock()
	return bc.lastError
}

// AddEventHandler 添加事件处理器
func (bc *BaseCommunication) AddEventHandler(handler EventHandler) {
	bc.mutex.Lock()
	defer bc.mutex.Unlock()
	bc.eventHandlers = append(bc.eventHandlers, handler)
}

// RemoveEventHandler 移除事件处理器
func (bc *BaseCommunication) RemoveEventHandler(handler EventHandler) {
	bc.mutex.Lock()
	defer bc.mutex.Unlock()
	for i, h := range bc.eventHandlers {
		if h == handler {
			bc.eventHandlers = append(bc.eventHandlers[:i], bc.eventHandlers[i+1:]...)
			break
		}
	}
}

func (bc *BaseCommunication) emitEvent(callback func(EventHandler)) {
	bc.mutex.RLock()
	handlers := make([]EventHandler, len(bc.eventHandlers))
	copy(handlers, bc.eventHandlers)
	bc.mutex.RUnlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					bc.logger.Error("Event handler panic", "panic", r)
				}
			}()
			callback(handler)
		}()
	}
}

// EmitConnected 触发连接事件
func (bc *BaseCommunication) EmitConnected() {
	bc.emitEvent(func(h EventHandler) { h.OnConnected() })
}

// EmitDisconnected 触发断开事件
func (bc *BaseCommunication) EmitDisconnected() {
	bc.emitEvent(func(h EventHandler) { h.OnDisconnected() })
}

// EmitError 触发错误事件
func (bc *BaseCommunication) EmitError(err error) {
	bc.emitEvent(func(h EventHandler) { h.OnError(err) })
}

// EmitLineSent reports bytes written to the wire.
func (bc *BaseCommunication) EmitLineSent(data []byte) {
	bc.logger.Debug("tx", "data", string(data))
	bc.emitEvent(func(h EventHandler) { h.OnLineSent(data) })
}

// EmitLineReceived reports one line read from the wire.
func (bc *BaseCommunication) EmitLineReceived(line string) {
	bc.logger.Debug("rx", "line", line)
	bc.emitEvent(func(h EventHandler) { h.OnLineReceived(line) })
}

// EmitReadTimeout reports a read that returned no line.
func (bc *BaseCommunication) EmitReadTimeout() {
	bc.emitEvent(func(h EventHandler) { h.OnReadTimeout() })
}

// HandleWithError records err, notifies handlers and returns it unchanged.
func (bc *BaseCommunication) HandleWithError(err error) error {
	bc.SetLastError(err)
	bc.EmitError(err)
	return err
}

// NopEventHandler implements EventHandler with empty methods; embed it to
// handle only some events.
type NopEventHandler struct{}

func (NopEventHandler) OnConnected() {}
func (NopEventHandler) OnDisconnected() {}
func (NopEventHandler) OnError(err error) {}
func (NopEventHandler) OnLineSent(data []byte) {}
func (NopEventHandler) OnLineReceived(_ string) {}
func (NopEventHandler) OnReadTimeout() {}
