package serial

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"time"

	goburrow "github.com/goburrow/serial"
	jacobsa "github.com/jacobsa/go-serial/serial"
	tarm "github.com/tarm/serial"

	"scarif/internal/hardware/comm"
)

// Driver opens the byte stream behind a SerialTransport.
type Driver struct {
	Name string
	Open func(cfg comm.ConnectionConfig) (io.ReadWriteCloser, comm.TimeoutFunc, error)
}

// DefaultDriver is used when the configuration names none.
const DefaultDriver = "jacobsa"

var drivers = map[string]Driver{
	"jacobsa":  {Name: "jacobsa", Open: openJacobsa},
	"goburrow": {Name: "goburrow", Open: openGoburrow},
	"tarm":     {Name: "tarm", Open: openTarm},
	"tcp":      {Name: "tcp", Open: openTCP},
}

// LookupDriver returns the named driver.
func LookupDriver(name string) (Driver, error) {
	if name == "" {
		name = DefaultDriver
	}
	d, ok := drivers[strings.ToLower(name)]
	if !ok {
		return Driver{}, fmt.Errorf("unknown serial driver %q (available: %s)", name, strings.Join(DriverNames(), ", "))
	}
	return d, nil
}

// DriverNames lists the registered drivers.
func DriverNames() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Serial drivers configured with VMIN=0 report an expired read timeout as a
// zero-length read, which the os package surfaces as io.EOF.
func serialTimeout(n int, err error) bool {
	return n == 0 && (err == nil || errors.Is(err, io.EOF) || errors.Is(err, goburrow.ErrTimeout))
}

func openJacobsa(cfg comm.ConnectionConfig) (io.ReadWriteCloser, comm.TimeoutFunc, error) {
	// jacobsa expresses the timeout in milliseconds, rounded to 100ms by termios.
	timeoutMs := uint(cfg.Timeout / time.Millisecond)
	if timeoutMs < 100 {
		timeoutMs = 100
	}
	port, err := jacobsa.Open(jacobsa.OpenOptions{
		PortName:              cfg.Address,
		BaudRate:              uint(cfg.BaudRate),
		DataBits:              8,
		StopBits:              1,
		ParityMode:            jacobsa.PARITY_NONE,
		InterCharacterTimeout: timeoutMs,
		MinimumReadSize:       0,
	})
	if err != nil {
		return nil, nil, err
	}
	return port, serialTimeout, nil
}

func openGoburrow(cfg comm.ConnectionConfig) (io.ReadWriteCloser, comm.TimeoutFunc, error) {
	port, err := goburrow.Open(&goburrow.Config{
		Address:  cfg.Address,
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}
	return port, serialTimeout, nil
}

func openTarm(cfg comm.ConnectionConfig) (io.ReadWriteCloser, comm.TimeoutFunc, error) {
	port, err := tarm.OpenPort(&tarm.Config{
		Name:        cfg.Address,
		Baud:        cfg.BaudRate,
		ReadTimeout: cfg.Timeout,
		Size:        8,
		Parity:      tarm.ParityNone,
		StopBits:    tarm.Stop1,
	})
	if err != nil {
		return nil, nil, err
	}
	return port, serialTimeout, nil
}

// deadlineConn applies the read timeout to every Read on a socket.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

func tcpTimeout(n int, err error) bool {
	var ne net.Error
	return n == 0 && errors.As(err, &ne) && ne.Timeout()
}

func openTCP(cfg comm.ConnectionConfig) (io.ReadWriteCloser, comm.TimeoutFunc, error) {
	addr := strings.TrimPrefix(cfg.Address, "tcp://")
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, nil, err
	}
	return &deadlineConn{Conn: conn, timeout: cfg.Timeout}, tcpTimeout, nil
}
