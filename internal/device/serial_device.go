package device

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	serial "go.bug.st/serial"
)

// SerialDevice drives the rover's CAN adapter over a serial port. slcan
// command lines end with a carriage return, so writes append one and reads
// consume up to one.
type SerialDevice struct {
	path string
	port serial.Port
	r    *bufio.Reader
}

// NewSerialDevice opens the adapter at path with the given baud rate.
func NewSerialDevice(path string, baud int) (*SerialDevice, error) {
	p, err := serial.Open(path, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("device: open %s: %w", path, err)
	}
	return &SerialDevice{path: path, port: p, r: bufio.NewReader(p)}, nil
}

// ReadLine returns the next adapter response without its terminator. The
// bounded wait covers adapters that go quiet after a bus error.
func (s *SerialDevice) ReadLine(timeout time.Duration) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := s.r.ReadString('\r')
		ch <- result{strings.TrimRight(line, "\r\n"), err}
	}()

	if timeout <= 0 {
		res := <-ch
		return res.line, res.err
	}
	select {
	case res := <-ch:
		return res.line, res.err
	case <-time.After(timeout):
		return "", fmt.Errorf("device: read on %s timed out", s.path)
	}
}

// WriteLine sends one command line to the adapter.
func (s *SerialDevice) WriteLine(line string) error {
	if _, err := s.port.Write(append([]byte(line), '\r')); err != nil {
		return fmt.Errorf("device: write %s: %w", s.path, err)
	}
	return nil
}

// Close releases the port.
func (s *SerialDevice) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
