package device

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrClosed is returned by loopback operations after Close.
var ErrClosed = errors.New("device closed")

// Loopback is an in-memory Device for the simulation and tests. Lines written
// by the rover side are readable through Written; FeedLine injects lines the
// rover side will read.
type Loopback struct {
	in      chan string
	out     chan string
	closed  chan struct{}
	closeMu sync.Mutex
}

// NewLoopback returns a loopback device with a small line buffer per side.
func NewLoopback() *Loopback {
	return &Loopback{
		in:     make(chan string, 64),
		out:    make(chan string, 64),
		closed: make(chan struct{}),
	}
}

// ReadLine returns the next injected line, waiting up to timeout.
func (l *Loopback) ReadLine(timeout time.Duration) (string, error) {
	if timeout <= 0 {
		select {
		case s := <-l.in:
			return s, nil
		case <-l.closed:
			return "", ErrClosed
		}
	}
	select {
	case s := <-l.in:
		return s, nil
	case <-l.closed:
		return "", ErrClosed
	case <-time.After(timeout):
		return "", errors.New("read timeout")
	}
}

// WriteLine records a line written by the rover side. A full buffer drops the
// oldest line rather than blocking the writer.
func (l *Loopback) WriteLine(s string) error {
	select {
	case <-l.closed:
		return ErrClosed
	default:
	}
	s = strings.TrimSuffix(s, "\n")
	for {
		select {
		case l.out <- s:
			return nil
		default:
			select {
			case <-l.out:
			default:
			}
		}
	}
}

// FeedLine injects a line for the rover side to read.
func (l *Loopback) FeedLine(s string) {
	select {
	case l.in <- strings.TrimSuffix(s, "\n"):
	case <-l.closed:
	}
}

// Written returns the channel of lines the rover side has written.
func (l *Loopback) Written() <-chan string { return l.out }

// Close shuts both directions down.
func (l *Loopback) Close() error {
	l.closeMu.Lock()
	defer l.closeMu.Unlock()
	select {
	case <-l.closed:
	default:
		close(l.closed)
	}
	return nil
}
