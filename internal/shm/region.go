// Package shm implements the shared regions sensor producers use to hand
// high-rate data to the navigation engine outside the message channel. Three
// well-known regions exist per run: the segmentation mask, the measured turn
// angle, and the averaged position.
//
// Each region is single-producer/single-consumer with overwrite-latest
// semantics; there is no queueing. The original flag-pair handshake was racy,
// so writes are guarded by an atomic sequence counter (odd while a write is
// in flight) and freshness by a separate availability flag. A consumer that
// polls faster than its producer sees "no new data", which is not an error.
package shm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"RoverCore/internal/model"
)

// Kind names one of the well-known regions.
type Kind uint8

const (
	Segmentation Kind = iota
	Angle
	Position
)

var kindNames = map[Kind]string{
	Segmentation: "segmentation",
	Angle:        "angle",
	Position:     "position",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Payload sizes for the fixed-size regions. The mask region's size depends on
// the camera resolution and is chosen by its producer.
const (
	AngleSize    = 4
	PositionSize = 8
)

var (
	// ErrStale is returned when a bounded wait expires without the
	// producer publishing fresh data.
	ErrStale = errors.New("shm: no fresh data before deadline")
	// ErrReadOnly is returned when a consumer view attempts a write.
	ErrReadOnly = errors.New("shm: region opened read-only")
)

// header is the small synchronization block shared by every view of a
// region: the sequence counter guarding payload consistency and the
// data-available flag.
type header struct {
	seq       atomic.Uint32
	available atomic.Bool
}

// Region is one shared block: a synchronization header and a typed payload.
// The creating producer holds the only writable view; consumer views share
// the same header and payload.
type Region struct {
	kind     Kind
	buf      []byte
	hdr      *header
	writable bool
}

// Registry tracks the regions created in this run and enforces a single
// creator per kind.
type Registry struct {
	mu      sync.Mutex
	regions map[Kind]*Region
}

// NewRegistry returns an empty region registry.
func NewRegistry() *Registry {
	return &Registry{regions: make(map[Kind]*Region)}
}

// Create allocates the region for kind with the given payload size and
// returns the producer's writable view. A second Create for the same kind is
// rejected.
func (r *Registry) Create(kind Kind, size int) (*Region, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.regions[kind]; exists {
		return nil, fmt.Errorf("shm: region %s already created", kind)
	}
	if size <= 0 {
		return nil, fmt.Errorf("shm: invalid region size %d", size)
	}
	reg := &Region{kind: kind, buf: make([]byte, size), hdr: &header{}, writable: true}
	r.regions[kind] = reg
	return reg, nil
}

// Open returns the consumer view of an already created region. The expected
// size must match what the producer allocated. Consumer views never write the
// payload; they may clear the availability flag.
func (r *Registry) Open(kind Kind, size int) (*Region, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.regions[kind]
	if !ok {
		return nil, fmt.Errorf("shm: region %s not created", kind)
	}
	if len(reg.buf) != size {
		return nil, fmt.Errorf("shm: region %s is %d bytes, expected %d", kind, len(reg.buf), size)
	}
	return &Region{kind: kind, buf: reg.buf, hdr: reg.hdr, writable: false}, nil
}

// write runs fn over the payload under the sequence lock and marks the data
// available.
func (reg *Region) write(fn func(buf []byte)) error {
	if !reg.writable {
		return ErrReadOnly
	}
	reg.hdr.seq.Add(1) // odd: write in flight
	fn(reg.buf)
	reg.hdr.seq.Add(1)
	reg.hdr.available.Store(true)
	return nil
}

// read runs fn over a consistent snapshot of the payload, retrying while a
// write is in flight.
func (reg *Region) read(fn func(buf []byte)) {
	for {
		s := reg.hdr.seq.Load()
		if s%2 == 1 {
			runtime.Gosched()
			continue
		}
		fn(reg.buf)
		if reg.hdr.seq.Load() == s {
			return
		}
	}
}

// Available reports whether unread data is present.
func (reg *Region) Available() bool { return reg.hdr.available.Load() }

// ClearAvailable discards any pending data. The navigation engine uses this
// before a turn so the next angle read observes only the new measurement.
func (reg *Region) ClearAvailable() { reg.hdr.available.Store(false) }

// WriteAngle publishes a measured turn angle in degrees.
func (reg *Region) WriteAngle(v float32) error {
	return reg.write(func(buf []byte) {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
	})
}

// ReadAngle blocks until the producer publishes a fresh angle or the timeout
// expires, then consumes and returns it. An expired wait returns ErrStale;
// the caller decides whether to retry or fall back.
func (reg *Region) ReadAngle(timeout time.Duration) (float32, error) {
	deadline := time.Now().Add(timeout)
	for !reg.hdr.available.Load() {
		if time.Now().After(deadline) {
			return 0, ErrStale
		}
		time.Sleep(time.Millisecond)
	}
	var v float32
	reg.read(func(buf []byte) {
		v = math.Float32frombits(binary.LittleEndian.Uint32(buf))
	})
	reg.hdr.available.Store(false)
	return v, nil
}

// WritePosition publishes an averaged position.
func (reg *Region) WritePosition(p model.Position) error {
	return reg.write(func(buf []byte) {
		binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(p.Latitude))
		binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(p.Longitude))
	})
}

// ReadPosition consumes the latest position if one is pending. ok is false
// when the producer has published nothing new since the last read.
func (reg *Region) ReadPosition() (model.Position, bool) {
	if !reg.hdr.available.Load() {
		return model.Position{}, false
	}
	var p model.Position
	reg.read(func(buf []byte) {
		p.Latitude = math.Float32frombits(binary.LittleEndian.Uint32(buf[0:]))
		p.Longitude = math.Float32frombits(binary.LittleEndian.Uint32(buf[4:]))
	})
	reg.hdr.available.Store(false)
	return p, true
}

// WriteMask overwrites the segmentation mask in place. Frame freshness is
// coordinated by the shared-memory-ready message through the router, not by
// the availability flag.
func (reg *Region) WriteMask(mask []byte) error {
	if len(mask) != len(reg.buf) {
		return fmt.Errorf("shm: mask is %d bytes, region holds %d", len(mask), len(reg.buf))
	}
	return reg.write(func(buf []byte) {
		copy(buf, mask)
	})
}

// SnapshotMask copies the latest fully written frame into dst.
func (reg *Region) SnapshotMask(dst []byte) error {
	if len(dst) != len(reg.buf) {
		return fmt.Errorf("shm: destination is %d bytes, region holds %d", len(dst), len(reg.buf))
	}
	reg.read(func(buf []byte) {
		copy(dst, buf)
	})
	return nil
}

// Size returns the payload size in bytes.
func (reg *Region) Size() int { return len(reg.buf) }
