package node

import (
	"sync"

	"RoverCore/internal/model"
)

// Placeholder sources for running without the excluded hardware drivers.
// The simulation binary builds richer closed-loop sources on the same
// interfaces.

// StaticMask fills every mask cell with a fixed class value.
type StaticMask struct {
	Value byte
}

func (s StaticMask) Grab(dst []byte) error {
	for i := range dst {
		dst[i] = s.Value
	}
	return nil
}

// StaticFix always reports the same position.
type StaticFix struct {
	mu  sync.Mutex
	pos model.Position
}

// NewStaticFix returns a source pinned at p.
func NewStaticFix(p model.Position) *StaticFix {
	return &StaticFix{pos: p}
}

// Set moves the reported position.
func (s *StaticFix) Set(p model.Position) {
	s.mu.Lock()
	s.pos = p
	s.mu.Unlock()
}

func (s *StaticFix) Fix() (model.Position, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos, true, nil
}

// StaticRate reports a constant yaw rate, zero by default.
type StaticRate struct {
	Rate float64
}

func (s StaticRate) Sample() (float64, error) { return s.Rate, nil }
