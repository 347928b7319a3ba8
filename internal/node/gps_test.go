package node

import (
	"math"
	"testing"
	"time"

	"RoverCore/internal/model"
	"RoverCore/internal/shm"
)

func TestGpsPublishesAveragedFix(t *testing.T) {
	reg := shm.NewRegistry()
	out := newChanSender()
	fix := NewStaticFix(model.Position{Latitude: 40.5, Longitude: -88.25})

	gps, err := NewGps(out, reg, fix, time.Millisecond, 3)
	if err != nil {
		t.Fatalf("new gps: %v", err)
	}

	in := make(chan model.Message, 4)
	done := make(chan error, 1)
	go func() { done <- gps.Run(in) }()

	ready := out.next(t)
	if ready.Kind() != model.KindSharedMemory || ready.Destination != model.NodeNav {
		t.Fatalf("ready notice = %s to %s", ready.Kind(), ready.Destination)
	}

	view, err := reg.Open(shm.Position, shm.PositionSize)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		if p, ok := view.ReadPosition(); ok {
			if math.Abs(float64(p.Latitude)-40.5) > 1e-4 || math.Abs(float64(p.Longitude)+88.25) > 1e-4 {
				t.Fatalf("published position %+v", p)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no position published")
		}
		time.Sleep(time.Millisecond)
	}

	stopNode(t, in, done)
}
