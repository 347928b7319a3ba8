package node

import (
	"testing"
	"time"

	"RoverCore/internal/device"
	"RoverCore/internal/model"
	"RoverCore/internal/motor"
)

func TestSlcanFrameFormat(t *testing.T) {
	frame, err := slcanFrame(0x123, []byte{0x02})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if frame != "t123102" {
		t.Fatalf("frame = %q, want t123102", frame)
	}

	if _, err := slcanFrame(0x800, []byte{0}); err == nil {
		t.Fatal("extended id accepted for a standard frame")
	}
	if _, err := slcanFrame(0x1, make([]byte, 9)); err == nil {
		t.Fatal("nine data bytes accepted")
	}
}

func TestCanReplaysFrameRepeatTimes(t *testing.T) {
	dev := device.NewLoopback()
	can := NewCan(dev)

	in := make(chan model.Message, 4)
	done := make(chan error, 1)
	go func() { done <- can.Run(in) }()

	var data [8]byte
	data[0] = motor.Encode(false, motor.Push, motor.Left)
	in <- model.NewMessage(model.NodeNav, model.NodeCan, model.CanPayload{
		SID: 0x123, Count: 1, Data: data, Repeat: 3,
	})

	for i := 0; i < 3; i++ {
		select {
		case line := <-dev.Written():
			want := "t123101"
			if line != want {
				t.Fatalf("line %d = %q, want %q", i, line, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("expected 3 writes, got %d", i)
		}
	}

	in <- model.NewMessage(model.NodeMaster, model.NodeCan, model.KillPayload{})
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("can node did not stop")
	}
}

func TestCanDropsOversizedCountFrame(t *testing.T) {
	dev := device.NewLoopback()
	can := NewCan(dev)

	in := make(chan model.Message, 4)
	done := make(chan error, 1)
	go func() { done <- can.Run(in) }()

	// count byte beyond the data array must not take the loop down
	in <- model.NewMessage(model.NodeComm, model.NodeCan, model.CanPayload{
		SID: 0x123, Count: 20, Repeat: 1,
	})

	var data [8]byte
	data[0] = motor.Encode(false, motor.Push, motor.Forward)
	in <- model.NewMessage(model.NodeNav, model.NodeCan, model.CanPayload{
		SID: 0x123, Count: 1, Data: data, Repeat: 1,
	})

	select {
	case line := <-dev.Written():
		if line != "t123102" {
			t.Fatalf("line = %q, want t123102", line)
		}
	case <-time.After(time.Second):
		t.Fatal("good frame after the bad one was not written")
	}

	in <- model.NewMessage(model.NodeMaster, model.NodeCan, model.KillPayload{})
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("can node did not stop")
	}
}
