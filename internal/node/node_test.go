package node

import (
	"testing"
	"time"

	"RoverCore/internal/model"
)

// chanSender collects outbound node messages for assertions.
type chanSender struct {
	out chan model.Message
}

func newChanSender() *chanSender {
	return &chanSender{out: make(chan model.Message, 32)}
}

func (c *chanSender) Send(m model.Message) error {
	c.out <- m
	return nil
}

func (c *chanSender) next(t *testing.T) model.Message {
	t.Helper()
	select {
	case m := <-c.out:
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outbound message")
	}
	return model.Message{}
}

func stopNode(t *testing.T, in chan<- model.Message, done <-chan error) {
	t.Helper()
	in <- model.NewMessage(model.NodeMaster, model.NodeComm, model.KillPayload{})
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("node did not stop")
	}
}
