package router

import (
	"testing"
	"time"

	"RoverCore/internal/model"
)

func newTestRouter() *Router {
	return New(WithPollInterval(5 * time.Millisecond))
}

func recvMessage(t *testing.T, port *Port) model.Message {
	t.Helper()
	select {
	case m, ok := <-port.In:
		if !ok {
			t.Fatal("channel closed while waiting for message")
		}
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	return model.Message{}
}

func expectQuiet(t *testing.T, port *Port) {
	t.Helper()
	select {
	case m := <-port.In:
		t.Fatalf("unexpected %s message", m.Kind())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestForwardVerbatim(t *testing.T) {
	r := newTestRouter()
	r.Start()
	defer r.Stop()

	want := model.NewMessage(model.NodeGps, model.NodeNav, model.SharedMemoryPayload{})
	if err := r.Port(model.NodeGps).Send(want); err != nil {
		t.Fatalf("send: %v", err)
	}

	got := recvMessage(t, r.Port(model.NodeNav))
	if got != want {
		t.Fatalf("forwarded message mutated:\nwant %+v\ngot  %+v", want, got)
	}
}

func TestManualInputRewrittenToNav(t *testing.T) {
	r := newTestRouter()
	r.Start()
	defer r.Stop()

	manual := model.NewMessage(model.NodeComm, model.NodeCan, model.CanPayload{SID: 0x123, Count: 1})
	r.Port(model.NodeComm).Send(manual)

	got := recvMessage(t, r.Port(model.NodeNav))
	if got.Destination != model.NodeNav {
		t.Fatalf("destination = %s, want nav", got.Destination)
	}
	if got.Kind() != model.KindCan {
		t.Fatalf("kind = %s, want can", got.Kind())
	}
	expectQuiet(t, r.Port(model.NodeCan))
}

func TestHeadInsertPropagatesToNav(t *testing.T) {
	r := newTestRouter()
	r.Start()
	defer r.Stop()

	insert := model.NewMessage(model.NodeComm, model.NodeMaster, model.CommandPayload{
		Op:       model.OpCreate,
		Type:     model.PositionCommand,
		Position: model.Position{Latitude: 10, Longitude: 20},
	})
	r.Port(model.NodeComm).Send(insert)

	got := recvMessage(t, r.Port(model.NodeNav))
	pos, ok := got.Payload.(model.PositionPayload)
	if !ok {
		t.Fatalf("nav received %s, want position", got.Kind())
	}
	if pos.Position.Latitude != 10 || pos.Position.Longitude != 20 {
		t.Fatalf("position = %+v", pos.Position)
	}
}

func TestNonHeadInsertIsSuppressed(t *testing.T) {
	r := newTestRouter()
	r.Start()
	defer r.Stop()

	comm := r.Port(model.NodeComm)
	comm.Send(model.NewMessage(model.NodeComm, model.NodeMaster, model.CommandPayload{
		Op: model.OpCreate, Position: model.Position{Latitude: 1, Longitude: 1},
	}))
	recvMessage(t, r.Port(model.NodeNav)) // head insert, id 1

	comm.Send(model.NewMessage(model.NodeComm, model.NodeMaster, model.CommandPayload{
		Op: model.OpCreate, PrevID: 1, Position: model.Position{Latitude: 2, Longitude: 2},
	}))
	expectQuiet(t, r.Port(model.NodeNav))
}

func TestQueueCompletionPopsNextCommand(t *testing.T) {
	r := newTestRouter()
	r.Start()
	defer r.Stop()

	comm := r.Port(model.NodeComm)
	nav := r.Port(model.NodeNav)

	comm.Send(model.NewMessage(model.NodeComm, model.NodeMaster, model.CommandPayload{
		Op: model.OpCreate, Position: model.Position{Latitude: 1, Longitude: 1},
	}))
	recvMessage(t, nav)
	comm.Send(model.NewMessage(model.NodeComm, model.NodeMaster, model.CommandPayload{
		Op: model.OpCreate, PrevID: 1, Position: model.Position{Latitude: 2, Longitude: 2},
	}))

	// nav reports the head command done
	nav.Send(model.NewMessage(model.NodeNav, model.NodeMaster, model.CommandPayload{}))

	got := recvMessage(t, nav)
	pos := got.Payload.(model.PositionPayload)
	if pos.Position.Latitude != 2 {
		t.Fatalf("follow-up position = %+v, want latitude 2", pos.Position)
	}
}

func TestQueueCompletionOnEmptyQueueIsSuppressed(t *testing.T) {
	r := newTestRouter()
	r.Start()
	defer r.Stop()

	nav := r.Port(model.NodeNav)
	nav.Send(model.NewMessage(model.NodeNav, model.NodeMaster, model.CommandPayload{}))
	expectQuiet(t, nav)
}

func TestControllerTrafficRidesCommLink(t *testing.T) {
	r := newTestRouter()
	r.Start()
	defer r.Stop()

	ok := model.NewMessage(model.NodeNav, model.NodeController, model.OKPayload{Text: "alive"})
	r.Port(model.NodeNav).Send(ok)

	got := recvMessage(t, r.Port(model.NodeComm))
	if got.Kind() != model.KindOK {
		t.Fatalf("comm received %s, want ok", got.Kind())
	}
}

func TestKillBroadcast(t *testing.T) {
	r := newTestRouter()
	r.Start()

	r.Port(model.NodeComm).Send(model.NewMessage(model.NodeController, model.NodeMaster, model.KillPayload{}))

	for _, n := range model.RoutedNodes {
		got := recvMessage(t, r.Port(n))
		if got.Kind() != model.KindKill {
			t.Fatalf("node %s received %s, want kill", n, got.Kind())
		}
	}

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("router did not terminate after kill")
	}

	// channels are closed after the broadcast
	if _, open := <-r.Port(model.NodeNav).In; open {
		t.Fatal("nav channel still open after shutdown")
	}
}

func TestUnknownCommandOpIgnored(t *testing.T) {
	r := newTestRouter()
	r.Start()
	defer r.Stop()

	r.Port(model.NodeComm).Send(model.Message{
		Source:      model.NodeComm,
		Destination: model.NodeMaster,
		Payload:     model.CommandPayload{Op: model.CommandOp(99)},
	})

	// the loop keeps routing afterward
	want := model.NewMessage(model.NodeGps, model.NodeNav, model.SharedMemoryPayload{})
	r.Port(model.NodeGps).Send(want)
	got := recvMessage(t, r.Port(model.NodeNav))
	if got != want {
		t.Fatalf("router stopped forwarding after bad message")
	}
}
