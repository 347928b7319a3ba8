// Package router implements the message-routing kernel. It owns one duplex
// channel pair per node, multiplexes reads in fixed node order, applies the
// interception rules for command-queue traffic, and broadcasts the Kill
// signal at shutdown. The command queue lives inside the router; no other
// component touches it.
package router

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"RoverCore/internal/command"
	"RoverCore/internal/model"
	"RoverCore/internal/util"
)

// ErrChannelFull is returned when a node's outbound channel cannot accept
// another message. The sender logs it and moves on; nothing in the kernel
// blocks on a slow peer.
var ErrChannelFull = errors.New("router: channel full")

const linkDepth = 16

// link is the router's channel pair for one node.
type link struct {
	toNode   chan model.Message
	fromNode chan model.Message
}

// Port is a node's handle onto the router: messages for the node arrive on
// In; the node submits messages with Send.
type Port struct {
	In    <-chan model.Message
	out   chan<- model.Message
	ready chan<- struct{}
}

// Send hands a message to the router without blocking. A full channel is
// reported to the caller instead of stalling the node's event loop.
func (p *Port) Send(m model.Message) error {
	select {
	case p.out <- m:
	default:
		return ErrChannelFull
	}
	select {
	case p.ready <- struct{}{}:
	default:
	}
	return nil
}

// Router supervises the node links and runs the polling loop.
type Router struct {
	log   *zap.SugaredLogger
	queue *command.Queue
	links map[model.Node]*link
	ready chan struct{}
	poll  time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Option adjusts router construction.
type Option func(*Router)

// WithPollInterval overrides the bounded wait between polling cycles.
func WithPollInterval(d time.Duration) Option {
	return func(r *Router) { r.poll = d }
}

// New builds a router with one link per routed node.
func New(opts ...Option) *Router {
	r := &Router{
		log:   util.NewLogger("router"),
		queue: command.New(),
		links: make(map[model.Node]*link),
		ready: make(chan struct{}, 1),
		poll:  50 * time.Millisecond,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	for _, n := range model.RoutedNodes {
		r.links[n] = &link{
			toNode:   make(chan model.Message, linkDepth),
			fromNode: make(chan model.Message, linkDepth),
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Port returns the handle for a routed node, or nil for an unknown node.
func (r *Router) Port(n model.Node) *Port {
	l, ok := r.links[n]
	if !ok {
		return nil
	}
	return &Port{In: l.toNode, out: l.fromNode, ready: r.ready}
}

// Start launches the polling loop.
func (r *Router) Start() {
	go r.run()
}

// Stop triggers the same shutdown path a Kill message would and waits for
// the loop to finish.
func (r *Router) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

// Done is closed once the router has broadcast Kill and torn down its links.
func (r *Router) Done() <-chan struct{} { return r.done }

func (r *Router) run() {
	defer close(r.done)
	for {
		// bounded wait: wake on a node send or fall through on the
		// poll interval, which doubles as the liveness probe period
		select {
		case <-r.ready:
		case <-time.After(r.poll):
		case <-r.stop:
			r.shutdown()
			return
		}
		if killed := r.cycle(); killed {
			r.shutdown()
			return
		}
	}
}

// cycle reads at most one message per ready channel, in fixed node order.
// A channel with nothing pending is skipped this cycle.
func (r *Router) cycle() bool {
	for _, n := range model.RoutedNodes {
		select {
		case m := <-r.links[n].fromNode:
			if killed := r.route(m); killed {
				return true
			}
		default:
		}
	}
	return false
}

// route applies the interception rules to one message. It returns true when
// the message triggers shutdown.
func (r *Router) route(m model.Message) bool {
	switch {
	case m.Kind() == model.KindKill:
		r.log.Infof("kill received from %s", m.Source)
		return true

	case m.Source == model.NodeComm && m.Destination == model.NodeCan:
		// manual motor input must transit nav for arbitration
		m.Destination = model.NodeNav
		r.forward(m)

	case m.Kind() == model.KindCommand && m.Destination == model.NodeMaster && m.Source == model.NodeNav:
		// nav finished the head command; pop the queue
		next, ok := r.queue.PopNext()
		if !ok {
			r.log.Infof("command queue empty")
			return false
		}
		r.forward(next)

	case m.Kind() == model.KindCommand && m.Source == model.NodeComm:
		r.handleCommandOp(m)

	default:
		r.forward(m)
	}
	return false
}

// handleCommandOp dispatches a controller command-queue operation.
func (r *Router) handleCommandOp(m model.Message) {
	cmd, ok := m.Payload.(model.CommandPayload)
	if !ok {
		r.log.Errorf("command message with %T payload ignored", m.Payload)
		return
	}
	switch cmd.Op {
	case model.OpCreate:
		res, headMsg := r.queue.Insert(cmd)
		if res == command.HeadInsert {
			r.forward(headMsg)
		}
	case model.OpDelete:
		headMsg, headChanged, found := r.queue.Delete(cmd.ID)
		if !found {
			r.log.Infof("delete of unknown command id %d ignored", cmd.ID)
			return
		}
		if headChanged {
			r.forward(headMsg)
		}
	case model.OpFlush:
		r.queue.Flush()
	case model.OpUpdate:
		// no controller sends updates; treated as a protocol no-op
		r.log.Infof("command update operation ignored")
	default:
		r.log.Errorf("unknown command operation %d ignored", cmd.Op)
	}
}

// forward delivers a message to its destination's channel. Messages for the
// controller ride the comm link; a message addressed to the router itself is
// never forwarded.
func (r *Router) forward(m model.Message) {
	dst := m.Destination
	if dst == model.NodeController {
		dst = model.NodeComm
	}
	if dst == model.NodeMaster {
		r.log.Errorf("dropping %s message addressed to master from %s", m.Kind(), m.Source)
		return
	}
	l, ok := r.links[dst]
	if !ok {
		r.log.Errorf("dropping %s message for unknown node %s", m.Kind(), dst)
		return
	}
	select {
	case l.toNode <- m:
	default:
		// a wedged node must not stall the kernel
		r.log.Errorf("channel to %s full, dropping %s message", dst, m.Kind())
	}
}

// shutdown broadcasts Kill to every node, then closes the inbound channels.
// No acknowledgment is awaited.
func (r *Router) shutdown() {
	r.log.Infof("broadcasting kill")
	for _, n := range model.RoutedNodes {
		kill := model.NewMessage(model.NodeMaster, n, model.KillPayload{})
		select {
		case r.links[n].toNode <- kill:
		case <-time.After(r.poll):
			r.log.Errorf("kill to %s timed out", n)
		}
	}
	for _, n := range model.RoutedNodes {
		close(r.links[n].toNode)
	}
	r.log.Infof("router signing off")
}
