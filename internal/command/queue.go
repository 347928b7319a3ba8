// Package command implements the router-owned queue of pending navigation
// and camera commands. The head of the queue is the command currently being
// executed; the navigation engine signals completion through the router,
// which pops the queue and dispatches the next command.
package command

import "RoverCore/internal/model"

// node is one pending command in the singly linked queue.
type node struct {
	id       uint64
	kind     model.CommandType
	position model.Position
	next     *node
}

// InsertResult tells the router whether an insert changed the queue head, in
// which case the new head must be propagated to the navigation engine.
type InsertResult int

const (
	HeadInsert InsertResult = iota
	NonHeadInsert
)

// Queue is the ordered list of pending commands. Ids are assigned
// monotonically from 1 and never reused within a session. Not safe for
// concurrent use; the router owns it exclusively.
type Queue struct {
	head       *node
	nextID     uint64
	lastPopped uint64
}

// New returns an empty queue with the id counter at 1.
func New() *Queue {
	return &Queue{nextID: 1}
}

// Len walks the queue and returns the number of pending commands.
func (q *Queue) Len() int {
	n := 0
	for cur := q.head; cur != nil; cur = cur.next {
		n++
	}
	return n
}

func (q *Queue) newNode(cmd model.CommandPayload, next *node) *node {
	n := &node{
		id:       q.nextID,
		kind:     cmd.Type,
		position: cmd.Position,
		next:     next,
	}
	q.nextID++
	return n
}

// headMessage synthesizes the head-update message sent to the node that
// executes the head command.
func (q *Queue) headMessage() model.Message {
	if q.head.kind == model.CameraCommand {
		return model.NewMessage(model.NodeMaster, model.NodeCam, model.CamPayload{})
	}
	return model.NewMessage(model.NodeMaster, model.NodeNav, model.PositionPayload{
		Position: q.head.position,
	})
}

// Insert adds a command after the node with id cmd.PrevID. If the queue is
// empty, or cmd.PrevID names the command popped most recently (the common
// race where the referenced command finished before the insert arrived), the
// new command becomes the head and the returned message carries its payload
// for the navigation engine. Otherwise the scan stops at the matching id or
// the list end and splices there, with no propagation.
func (q *Queue) Insert(cmd model.CommandPayload) (InsertResult, model.Message) {
	if q.head == nil || q.lastPopped == cmd.PrevID {
		q.head = q.newNode(cmd, q.head)
		return HeadInsert, q.headMessage()
	}

	cur := q.head
	for cur.next != nil && cur.id != cmd.PrevID {
		cur = cur.next
	}
	cur.next = q.newNode(cmd, cur.next)
	return NonHeadInsert, model.Message{}
}

// PopNext removes the currently executing head command, records its id as
// last-popped, and returns the follow-up message for the new head when one
// exists. With no follow-up the returned ok is false and the caller sends
// nothing.
func (q *Queue) PopNext() (model.Message, bool) {
	if q.head == nil {
		return model.Message{}, false
	}

	popped := q.head
	q.head = q.head.next
	q.lastPopped = popped.id

	if q.head == nil {
		return model.Message{}, false
	}
	return q.headMessage(), true
}

// Delete removes the command with the given id. When the removed command was
// the head and a successor exists, the synthesized head-update message for
// the successor is returned so the caller can forward it to the navigation
// engine. Deleting an unknown id is a no-op reporting found=false.
func (q *Queue) Delete(id uint64) (msg model.Message, headChanged, found bool) {
	if q.head == nil {
		return model.Message{}, false, false
	}

	if q.head.id == id {
		q.head = q.head.next
		if q.head != nil {
			return q.headMessage(), true, true
		}
		return model.Message{}, false, true
	}

	for cur := q.head; cur.next != nil; cur = cur.next {
		if cur.next.id == id {
			cur.next = cur.next.next
			return model.Message{}, false, true
		}
	}
	return model.Message{}, false, false
}

// Flush drops every pending command and resets the id counter to 1 and the
// last-popped marker to 0.
func (q *Queue) Flush() {
	q.head = nil
	q.nextID = 1
	q.lastPopped = 0
}
