package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RoverCore/internal/model"
)

func positionCmd(prevID uint64, lat, lon float32) model.CommandPayload {
	return model.CommandPayload{
		Type:     model.PositionCommand,
		Op:       model.OpCreate,
		PrevID:   prevID,
		Position: model.Position{Latitude: lat, Longitude: lon},
	}
}

func TestInsertEmptyQueueIsHeadInsert(t *testing.T) {
	q := New()

	// scenario: empty queue, insert after id 0 carrying (10, 20)
	res, msg := q.Insert(positionCmd(0, 10, 20))

	require.Equal(t, HeadInsert, res)
	require.Equal(t, model.NodeNav, msg.Destination)
	pos, ok := msg.Payload.(model.PositionPayload)
	require.True(t, ok)
	assert.Equal(t, float32(10), pos.Position.Latitude)
	assert.Equal(t, float32(20), pos.Position.Longitude)
	assert.Equal(t, 1, q.Len())
}

func TestInsertAfterLastPoppedIsHeadInsert(t *testing.T) {
	q := New()
	q.Insert(positionCmd(0, 1, 1)) // id 1
	_, ok := q.PopNext()
	require.False(t, ok) // single-element queue empties, nothing follows

	res, _ := q.Insert(positionCmd(1, 2, 2))
	assert.Equal(t, HeadInsert, res)
}

func TestInsertAfterExistingIdIsNonHead(t *testing.T) {
	q := New()
	q.Insert(positionCmd(0, 1, 1)) // id 1
	q.Insert(positionCmd(1, 2, 2)) // id 2, after head

	before := q.Len()
	res, _ := q.Insert(positionCmd(1, 3, 3)) // splice after id 1

	assert.Equal(t, NonHeadInsert, res)
	assert.Equal(t, before+1, q.Len())
}

func TestInsertUnknownPrevIdSplicesAtEnd(t *testing.T) {
	q := New()
	q.Insert(positionCmd(0, 1, 1))
	q.Insert(positionCmd(1, 2, 2))

	res, _ := q.Insert(positionCmd(99, 3, 3))
	assert.Equal(t, NonHeadInsert, res)
	assert.Equal(t, 3, q.Len())
}

func TestPopNextReturnsFollowupPayload(t *testing.T) {
	q := New()
	q.Insert(positionCmd(0, 10, 10)) // A, id 1
	q.Insert(positionCmd(1, 20, 20)) // B, id 2

	// scenario: queue [A, B], pop -> B's payload, queue [B], last-popped 1
	msg, ok := q.PopNext()
	require.True(t, ok)
	pos := msg.Payload.(model.PositionPayload)
	assert.Equal(t, float32(20), pos.Position.Latitude)
	assert.Equal(t, model.NodeNav, msg.Destination)
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, uint64(1), q.lastPopped)
}

func TestPopNextSingleElement(t *testing.T) {
	q := New()
	q.Insert(positionCmd(0, 5, 5))

	_, ok := q.PopNext()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())

	// popping an empty queue also yields nothing
	_, ok = q.PopNext()
	assert.False(t, ok)
}

func TestPopNextCameraCommandTargetsCam(t *testing.T) {
	q := New()
	q.Insert(positionCmd(0, 1, 1))
	q.Insert(model.CommandPayload{Type: model.CameraCommand, PrevID: 1})

	msg, ok := q.PopNext()
	require.True(t, ok)
	assert.Equal(t, model.NodeCam, msg.Destination)
	assert.Equal(t, model.KindCam, msg.Kind())
}

func TestDeleteHeadSurfacesNewHead(t *testing.T) {
	q := New()
	q.Insert(positionCmd(0, 1, 1)) // id 1
	q.Insert(positionCmd(1, 2, 2)) // id 2

	msg, headChanged, found := q.Delete(1)
	require.True(t, found)
	require.True(t, headChanged)
	pos := msg.Payload.(model.PositionPayload)
	assert.Equal(t, float32(2), pos.Position.Latitude)
	assert.Equal(t, 1, q.Len())
}

func TestDeleteNonHead(t *testing.T) {
	q := New()
	q.Insert(positionCmd(0, 1, 1))
	q.Insert(positionCmd(1, 2, 2))

	_, headChanged, found := q.Delete(2)
	assert.True(t, found)
	assert.False(t, headChanged)
	assert.Equal(t, 1, q.Len())
}

func TestDeleteUnknownIdIsNoop(t *testing.T) {
	q := New()
	q.Insert(positionCmd(0, 1, 1))

	_, headChanged, found := q.Delete(42)
	assert.False(t, found)
	assert.False(t, headChanged)
	assert.Equal(t, 1, q.Len())
}

func TestDeleteLastElementEmptiesQueue(t *testing.T) {
	q := New()
	q.Insert(positionCmd(0, 1, 1))

	_, headChanged, found := q.Delete(1)
	assert.True(t, found)
	assert.False(t, headChanged) // no successor to surface
	assert.Equal(t, 0, q.Len())
}

func TestFlushResetsCounters(t *testing.T) {
	q := New()
	q.Insert(positionCmd(0, 1, 1))
	q.Insert(positionCmd(1, 2, 2))
	q.PopNext()

	q.Flush()
	assert.Equal(t, 0, q.Len())

	// next id after a flush is 1 again: the head insert carries id 1,
	// observable through a follow-up insert referencing it
	q.Insert(positionCmd(0, 9, 9))
	res, _ := q.Insert(positionCmd(1, 8, 8))
	assert.Equal(t, NonHeadInsert, res)
	assert.Equal(t, uint64(0), q.lastPopped)
}

func TestIdsNeverReused(t *testing.T) {
	q := New()
	q.Insert(positionCmd(0, 1, 1)) // id 1
	q.PopNext()
	q.Insert(positionCmd(1, 2, 2)) // id 2, head insert after last popped

	// deleting id 1 must fail: that id is gone for the session
	_, _, found := q.Delete(1)
	assert.False(t, found)
	_, _, found = q.Delete(2)
	assert.True(t, found)
}
