// Package motor encodes the single-byte command word the motor unit expects
// in the first data byte of a CAN frame: bit 7 is the flush flag, bits 6..2
// the command, bits 1..0 the direction.
package motor

// Direction selects which way the drive moves. Only two bits travel on the
// wire, so the set is closed.
type Direction uint8

const (
	Right Direction = iota
	Left
	Forward
	Backward
)

var directionNames = map[Direction]string{
	Right:    "right",
	Left:     "left",
	Forward:  "forward",
	Backward: "backward",
}

func (d Direction) String() string {
	if s, ok := directionNames[d]; ok {
		return s
	}
	return "unknown"
}

// Command is the motor unit's queue operation.
type Command uint8

const (
	// Push appends the motion to the motor unit's internal queue.
	Push Command = iota
	// Insert places the motion at the front of the queue.
	Insert
)

const (
	flushBit = 0x80
	cmdMask  = 0x1F
	dirMask  = 0x03
)

// Encode packs a command word. The flush flag tells the motor unit to drop
// any queued motions before applying this one.
func Encode(flush bool, cmd Command, dir Direction) byte {
	b := byte(cmd&cmdMask)<<2 | byte(dir)&dirMask
	if flush {
		b |= flushBit
	}
	return b
}

// IsFlush reports whether the command word carries the flush flag.
func IsFlush(b byte) bool { return b&flushBit != 0 }

// Cmd extracts the queue operation from a command word.
func Cmd(b byte) Command { return Command(b>>2) & cmdMask }

// Dir extracts the direction from a command word.
func Dir(b byte) Direction { return Direction(b & dirMask) }
