// Package model defines the node identities, message envelope and payload
// variants exchanged between rover nodes, plus the YAML system configuration.
package model

// Node identifies one process in the rover system. The router indexes its
// link table by these values, so they are fixed; new nodes must be appended,
// never reordered.
type Node uint8

const (
	NodeComm Node = iota
	NodeCan
	NodeCam
	NodeNav
	NodeGps
	NodeGyro
	NodeController
	NodeMaster
)

// RoutedNodes lists the nodes the router holds a channel pair for, in polling
// order. Controller sits behind Comm; Master is the router itself.
var RoutedNodes = []Node{NodeComm, NodeCan, NodeCam, NodeNav, NodeGps, NodeGyro}

var nodeNames = map[Node]string{
	NodeComm:       "comm",
	NodeCan:        "can",
	NodeCam:        "cam",
	NodeNav:        "nav",
	NodeGps:        "gps",
	NodeGyro:       "gyro",
	NodeController: "controller",
	NodeMaster:     "master",
}

func (n Node) String() string {
	if s, ok := nodeNames[n]; ok {
		return s
	}
	return "unknown"
}

// Kind discriminates the payload carried by a Message.
type Kind uint8

const (
	KindCan Kind = iota
	KindCam
	KindPosition
	KindOK
	KindClientDisconnect
	KindSharedMemory
	KindOpMode
	KindParameters
	KindKill
	KindCalibrationComplete
	KindCommand
	KindGyro
)

var kindNames = map[Kind]string{
	KindCan:                 "can",
	KindCam:                 "cam",
	KindPosition:            "position",
	KindOK:                  "ok",
	KindClientDisconnect:    "client-disconnect",
	KindSharedMemory:        "shared-memory",
	KindOpMode:              "op-mode",
	KindParameters:          "parameters",
	KindKill:                "kill",
	KindCalibrationComplete: "calibration-complete",
	KindCommand:             "command",
	KindGyro:                "gyro",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// OpMode selects between autonomous navigation and manual pass-through.
type OpMode uint8

const (
	Automatic OpMode = iota
	Manual
)

func (m OpMode) String() string {
	if m == Manual {
		return "manual"
	}
	return "automatic"
}

// Position is a latitude/longitude pair in degrees. The zero value is the
// "uninitialized" sentinel and never a legitimate destination.
type Position struct {
	Latitude  float32 `yaml:"latitude"`
	Longitude float32 `yaml:"longitude"`
}

// Valid reports whether p holds a real fix rather than the sentinel.
func (p Position) Valid() bool {
	return p.Latitude != 0 || p.Longitude != 0
}

// CommandOp is the operation requested on the router's command queue.
type CommandOp uint8

const (
	OpCreate CommandOp = iota
	OpDelete
	OpUpdate
	OpFlush
)

// CommandType tells which node a queued command targets once it reaches the
// head of the queue.
type CommandType uint8

const (
	PositionCommand CommandType = iota
	CameraCommand
)

// Payload is the tagged variant carried by a Message. The kind is derived
// from the concrete type, so envelope and payload cannot disagree.
type Payload interface {
	Kind() Kind
}

// CanPayload is a motor command handed to the CAN edge. Repeat lets one
// logical command be replayed, used for multi-step turns.
type CanPayload struct {
	SID    uint32
	Count  uint8
	Data   [8]byte
	Repeat uint16
}

func (CanPayload) Kind() Kind { return KindCan }

// CamPayload announces a captured image for the out-of-scope transfer path.
type CamPayload struct {
	Ready    bool
	FileSize int32
	FilePath string
}

func (CamPayload) Kind() Kind { return KindCam }

// PositionPayload carries a destination or fix position.
type PositionPayload struct {
	Position Position
}

func (PositionPayload) Kind() Kind { return KindPosition }

// OKPayload is the liveness probe answer sent back over the controller link.
type OKPayload struct {
	Text string
}

func (OKPayload) Kind() Kind { return KindOK }

// DisconnectPayload reports a dropped controller connection.
type DisconnectPayload struct{}

func (DisconnectPayload) Kind() Kind { return KindClientDisconnect }

// SharedMemoryPayload announces that a producer's shared region is ready. The
// cam node fills in the mask dimensions; other producers leave them zero.
type SharedMemoryPayload struct {
	Width  int32
	Height int32
}

func (SharedMemoryPayload) Kind() Kind { return KindSharedMemory }

// OpModePayload switches the navigation engine between modes.
type OpModePayload struct {
	Mode OpMode
}

func (OpModePayload) Kind() Kind { return KindOpMode }

// ParametersPayload prompts the navigation engine to reload its tunables.
type ParametersPayload struct{}

func (ParametersPayload) Kind() Kind { return KindParameters }

// KillPayload is the global shutdown broadcast.
type KillPayload struct{}

func (KillPayload) Kind() Kind { return KindKill }

// CalibrationCompletePayload tells the gps node calibration turning is done.
type CalibrationCompletePayload struct{}

func (CalibrationCompletePayload) Kind() Kind { return KindCalibrationComplete }

// CommandPayload is a command-queue operation from the controller, or the
// queue-completion signal the navigation engine addresses to master.
type CommandPayload struct {
	ID       uint64
	Type     CommandType
	Op       CommandOp
	PrevID   uint64
	Position Position
}

func (CommandPayload) Kind() Kind { return KindCommand }

// GyroPayload wakes the gyro node to start sampling a turn.
type GyroPayload struct{}

func (GyroPayload) Kind() Kind { return KindGyro }

// Message is the universal envelope routed between nodes. The same envelope
// crosses the controller link byte-identically via the parser wire codec.
// Payload is never nil on a routed message; every sender builds messages
// through NewMessage with a concrete payload.
type Message struct {
	Source      Node
	Destination Node
	Payload     Payload
}

// Kind returns the kind derived from the payload variant.
func (m Message) Kind() Kind { return m.Payload.Kind() }

// NewMessage builds an envelope from source to destination around p.
func NewMessage(src, dst Node, p Payload) Message {
	return Message{Source: src, Destination: dst, Payload: p}
}
