// Package parser converts the message envelope to and from its fixed-size
// wire form. Every payload variant fits the same 64-byte frame, so pipes and
// sockets exchange envelopes byte-identically; stream links additionally wrap
// frames with COBS so a zero byte delimits them.
//
// Frame layout (little-endian):
//
//	[0] kind  [1] source  [2] destination  [3] reserved  [4:64] payload
package parser

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/dgryski/go-cobs"

	"RoverCore/internal/model"
)

func floatBits(f float32) uint32 { return math.Float32bits(f) }

func bitsFloat(u uint32) float32 { return math.Float32frombits(u) }

// FrameSize is the fixed envelope size on the wire.
const FrameSize = 64

// Delimiter terminates each COBS-encoded frame on stream links.
const Delimiter byte = 0x00

const (
	payloadOffset = 4
	okTextSize    = 32
	camPathSize   = 32
)

// Marshal encodes an envelope into its fixed 64-byte wire form.
func Marshal(m model.Message) ([]byte, error) {
	buf := make([]byte, FrameSize)
	buf[0] = byte(m.Kind())
	buf[1] = byte(m.Source)
	buf[2] = byte(m.Destination)

	p := buf[payloadOffset:]
	switch v := m.Payload.(type) {
	case model.CanPayload:
		binary.LittleEndian.PutUint32(p[0:], v.SID)
		p[4] = v.Count
		copy(p[5:13], v.Data[:])
		binary.LittleEndian.PutUint16(p[13:], v.Repeat)
	case model.CamPayload:
		if v.Ready {
			p[0] = 1
		}
		binary.LittleEndian.PutUint32(p[1:], uint32(v.FileSize))
		if len(v.FilePath) > camPathSize {
			return nil, fmt.Errorf("parser: file path %q exceeds %d bytes", v.FilePath, camPathSize)
		}
		copy(p[5:5+camPathSize], v.FilePath)
	case model.PositionPayload:
		putPosition(p, v.Position)
	case model.OKPayload:
		if len(v.Text) > okTextSize {
			return nil, fmt.Errorf("parser: ok text %q exceeds %d bytes", v.Text, okTextSize)
		}
		copy(p[:okTextSize], v.Text)
	case model.SharedMemoryPayload:
		binary.LittleEndian.PutUint32(p[0:], uint32(v.Width))
		binary.LittleEndian.PutUint32(p[4:], uint32(v.Height))
	case model.OpModePayload:
		p[0] = byte(v.Mode)
	case model.CommandPayload:
		binary.LittleEndian.PutUint64(p[0:], v.ID)
		p[8] = byte(v.Type)
		p[9] = byte(v.Op)
		binary.LittleEndian.PutUint64(p[10:], v.PrevID)
		putPosition(p[18:], v.Position)
	case model.DisconnectPayload, model.ParametersPayload, model.KillPayload,
		model.CalibrationCompletePayload, model.GyroPayload:
		// kind-only payloads carry no body
	default:
		return nil, fmt.Errorf("parser: unsupported payload %T", m.Payload)
	}
	return buf, nil
}

// Unmarshal decodes a fixed 64-byte wire frame back into an envelope.
// Unknown kinds are a protocol error; the caller logs and drops the frame.
func Unmarshal(buf []byte) (model.Message, error) {
	if len(buf) != FrameSize {
		return model.Message{}, fmt.Errorf("parser: frame is %d bytes, want %d", len(buf), FrameSize)
	}
	m := model.Message{
		Source:      model.Node(buf[1]),
		Destination: model.Node(buf[2]),
	}
	p := buf[payloadOffset:]

	switch model.Kind(buf[0]) {
	case model.KindCan:
		var v model.CanPayload
		v.SID = binary.LittleEndian.Uint32(p[0:])
		v.Count = p[4]
		if int(v.Count) > len(v.Data) {
			return model.Message{}, fmt.Errorf("parser: can frame count %d exceeds %d data bytes", v.Count, len(v.Data))
		}
		copy(v.Data[:], p[5:13])
		v.Repeat = binary.LittleEndian.Uint16(p[13:])
		m.Payload = v
	case model.KindCam:
		m.Payload = model.CamPayload{
			Ready:    p[0] == 1,
			FileSize: int32(binary.LittleEndian.Uint32(p[1:])),
			FilePath: trimZero(p[5 : 5+camPathSize]),
		}
	case model.KindPosition:
		m.Payload = model.PositionPayload{Position: getPosition(p)}
	case model.KindOK:
		m.Payload = model.OKPayload{Text: trimZero(p[:okTextSize])}
	case model.KindClientDisconnect:
		m.Payload = model.DisconnectPayload{}
	case model.KindSharedMemory:
		m.Payload = model.SharedMemoryPayload{
			Width:  int32(binary.LittleEndian.Uint32(p[0:])),
			Height: int32(binary.LittleEndian.Uint32(p[4:])),
		}
	case model.KindOpMode:
		m.Payload = model.OpModePayload{Mode: model.OpMode(p[0])}
	case model.KindParameters:
		m.Payload = model.ParametersPayload{}
	case model.KindKill:
		m.Payload = model.KillPayload{}
	case model.KindCalibrationComplete:
		m.Payload = model.CalibrationCompletePayload{}
	case model.KindCommand:
		m.Payload = model.CommandPayload{
			ID:       binary.LittleEndian.Uint64(p[0:]),
			Type:     model.CommandType(p[8]),
			Op:       model.CommandOp(p[9]),
			PrevID:   binary.LittleEndian.Uint64(p[10:]),
			Position: getPosition(p[18:]),
		}
	case model.KindGyro:
		m.Payload = model.GyroPayload{}
	default:
		return model.Message{}, fmt.Errorf("parser: unknown message kind %d", buf[0])
	}
	return m, nil
}

// EncodeFrame marshals m and wraps it for a byte-stream link: COBS encoding
// followed by the zero delimiter.
func EncodeFrame(m model.Message) ([]byte, error) {
	raw, err := Marshal(m)
	if err != nil {
		return nil, err
	}
	return append(cobs.Encode(raw), Delimiter), nil
}

// DecodeFrame reverses EncodeFrame for one delimited frame, with or without
// its trailing delimiter.
func DecodeFrame(frame []byte) (model.Message, error) {
	frame = bytes.TrimSuffix(frame, []byte{Delimiter})
	raw, err := cobs.Decode(frame)
	if err != nil {
		return model.Message{}, fmt.Errorf("parser: cobs decode: %w", err)
	}
	return Unmarshal(raw)
}

func putPosition(p []byte, pos model.Position) {
	binary.LittleEndian.PutUint32(p[0:], floatBits(pos.Latitude))
	binary.LittleEndian.PutUint32(p[4:], floatBits(pos.Longitude))
}

func getPosition(p []byte) model.Position {
	return model.Position{
		Latitude:  bitsFloat(binary.LittleEndian.Uint32(p[0:])),
		Longitude: bitsFloat(binary.LittleEndian.Uint32(p[4:])),
	}
}

func trimZero(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
