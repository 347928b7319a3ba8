package node

import (
	"fmt"

	"go.uber.org/zap"

	"RoverCore/internal/device"
	"RoverCore/internal/model"
	"RoverCore/internal/util"
)

// Can is the motor edge. It turns routed motor messages into slcan frames on
// its serial adapter, replaying each frame Repeat times for multi-unit turns.
type Can struct {
	log *zap.SugaredLogger
	dev device.Device
}

// NewCan wraps an opened adapter device.
func NewCan(dev device.Device) *Can {
	return &Can{log: util.NewLogger("can"), dev: dev}
}

// Run consumes motor messages until a kill message arrives or the channel
// closes. Write failures are logged and the loop continues; the bus may come
// back.
func (c *Can) Run(in <-chan model.Message) error {
	defer c.dev.Close()
	for m := range in {
		switch p := m.Payload.(type) {
		case model.CanPayload:
			c.write(p)
		case model.KillPayload:
			c.log.Infow("can node stopping")
			return nil
		default:
			c.log.Debugw("unhandled message", "kind", m.Kind(), "source", m.Source)
		}
	}
	return nil
}

func (c *Can) write(p model.CanPayload) {
	if int(p.Count) > len(p.Data) {
		c.log.Errorw("motor frame dropped", "count", p.Count)
		return
	}
	frame, err := slcanFrame(p.SID, p.Data[:p.Count])
	if err != nil {
		c.log.Errorw("bad motor frame", "error", err)
		return
	}
	for i := 0; i < int(p.Repeat); i++ {
		if err := c.dev.WriteLine(frame); err != nil {
			c.log.Errorw("bus write failed", "frame", frame, "error", err)
		}
	}
}

// slcanFrame renders a standard-id data frame in the slcan ASCII format the
// adapter speaks: 't', three hex id digits, one length digit, hex data.
func slcanFrame(sid uint32, data []byte) (string, error) {
	if sid > 0x7FF {
		return "", fmt.Errorf("node: id %#x does not fit a standard frame", sid)
	}
	if len(data) > 8 {
		return "", fmt.Errorf("node: %d data bytes exceed a CAN frame", len(data))
	}
	return fmt.Sprintf("t%03X%d%X", sid, len(data), data), nil
}
