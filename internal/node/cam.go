package node

import (
	"go.uber.org/zap"

	"RoverCore/internal/model"
	"RoverCore/internal/shm"
	"RoverCore/internal/util"
)

// MaskSource produces segmentation masks. Grab fills dst, one class byte per
// pixel in row-major order, blocking until a frame is classified. The real
// inference pipeline lives behind this interface.
type MaskSource interface {
	Grab(dst []byte) error
}

// Cam owns the segmentation region. It announces the region at startup and
// publishes one fresh mask per request from the navigation engine, so frames
// are only classified while someone is navigating.
type Cam struct {
	log    *zap.SugaredLogger
	out    Sender
	src    MaskSource
	region *shm.Region
	width  int
	height int
	buf    []byte
}

// NewCam creates the segmentation region for the given mask dimensions.
func NewCam(out Sender, registry *shm.Registry, src MaskSource, width, height int) (*Cam, error) {
	region, err := registry.Create(shm.Segmentation, width*height)
	if err != nil {
		return nil, err
	}
	return &Cam{
		log:    util.NewLogger("cam"),
		out:    out,
		src:    src,
		region: region,
		width:  width,
		height: height,
		buf:    make([]byte, width*height),
	}, nil
}

// Run announces the region, then serves frame requests until killed.
func (c *Cam) Run(in <-chan model.Message) error {
	c.announce()
	for m := range in {
		switch m.Payload.(type) {
		case model.SharedMemoryPayload:
			if m.Source != model.NodeNav {
				continue
			}
			c.publishFrame()
		case model.CamPayload:
			// still-image capture rides the excluded transfer path
			c.log.Warnw("image capture request ignored, no capture pipeline attached")
		case model.KillPayload:
			c.log.Infow("cam node stopping")
			return nil
		default:
			c.log.Debugw("unhandled message", "kind", m.Kind(), "source", m.Source)
		}
	}
	return nil
}

func (c *Cam) announce() {
	notice := model.SharedMemoryPayload{Width: int32(c.width), Height: int32(c.height)}
	c.send(model.NewMessage(model.NodeCam, model.NodeNav, notice))
}

// publishFrame grabs one mask into the region and tells the navigation
// engine it is up. Grab failures drop the request; the engine re-requests on
// its next destination update.
func (c *Cam) publishFrame() {
	if err := c.src.Grab(c.buf); err != nil {
		c.log.Errorw("mask grab failed", "error", err)
		return
	}
	if err := c.region.WriteMask(c.buf); err != nil {
		c.log.Errorw("mask publish failed", "error", err)
		return
	}
	c.send(model.NewMessage(model.NodeCam, model.NodeNav, model.SharedMemoryPayload{
		Width:  int32(c.width),
		Height: int32(c.height),
	}))
}

func (c *Cam) send(m model.Message) {
	if err := c.out.Send(m); err != nil {
		c.log.Errorw("send failed", "kind", m.Kind(), "error", err)
	}
}
