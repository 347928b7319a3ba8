package nav

import (
	"errors"

	"RoverCore/internal/model"
)

// ErrLinkClosed is returned when the router closes the inbound channel before
// a kill message arrives.
var ErrLinkClosed = errors.New("nav: router link closed")

// Run drives the engine off its inbound router channel until a kill message
// arrives or the channel closes. It first waits for all three sensor
// producers to announce their regions, since the engine cannot make a single
// decision without them.
func (e *Engine) Run(in <-chan model.Message) error {
	bound, err := e.awaitRegions(in)
	if err != nil {
		return err
	}
	if !bound {
		// killed before the producers came up
		e.log.Infow("navigation engine stopping")
		return nil
	}

	if e.cfg.Calibrate {
		if err := e.Calibrate(); err != nil {
			e.log.Errorw("calibration failed, using configured turn angle", "error", err)
			e.trueTurningAngle = e.params.TurningAngle
		}
	}

	if e.mode == model.Automatic {
		e.log.Infow("starting in automatic mode")
		e.requestFrame()
	} else {
		e.log.Infow("starting in manual mode")
	}

	for m := range in {
		done := e.handle(m)
		e.publishStatus()
		if done {
			e.log.Infow("navigation engine stopping")
			return nil
		}
	}
	return ErrLinkClosed
}

// awaitRegions consumes messages until the cam, gyro and gps producers have
// all announced their shared regions, then binds them. The cam's notice
// carries the mask dimensions. bound is false when a kill message arrives
// first; the caller must not touch the regions in that case.
func (e *Engine) awaitRegions(in <-chan model.Message) (bound bool, err error) {
	var haveMask, haveAngle, havePosition bool
	var width, height int

	for !haveMask || !haveAngle || !havePosition {
		m, ok := <-in
		if !ok {
			return false, ErrLinkClosed
		}
		switch p := m.Payload.(type) {
		case model.SharedMemoryPayload:
			switch m.Source {
			case model.NodeCam:
				width, height = int(p.Width), int(p.Height)
				haveMask = true
			case model.NodeGyro:
				haveAngle = true
			case model.NodeGps:
				havePosition = true
			}
		case model.KillPayload:
			return false, nil
		default:
			e.log.Debugw("message before region setup ignored", "kind", m.Kind(), "source", m.Source)
		}
	}
	if err := e.bind(width, height); err != nil {
		return false, err
	}
	return true, nil
}

// handle dispatches one routed message. It reports true once the engine
// should stop.
func (e *Engine) handle(m model.Message) bool {
	switch p := m.Payload.(type) {
	case model.SharedMemoryPayload:
		// a fresh segmentation frame is up
		if m.Source == model.NodeCam && e.mode == model.Automatic {
			e.frameRequested = false
			if err := e.advance(); err != nil {
				e.log.Errorw("navigation step failed", "error", err)
			}
		}

	case model.OpModePayload:
		e.switchMode(p.Mode)

	case model.CanPayload:
		// manual motor input arrives here so it cannot fight the
		// automatic pipeline
		if m.Source != model.NodeComm {
			return false
		}
		if e.mode != model.Manual {
			e.log.Warnw("manual motor command while in automatic mode ignored")
			return false
		}
		p.Repeat = 1
		e.send(model.NewMessage(model.NodeNav, model.NodeCan, p))

	case model.PositionPayload:
		if m.Source != model.NodeComm && m.Source != model.NodeMaster {
			return false
		}
		e.log.Infow("destination set", "position", p.Position)
		e.destination = p.Position
		e.atDestination = false
		if !e.frameRequested {
			e.requestFrame()
		}

	case model.ParametersPayload:
		e.reloadParameters()

	case model.KillPayload:
		return true

	default:
		e.log.Debugw("unhandled message", "kind", m.Kind(), "source", m.Source)
	}
	return false
}

// switchMode moves between manual and automatic operation. Entering
// automatic resets the checkpoint so stale GPS history cannot demand a
// spurious correction.
func (e *Engine) switchMode(mode model.OpMode) {
	if mode != model.Manual && mode != model.Automatic {
		e.log.Warnw("unknown op mode ignored", "mode", uint8(mode))
		return
	}
	if mode == e.mode {
		return
	}
	e.mode = mode
	switch mode {
	case model.Manual:
		e.log.Infow("switching to manual mode")
	case model.Automatic:
		e.log.Infow("switching to automatic mode")
		e.checkpoint = e.current
		e.requestFrame()
	}
}
