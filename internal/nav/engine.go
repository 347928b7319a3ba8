// Package nav implements the navigation engine: a state machine that fuses
// segmentation-derived safety scores, averaged GPS fixes and gyro
// dead-reckoning into motor commands. It is one routed node among the others;
// the high-rate sensor data reaches it through the shm regions, not the
// router.
package nav

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"RoverCore/internal/filter"
	"RoverCore/internal/geo"
	"RoverCore/internal/model"
	"RoverCore/internal/motor"
	"RoverCore/internal/params"
	"RoverCore/internal/shm"
	"RoverCore/internal/util"
)

// State is the engine's driving state. The turning states carry an affinity:
// once the rover commits to a side it keeps turning that way until the center
// score clears, which stops it oscillating left-right-left on a narrow path.
type State uint8

const (
	Stopped State = iota
	MovingForward
	TurningLeft
	TurningRight
)

var stateNames = map[State]string{
	Stopped:       "stopped",
	MovingForward: "moving-forward",
	TurningLeft:   "turning-left",
	TurningRight:  "turning-right",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Sender is the engine's outbound half of its router port.
type Sender interface {
	Send(model.Message) error
}

// Config carries the engine's construction-time settings.
type Config struct {
	// ParametersPath locates the colon-delimited tunables file. Empty means
	// run on the built-in defaults and ignore reload requests.
	ParametersPath string
	// Calibrate runs the turn-calibration procedure once the sensor regions
	// are up.
	Calibrate bool
	// AngleTimeout bounds every wait on the gyro's angle region.
	AngleTimeout time.Duration
	// CanSID is the arbitration id stamped on every motor frame.
	CanSID uint32
}

const (
	defaultAngleTimeout = 10 * time.Second
	defaultCanSID       = 0x123

	// tableSize bounds the calibration table; index is the turn-unit count.
	tableSize = 11
	// multiTurnAttempts is how many dead-reckoning rounds may use the
	// calibration table before falling back to single-unit steps.
	multiTurnAttempts = 3
)

// Engine owns all navigation state. It is not safe for concurrent use; the
// run loop is its single caller.
type Engine struct {
	log      *zap.SugaredLogger
	out      Sender
	registry *shm.Registry
	cfg      Config

	params params.Parameters
	mode   model.OpMode
	state  State

	imageWidth  int
	imageHeight int
	mask        *shm.Region
	angle       *shm.Region
	position    *shm.Region
	frame       []byte

	left   filter.Filter
	right  filter.Filter
	center filter.Filter

	leftVals   *filter.MovingAverage
	rightVals  *filter.MovingAverage
	centerVals *filter.MovingAverage

	current     model.Position
	checkpoint  model.Position
	destination model.Position

	atDestination  bool
	frameRequested bool

	table            [tableSize]float64
	tableLen         int
	trueTurningAngle float64

	statusMu sync.RWMutex
	status   Status
}

// New builds an engine bound to its outbound port and the region registry.
// The sensor regions are opened later, once their producers announce them.
func New(out Sender, registry *shm.Registry, cfg Config) (*Engine, error) {
	if cfg.AngleTimeout <= 0 {
		cfg.AngleTimeout = defaultAngleTimeout
	}
	if cfg.CanSID == 0 {
		cfg.CanSID = defaultCanSID
	}

	p := params.Default()
	if cfg.ParametersPath != "" {
		var err error
		p, err = params.Load(cfg.ParametersPath)
		if err != nil {
			return nil, err
		}
	}

	e := &Engine{
		log:        util.NewLogger("nav"),
		out:        out,
		registry:   registry,
		cfg:        cfg,
		params:     p,
		state:      Stopped,
		leftVals:   filter.NewMovingAverage(p.SideValueCount),
		rightVals:  filter.NewMovingAverage(p.SideValueCount),
		centerVals: filter.NewMovingAverage(p.CenterValueCount),
	}
	e.mode = model.Automatic
	if p.Manual {
		e.mode = model.Manual
	}
	// the table entry for a single turn unit is unknown until calibration
	e.trueTurningAngle = p.TurningAngle
	e.publishStatus()
	return e, nil
}

// Status is the externally visible engine state, safe to read from other
// goroutines.
type Status struct {
	State    State
	Mode     model.OpMode
	Position model.Position
}

// Status returns the last published status snapshot.
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

// publishStatus refreshes the snapshot read by Status.
func (e *Engine) publishStatus() {
	e.statusMu.Lock()
	e.status = Status{State: e.state, Mode: e.mode, Position: e.current}
	e.statusMu.Unlock()
}

// bind opens the three sensor regions and builds the triangular filters for
// the announced mask dimensions. Any failure here is fatal to the node.
func (e *Engine) bind(width, height int) error {
	e.imageWidth = width
	e.imageHeight = height

	var err error
	if e.mask, err = e.registry.Open(shm.Segmentation, width*height); err != nil {
		return err
	}
	if e.angle, err = e.registry.Open(shm.Angle, shm.AngleSize); err != nil {
		return err
	}
	if e.position, err = e.registry.Open(shm.Position, shm.PositionSize); err != nil {
		return err
	}
	e.frame = make([]byte, width*height)

	if e.left, err = filter.NewLeft(width/2, height/2, width, height/2); err != nil {
		return err
	}
	if e.right, err = filter.NewRight(width/2, height/2, width, height/2); err != nil {
		return err
	}
	centerWidth := int(float64(width) * 0.75)
	if e.center, err = filter.NewCenter(centerWidth/2, centerWidth, height/2, width, height/2); err != nil {
		return err
	}

	e.log.Infow("sensor regions bound", "width", width, "height", height)
	return nil
}

// advance runs one navigation step against the newest segmentation frame.
// Called whenever the cam producer announces a frame in automatic mode.
func (e *Engine) advance() error {
	if err := e.mask.SnapshotMask(e.frame); err != nil {
		return err
	}

	cs, err := e.center.Score(e.frame)
	if err != nil {
		return err
	}
	ls, err := e.left.Score(e.frame)
	if err != nil {
		return err
	}
	rs, err := e.right.Score(e.frame)
	if err != nil {
		return err
	}
	e.centerVals.Enter(cs)
	e.leftVals.Enter(ls)
	e.rightVals.Enter(rs)

	var distanceFromCheckpoint float64
	if e.params.UsingGps {
		if p, ok := e.position.ReadPosition(); ok {
			e.current = p
		}
		// the first usable fix doubles as the first checkpoint
		if !e.checkpoint.Valid() {
			e.checkpoint = e.current
		}
		if e.current.Valid() && e.checkpoint.Valid() {
			distanceToGo := geo.Distance(e.current, e.destination)
			distanceFromCheckpoint = geo.Distance(e.current, e.checkpoint)
			e.atDestination = distanceToGo < e.params.DistanceToGoThreshold
		}
	} else {
		e.atDestination = false
	}

	canMove := e.leftVals.EnoughData()
	if e.params.UsingGps {
		canMove = canMove && !e.atDestination && e.current.Valid() && e.destination.Valid()
	}

	if canMove {
		e.drive(distanceFromCheckpoint)
	}

	if !e.atDestination {
		e.requestFrame()
		return nil
	}

	// arrived; ask the router for the next queued command instead of more
	// frames
	e.log.Infow("destination reached", "position", e.current)
	e.send(model.NewMessage(model.NodeNav, model.NodeMaster, model.CommandPayload{}))
	return nil
}

// drive weighs the three scores, steps the state machine and issues at most
// one motor action.
func (e *Engine) drive(distanceFromCheckpoint float64) {
	centerAvg := e.centerVals.Average()
	leftAvg := e.leftVals.Average()
	rightAvg := e.rightVals.Average()

	var turn float64
	if e.params.UsingGps && distanceFromCheckpoint > e.params.DistanceFromPreviousThreshold {
		turn = geo.TurnAngle(e.current, e.checkpoint, e.destination)
		e.log.Infow("bearing correction", "degrees", turn, "traveled", distanceFromCheckpoint)
	}

	absTurn := math.Abs(turn)
	repeat := 0

	if absTurn > e.trueTurningAngle && e.trueTurningAngle > 0 {
		// a multi-unit correction is pending; pull the favored side down
		// hard so the state machine commits to it
		repeat = int(absTurn / e.trueTurningAngle)
		if turn < 0 {
			leftAvg *= math.Pow(e.params.TurningWeight, float64(repeat))
		} else {
			rightAvg *= math.Pow(e.params.TurningWeight, float64(repeat))
		}
	} else {
		// no correction pending; favor going straight
		centerAvg *= e.params.TurningWeight
		leftAvg *= 1 + (1 - e.params.TurningWeight)
		rightAvg *= 1 + (1 - e.params.TurningWeight)
		repeat = 1
	}

	dir, haveDir := motor.Forward, false
	flush := false

	switch e.state {
	case Stopped:
		e.state = MovingForward
	case MovingForward:
		switch {
		case centerAvg < e.params.DotProductThreshold && centerAvg < leftAvg && centerAvg < rightAvg:
			dir, haveDir = motor.Forward, true
			repeat = 1
		case leftAvg < rightAvg:
			e.state = TurningLeft
			dir, haveDir = motor.Left, true
			flush = true
		case rightAvg < leftAvg:
			e.state = TurningRight
			dir, haveDir = motor.Right, true
			flush = true
		default:
			// exact tie, sit this frame out
			repeat = 0
		}
	case TurningLeft:
		if centerAvg < e.params.DotProductThreshold {
			e.state = MovingForward
			dir = motor.Forward
		} else {
			dir = motor.Left
		}
		haveDir = true
		repeat = 1
	case TurningRight:
		if centerAvg < e.params.DotProductThreshold {
			e.state = MovingForward
			dir = motor.Forward
		} else {
			dir = motor.Right
		}
		haveDir = true
		repeat = 1
	}

	turning := haveDir && (dir == motor.Left || dir == motor.Right)
	if turning {
		// stale scores would fight the new heading
		e.centerVals.Clear()
		e.leftVals.Clear()
		e.rightVals.Clear()
		e.checkpoint = e.current
	}

	switch {
	case haveDir && repeat == 1:
		e.send(e.motorMessage(flush, dir, 1))
	case turning:
		e.executeTurn(turn, dir, flush)
	default:
		e.checkpoint = e.current
	}
}

// executeTurn realizes a bearing correction by dead reckoning: issue a batch
// of turn units sized from the calibration table, read back the gyro's
// measured delta and repeat until the remainder is within one turn unit.
// After multiTurnAttempts rounds the batch size drops to one unit.
func (e *Engine) executeTurn(turn float64, dir motor.Direction, flush bool) {
	attempts := 0
	for {
		e.requestGyro()
		// only the measurement for this batch counts
		e.angle.ClearAvailable()

		if turn > e.trueTurningAngle || turn < -e.trueTurningAngle {
			if turn < 0 {
				dir = motor.Left
			} else {
				dir = motor.Right
			}
			flush = false
		}

		repeat := 1
		if attempts < multiTurnAttempts {
			repeat = e.turnCount(turn)
		}
		attempts++

		e.log.Infow("turning", "remaining", turn, "direction", dir, "units", repeat)
		e.send(e.motorMessage(flush, dir, uint16(repeat)))
		flush = false

		measured, err := e.angle.ReadAngle(e.cfg.AngleTimeout)
		if err != nil {
			e.log.Errorw("gyro measurement missed, abandoning turn", "error", err)
			return
		}

		// the gyro reports left turns positive while our convention is
		// negative, so adding the measurement shrinks the remainder
		turn += float64(measured)
		if turn <= e.trueTurningAngle && turn >= -e.trueTurningAngle {
			e.log.Infow("turn complete", "residual", turn)
			return
		}
	}
}

// turnCount picks the table index whose measured angle is closest to the
// remaining correction. Before calibration the table is empty and every turn
// is a single unit.
func (e *Engine) turnCount(angle float64) int {
	angle = math.Abs(angle)
	if e.tableLen < 2 {
		return 1
	}
	var i int
	for i = 1; i < tableSize-1; i++ {
		if i+1 < e.tableLen && e.table[i] < angle && e.table[i+1] < angle {
			continue
		}
		diffCur := angle - e.table[i]
		diffNxt := e.table[i+1] - angle
		if diffNxt < 0 {
			diffNxt = -diffNxt
		}
		if diffCur < diffNxt {
			return i
		}
		return i + 1
	}
	return i
}

// Calibrate measures how far the rover actually turns per unit count by
// issuing 1..10 left-turn batches and recording the gyro readings. A reading
// smaller than its predecessor means the wheels slipped, so the same count is
// retried. The run stops early once a measurement reaches half a circle.
func (e *Engine) Calibrate() error {
	e.log.Infow("calibrating turn table")
	e.tableLen = 1 // index 0 is the implicit zero-unit entry

	for i := 1; i < tableSize; i++ {
		e.requestGyro()
		e.angle.ClearAvailable()

		e.send(e.motorMessage(false, motor.Left, uint16(i)))

		measured, err := e.angle.ReadAngle(e.cfg.AngleTimeout)
		if err != nil {
			return fmt.Errorf("nav: calibration read for %d units: %w", i, err)
		}
		m := float64(measured)
		e.log.Infow("calibration measurement", "units", i, "degrees", m)

		if m < e.table[i-1] {
			i--
			continue
		}
		e.table[i] = m
		e.tableLen++

		if m >= 180 {
			break
		}
	}

	e.trueTurningAngle = e.table[1]
	e.log.Infow("calibration complete", "table", e.table[1:e.tableLen], "singleTurn", e.trueTurningAngle)

	// the gps producer holds its averaging until the rover stops spinning
	e.send(model.NewMessage(model.NodeNav, model.NodeGps, model.CalibrationCompletePayload{}))
	return nil
}

// reloadParameters re-reads the tunables file and resizes the score buffers.
func (e *Engine) reloadParameters() {
	if e.cfg.ParametersPath == "" {
		e.log.Warnw("no parameters file configured, reload ignored")
		return
	}
	p, err := params.Load(e.cfg.ParametersPath)
	if err != nil {
		e.log.Errorw("parameters reload failed, keeping current values", "error", err)
		return
	}
	e.params = p
	e.leftVals.SetCapacity(p.SideValueCount)
	e.rightVals.SetCapacity(p.SideValueCount)
	e.centerVals.SetCapacity(p.CenterValueCount)
	e.leftVals.Clear()
	e.rightVals.Clear()
	e.centerVals.Clear()
	e.log.Infow("parameters reloaded", "values", p)
}

func (e *Engine) motorMessage(flush bool, dir motor.Direction, repeat uint16) model.Message {
	var data [8]byte
	data[0] = motor.Encode(flush, motor.Push, dir)
	return model.NewMessage(model.NodeNav, model.NodeCan, model.CanPayload{
		SID:    e.cfg.CanSID,
		Count:  1,
		Data:   data,
		Repeat: repeat,
	})
}

func (e *Engine) requestFrame() {
	e.frameRequested = true
	e.send(model.NewMessage(model.NodeNav, model.NodeCam, model.SharedMemoryPayload{}))
}

func (e *Engine) requestGyro() {
	e.send(model.NewMessage(model.NodeNav, model.NodeGyro, model.GyroPayload{}))
}

func (e *Engine) send(m model.Message) {
	if err := e.out.Send(m); err != nil {
		e.log.Errorw("send failed", "kind", m.Kind(), "destination", m.Destination, "error", err)
	}
}
