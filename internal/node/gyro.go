package node

import (
	"math"
	"time"

	"go.uber.org/zap"

	"RoverCore/internal/model"
	"RoverCore/internal/shm"
	"RoverCore/internal/util"
)

// RateSource produces instantaneous yaw rate samples in degrees per second,
// positive for left rotation.
type RateSource interface {
	Sample() (float64, error)
}

// Turn detection thresholds in degrees per second. A turn starts once the
// rate clears startRate and keeps integrating while it stays above holdRate;
// noiseGrace low samples are tolerated mid-turn before the turn is considered
// over, and a burst shorter than minSamples is discarded as a bump.
const (
	startRate  = 20.0
	holdRate   = 10.0
	noiseGrace = 25
	minSamples = 75

	defaultSampleHz   = 238
	defaultIdleWindow = 2 * time.Second
)

// Gyro owns the angle region. It sits idle until the navigation engine
// requests a measurement, then samples the rate source and integrates one
// complete turn into the region.
type Gyro struct {
	log    *zap.SugaredLogger
	out    Sender
	src    RateSource
	region *shm.Region
	hz     int
	idle   time.Duration
}

// NewGyro creates the angle region. idleWindow bounds how long a measurement
// waits for the rover to actually start turning before giving up.
func NewGyro(out Sender, registry *shm.Registry, src RateSource, sampleHz int, idleWindow time.Duration) (*Gyro, error) {
	region, err := registry.Create(shm.Angle, shm.AngleSize)
	if err != nil {
		return nil, err
	}
	if sampleHz <= 0 {
		sampleHz = defaultSampleHz
	}
	if idleWindow <= 0 {
		idleWindow = defaultIdleWindow
	}
	return &Gyro{
		log:    util.NewLogger("gyro"),
		out:    out,
		src:    src,
		region: region,
		hz:     sampleHz,
		idle:   idleWindow,
	}, nil
}

// Run announces the region and serves measurement requests until killed.
func (g *Gyro) Run(in <-chan model.Message) error {
	g.send(model.NewMessage(model.NodeGyro, model.NodeNav, model.SharedMemoryPayload{}))

	for m := range in {
		switch m.Payload.(type) {
		case model.GyroPayload:
			if m.Source == model.NodeNav {
				g.measureTurn()
			}
		case model.KillPayload:
			g.log.Infow("gyro node stopping")
			return nil
		default:
			g.log.Debugw("unhandled message", "kind", m.Kind(), "source", m.Source)
		}
	}
	return nil
}

// measureTurn integrates rate samples across one turn and publishes the
// resulting angle. It gives up after the idle window of quiet if the rover
// never starts moving, leaving the region untouched so the engine's bounded
// read reports the miss.
func (g *Gyro) measureTurn() {
	dt := 1.0 / float64(g.hz)
	period := time.Second / time.Duration(g.hz)
	maxIdle := int(g.idle / period)

	var (
		angle    float64
		samples  int
		lowCount int
		idle     int
		sampling bool
	)

	for !g.region.Available() && idle < maxIdle {
		rate, err := g.src.Sample()
		if err != nil {
			g.log.Warnw("rate sample failed", "error", err)
			idle++
			time.Sleep(period)
			continue
		}

		switch {
		case !sampling && math.Abs(rate) > startRate:
			angle = rate * dt
			samples = 1
			lowCount = 0
			sampling = true
		case sampling && math.Abs(rate) > holdRate:
			samples++
			angle += rate * dt
		case sampling && lowCount < noiseGrace:
			lowCount++
			samples++
		case sampling && samples >= minSamples:
			if err := g.region.WriteAngle(float32(angle)); err != nil {
				g.log.Errorw("angle publish failed", "error", err)
			}
			g.log.Infow("turn measured", "degrees", angle, "samples", samples)
			sampling = false
		default:
			sampling = false
			idle++
		}
		time.Sleep(period)
	}
}

func (g *Gyro) send(m model.Message) {
	if err := g.out.Send(m); err != nil {
		g.log.Errorw("send failed", "kind", m.Kind(), "error", err)
	}
}
