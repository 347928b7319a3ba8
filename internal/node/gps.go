package node

import (
	"time"

	"go.uber.org/zap"

	"RoverCore/internal/filter"
	"RoverCore/internal/model"
	"RoverCore/internal/shm"
	"RoverCore/internal/util"
)

// FixSource produces position fixes. ok is false when the receiver has
// nothing new, which is routine and not an error; a checksum failure or bus
// problem comes back as err.
type FixSource interface {
	Fix() (p model.Position, ok bool, err error)
}

const defaultAverageCount = 5

// Gps owns the position region. It polls its fix source on a fixed interval
// and publishes the moving average of the last few fixes, which smooths the
// receiver's jitter enough for the navigation distance checks.
type Gps struct {
	log      *zap.SugaredLogger
	out      Sender
	src      FixSource
	region   *shm.Region
	interval time.Duration

	latAvg *filter.MovingAverage
	lonAvg *filter.MovingAverage
}

// NewGps creates the position region and the fix averager.
func NewGps(out Sender, registry *shm.Registry, src FixSource, interval time.Duration, averageCount int) (*Gps, error) {
	region, err := registry.Create(shm.Position, shm.PositionSize)
	if err != nil {
		return nil, err
	}
	if averageCount <= 0 {
		averageCount = defaultAverageCount
	}
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &Gps{
		log:      util.NewLogger("gps"),
		out:      out,
		src:      src,
		region:   region,
		interval: interval,
		latAvg:   filter.NewMovingAverage(averageCount),
		lonAvg:   filter.NewMovingAverage(averageCount),
	}, nil
}

// Run announces the region, then alternates between polling the receiver and
// handling routed messages until killed.
func (g *Gps) Run(in <-chan model.Message) error {
	g.send(model.NewMessage(model.NodeGps, model.NodeNav, model.SharedMemoryPayload{}))

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case m, ok := <-in:
			if !ok {
				return nil
			}
			switch m.Payload.(type) {
			case model.CalibrationCompletePayload:
				// the rover stops spinning in place now, fixes are
				// meaningful again
				g.log.Infow("turn calibration finished")
			case model.KillPayload:
				g.log.Infow("gps node stopping")
				return nil
			default:
				g.log.Debugw("unhandled message", "kind", m.Kind(), "source", m.Source)
			}

		case <-ticker.C:
			g.poll()
		}
	}
}

// poll reads one fix and republishes the average once the window is full.
func (g *Gps) poll() {
	p, ok, err := g.src.Fix()
	if err != nil {
		g.log.Warnw("fix read failed", "error", err)
		return
	}
	if !ok {
		return
	}
	g.latAvg.Enter(float64(p.Latitude))
	g.lonAvg.Enter(float64(p.Longitude))
	if !g.latAvg.EnoughData() {
		return
	}
	avg := model.Position{
		Latitude:  float32(g.latAvg.Average()),
		Longitude: float32(g.lonAvg.Average()),
	}
	if err := g.region.WritePosition(avg); err != nil {
		g.log.Errorw("position publish failed", "error", err)
	}
}

func (g *Gps) send(m model.Message) {
	if err := g.out.Send(m); err != nil {
		g.log.Errorw("send failed", "kind", m.Kind(), "error", err)
	}
}
