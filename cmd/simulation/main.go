// Closed-loop rover simulator: runs the full control system against a
// simulated world instead of real hardware. Motor frames leaving the CAN node
// move a virtual rover, and the mask, fix and rate sources report what that
// rover would see. Use this for bench testing without a vehicle.
package main

import (
	"flag"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"RoverCore/internal/core"
	"RoverCore/internal/device"
	"RoverCore/internal/model"
	"RoverCore/internal/motor"
	"RoverCore/internal/util"
)

const (
	metersPerDegree = 111132.0
	// one motor turn unit spins the virtual rover this far, at turnRate
	unitAngle = 15.0
	turnRate  = 45.0 // deg/s
	speed     = 1.0  // m/s while a forward burst is active
	burstLen  = 0.5  // meters traveled per forward command
	tickDt    = 0.01 // seconds per physics tick
)

// world is the simulated rover and its surroundings. It implements the mask,
// fix and rate source interfaces consumed by the sensor nodes.
type world struct {
	mu      sync.Mutex
	rng     *rand.Rand
	width   int
	height  int
	pos     model.Position
	dest    model.Position
	heading float64 // degrees clockwise from north
	rate    float64 // deg/s, positive while turning left
	pending float64 // remaining turn, positive left
	travel  float64 // remaining forward distance in meters
}

// Grab renders the frame the camera would segment: open ground with brush at
// the edges, and a frontal wall whenever the rover points well away from the
// destination so the vision path has to steer it back.
func (w *world) Grab(dst []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	he := w.headingError()
	blocked := math.Abs(he) > 30

	for i := range dst {
		dst[i] = 0
	}
	for row := w.height / 2; row < w.height; row++ {
		for col := 0; col < w.width; col++ {
			var v byte
			switch {
			case blocked && col >= w.width/4 && col < 3*w.width/4:
				v = 60
			case col < w.width/8 || col >= w.width-w.width/8:
				v = byte(2 + w.rng.Intn(3))
			}
			// tilt the wall so the cheaper way around leads toward the
			// destination
			if blocked {
				if he > 0 && col < w.width/2 {
					v += 40
				}
				if he < 0 && col >= w.width/2 {
					v += 40
				}
			}
			dst[w.width*row+col] = v
		}
	}
	return nil
}

// Fix reports the rover's simulated position.
func (w *world) Fix() (model.Position, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos, true, nil
}

// Sample reports the current yaw rate, positive for left rotation.
func (w *world) Sample() (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rate, nil
}

// headingError is the signed angle from the current heading to the bearing of
// the destination, in (-180, 180]. Positive means the rover should turn right.
func (w *world) headingError() float64 {
	dNorth := float64(w.dest.Latitude - w.pos.Latitude)
	dEast := float64(w.dest.Longitude-w.pos.Longitude) * math.Cos(float64(w.pos.Latitude)*math.Pi/180)
	bearing := math.Atan2(dEast, dNorth) * 180 / math.Pi
	he := bearing - w.heading
	for he > 180 {
		he -= 360
	}
	for he <= -180 {
		he += 360
	}
	return he
}

// apply reacts to one decoded motor command byte.
func (w *world) apply(b byte, repeat int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if motor.IsFlush(b) {
		w.travel = 0
		w.pending = 0
	}
	switch motor.Dir(b) {
	case motor.Forward:
		w.travel += burstLen * float64(repeat)
	case motor.Backward:
		w.travel -= burstLen * float64(repeat)
	case motor.Left:
		w.pending += unitAngle * float64(repeat)
	case motor.Right:
		w.pending -= unitAngle * float64(repeat)
	}
}

// step advances the physics by one tick.
func (w *world) step() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != 0 {
		delta := turnRate * tickDt
		if delta > math.Abs(w.pending) {
			delta = math.Abs(w.pending)
		}
		if w.pending > 0 {
			w.rate = turnRate
			w.pending -= delta
			w.heading -= delta // a left turn unwinds the clockwise heading
		} else {
			w.rate = -turnRate
			w.pending += delta
			w.heading += delta
		}
		return
	}
	w.rate = 0

	if w.travel > 0 {
		d := speed * tickDt
		if d > w.travel {
			d = w.travel
		}
		w.travel -= d
		h := w.heading * math.Pi / 180
		w.pos.Latitude += float32(d * math.Cos(h) / metersPerDegree)
		w.pos.Longitude += float32(d * math.Sin(h) / (metersPerDegree * math.Cos(float64(w.pos.Latitude)*math.Pi/180)))
	}
}

// drain decodes slcan frames written by the CAN node and feeds them into the
// world. Frame layout: 't', 3 hex sid digits, 1 length digit, hex data.
func (w *world) drain(lines <-chan string, log *zap.SugaredLogger) {
	for line := range lines {
		if len(line) < 7 || line[0] != 't' {
			log.Warnw("unrecognized motor frame", "line", line)
			continue
		}
		b, err := strconv.ParseUint(line[5:7], 16, 8)
		if err != nil {
			log.Warnw("bad motor frame data", "line", line, "error", err)
			continue
		}
		w.apply(byte(b), 1)
	}
}

func main() {
	lat := flag.Float64("lat", 40.1105, "starting latitude")
	lon := flag.Float64("lon", -88.2284, "starting longitude")
	destLat := flag.Float64("dest-lat", 40.1110, "destination latitude")
	destLon := flag.Float64("dest-lon", -88.2278, "destination longitude")
	report := flag.Int("report", 2000, "ms between status reports")
	flag.Parse()

	log := util.NewLogger("sim")

	cfg := &model.Config{}
	cfg.Global.PollIntervalMs = 20
	cfg.Cam.Width = 64
	cfg.Cam.Height = 32
	cfg.Gps.SampleIntervalMs = 100
	cfg.Gps.AverageCount = 3
	cfg.Gyro.SampleHz = 200

	w := &world{
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		width:  cfg.Cam.Width,
		height: cfg.Cam.Height,
		pos:    model.Position{Latitude: float32(*lat), Longitude: float32(*lon)},
		dest:   model.Position{Latitude: float32(*destLat), Longitude: float32(*destLon)},
	}
	loop := device.NewLoopback()

	sys, err := core.NewSystem(cfg, core.Deps{Motor: loop, Mask: w, Fix: w, Rate: w})
	if err != nil {
		log.Fatalw("system construction failed", "error", err)
	}
	if err := sys.StartAll(); err != nil {
		log.Fatalw("system start failed", "error", err)
	}

	go w.drain(loop.Written(), log)
	go func() {
		tick := time.NewTicker(time.Duration(tickDt * float64(time.Second)))
		defer tick.Stop()
		for range tick.C {
			w.step()
		}
	}()

	// hand the engine its destination the way a controller would, once the
	// sensor producers have had time to announce their regions
	time.Sleep(500 * time.Millisecond)
	sys.Router.Port(model.NodeComm).Send(model.NewMessage(model.NodeComm, model.NodeNav, model.PositionPayload{
		Position: w.dest,
	}))
	log.Infow("simulation running", "destination", w.dest)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	reportTick := time.NewTicker(time.Duration(*report) * time.Millisecond)
	defer reportTick.Stop()

	for {
		select {
		case <-reportTick.C:
			st := sys.Engine.Status()
			w.mu.Lock()
			heading := w.heading
			w.mu.Unlock()
			log.Infow("rover status",
				"state", st.State, "mode", st.Mode,
				"position", st.Position, "heading", heading)
		case <-stop:
			log.Infow("shutting down")
			sys.StopAll()
			return
		}
	}
}
