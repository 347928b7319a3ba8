// Package core contains the orchestration layer for the rover runtime. The
// System type loads configuration, builds the router and every node around
// it, and manages their lifecycle.
package core

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"RoverCore/internal/device"
	"RoverCore/internal/model"
	"RoverCore/internal/nav"
	"RoverCore/internal/node"
	"RoverCore/internal/router"
	"RoverCore/internal/shm"
	"RoverCore/internal/telemetry"
	"RoverCore/internal/util"
)

// Deps carries the hardware-facing backends. Any nil field is replaced with
// a placeholder implementation, so the same System runs on a bench without
// any of the real drivers attached.
type Deps struct {
	Motor device.Device
	Mask  node.MaskSource
	Fix   node.FixSource
	Rate  node.RateSource
}

// System owns the router and all nodes for one rover process.
type System struct {
	log *zap.SugaredLogger
	cfg *model.Config

	Router   *router.Router
	Registry *shm.Registry
	Engine   *nav.Engine

	can     *node.Can
	cam     *node.Cam
	gps     *node.Gps
	gyro    *node.Gyro
	comm    *node.Comm
	emitter *telemetry.Emitter

	wg        sync.WaitGroup
	started   bool
	startLock sync.Mutex
}

// LoadConfig reads the YAML configuration and applies environment overrides.
func LoadConfig(path string) (*model.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("core: read config: %w", err)
	}
	var cfg model.Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("core: parse config: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("core: environment overrides: %w", err)
	}
	return &cfg, nil
}

// NewSystem builds the full node graph from cfg. Nothing runs until
// StartAll.
func NewSystem(cfg *model.Config, deps Deps) (*System, error) {
	s := &System{
		log:      util.NewLogger("system"),
		cfg:      cfg,
		Registry: shm.NewRegistry(),
	}

	var opts []router.Option
	if cfg.Global.PollIntervalMs > 0 {
		opts = append(opts, router.WithPollInterval(time.Duration(cfg.Global.PollIntervalMs)*time.Millisecond))
	}
	s.Router = router.New(opts...)

	if deps.Motor == nil {
		if cfg.Can.Device != "" {
			dev, err := device.NewSerialDevice(cfg.Can.Device, cfg.Can.Baud)
			if err != nil {
				return nil, fmt.Errorf("core: open can adapter: %w", err)
			}
			deps.Motor = dev
		} else {
			s.log.Warnw("no can adapter configured, motor frames go to a loopback")
			deps.Motor = device.NewLoopback()
		}
	}
	if deps.Mask == nil {
		s.log.Warnw("no mask source attached, using a uniform mask")
		deps.Mask = node.StaticMask{}
	}
	if deps.Fix == nil {
		s.log.Warnw("no fix source attached, position is pinned at zero")
		deps.Fix = node.NewStaticFix(model.Position{})
	}
	if deps.Rate == nil {
		deps.Rate = node.StaticRate{}
	}

	width, height := cfg.Cam.Width, cfg.Cam.Height
	if width <= 0 || height <= 0 {
		width, height = 64, 32
	}

	var err error
	s.can = node.NewCan(deps.Motor)
	if s.cam, err = node.NewCam(s.Router.Port(model.NodeCam), s.Registry, deps.Mask, width, height); err != nil {
		return nil, err
	}
	gpsInterval := time.Duration(cfg.Gps.SampleIntervalMs) * time.Millisecond
	if s.gps, err = node.NewGps(s.Router.Port(model.NodeGps), s.Registry, deps.Fix, gpsInterval, cfg.Gps.AverageCount); err != nil {
		return nil, err
	}
	gyroWindow := time.Duration(cfg.Gyro.SampleWindow * float64(time.Second))
	if s.gyro, err = node.NewGyro(s.Router.Port(model.NodeGyro), s.Registry, deps.Rate, cfg.Gyro.SampleHz, gyroWindow); err != nil {
		return nil, err
	}
	s.comm = node.NewComm(s.Router.Port(model.NodeComm), cfg.Comm.Listen)

	s.Engine, err = nav.New(s.Router.Port(model.NodeNav), s.Registry, nav.Config{
		ParametersPath: cfg.Global.ParametersFile,
		Calibrate:      cfg.Global.Calibrate,
		CanSID:         cfg.Can.SID,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Telemetry.Broker != "" {
		s.emitter = telemetry.NewEmitter(cfg.Telemetry, func() telemetry.Snapshot {
			st := s.Engine.Status()
			return telemetry.Snapshot{
				State:    st.State.String(),
				Mode:     st.Mode.String(),
				Position: st.Position,
			}
		})
	}

	return s, nil
}

// StartAll starts the router and every node goroutine.
func (s *System) StartAll() error {
	s.startLock.Lock()
	defer s.startLock.Unlock()
	if s.started {
		return nil
	}
	s.started = true

	s.Router.Start()

	s.runNode("can", model.NodeCan, s.can.Run)
	s.runNode("cam", model.NodeCam, s.cam.Run)
	s.runNode("gps", model.NodeGps, s.gps.Run)
	s.runNode("gyro", model.NodeGyro, s.gyro.Run)
	s.runNode("comm", model.NodeComm, s.comm.Run)
	s.runNode("nav", model.NodeNav, s.Engine.Run)

	if s.emitter != nil {
		if err := s.emitter.Start(); err != nil {
			// the control loop does not depend on the status stream
			s.log.Warnw("telemetry unavailable", "error", err)
			s.emitter = nil
		}
	}

	s.log.Infow("rover system started")
	return nil
}

func (s *System) runNode(name string, n model.Node, run func(<-chan model.Message) error) {
	in := s.Router.Port(n).In
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := run(in); err != nil {
			s.log.Errorw("node exited with error", "node", name, "error", err)
		}
	}()
}

// StopAll shuts the router down, which broadcasts kill to every node, then
// waits for them to drain.
func (s *System) StopAll() {
	s.startLock.Lock()
	defer s.startLock.Unlock()
	if !s.started {
		return
	}
	s.Router.Stop()
	s.wg.Wait()
	if s.emitter != nil {
		s.emitter.Stop()
	}
	s.started = false
	s.log.Infow("rover system stopped")
}
