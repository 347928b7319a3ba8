// Package telemetry publishes periodic rover status snapshots over MQTT for
// off-rover monitoring. It is strictly an observer; nothing in the control
// path depends on it and a missing broker only costs the status stream.
package telemetry

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"RoverCore/internal/model"
	"RoverCore/internal/util"
)

// Snapshot is one status sample.
type Snapshot struct {
	State    string
	Mode     string
	Position model.Position
}

// statusRecord is the published JSON shape.
type statusRecord struct {
	State     string    `json:"state"`
	Mode      string    `json:"mode"`
	Latitude  float32   `json:"latitude"`
	Longitude float32   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// SnapshotFunc samples the current rover status.
type SnapshotFunc func() Snapshot

// Emitter connects to the configured broker and publishes one snapshot per
// period.
type Emitter struct {
	log      *zap.SugaredLogger
	cfg      model.TelemetryConfig
	snapshot SnapshotFunc
	client   mqtt.Client

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewEmitter builds an emitter. It does not connect yet.
func NewEmitter(cfg model.TelemetryConfig, snapshot SnapshotFunc) *Emitter {
	return &Emitter{
		log:      util.NewLogger("telemetry"),
		cfg:      cfg,
		snapshot: snapshot,
		stop:     make(chan struct{}),
	}
}

// Start connects to the broker and begins the publish loop.
func (e *Emitter) Start() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		e.log.Warnw("broker connection lost, auto-reconnecting", "error", err)
	}

	e.client = mqtt.NewClient(opts)
	token := e.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("telemetry: broker connect timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("telemetry: broker connect: %w", err)
	}
	e.log.Infow("connected", "broker", e.cfg.Broker, "topic", e.cfg.Topic)

	period := time.Duration(e.cfg.PeriodMs) * time.Millisecond
	if period <= 0 {
		period = time.Second
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-e.stop:
				return
			case <-ticker.C:
				e.publish()
			}
		}
	}()
	return nil
}

func (e *Emitter) publish() {
	s := e.snapshot()
	payload, err := json.Marshal(statusRecord{
		State:     s.State,
		Mode:      s.Mode,
		Latitude:  s.Position.Latitude,
		Longitude: s.Position.Longitude,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		e.log.Errorw("snapshot marshal failed", "error", err)
		return
	}
	token := e.client.Publish(e.cfg.Topic, 0, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.log.Warnw("publish timeout")
		return
	}
	if err := token.Error(); err != nil {
		e.log.Warnw("publish failed", "error", err)
	}
}

// Stop ends the publish loop and disconnects.
func (e *Emitter) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
	e.wg.Wait()
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
	}
}
