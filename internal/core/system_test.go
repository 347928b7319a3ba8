package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"RoverCore/internal/device"
	"RoverCore/internal/model"
	"RoverCore/internal/node"
)

func TestLoadConfigAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rover.yml")
	yml := "global:\n  poll_interval_ms: 50\ncam:\n  width: 64\n  height: 32\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ROVER_CAM_WIDTH", "128")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Global.PollIntervalMs != 50 {
		t.Errorf("poll interval = %d, want 50", cfg.Global.PollIntervalMs)
	}
	if cfg.Cam.Width != 128 {
		t.Errorf("cam width = %d, want env override 128", cfg.Cam.Width)
	}
	if cfg.Cam.Height != 32 {
		t.Errorf("cam height = %d, want 32", cfg.Cam.Height)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestSystemStartsAndStopsCleanly(t *testing.T) {
	cfg := &model.Config{}
	cfg.Global.PollIntervalMs = 5
	cfg.Cam.Width = 8
	cfg.Cam.Height = 4
	cfg.Gps.SampleIntervalMs = 10
	cfg.Gps.AverageCount = 2
	cfg.Gyro.SampleHz = 100

	sys, err := NewSystem(cfg, Deps{
		Motor: device.NewLoopback(),
		Mask:  node.StaticMask{},
		Fix:   node.NewStaticFix(model.Position{Latitude: 40, Longitude: -88}),
		Rate:  node.StaticRate{},
	})
	if err != nil {
		t.Fatalf("new system: %v", err)
	}

	if err := sys.StartAll(); err != nil {
		t.Fatalf("start: %v", err)
	}
	// let the producers announce their regions and the engine bind them
	time.Sleep(100 * time.Millisecond)

	st := sys.Engine.Status()
	if st.Mode != model.Automatic {
		t.Errorf("mode = %v, want automatic", st.Mode)
	}

	done := make(chan struct{})
	go func() {
		sys.StopAll()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("StopAll did not finish")
	}
}
