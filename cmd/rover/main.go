// Package main is the rover control process. It loads the configuration,
// builds the router and all nodes and runs them until an interrupt arrives.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"RoverCore/internal/core"
	"RoverCore/internal/util"
)

func main() {
	cfgPath := flag.String("c", "configs/rover.yml", "path to configuration file")
	flag.Parse()

	log := util.NewLogger("main")
	log.Infow("starting rover", "config", *cfgPath)

	cfg, err := core.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatalw("configuration load failed", "error", err)
	}

	sys, err := core.NewSystem(cfg, core.Deps{})
	if err != nil {
		log.Fatalw("system construction failed", "error", err)
	}
	if err := sys.StartAll(); err != nil {
		log.Fatalw("system start failed", "error", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Infow("shutting down")
	sys.StopAll()
	log.Infow("stopped cleanly")
}
