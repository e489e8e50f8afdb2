package main

import (
	"fmt"
	"os"
	"runtime"

	flags "github.com/jessevdk/go-flags"

	"github.com/defuse-protocol/intents-settle/log"
)

// lndMain is the true entry point for the daemon. This function is
// required since defers created in the top-level scope of a main method
// aren't executed if os.Exit() is called.
func lndMain() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log.Infof("intents-settle starting, datadir=%s", cfg.DataDir)

	srv, err := newServer(cfg)
	if err != nil {
		log.Errorf("unable to create server: %v", err)
		return err
	}

	if err := srv.Start(); err != nil {
		log.Errorf("unable to start server: %v", err)
		return err
	}

	addInterruptHandler(func() {
		log.Infof("gracefully shutting down the server...")
		if err := srv.Stop(); err != nil {
			log.Errorf("error during shutdown: %v", err)
		}
	})

	<-shutdownChannel
	log.Info("shutdown complete")
	return nil
}

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	if err := lndMain(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
