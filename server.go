package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/defuse-protocol/intents-settle/accounts"
	"github.com/defuse-protocol/intents-settle/engine"
	"github.com/defuse-protocol/intents-settle/events"
	"github.com/defuse-protocol/intents-settle/log"
	"github.com/defuse-protocol/intents-settle/macaroons"
)

var shutdownChannel = make(chan struct{})

// server bundles together every long-lived component the daemon needs: the
// account store, the execution engine, the event sink, the macaroon service
// gating privileged RPCs, and the gRPC front door, the same way lnd's own
// server struct bundled the wallet, notifier, and chain control.
type server struct {
	cfg *config

	db     *accounts.DB
	engine *engine.Engine
	rpc    *rpcServer
}

// newServer wires every component together before Start is ever called,
// mirroring the shape of lnd's newServer constructor.
func newServer(cfg *config) (*server, error) {
	db, err := accounts.Open(cfg.accountsDBPath())
	if err != nil {
		return nil, fmt.Errorf("server: open accounts db: %w", err)
	}

	var sink events.Sink = events.NewRecorder()
	if cfg.EventsPostgresDSN != "" {
		pgSink, err := events.NewPgSink(context.Background(), cfg.EventsPostgresDSN)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("server: open event sink: %w", err)
		}
		sink = events.NewMultiSink(sink, pgSink)
	}

	eng := engine.New(db, engine.Config{
		VerifyingContract: cfg.VerifyingContract,
		FeePips:           cfg.FeePips,
		FeeCollector:      cfg.FeeCollector,
	}, sink, engine.NoopScheduler{})

	if err := engine.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		log.Warnf("metrics already registered: %v", err)
	}

	macSvc, err := loadMacaroonService(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("server: load macaroon service: %w", err)
	}

	rpc := newRPCServer(eng, db, macSvc)

	return &server{cfg: cfg, db: db, engine: eng, rpc: rpc}, nil
}

func loadMacaroonService(cfg *config) (*macaroons.Service, error) {
	if cfg.NoMacaroons {
		return nil, nil
	}

	rootKey, err := os.ReadFile(cfg.rootKeyPath())
	if os.IsNotExist(err) {
		rootKey, err = macaroons.GenerateRootKey()
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(cfg.rootKeyPath(), rootKey, 0600); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	svc := macaroons.NewService(rootKey)

	if _, err := os.Stat(cfg.macaroonPath()); os.IsNotExist(err) {
		adminMac, err := svc.Mint(macaroons.OpPrivileged)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(cfg.macaroonPath(), adminMac, 0600); err != nil {
			return nil, err
		}
		log.Infof("wrote fresh admin macaroon to %s", cfg.macaroonPath())
	}

	return svc, nil
}

// Start brings up the optional pprof profiling server, the Prometheus
// /metrics endpoint, and the gRPC listener, in that order.
func (s *server) Start() error {
	if s.cfg.Profile != "" {
		go func() {
			addr := net.JoinHostPort("", s.cfg.Profile)
			log.Infof("profiling server listening on %s", addr)
			fmt.Println(http.ListenAndServe(addr, nil))
		}()
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe("localhost:9119", metricsMux); err != nil {
			log.Warnf("metrics server stopped: %v", err)
		}
	}()

	return s.rpc.Start(s.cfg.RPCListen)
}

// Stop tears down the gRPC listener and closes the account store.
func (s *server) Stop() error {
	s.rpc.Stop()
	return s.db.Close()
}

func addInterruptHandler(fn func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		fn()
		close(shutdownChannel)
	}()
}
