package main

import (
	"fmt"
	"os"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"

	"github.com/defuse-protocol/intents-settle/log"
)

const (
	defaultDataDir     = "data"
	defaultAccountsDB  = "accounts.db"
	defaultRPCListen   = "localhost:10019"
	defaultVerifyingID = "intents.near"
	defaultWnearID     = "wrap.near"
	defaultLogLevel    = "info"
)

// config is the daemon's full set of command-line/config-file options,
// tagged for jessevdk/go-flags exactly as lnd's own config.go tags its
// struct fields.
type config struct {
	DataDir string `long:"datadir" description:"Directory to store the accounts database and macaroon"`

	VerifyingContract string `long:"verifying_contract" description:"The verifying_contract_id every accepted envelope must carry"`
	WnearID           string `long:"wnear_id" description:"Wrapped-native token contract; parsed but not passed to the engine, which always uses nep141:wrap.near for native_withdraw/storage_deposit"`
	FeePips           uint32 `long:"fee_pips" description:"Protocol fee in parts-per-million surcharged on token_diff debits"`
	FeeCollector      string `long:"fee_collector" description:"Account credited with collected fees"`

	RPCListen string `long:"rpclisten" description:"host:port the gRPC server listens on"`

	NoMacaroons bool `long:"no-macaroons" description:"Disable macaroon authentication for privileged RPCs (development only)"`

	EventsPostgresDSN string `long:"events_postgres_dsn" description:"Optional Postgres DSN for a durable event sink; empty disables it"`

	LogLevel string `long:"loglevel" description:"Logging level: trace, debug, info, warn, error"`

	Profile string `long:"profile" description:"Enable an HTTP profiling server on this port"`
}

func defaultConfig() config {
	return config{
		DataDir:           defaultDataDir,
		VerifyingContract: defaultVerifyingID,
		WnearID:           defaultWnearID,
		RPCListen:         defaultRPCListen,
		LogLevel:          defaultLogLevel,
	}
}

// loadConfig parses the command line (and, if present, a config file) into
// a config, applying defaults first the way lnd's loadConfig seeds
// cfg := defaultCfg before handing it to flags.Parse.
func loadConfig() (*config, error) {
	cfg := defaultConfig()

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return nil, err
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("config: create datadir: %w", err)
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log.SetLevel(level)

	return &cfg, nil
}

func (c *config) accountsDBPath() string {
	return filepath.Join(c.DataDir, defaultAccountsDB)
}

func (c *config) macaroonPath() string {
	return filepath.Join(c.DataDir, "admin.macaroon")
}

func (c *config) rootKeyPath() string {
	return filepath.Join(c.DataDir, "macaroon_root.key")
}
