package accounts

import (
	"github.com/btcsuite/btclog"

	defuselog "github.com/defuse-protocol/intents-settle/log"
)

var log btclog.Logger = defuselog.NewSubLogger("ACCT")
