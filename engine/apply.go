package engine

import (
	"encoding/json"

	"go.etcd.io/bbolt"
	"lukechampine.com/uint128"

	"github.com/defuse-protocol/intents-settle/accounts"
	"github.com/defuse-protocol/intents-settle/events"
	"github.com/defuse-protocol/intents-settle/intents"
	"github.com/defuse-protocol/intents-settle/matcher"
	"github.com/defuse-protocol/intents-settle/resolver"
	"github.com/defuse-protocol/intents-settle/tokenid"
)

// wnear is the TokenId the engine treats as wrapped-native, used by
// NativeWithdraw and StorageDeposit's deposit accounting.
var wnear = tokenid.Ft("wrap.near")

// apply dispatches one intent against signer's staged state, per §4.6's
// per-intent semantics.
func (e *Engine) apply(
	tx *bbolt.Tx,
	signer string,
	intent intents.Intent,
	m *matcher.TransferMatcher,
	sink events.Sink,
	envHash string,
	scheduler Scheduler,
) error {
	acct := e.db.Open(tx, signer)

	switch v := intent.(type) {
	case intents.AddPublicKey:
		return e.applyAddPublicKey(acct, v, sink, envHash)
	case intents.RemovePublicKey:
		return e.applyRemovePublicKey(acct, v, sink, envHash)
	case intents.SetAuthByPredecessor:
		return e.applySetAuthByPredecessor(acct, v, sink, envHash)
	case intents.Transfer:
		return e.applyTransfer(tx, signer, v, m, sink, envHash)
	case intents.TokenDiff:
		return e.applyTokenDiff(tx, acct, v, m, sink, envHash)
	case intents.FtWithdraw:
		return e.applyFtWithdraw(acct, v, sink, envHash, scheduler)
	case intents.NftWithdraw:
		return e.applyNftWithdraw(acct, v, sink, envHash, scheduler)
	case intents.MtWithdraw:
		return e.applyMtWithdraw(acct, v, sink, envHash, scheduler)
	case intents.NativeWithdraw:
		return e.applyNativeWithdraw(acct, v, sink, envHash, scheduler)
	case intents.StorageDeposit:
		return e.applyStorageDeposit(acct, v, sink, envHash, scheduler)
	case intents.AuthCall:
		return e.applyAuthCall(acct, v, sink, envHash, scheduler)
	case intents.ImtMint:
		return e.applyImtMint(acct, v, sink, envHash)
	case intents.ImtBurn:
		return e.applyImtBurn(acct, v, sink, envHash)
	default:
		return ErrUnknownToken
	}
}

func requireUnlocked(acct *accounts.Account) error {
	locked, err := acct.Locked()
	if err != nil {
		return err
	}
	if locked {
		return accounts.ErrAccountLocked
	}
	return nil
}

func (e *Engine) applyAddPublicKey(acct *accounts.Account, v intents.AddPublicKey, sink events.Sink, envHash string) error {
	if err := requireUnlocked(acct); err != nil {
		return err
	}
	if err := acct.AddPublicKey(v.PK.Curve, v.PK.Key); err != nil {
		return err
	}
	sink.Emit(events.WithIntentHash(events.PublicKeyAdded{AccountID: acct.ID, PublicKey: v.PK.Curve + ":" + string(v.PK.Key)}, envHash))
	return nil
}

func (e *Engine) applyRemovePublicKey(acct *accounts.Account, v intents.RemovePublicKey, sink events.Sink, envHash string) error {
	if err := requireUnlocked(acct); err != nil {
		return err
	}
	if err := acct.RemovePublicKey(v.PK.Curve, v.PK.Key); err != nil {
		return err
	}
	sink.Emit(events.WithIntentHash(events.PublicKeyRemoved{AccountID: acct.ID, PublicKey: v.PK.Curve + ":" + string(v.PK.Key)}, envHash))
	return nil
}

func (e *Engine) applySetAuthByPredecessor(acct *accounts.Account, v intents.SetAuthByPredecessor, sink events.Sink, envHash string) error {
	if err := requireUnlocked(acct); err != nil {
		return err
	}
	if err := acct.SetAuthByPredecessor(v.Enabled); err != nil {
		return err
	}
	sink.Emit(events.WithIntentHash(events.SetAuthByPredecessorId{AccountID: acct.ID, Enabled: v.Enabled}, envHash))
	return nil
}

func (e *Engine) applyTransfer(tx *bbolt.Tx, signer string, v intents.Transfer, m *matcher.TransferMatcher, sink events.Sink, envHash string) error {
	if v.Receiver == signer {
		return ErrSelfTransfer
	}

	signerAcct := e.db.Open(tx, signer)
	if err := requireUnlocked(signerAcct); err != nil {
		return err
	}
	receiverAcct := e.db.Open(tx, v.Receiver)

	for token, amountStr := range v.Tokens {
		amount, err := parseAmount(amountStr)
		if err != nil {
			return err
		}
		if amount.IsZero() {
			return ErrZeroAmount
		}

		if err := signerAcct.SubBalance(token, amount); err != nil {
			return err
		}
		if err := receiverAcct.AddBalance(token, amount); err != nil {
			return err
		}
		m.Withdraw(token, signer, amount)
		m.Deposit(token, v.Receiver, amount)

		sink.Emit(events.WithIntentHash(events.Transfer{
			Sender:   signer,
			Receiver: v.Receiver,
			TokenID:  token.String(),
			Amount:   amount,
			Memo:     v.Memo,
		}, envHash))
	}
	return nil
}

// applyTokenDiff nets a signed per-token delta vector, per §4.5/§8 scenario
// 2: a declared positive leg is always credited its exact signed amount,
// never reduced to pay for a fee. A declared negative leg is instead
// debited its signed magnitude plus a surcharge (ClosureDelta), and the
// surcharge is routed straight to the configured fee collector, so the
// matcher sees the giving side's full real debit and the receiving side's
// full real credit and nets to zero without ever needing to invent value.
func (e *Engine) applyTokenDiff(tx *bbolt.Tx, acct *accounts.Account, v intents.TokenDiff, m *matcher.TransferMatcher, sink events.Sink, envHash string) error {
	if err := requireUnlocked(acct); err != nil {
		return err
	}

	chargeFee := e.cfg.FeePips > 0 && e.cfg.FeeCollector != ""

	rendered := make(map[string]string, len(v.Diff))
	for token, deltaStr := range v.Diff {
		negative := len(deltaStr) > 0 && deltaStr[0] == '-'
		magnitudeStr := deltaStr
		if negative || (len(deltaStr) > 0 && deltaStr[0] == '+') {
			magnitudeStr = deltaStr[1:]
		}
		magnitude, err := parseAmount(magnitudeStr)
		if err != nil {
			return err
		}
		rendered[token.String()] = deltaStr

		if !negative {
			if err := acct.AddBalance(token, magnitude); err != nil {
				return err
			}
			m.Deposit(token, acct.ID, magnitude)
			continue
		}

		debit := magnitude
		if chargeFee {
			debit = matcher.ClosureDelta(magnitude, e.cfg.FeePips)
		}
		if err := acct.SubBalance(token, debit); err != nil {
			return err
		}
		m.Withdraw(token, acct.ID, debit)

		if fee := debit.Sub(magnitude); !fee.IsZero() {
			feeAcct := e.db.Open(tx, e.cfg.FeeCollector)
			if err := feeAcct.AddBalance(token, fee); err != nil {
				return err
			}
			m.Deposit(token, e.cfg.FeeCollector, fee)
		}
	}

	sink.Emit(events.WithIntentHash(events.TokenDiff{AccountID: acct.ID, Diff: rendered}, envHash))
	return nil
}

// precheckWithdrawLogSizes enforces §4.7/§9's hard invariant before any
// withdraw touches balance state: it renders the event a successful
// resolution would emit and the event the worst-case full refund would
// emit, and rejects the withdraw outright if either would overflow the
// host's per-log byte limit. A debit that later can't be refunded because
// its own refund log is oversized is the failure mode this exists to rule
// out in advance.
func precheckWithdrawLogSizes(success, refund events.Event) error {
	successBytes, err := json.Marshal(success)
	if err != nil {
		return err
	}
	refundBytes, err := json.Marshal(refund)
	if err != nil {
		return err
	}
	return resolver.PreCheckLogSizes(len(successBytes), len(refundBytes))
}

func (e *Engine) applyFtWithdraw(acct *accounts.Account, v intents.FtWithdraw, sink events.Sink, envHash string, scheduler Scheduler) error {
	if err := requireUnlocked(acct); err != nil {
		return err
	}
	amount, err := parseAmount(v.Amount)
	if err != nil {
		return err
	}
	success := events.FtWithdraw{Sender: acct.ID, TokenID: v.Token.String(), Amount: amount, Receiver: v.Receiver}
	refund := events.TokenRefund{AccountID: acct.ID, TokenID: v.Token.String(), Amount: amount}
	if err := precheckWithdrawLogSizes(success, refund); err != nil {
		return err
	}
	if err := acct.SubBalance(v.Token, amount); err != nil {
		return err
	}
	sink.Emit(events.WithIntentHash(success, envHash))
	scheduler.ScheduleWithdraw(acct.ID, v.Receiver, v.Token.String(), amount, v.Msg, v.MinGas)
	return nil
}

func (e *Engine) applyNftWithdraw(acct *accounts.Account, v intents.NftWithdraw, sink events.Sink, envHash string, scheduler Scheduler) error {
	if err := requireUnlocked(acct); err != nil {
		return err
	}
	success := events.NftWithdraw{Sender: acct.ID, TokenID: v.Token.String(), ItemID: v.TokenID, Receiver: v.Receiver}
	refund := events.TokenRefund{AccountID: acct.ID, TokenID: v.Token.String(), Amount: uint128.From64(1)}
	if err := precheckWithdrawLogSizes(success, refund); err != nil {
		return err
	}
	sink.Emit(events.WithIntentHash(success, envHash))
	scheduler.ScheduleWithdraw(acct.ID, v.Receiver, v.Token.String(), uint128.From64(1), v.Msg, v.MinGas)
	return nil
}

func (e *Engine) applyMtWithdraw(acct *accounts.Account, v intents.MtWithdraw, sink events.Sink, envHash string, scheduler Scheduler) error {
	if err := requireUnlocked(acct); err != nil {
		return err
	}
	if len(v.TokenIDs) != len(v.Amounts) {
		return ErrUnknownToken
	}

	amounts := make([]uint128.Uint128, len(v.Amounts))
	largest := uint128.Zero
	for i, amountStr := range v.Amounts {
		amount, err := parseAmount(amountStr)
		if err != nil {
			return err
		}
		amounts[i] = amount
		if amount.Cmp(largest) > 0 {
			largest = amount
		}
	}

	success := events.MtWithdraw{Sender: acct.ID, Contract: v.Token.Contract, TokenIDs: v.TokenIDs, Amounts: amounts, Receiver: v.Receiver}
	// each token ID resolves its own withdraw promise independently, so the
	// worst-case single refund log is the largest leg's own TokenRefund.
	refund := events.TokenRefund{AccountID: acct.ID, TokenID: v.Token.String(), Amount: largest}
	if err := precheckWithdrawLogSizes(success, refund); err != nil {
		return err
	}

	for i, amount := range amounts {
		token := tokenid.Mt(v.Token.Contract, v.TokenIDs[i])
		if err := acct.SubBalance(token, amount); err != nil {
			return err
		}
	}

	sink.Emit(events.WithIntentHash(success, envHash))
	for i, id := range v.TokenIDs {
		scheduler.ScheduleWithdraw(acct.ID, v.Receiver, tokenid.Mt(v.Token.Contract, id).String(), amounts[i], v.Msg, v.MinGas)
	}
	return nil
}

func (e *Engine) applyNativeWithdraw(acct *accounts.Account, v intents.NativeWithdraw, sink events.Sink, envHash string, scheduler Scheduler) error {
	if err := requireUnlocked(acct); err != nil {
		return err
	}
	amount, err := parseAmount(v.Amount)
	if err != nil {
		return err
	}
	success := events.NativeWithdraw{Sender: acct.ID, Amount: amount, Receiver: v.Receiver}
	refund := events.TokenRefund{AccountID: acct.ID, TokenID: wnear.String(), Amount: amount}
	if err := precheckWithdrawLogSizes(success, refund); err != nil {
		return err
	}
	if err := acct.SubBalance(wnear, amount); err != nil {
		return err
	}
	sink.Emit(events.WithIntentHash(success, envHash))
	scheduler.ScheduleWithdraw(acct.ID, v.Receiver, wnear.String(), amount, "", 0)
	return nil
}

func (e *Engine) applyStorageDeposit(acct *accounts.Account, v intents.StorageDeposit, sink events.Sink, envHash string, scheduler Scheduler) error {
	if err := requireUnlocked(acct); err != nil {
		return err
	}
	amount, err := parseAmount(v.Amount)
	if err != nil {
		return err
	}
	if err := acct.SubBalance(wnear, amount); err != nil {
		return err
	}
	sink.Emit(events.WithIntentHash(events.StorageDeposit{Sender: acct.ID, Amount: amount, Receiver: v.ForAccount}, envHash))
	scheduler.ScheduleStorageDeposit(acct.ID, v.Contract, v.ForAccount, amount)
	return nil
}

// applyAuthCall debits the attached deposit and schedules the call; unlike
// the withdraw intents it has no dedicated event, since ScheduleAuthCall's
// eventual callback is what a listener actually cares about.
func (e *Engine) applyAuthCall(acct *accounts.Account, v intents.AuthCall, sink events.Sink, envHash string, scheduler Scheduler) error {
	if err := requireUnlocked(acct); err != nil {
		return err
	}
	amount, err := parseAmount(v.AttachedDeposit)
	if err != nil {
		return err
	}
	if err := acct.SubBalance(wnear, amount); err != nil {
		return err
	}
	scheduler.ScheduleAuthCall(acct.ID, v.Contract, v.Msg, amount, v.MinGas)
	return nil
}

func (e *Engine) applyImtMint(acct *accounts.Account, v intents.ImtMint, sink events.Sink, envHash string) error {
	amount, err := parseAmount(v.Amount)
	if err != nil {
		return err
	}
	if err := acct.AddBalance(v.Token, amount); err != nil {
		return err
	}
	sink.Emit(events.WithIntentHash(events.ImtMint{AccountID: acct.ID, TokenID: v.Token.String(), Amount: amount}, envHash))
	return nil
}

func (e *Engine) applyImtBurn(acct *accounts.Account, v intents.ImtBurn, sink events.Sink, envHash string) error {
	amount, err := parseAmount(v.Amount)
	if err != nil {
		return err
	}
	if err := acct.SubBalance(v.Token, amount); err != nil {
		return err
	}
	sink.Emit(events.WithIntentHash(events.ImtBurn{AccountID: acct.ID, TokenID: v.Token.String(), Amount: amount}, envHash))
	return nil
}
