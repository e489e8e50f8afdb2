package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli"
)

func printJson(resp interface{}) {
	b, err := json.Marshal(resp)
	if err != nil {
		fatal(err)
	}
	var out bytes.Buffer
	json.Indent(&out, b, "", "\t")
	out.WriteTo(os.Stdout)
	fmt.Println()
}

var executeIntentsCommand = cli.Command{
	Name:      "executeintents",
	Usage:     "submit a batch of signed envelopes for execution",
	ArgsUsage: "envelope [envelope...]",
	Action:    executeIntents,
}

func executeIntents(ctx *cli.Context) error {
	conn := getConn(ctx)
	defer conn.Close()

	envelopes := make([][]byte, 0, ctx.NArg())
	for _, arg := range ctx.Args() {
		raw, err := base64.StdEncoding.DecodeString(arg)
		if err != nil {
			return fmt.Errorf("envelope %q is not valid base64: %w", arg, err)
		}
		envelopes = append(envelopes, raw)
	}

	var resp struct{}
	err := conn.Invoke(context.Background(), "/defusesettle.Settle/ExecuteIntents",
		map[string]interface{}{"envelopes": envelopes}, &resp)
	if err != nil {
		return err
	}
	printJson(resp)
	return nil
}

var simulateIntentsCommand = cli.Command{
	Name:      "simulateintents",
	Usage:     "dry-run a batch of signed envelopes without committing",
	ArgsUsage: "envelope [envelope...]",
	Action:    simulateIntents,
}

func simulateIntents(ctx *cli.Context) error {
	conn := getConn(ctx)
	defer conn.Close()

	envelopes := make([][]byte, 0, ctx.NArg())
	for _, arg := range ctx.Args() {
		raw, err := base64.StdEncoding.DecodeString(arg)
		if err != nil {
			return fmt.Errorf("envelope %q is not valid base64: %w", arg, err)
		}
		envelopes = append(envelopes, raw)
	}

	var resp struct {
		Logs              []json.RawMessage `json:"logs"`
		InvariantViolated string            `json:"invariant_violated,omitempty"`
	}
	err := conn.Invoke(context.Background(), "/defusesettle.Settle/SimulateIntents",
		map[string]interface{}{"envelopes": envelopes}, &resp)
	if err != nil {
		return err
	}
	printJson(resp)
	return nil
}

var isNonceUsedCommand = cli.Command{
	Name:      "isnonceused",
	Usage:     "check whether an account's nonce has been committed",
	ArgsUsage: "account_id nonce_hex",
	Action:    isNonceUsed,
}

func isNonceUsed(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return fmt.Errorf("isnonceused requires account_id and nonce_hex")
	}
	conn := getConn(ctx)
	defer conn.Close()

	var resp struct {
		Used bool `json:"used"`
	}
	err := conn.Invoke(context.Background(), "/defusesettle.Settle/IsNonceUsed",
		map[string]interface{}{"account_id": ctx.Args().Get(0), "nonce": ctx.Args().Get(1)}, &resp)
	if err != nil {
		return err
	}
	printJson(resp)
	return nil
}

var currentSaltCommand = cli.Command{
	Name:   "currentsalt",
	Usage:  "print the current salt epoch",
	Action: currentSalt,
}

func currentSalt(ctx *cli.Context) error {
	conn := getConn(ctx)
	defer conn.Close()

	var resp struct {
		Epoch uint32 `json:"epoch"`
	}
	if err := conn.Invoke(context.Background(), "/defusesettle.Settle/CurrentSalt", struct{}{}, &resp); err != nil {
		return err
	}
	printJson(resp)
	return nil
}

var rotateSaltCommand = cli.Command{
	Name:   "rotatesalt",
	Usage:  "advance the salt epoch, invalidating all prior nonce commitments",
	Action: rotateSalt,
}

func rotateSalt(ctx *cli.Context) error {
	conn := getConn(ctx)
	defer conn.Close()
	return conn.Invoke(context.Background(), "/defusesettle.Settle/RotateSalt", struct{}{}, &struct{}{})
}

var forceLockAccountCommand = cli.Command{
	Name:      "forcelockaccount",
	Usage:     "lock an account, preventing it from originating further intents",
	ArgsUsage: "account_id",
	Action:    forceLockAccount,
}

func forceLockAccount(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("forcelockaccount requires account_id")
	}
	conn := getConn(ctx)
	defer conn.Close()
	return conn.Invoke(context.Background(), "/defusesettle.Settle/ForceLockAccount",
		map[string]interface{}{"account_id": ctx.Args().Get(0)}, &struct{}{})
}

var forceUnlockAccountCommand = cli.Command{
	Name:      "forceunlockaccount",
	Usage:     "unlock an account",
	ArgsUsage: "account_id",
	Action:    forceUnlockAccount,
}

func forceUnlockAccount(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("forceunlockaccount requires account_id")
	}
	conn := getConn(ctx)
	defer conn.Close()
	return conn.Invoke(context.Background(), "/defusesettle.Settle/ForceUnlockAccount",
		map[string]interface{}{"account_id": ctx.Args().Get(0)}, &struct{}{})
}

var forceWithdrawCommand = cli.Command{
	Name:      "forcewithdraw",
	Usage:     "debit an account's balance and schedule a withdraw, bypassing its lock state",
	ArgsUsage: "account_id token_id amount receiver_id",
	Action:    forceWithdraw,
}

func forceWithdraw(ctx *cli.Context) error {
	if ctx.NArg() != 4 {
		return fmt.Errorf("forcewithdraw requires account_id token_id amount receiver_id")
	}
	conn := getConn(ctx)
	defer conn.Close()
	return conn.Invoke(context.Background(), "/defusesettle.Settle/ForceWithdraw", map[string]interface{}{
		"account_id":  ctx.Args().Get(0),
		"token_id":    ctx.Args().Get(1),
		"amount":      ctx.Args().Get(2),
		"receiver_id": ctx.Args().Get(3),
	}, &struct{}{})
}

var notifyAuthorizationCommand = cli.Command{
	Name:      "notifyauthorization",
	Usage:     "acknowledge a pending one-shot condvar authorization on behalf of a relay signer",
	ArgsUsage: "escrow_contract auth_contract on_auth_signer authorizee msg_hash_hex caller_contract signer",
	Action:    notifyAuthorization,
}

func notifyAuthorization(ctx *cli.Context) error {
	if ctx.NArg() != 7 {
		return fmt.Errorf("notifyauthorization requires escrow_contract auth_contract on_auth_signer authorizee msg_hash_hex caller_contract signer")
	}
	conn := getConn(ctx)
	defer conn.Close()
	return conn.Invoke(context.Background(), "/defusesettle.Settle/NotifyAuthorization", map[string]interface{}{
		"escrow_contract": ctx.Args().Get(0),
		"auth_contract":   ctx.Args().Get(1),
		"on_auth_signer":  ctx.Args().Get(2),
		"authorizee":      ctx.Args().Get(3),
		"msg_hash":        ctx.Args().Get(4),
		"caller_contract": ctx.Args().Get(5),
		"signer":          ctx.Args().Get(6),
	}, &struct{}{})
}

var mtBalanceOfCommand = cli.Command{
	Name:      "mtbalanceof",
	Usage:     "print an account's balance of one token, rendered as a table",
	ArgsUsage: "account_id token_id",
	Action:    mtBalanceOf,
}

func mtBalanceOf(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return fmt.Errorf("mtbalanceof requires account_id token_id")
	}
	conn := getConn(ctx)
	defer conn.Close()

	var resp struct {
		Balance string `json:"balance"`
	}
	err := conn.Invoke(context.Background(), "/defusesettle.Settle/MtBalanceOf", map[string]interface{}{
		"account_id": ctx.Args().Get(0),
		"token_id":   ctx.Args().Get(1),
	}, &resp)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"account", "token", "balance"})
	t.AppendRow(table.Row{ctx.Args().Get(0), ctx.Args().Get(1), resp.Balance})
	t.Render()
	return nil
}
