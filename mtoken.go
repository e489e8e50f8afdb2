package main

import (
	"context"

	"go.etcd.io/bbolt"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/defuse-protocol/intents-settle/tokenid"
)

// The mt_* surface below implements the read side of the NEP-245
// multi-token standard against the same account store the execution
// engine uses, and a privileged direct-transfer entrypoint for operator
// balance moves outside the signed-intents path. mt_tokens and
// mt_tokens_for_owner (full token enumeration) are intentionally not
// implemented: the account store indexes balances by (account, token), not
// by token contract, so listing every token a contract has ever minted
// would require a second index this engine has no other use for. See
// DESIGN.md.

type mtBalanceOfRequest struct {
	AccountID string `json:"account_id"`
	TokenID   string `json:"token_id"`
}

type mtBalanceOfResponse struct {
	Balance string `json:"balance"`
}

type mtBatchBalanceOfRequest struct {
	AccountID string   `json:"account_id"`
	TokenIDs  []string `json:"token_ids"`
}

type mtBatchBalanceOfResponse struct {
	Balances []string `json:"balances"`
}

type mtTransferRequest struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	TokenID    string `json:"token_id"`
	Amount     string `json:"amount"`
}

type mtBatchTransferRequest struct {
	SenderID   string   `json:"sender_id"`
	ReceiverID string   `json:"receiver_id"`
	TokenIDs   []string `json:"token_ids"`
	Amounts    []string `json:"amounts"`
}

func (r *rpcServer) mtBalanceOf(ctx context.Context, in *mtBalanceOfRequest) (*mtBalanceOfResponse, error) {
	token, err := tokenid.Parse(in.TokenID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	var balance string
	err = r.db.View(func(tx *bbolt.Tx) error {
		amt, err := r.db.Open(tx, in.AccountID).BalanceOf(token)
		if err != nil {
			return err
		}
		balance = amt.String()
		return nil
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return &mtBalanceOfResponse{Balance: balance}, nil
}

func (r *rpcServer) mtBatchBalanceOf(ctx context.Context, in *mtBatchBalanceOfRequest) (*mtBatchBalanceOfResponse, error) {
	tokens := make([]tokenid.TokenId, len(in.TokenIDs))
	for i, s := range in.TokenIDs {
		t, err := tokenid.Parse(s)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		tokens[i] = t
	}

	balances := make([]string, len(tokens))
	err := r.db.View(func(tx *bbolt.Tx) error {
		acct := r.db.Open(tx, in.AccountID)
		for i, t := range tokens {
			amt, err := acct.BalanceOf(t)
			if err != nil {
				return err
			}
			balances[i] = amt.String()
		}
		return nil
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return &mtBatchBalanceOfResponse{Balances: balances}, nil
}

func (r *rpcServer) mtTransfer(ctx context.Context, in *mtTransferRequest) (*struct{}, error) {
	token, err := tokenid.Parse(in.TokenID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := r.eng.DirectTransfer(in.SenderID, in.ReceiverID, token, in.Amount); err != nil {
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}
	return &struct{}{}, nil
}

func (r *rpcServer) mtBatchTransfer(ctx context.Context, in *mtBatchTransferRequest) (*struct{}, error) {
	if len(in.TokenIDs) != len(in.Amounts) {
		return nil, status.Error(codes.InvalidArgument, "token_ids and amounts must be the same length")
	}
	for i, s := range in.TokenIDs {
		token, err := tokenid.Parse(s)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		if err := r.eng.DirectTransfer(in.SenderID, in.ReceiverID, token, in.Amounts[i]); err != nil {
			return nil, status.Error(codes.FailedPrecondition, err.Error())
		}
	}
	return &struct{}{}, nil
}
