// Package macaroons gates the privileged RPC surface (force_lock_account,
// force_unlock_account, force_withdraw, rotate_salt, mt_transfer,
// mt_batch_transfer) behind a bearer
// macaroon, the same access-control primitive lnd's own macaroons package
// uses to scope admin/read-only RPC access. This package mints and verifies
// a single first-party "privileged" caveat; it does not implement third-party
// discharge, since the daemon has no need for a third-party authority.
package macaroons

import (
	"context"
	"crypto/rand"
	"fmt"

	"gopkg.in/macaroon.v2"
)

// Operation is a first-party caveat condition value: the set of RPC methods
// a macaroon may authorize.
type Operation string

const (
	OpPrivileged Operation = "privileged"
	OpReadOnly   Operation = "readonly"
)

const operationCaveatPrefix = "operation="

// Service mints and verifies macaroons against one root key. The key is
// supplied by the caller: server.go reads it from macaroon_root.key in the
// data directory, generating and writing that file on first start.
type Service struct {
	rootKey []byte
}

// NewService returns a Service bound to rootKey, which must stay stable
// across restarts or every previously minted macaroon stops verifying.
func NewService(rootKey []byte) *Service {
	return &Service{rootKey: rootKey}
}

// GenerateRootKey returns a fresh 32-byte random root key, for first-run
// bootstrap.
func GenerateRootKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("macaroons: generate root key: %w", err)
	}
	return key, nil
}

// Mint produces a macaroon authorizing op, serialized to bytes ready to
// write to a .macaroon file.
func (s *Service) Mint(op Operation) ([]byte, error) {
	m, err := macaroon.New(s.rootKey, []byte(op), "defuse-settle", macaroon.LatestVersion)
	if err != nil {
		return nil, fmt.Errorf("macaroons: mint: %w", err)
	}
	if err := m.AddFirstPartyCaveat([]byte(operationCaveatPrefix + string(op))); err != nil {
		return nil, fmt.Errorf("macaroons: add caveat: %w", err)
	}
	return m.MarshalBinary()
}

// Verify checks raw against s's root key and confirms it authorizes
// required. It returns ErrUnauthorized for any verification failure, never a
// lower-level macaroon parse error, so callers can't distinguish "bad
// macaroon" from "wrong operation" (the same non-information-leaking
// contract lnd's macaroon validator follows).
func (s *Service) Verify(_ context.Context, raw []byte, required Operation) error {
	m := &macaroon.Macaroon{}
	if err := m.UnmarshalBinary(raw); err != nil {
		return ErrUnauthorized
	}

	wanted := operationCaveatPrefix + string(required)
	check := func(caveat string) error {
		if caveat == wanted {
			return nil
		}
		return fmt.Errorf("caveat %q does not authorize %q", caveat, required)
	}

	if err := m.Verify(s.rootKey, check, nil); err != nil {
		return ErrUnauthorized
	}
	return nil
}
