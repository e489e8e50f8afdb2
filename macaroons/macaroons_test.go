package macaroons

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMintAndVerifyRoundTrip(t *testing.T) {
	rootKey, err := GenerateRootKey()
	require.NoError(t, err)
	svc := NewService(rootKey)

	raw, err := svc.Mint(OpPrivileged)
	require.NoError(t, err)

	require.NoError(t, svc.Verify(context.Background(), raw, OpPrivileged))
}

func TestVerifyRejectsWrongOperation(t *testing.T) {
	rootKey, err := GenerateRootKey()
	require.NoError(t, err)
	svc := NewService(rootKey)

	raw, err := svc.Mint(OpReadOnly)
	require.NoError(t, err)

	err = svc.Verify(context.Background(), raw, OpPrivileged)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestVerifyRejectsWrongRootKey(t *testing.T) {
	rootKey, err := GenerateRootKey()
	require.NoError(t, err)
	svc := NewService(rootKey)
	raw, err := svc.Mint(OpPrivileged)
	require.NoError(t, err)

	otherKey, err := GenerateRootKey()
	require.NoError(t, err)
	other := NewService(otherKey)

	err = other.Verify(context.Background(), raw, OpPrivileged)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	rootKey, err := GenerateRootKey()
	require.NoError(t, err)
	svc := NewService(rootKey)

	err = svc.Verify(context.Background(), []byte("not a macaroon"), OpPrivileged)
	require.ErrorIs(t, err, ErrUnauthorized)
}
