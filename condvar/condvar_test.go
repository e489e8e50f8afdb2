package condvar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testKey() Key {
	return Key{
		EscrowContract: "escrow.near",
		AuthContract:   "relay.near",
		OnAuthSigner:   "relay-signer.near",
		Authorizee:     "proxy.near",
		MsgHash:        [32]byte{0xAB},
	}
}

func TestAddressIsDeterministic(t *testing.T) {
	k := testKey()
	require.Equal(t, k.Address(), k.Address())

	k2 := k
	k2.MsgHash[0] = 0xAC
	require.NotEqual(t, k.Address(), k2.Address())
}

func TestNotifyThenWaitResolvesImmediately(t *testing.T) {
	inst := New(testKey())
	require.NoError(t, inst.Notify("relay.near", "relay-signer.near"))
	require.Equal(t, Notified, inst.State())

	timeout := make(chan struct{})
	ok, err := inst.Wait("proxy.near", timeout)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, inst.Spent())
}

func TestWaitThenNotifyResolvesTrue(t *testing.T) {
	inst := New(testKey())
	timeout := make(chan struct{})

	result := make(chan bool, 1)
	errs := make(chan error, 1)
	go func() {
		ok, err := inst.Wait("proxy.near", timeout)
		result <- ok
		errs <- err
	}()

	// Give Wait a moment to register as parked, then notify.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, inst.Notify("relay.near", "relay-signer.near"))

	require.True(t, <-result)
	require.NoError(t, <-errs)
}

func TestWaitTimesOutFalse(t *testing.T) {
	inst := New(testKey())
	timeout := make(chan struct{})
	close(timeout)

	ok, err := inst.Wait("proxy.near", timeout)
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, inst.Spent())
}

func TestWaitRejectsWrongCaller(t *testing.T) {
	inst := New(testKey())
	_, err := inst.Wait("someone-else.near", make(chan struct{}))
	require.ErrorIs(t, err, ErrNotAuthorized)
}

func TestNotifyRejectsWrongSigner(t *testing.T) {
	inst := New(testKey())
	err := inst.Notify("relay.near", "not-the-signer.near")
	require.ErrorIs(t, err, ErrNotAuthorized)
}

func TestDoubleNotifyFails(t *testing.T) {
	inst := New(testKey())
	require.NoError(t, inst.Notify("relay.near", "relay-signer.near"))
	require.ErrorIs(t, inst.Notify("relay.near", "relay-signer.near"), ErrAlreadyResolved)
}
