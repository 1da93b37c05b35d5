//go:build linux || darwin

package poller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func socketpair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func newPoller(t *testing.T) Poller {
	t.Helper()
	p, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestWaitReportsOnlyReadyDescriptor(t *testing.T) {
	p := newPoller(t)
	a, _ := socketpair(t)
	b, bPeer := socketpair(t)
	require.NoError(t, p.Register(a))
	require.NoError(t, p.Register(b))

	_, err := unix.Write(bPeer, []byte("x"))
	require.NoError(t, err)

	events := make([]Event, 8)
	n, err := p.Wait(events)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, b, events[0].FD)
	assert.True(t, events[0].Readable)
	assert.False(t, events[0].Hangup)
}

func TestPeerFINIsReadableNotHangup(t *testing.T) {
	p := newPoller(t)
	a, aPeer := socketpair(t)
	require.NoError(t, p.Register(a))
	require.NoError(t, unix.Shutdown(aPeer, unix.SHUT_WR))

	events := make([]Event, 8)
	n, err := p.Wait(events)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.True(t, events[0].Readable)
	assert.False(t, events[0].Hangup)

	buf := make([]byte, 4)
	rn, err := unix.Read(a, buf)
	require.NoError(t, err)
	assert.Zero(t, rn)
}

func TestUnregisterAndClose(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	a, _ := socketpair(t)

	require.NoError(t, p.Register(a))
	require.NoError(t, p.Unregister(a))
	assert.Error(t, p.Unregister(a))

	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.Close(), ErrClosed)
	assert.ErrorIs(t, p.Register(a), ErrClosed)
	_, err = p.Wait(make([]Event, 1))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestModTogglesWritable(t *testing.T) {
	p := newPoller(t)
	a, aPeer := socketpair(t)
	require.NoError(t, p.Register(a))

	require.NoError(t, p.Mod(a, true))
	events := make([]Event, 8)
	n, err := p.Wait(events)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, a, events[0].FD)
	assert.True(t, events[0].Writable)
	assert.False(t, events[0].Readable)

	require.NoError(t, p.Mod(a, false))
	_, err = unix.Write(aPeer, []byte("x"))
	require.NoError(t, err)
	n, err = p.Wait(events)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.True(t, events[0].Readable)
	assert.False(t, events[0].Writable)
}
