package socket

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(s string) Candidate {
	ep := EndpointFrom(netip.MustParseAddrPort(s))
	return Candidate{Family: ep.Family(), Type: SockStream, Protocol: 6, Endpoint: ep}
}

// recordingBackend 记录每次查询的 hints，并按顺序返回预设结果。
type recordingBackend struct {
	calls   []Hints
	results []func(Hints) ([]Candidate, error)
}

func (b *recordingBackend) Lookup(_ context.Context, _, _ string, h Hints) ([]Candidate, error) {
	b.calls = append(b.calls, h)
	i := len(b.calls) - 1
	if i >= len(b.results) {
		i = len(b.results) - 1
	}
	return b.results[i](h)
}

func ok(c ...Candidate) func(Hints) ([]Candidate, error) {
	return func(Hints) ([]Candidate, error) { return c, nil }
}

func fails(err error) func(Hints) ([]Candidate, error) {
	return func(Hints) ([]Candidate, error) { return nil, err }
}

func TestResolveHints(t *testing.T) {
	tests := []struct {
		name       string
		node       string
		wantStream bool
		passive    bool
		want       Hints
	}{
		{
			name:       "named host gets addrconfig",
			node:       "example.com",
			wantStream: true,
			want:       Hints{Family: FamilyIPv6, Type: SockStream, Flags: HintV4Mapped | HintAll | HintAddrConfig},
		},
		{
			name: "loopback name skips addrconfig",
			node: "localhost",
			want: Hints{Family: FamilyIPv6, Type: SockDatagram, Flags: HintV4Mapped | HintAll},
		},
		{
			name:       "loopback name is case and dot insensitive",
			node:       "LOCALHOST6.localdomain6.",
			wantStream: true,
			want:       Hints{Family: FamilyIPv6, Type: SockStream, Flags: HintV4Mapped | HintAll},
		},
		{
			name:       "passive listen",
			node:       "",
			wantStream: true,
			passive:    true,
			want:       Hints{Family: FamilyIPv6, Type: SockStream, Flags: HintV4Mapped | HintAll | HintAddrConfig | HintPassive},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &recordingBackend{results: []func(Hints) ([]Candidate, error){ok(candidate("[::1]:80"))}}
			st := newStack(Config{Backend: b}, newFakeSys())
			_, err := st.Resolve(context.Background(), tt.node, "80", tt.wantStream, tt.passive)
			require.NoError(t, err)
			require.Len(t, b.calls, 1)
			assert.Equal(t, tt.want, b.calls[0])
		})
	}
}

func TestResolveBadFlagsRetriesOnce(t *testing.T) {
	b := &recordingBackend{results: []func(Hints) ([]Candidate, error){
		fails(ErrBadFlags),
		ok(candidate("[::ffff:192.0.2.1]:80")),
	}}
	st := newStack(Config{Backend: b}, newFakeSys())

	cands, err := st.Resolve(context.Background(), "example.com", "80", true, false)
	require.NoError(t, err)
	require.Len(t, b.calls, 2)
	assert.NotZero(t, b.calls[0].Flags&HintAddrConfig)
	assert.Zero(t, b.calls[1].Flags&HintAddrConfig)
	assert.Equal(t, b.calls[0].Flags&^HintAddrConfig, b.calls[1].Flags)
	assert.Len(t, cands, 1)
}

func TestResolveBadFlagsTwiceFails(t *testing.T) {
	b := &recordingBackend{results: []func(Hints) ([]Candidate, error){fails(ErrBadFlags)}}
	st := newStack(Config{Backend: b}, newFakeSys())

	_, err := st.Resolve(context.Background(), "example.com", "80", true, false)
	var rerr *ResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.ErrorIs(t, err, ErrBadFlags)
	assert.Len(t, b.calls, 2)
}

func TestResolveNoRetryWithoutAddrConfig(t *testing.T) {
	b := &recordingBackend{results: []func(Hints) ([]Candidate, error){fails(ErrBadFlags)}}
	st := newStack(Config{Backend: b}, newFakeSys())

	_, err := st.Resolve(context.Background(), "localhost", "80", true, false)
	assert.ErrorIs(t, err, ErrBadFlags)
	assert.Len(t, b.calls, 1)
}

func TestResolveOtherErrorsNotRetried(t *testing.T) {
	b := &recordingBackend{results: []func(Hints) ([]Candidate, error){fails(ErrNoSuchHost)}}
	st := newStack(Config{Backend: b}, newFakeSys())

	_, err := st.Resolve(context.Background(), "nope.invalid", "80", true, false)
	var rerr *ResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "nope.invalid", rerr.Node)
	assert.Equal(t, "80", rerr.Service)
	assert.ErrorIs(t, err, ErrNoSuchHost)
	assert.Len(t, b.calls, 1)
}

func TestResolveEmptyResult(t *testing.T) {
	st := newStack(Config{Backend: LookupFunc(func(context.Context, string, string, Hints) ([]Candidate, error) {
		return nil, nil
	})}, newFakeSys())
	_, err := st.Resolve(context.Background(), "example.com", "80", true, false)
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestResolvePreservesOrder(t *testing.T) {
	want := []Candidate{candidate("[::ffff:192.0.2.1]:80"), candidate("[2001:db8::1]:80"), candidate("[::ffff:192.0.2.2]:80")}
	st := newStack(Config{Backend: LookupFunc(func(context.Context, string, string, Hints) ([]Candidate, error) {
		return want, nil
	})}, newFakeSys())
	got, err := st.Resolve(context.Background(), "example.com", "80", true, false)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolveClosedStack(t *testing.T) {
	st := newStack(Config{}, newFakeSys())
	require.NoError(t, st.Close())
	assert.ErrorIs(t, st.Close(), ErrStackClosed)
	_, err := st.Resolve(context.Background(), "", "80", true, true)
	assert.ErrorIs(t, err, ErrStackClosed)
}

func TestHintsValidate(t *testing.T) {
	assert.NoError(t, Hints{Family: FamilyIPv6, Flags: HintV4Mapped | HintAll}.validate())
	assert.ErrorIs(t, Hints{Family: FamilyIPv6, Flags: HintAll}.validate(), ErrBadFlags)
	assert.ErrorIs(t, Hints{Family: FamilyIPv4, Flags: HintV4Mapped}.validate(), ErrBadFlags)
	assert.ErrorIs(t, Hints{Flags: 0x80}.validate(), ErrBadFlags)
}

func TestSystemBackendLiterals(t *testing.T) {
	b := &SystemBackend{Interfaces: func() (bool, bool, error) {
		return false, false, errors.New("must not be consulted for literals")
	}}
	ctx := context.Background()
	dual := Hints{Family: FamilyIPv6, Type: SockStream, Flags: HintV4Mapped | HintAll | HintAddrConfig}

	t.Run("ipv4 literal is mapped", func(t *testing.T) {
		got, err := b.Lookup(ctx, "127.0.0.1", "8080", dual)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "[::ffff:127.0.0.1]:8080", got[0].Endpoint.String())
		assert.Equal(t, FamilyIPv6, got[0].Family)
		assert.Equal(t, 6, got[0].Protocol)
	})

	t.Run("passive empty node is wildcard", func(t *testing.T) {
		h := dual
		h.Flags |= HintPassive
		got, err := b.Lookup(ctx, "", "8080", h)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "[::]:8080", got[0].Endpoint.String())
		assert.Equal(t, "[::ffff:0.0.0.0]:8080", got[1].Endpoint.String())
	})

	t.Run("active empty node is loopback", func(t *testing.T) {
		h := dual
		h.Type = SockDatagram
		got, err := b.Lookup(ctx, "", "53", h)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.True(t, got[0].Endpoint.Addr().IsLoopback())
		assert.Equal(t, 17, got[0].Protocol)
	})

	t.Run("port zero rejected", func(t *testing.T) {
		_, err := b.Lookup(ctx, "", "0", dual)
		assert.ErrorIs(t, err, ErrBadService)
	})

	t.Run("port out of range", func(t *testing.T) {
		_, err := b.Lookup(ctx, "::1", "70000", dual)
		assert.ErrorIs(t, err, ErrBadService)
	})
}

func TestShapeCandidatesWithoutAll(t *testing.T) {
	ips := []netip.Addr{netip.MustParseAddr("192.0.2.1"), netip.MustParseAddr("2001:db8::1")}
	h := Hints{Family: FamilyIPv6, Type: SockStream, Flags: HintV4Mapped}
	got := shapeCandidates(ips, 80, h)
	require.Len(t, got, 1)
	assert.Equal(t, "[2001:db8::1]:80", got[0].Endpoint.String())

	h.Flags |= HintAll
	got = shapeCandidates(ips, 80, h)
	require.Len(t, got, 2)
	assert.True(t, got[0].Endpoint.IsV4Mapped())
}

func TestFilterAddrConfig(t *testing.T) {
	ips := []netip.Addr{netip.MustParseAddr("192.0.2.1"), netip.MustParseAddr("2001:db8::1")}
	got, err := filterAddrConfig(ips, func() (bool, bool, error) { return true, false, nil })
	require.NoError(t, err)
	assert.Equal(t, ips[:1], got)
	assert.Len(t, ips, 2)
}
