package resolver

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsLiteralIPv4(t *testing.T) {
	require.True(t, IsLiteralIPv4("1.1.1.1"))
	require.True(t, IsLiteralIPv4("255.255.255.255"))
	require.False(t, IsLiteralIPv4("256.1.1.1"))
	require.False(t, IsLiteralIPv4("example.invalid"))
	require.False(t, IsLiteralIPv4("::1"))
}

func TestResolveLiteralIsPassthrough(t *testing.T) {
	got, err := Resolve(context.Background(), nil, "8.8.8.8")
	require.NoError(t, err)
	require.Equal(t, "8.8.8.8", got)
}

type fakeLookup struct {
	addrs []net.IPAddr
	err   error
}

func (f fakeLookup) LookupIPAddr(context.Context, string) ([]net.IPAddr, error) {
	return f.addrs, f.err
}

func TestResolveHostnameReturnsFirstIPv4(t *testing.T) {
	lk := fakeLookup{addrs: []net.IPAddr{
		{IP: net.ParseIP("::1")},
		{IP: net.ParseIP("93.184.216.34")},
	}}
	got, err := Resolve(context.Background(), lk, "example.com")
	require.NoError(t, err)
	require.Equal(t, "93.184.216.34", got)
}

func TestResolveFailureWrapsSentinel(t *testing.T) {
	lk := fakeLookup{err: net.ErrClosed}
	_, err := Resolve(context.Background(), lk, "example.invalid")
	require.ErrorIs(t, err, ErrDNSFailure)
}

func TestResolveNoIPv4Found(t *testing.T) {
	lk := fakeLookup{addrs: []net.IPAddr{{IP: net.ParseIP("::1")}}}
	_, err := Resolve(context.Background(), lk, "v6only.example")
	require.ErrorIs(t, err, ErrDNSFailure)
}
