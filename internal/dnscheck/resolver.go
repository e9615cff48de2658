package dnscheck

import (
	"context"
	"net"
)

// Resolver is a single DNS server the pool can query. Implementations
// must be safe for concurrent use.
type Resolver interface {
	// Name identifies the resolver in diagnostics and logs.
	Name() string
	LookupCNAME(ctx context.Context, host string) (string, error)
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

type netResolver struct {
	name     string
	resolver *net.Resolver
}

// NewResolver returns a resolver pinned to a specific DNS server address
// (host:port). The pure-Go resolver is forced so queries bypass any
// local caching layer and always reflect the server's current answer.
func NewResolver(addr string) Resolver {
	dialer := &net.Dialer{}
	return &netResolver{
		name: addr,
		resolver: &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
				return dialer.DialContext(ctx, network, addr)
			},
		},
	}
}

// NewSystemResolver returns a resolver backed by the host's default DNS
// configuration. It is queried first so answers match what the local
// environment sees.
func NewSystemResolver() Resolver {
	return &netResolver{name: "system", resolver: net.DefaultResolver}
}

func (r *netResolver) Name() string {
	return r.name
}

func (r *netResolver) LookupCNAME(ctx context.Context, host string) (string, error) {
	return r.resolver.LookupCNAME(ctx, host)
}

func (r *netResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	return r.resolver.LookupTXT(ctx, name)
}
