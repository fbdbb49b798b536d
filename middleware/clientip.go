package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	goGuard "github.com/MrEthical07/goGuard"
)

// ClientIPResolver derives the client address of a request. Forwarding
// headers are honoured only when the direct peer is a trusted proxy.
type ClientIPResolver struct {
	trusted []netip.Prefix
}

// NewClientIPResolver parses trusted proxies as bare addresses or CIDR
// blocks. An empty list trusts nobody and RemoteAddr is always used.
func NewClientIPResolver(trustedProxies []string) (*ClientIPResolver, error) {
	prefixes, err := goGuard.ParseTrustedProxies(trustedProxies)
	if err != nil {
		return nil, err
	}
	return &ClientIPResolver{trusted: prefixes}, nil
}

// ClientIP returns the canonical client address for r.
//
// When the peer is trusted, X-Forwarded-For is walked right to left and the
// first untrusted hop wins. If every hop is trusted the leftmost one is used.
// X-Real-IP is consulted only when X-Forwarded-For carries no valid address.
func (c *ClientIPResolver) ClientIP(r *http.Request) string {
	remote, ok := remoteAddr(r.RemoteAddr)
	if !ok {
		return r.RemoteAddr
	}
	if c == nil || !c.isTrusted(remote) {
		return remote.String()
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := splitHops(xff)
		for i := len(hops) - 1; i >= 0; i-- {
			if !c.isTrusted(hops[i]) {
				return hops[i].String()
			}
		}
		if len(hops) > 0 {
			return hops[0].String()
		}
	}

	if real, ok := parseAddr(r.Header.Get("X-Real-IP")); ok {
		return real.String()
	}
	return remote.String()
}

func (c *ClientIPResolver) isTrusted(addr netip.Addr) bool {
	for _, p := range c.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// splitHops flattens repeated X-Forwarded-For headers in order and drops
// entries that are not addresses.
func splitHops(values []string) []netip.Addr {
	var hops []netip.Addr
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if addr, ok := parseAddr(part); ok {
				hops = append(hops, addr)
			}
		}
	}
	return hops
}

func remoteAddr(s string) (netip.Addr, bool) {
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	return parseAddr(s)
}

func parseAddr(s string) (netip.Addr, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}, false
	}
	// Zones never identify a remote client.
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
