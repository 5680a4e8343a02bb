package utils

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/pkg/errors"
)

// ClientIP returns the host part of the request's remote address. Forwarded headers are only folded into
// RemoteAddr by the router when the peer is a trusted proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// TrustedProxies is the set of peers allowed to report the client address through forwarding headers.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies reads CIDR ranges or bare addresses.
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	proxies := make(TrustedProxies, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid trusted proxy range %q", entry)
			}
			proxies = append(proxies, prefix.Masked())
			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid trusted proxy address %q", entry)
		}
		addr = addr.Unmap()
		proxies = append(proxies, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return proxies, nil
}

// Contains reports whether ip falls inside any trusted range. Unparseable input is never trusted.
func (tp TrustedProxies) Contains(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range tp {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ForwardedClientIP walks X-Forwarded-For from the nearest hop outwards and returns the first address
// that is not a trusted proxy. Entries left of it were written by the client and are ignored. A chain made
// only of trusted hops yields its first entry.
func (tp TrustedProxies) ForwardedClientIP(forwardedFor []string) string {
	var hops []string
	for _, value := range forwardedFor {
		for _, hop := range strings.Split(value, ",") {
			hop = strings.TrimSpace(hop)
			if hop != "" {
				hops = append(hops, hop)
			}
		}
	}

	for i := len(hops) - 1; i >= 0; i-- {
		if !tp.Contains(hops[i]) {
			return hops[i]
		}
	}
	if len(hops) > 0 {
		return hops[0]
	}
	return ""
}
