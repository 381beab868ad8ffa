package httpserver

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// clientIP is the address the login limiter keys on. X-Forwarded-For and X-Real-IP
// are only read when the connecting peer is a trusted proxy; the forwarded chain is
// walked from the right and the first hop that is not itself a trusted proxy wins.
func (h *Handler) clientIP(r *http.Request) string {
	peer := remoteHost(r.RemoteAddr)
	addr, err := netip.ParseAddr(peer)
	if err != nil || !h.trusted(addr) {
		return peer
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				// An unparsable hop was not written by a proxy we trust.
				return peer
			}
			if !h.trusted(hop) {
				return hop.Unmap().String()
			}
		}
		return peer
	}
	if xr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return xr.Unmap().String()
	}
	return peer
}

func (h *Handler) trusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range h.proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
