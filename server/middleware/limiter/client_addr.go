// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package limiter

import (
	"net/http"
	"net/netip"
	"strings"
)

// clientAddr returns the address a request is attributed to.
//
// The peer address is used unless the peer is on a loopback or private network,
// in which case it is taken to be a reverse proxy: X-Real-IP is preferred,
// then the last hop of X-Forwarded-For.
func clientAddr(r *http.Request) (netip.Addr, bool) {
	peer, err := netip.ParseAddrPort(r.RemoteAddr)
	if err != nil {
		return netip.Addr{}, false
	}

	addr := peer.Addr().Unmap()
	if !addr.IsLoopback() && !addr.IsPrivate() {
		return addr, true
	}

	if forwarded, ok := proxiedAddr(r.Header); ok {
		return forwarded, true
	}

	return addr, true
}

func proxiedAddr(h http.Header) (netip.Addr, bool) {
	candidate := strings.TrimSpace(h.Get("X-Real-IP"))

	if candidate == "" {
		if xff := h.Get("X-Forwarded-For"); xff != "" {
			candidate = strings.TrimSpace(xff[strings.LastIndexByte(xff, ',')+1:])
		}
	}

	addr, err := netip.ParseAddr(candidate)
	if err != nil {
		return netip.Addr{}, false
	}

	return addr.Unmap(), true
}

// networkOf masks addr to the configured prefix length for its family.
func networkOf(addr netip.Addr, ipv4Bits, ipv6Bits int) netip.Prefix {
	bits := ipv6Bits
	if addr.Is4() {
		bits = ipv4Bits
	}

	prefix, err := addr.Prefix(bits)
	if err != nil {
		// Out-of-range prefix lengths are rejected by config validation.
		return netip.PrefixFrom(addr, addr.BitLen())
	}

	return prefix
}
