// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package requests

import (
	"crypto/tls"
	"net/http"
	"time"
)

const (
	// clientSessionCacheSize defines the size of the TLS session cache.
	clientSessionCacheSize = 20

	// maxIdleConnsPerHost defines maximum idle connections to keep per host.
	maxIdleConnsPerHost = 8

	// defaultTimeout bounds a whole translation request, including reading the body.
	defaultTimeout = 10 * time.Second
)

// DefaultHTTPClient is a pre-configured http.Client shared by clients that do not supply their own.
var DefaultHTTPClient = NewHTTPClient(defaultTimeout)

// NewHTTPClient returns an http.Client that reuses TLS sessions, honours proxy
// environment variables, and gives up after timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				ClientSessionCache: tls.NewLRUClientSessionCache(clientSessionCacheSize),
				MinVersion:         tls.VersionTLS12,
			},
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: maxIdleConnsPerHost,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
