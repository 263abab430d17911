// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package idgen generates identifiers for log correlation and form sessions.
*/
package idgen

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
)

// Make makes a short request ID with a 6 character timestamp and 3 bytes of entropy.
//
// Request IDs only need to be unique enough to correlate log lines.
func Make() string {
	return maketime(time.Now()) + random(3)
}

// Session makes an unguessable form session ID, a random (version 4) UUID.
func Session() string {
	return uuid.NewString()
}

// Child derives an ID for an outbound call made while serving parent.
func Child(parent string) string {
	if parent == "" {
		return Make()
	}

	return parent + "-" + random(3)
}

func random(n int) string {
	b := make([]byte, n)

	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(b)

	return base64.RawURLEncoding.EncodeToString(b)
}

func maketime(t time.Time) string {
	return t.Format("150405")
}
