// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package authenticated

import (
	"errors"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
)

// domain separation key. can be anything. if you change it, past tokens will become invalid.
const Implicit = "newbee autofill form session"

var (
	ErrNoSecretKey  = errors.New("no secret key loaded")
	ErrInvalidToken = errors.New("invalid token")
)

func NewSecretKeyHex() string {
	return paseto.NewV4AsymmetricSecretKey().ExportHex()
}

// v4.public validator
type Validator struct {
	SecretKey paseto.V4AsymmetricSecretKey
	loaded    bool
}

func (psk *Validator) LoadSecretKeyFromHex(hex string) (err error) {
	psk.SecretKey, err = paseto.NewV4AsymmetricSecretKeyFromHex(hex)
	if err != nil {
		return
	}

	psk.loaded = true
	// public key can be derived efficiently from SecretKey, so it's not calculated here
	return
}

// Generate replaces the secret key with a fresh one. Tokens signed before
// the call no longer verify.
func (psk *Validator) Generate() {
	psk.SecretKey = paseto.NewV4AsymmetricSecretKey()
	psk.loaded = true
}

// Loaded reports whether a secret key has been loaded or generated.
func (psk *Validator) Loaded() bool {
	return psk.loaded
}

// Sign returns a v4.public token for subject carrying the string claims,
// valid for ttl.
func (psk *Validator) Sign(subject string, claims map[string]string, ttl time.Duration) (string, error) {
	if !psk.loaded {
		return "", ErrNoSecretKey
	}

	now := time.Now()

	token := paseto.NewToken()
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(ttl))
	token.SetSubject(subject)

	for key, value := range claims {
		token.SetString(key, value)
	}

	return token.V4Sign(psk.SecretKey, []byte(Implicit)), nil
}

// Parse verifies a token signed by [Validator.Sign] for subject and returns
// the requested string claim.
func (psk *Validator) Parse(subject, encoded, claim string) (string, error) {
	if !psk.loaded {
		return "", ErrNoSecretKey
	}

	parser := paseto.MakeParser([]paseto.Rule{
		paseto.NotExpired(),
		paseto.ValidAt(time.Now()),
		paseto.Subject(subject),
	})

	token, err := parser.ParseV4Public(psk.SecretKey.Public(), encoded, []byte(Implicit))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	value, err := token.GetString(claim)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	return value, nil
}
