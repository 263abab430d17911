// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/user"
	"strconv"

	"github.com/rs/zerolog/log"

	config "codeberg.org/newbee/autofill/configs"
)

var errSocketOwner = errors.New("failed to set unix socket ownership")

// listen opens the unix socket when basic.unixSocket is set, otherwise host:port over TCP.
func listen() (net.Listener, error) {
	basic := config.Global.Basic

	if basic.UnixSocket != "" {
		ln, err := (&net.ListenConfig{}).Listen(context.Background(), "unix", basic.UnixSocket)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on unix socket %s: %w", basic.UnixSocket, err)
		}

		if err := prepareSocket(basic.UnixSocket, basic.UnixSocketUser, basic.UnixSocketGroup, basic.UnixSocketPermissions); err != nil {
			_ = ln.Close()

			return nil, err
		}

		log.Info().Str("socket", basic.UnixSocket).Msg("Listening on unix socket")

		return ln, nil
	}

	ln, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", net.JoinHostPort(basic.Host, basic.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s:%s: %w", basic.Host, basic.Port, err)
	}

	addr := ln.Addr().(*net.TCPAddr)

	log.Info().
		Str("address", addr.String()).
		Str("health", fmt.Sprintf("http://localhost:%d/healthz", addr.Port)).
		Msg("Listening")

	return ln, nil
}

// prepareSocket hands the socket file to owner and group, when given, and applies mode.
func prepareSocket(path, owner, group string, mode os.FileMode) error {
	uid, err := lookupID(owner, func(name string) (string, error) {
		u, err := user.Lookup(name)
		if err != nil {
			return "", err
		}

		return u.Uid, nil
	})
	if err != nil {
		return fmt.Errorf("%w: user %q: %w", errSocketOwner, owner, err)
	}

	gid, err := lookupID(group, func(name string) (string, error) {
		g, err := user.LookupGroup(name)
		if err != nil {
			return "", err
		}

		return g.Gid, nil
	})
	if err != nil {
		return fmt.Errorf("%w: group %q: %w", errSocketOwner, group, err)
	}

	if uid != -1 || gid != -1 {
		if err := os.Chown(path, uid, gid); err != nil {
			return fmt.Errorf("%w: %w", errSocketOwner, err)
		}
	}

	if err := os.Chmod(path, mode); err != nil {
		return fmt.Errorf("failed to set unix socket permissions: %w", err)
	}

	return nil
}

// lookupID turns a numeric ID or a name into an ID. An empty value yields -1,
// which os.Chown leaves unchanged.
func lookupID(value string, byName func(string) (string, error)) (int, error) {
	if value == "" {
		return -1, nil
	}

	if id, err := strconv.Atoi(value); err == nil {
		return id, nil
	}

	raw, err := byName(value)
	if err != nil {
		return -1, err
	}

	return strconv.Atoi(raw)
}
