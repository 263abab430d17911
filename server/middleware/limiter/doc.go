// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package limiter is a middleware that rate limits the JSON API per client network.

Every client network (an IPv4 /24 or IPv6 /48 by default) gets its own token
bucket. Requests beyond the bucket are answered with 429 and a Retry-After
header. The limit protects the translation service quota, which is shared by
all users of an instance.
*/
package limiter
