// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package middleware provides the HTTP middleware chain of the autofill server.

Route definitions are centralized in router.DefineRoutes. Handlers there
return an error and are wrapped with [CatchError], which turns the error into
a JSON response and logs the request.
*/
package middleware
