// Package directus is a small client for the Directus REST API covering what server rendering needs:
// exchanging refresh tokens, logging in and out, and reading items.
//
// # Auth modes
//
// A [Client] in [ModeJSON] keeps the refresh token in its [Storage] and sends it in the body of
// POST /auth/refresh. This is the server-side mode: each request builds a client over a fresh
// [MemoryStorage] seeded from the incoming refresh-token cookie, so nothing leaks between requests.
//
// A [Client] in [ModeCookie] never sees the refresh token. Directus keeps it in an httponly cookie that
// the HTTP client's cookie jar carries. This is the browser-side mode, paired with the persistent
// [SQLiteStorage] standing in for local storage.
//
// # Storage keys
//
// The access token, its lifetime and absolute expiry, and (JSON mode) the refresh token are stored under
// [KeyToken], [KeyExpires], [KeyExpiresAt] and [KeyRefreshToken].
//
// # Items
//
// [Client.ReadItems], [Client.ReadItem] and [Client.ReadSingleton] read content. When an access token
// is stored, requests are authenticated through an [oauth2] transport carrying it as a bearer token.
package directus
