// Package store provides credential store adapters: persistent, synchronous
// holders of exactly one opaque bearer token.
//
// # Implementations
//
//   - [Memory]: process-local, for tests and short-lived tools.
//   - [File]: a JSON file with 0600 permissions, written atomically via
//     rename. Survives restarts and can be watched for changes made by other
//     processes sharing the file.
//   - [Redis]: one key in Redis, for clients that share a session across hosts.
//
// All adapters report an absent token as ("", nil). Writes replace the token
// wholesale; there is no partial-write visibility.
//
// # What this package must NOT do
//
//   - Decode, validate, or refresh tokens.
//   - Import goSession.
package store
