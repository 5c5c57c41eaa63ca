// Package jwt reads and issues the bearer tokens a session carries.
//
// # Components
//
//   - [IsFresh] / [ExpiresAt]: the token inspector. Claims are decoded without
//     signature verification; the client only needs the expiry hint to decide
//     whether to refresh proactively. Verification stays with the backend.
//   - [Manager]: signs and verifies tokens. Only the reference backend and
//     tests use it; the session core never verifies signatures.
//
// # What this package must NOT do
//
//   - Perform I/O.
//   - Return errors from the inspector. Unparsable input is data: it is [Expired].
//   - Import goSession or any sibling package.
package jwt
