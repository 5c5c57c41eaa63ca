// Package goSession manages the lifecycle of a client-side authentication
// session: it knows whether the user is signed in, keeps the bearer token fresh
// without interrupting the user, detects expiry, and answers role and
// permission questions for the rest of the application.
//
// A [Session] is built once through [Builder.Build] and is safe for concurrent
// use. All state transitions go through the Session; the store, the refresh
// coordinator and the monitor are collaborators it owns.
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Session], [Builder], [Config],
// the [Backend] and [TokenStore] contracts, and value types such as
// [UserRecord] and [MetricsSnapshot]. Refresh coordination lives in refresh/,
// periodic checks in monitor/, token inspection in jwt/, and audit dispatch
// under internal/.
//
// # What this package must NOT do
//
//   - Verify token signatures. That is the backend's job; the client only
//     reads the expiry claim.
//   - Persist the user record. Only the token is stored.
//   - Retry a login. Only refreshes are retried, and only up to the
//     configured ceiling.
//
// # Invariant
//
// A user record is held if and only if a non-expired token is in the store.
// Every path that clears one clears the other inside the same critical
// section.
package goSession
