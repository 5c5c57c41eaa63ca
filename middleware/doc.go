// Package middleware adapts a goSession.Session to net/http.
//
// # Outgoing requests
//
// [Transport] attaches the session's bearer token to every request. When the
// server answers 401 it asks the session for one refresh and replays the
// request once. Concurrent 401s share a single backend refresh.
//
// # Local handlers
//
//   - [RequireAuthenticated] rejects requests while no session is active.
//   - [RequireRole] admits users at or above a role.
//   - [RequirePermission] admits users whose role grants a permission.
//
// The guards read the in-memory session only. They never contact the backend.
package middleware
