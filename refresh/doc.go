// Package refresh implements the single-flight refresh coordinator.
//
// # Guarantees
//
//   - At most one backend refresh is in flight. Callers arriving while one is
//     running join it and receive its outcome.
//   - Consecutive failures are counted. Reaching the configured ceiling
//     escalates exactly once through the exhaustion callback.
//   - A refresh that completes after [Coordinator.Reset] is discarded: it
//     writes no token and touches no counter. Reset marks every session
//     boundary (login, logout, forced expiry), so a slow refresh can never
//     resurrect a cleared token.
//
// # What this package must NOT do
//
//   - Decide whether a refresh is needed (the session monitor does that).
//   - Clear tokens or user state itself; escalation is delegated.
//   - Import goSession.
package refresh
