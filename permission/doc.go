// Package permission holds the role hierarchy and the role to permission-set
// mapping used for client-side authorization decisions.
//
// # Model
//
// Permissions are registered once in a [Registry], which assigns each name a
// bit in a [Mask64]. A [RoleManager] maps every role to a rank in a total
// order (higher rank means more privilege) and to the mask of permissions it
// grants. [DefaultRoleManager] returns the built-in player < venue_owner <
// admin hierarchy.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. Decisions are
// advisory UI gating only; the backend remains the enforcement point.
//
// # What this package must NOT do
//
//   - Access the network, the token store, or session state.
//   - Return errors from lookups. Unknown roles and permissions simply grant nothing.
//   - Import goSession.
package permission
