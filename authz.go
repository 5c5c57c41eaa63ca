package goSession

import "github.com/MrEthical07/goSession/permission"

// HasRole reports whether the current user's role is at least as privileged
// as required. It is false with no user or with an unknown role on either
// side. HasRole never blocks on I/O and is safe in any state.
func (s *Session) HasRole(required string) bool {
	s.mu.RLock()
	user := s.user
	s.mu.RUnlock()
	if user == nil {
		return false
	}
	return s.roles.AtLeast(user.Role, required)
}

// HasPermission reports whether the current user's role grants perm.
func (s *Session) HasPermission(perm string) bool {
	s.mu.RLock()
	user := s.user
	s.mu.RUnlock()
	if user == nil {
		return false
	}
	return s.roles.HasPermission(user.Role, perm)
}

// Permissions lists what the current user may do. It is empty without a user.
func (s *Session) Permissions() []string {
	s.mu.RLock()
	user := s.user
	s.mu.RUnlock()
	if user == nil {
		return nil
	}
	return s.roles.Permissions(user.Role)
}

// Roles returns the frozen role table.
func (s *Session) Roles() *permission.RoleManager {
	return s.roles
}
