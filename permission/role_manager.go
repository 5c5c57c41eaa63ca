package permission

import (
	"errors"
	"sync"
)

type roleEntry struct {
	rank int
	mask Mask64
}

// RoleManager maps roles to a privilege rank and a permission set.
//
// Lookups are safe for concurrent use. Registration is expected to happen
// during initialization, followed by [RoleManager.Freeze].
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[string]roleEntry
	frozen bool
}

// NewRoleManager creates a RoleManager resolving permission names through registry.
func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[string]roleEntry),
	}
}

// RegisterRole adds roleName at rank with the listed permissions. Ranks must
// be positive and unique so that the hierarchy stays a total order.
func (rm *RoleManager) RegisterRole(roleName string, rank int, permissionNames []string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return errors.New("role manager frozen")
	}
	if roleName == "" {
		return errors.New("role name empty")
	}
	if rank <= 0 {
		return errors.New("role rank must be > 0")
	}
	if _, exists := rm.roles[roleName]; exists {
		return errors.New("role already registered")
	}
	for _, entry := range rm.roles {
		if entry.rank == rank {
			return errors.New("role rank already taken")
		}
	}

	var mask Mask64
	for _, perm := range permissionNames {
		bit, ok := rm.registry.Bit(perm)
		if !ok {
			return errors.New("permission not registered: " + perm)
		}
		mask.Set(bit)
	}

	rm.roles[roleName] = roleEntry{rank: rank, mask: mask}
	return nil
}

// Rank returns the privilege rank of roleName, or false for unknown roles.
func (rm *RoleManager) Rank(roleName string) (int, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	entry, ok := rm.roles[roleName]
	return entry.rank, ok
}

// AtLeast reports whether role is at least as privileged as required.
// Unknown roles on either side are never satisfied.
func (rm *RoleManager) AtLeast(role, required string) bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	have, ok := rm.roles[role]
	if !ok {
		return false
	}
	want, ok := rm.roles[required]
	if !ok {
		return false
	}
	return have.rank >= want.rank
}

// Mask returns the permission set of roleName. Unknown roles resolve to the
// empty set.
func (rm *RoleManager) Mask(roleName string) Mask64 {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.roles[roleName].mask
}

// HasPermission reports whether roleName grants permission.
func (rm *RoleManager) HasPermission(roleName, permission string) bool {
	bit, ok := rm.registry.Bit(permission)
	if !ok {
		return false
	}
	return rm.Mask(roleName).Has(bit)
}

// Permissions lists the permission names granted to roleName.
func (rm *RoleManager) Permissions(roleName string) []string {
	return rm.registry.Names(rm.Mask(roleName))
}

// Freeze prevents further role registration.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

// Count returns the number of registered roles.
func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}
