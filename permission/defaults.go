package permission

import "fmt"

// Built-in roles, ordered by increasing privilege.
const (
	RolePlayer     = "player"
	RoleVenueOwner = "venue_owner"
	RoleAdmin      = "admin"
)

// Built-in permission tags.
const (
	PermVenueBrowse       = "venue.browse"
	PermBookingCreate     = "booking.create"
	PermProfileEdit       = "profile.edit"
	PermVenueCreate       = "venue.create"
	PermVenueEdit         = "venue.edit"
	PermVenueBookingsView = "venue.bookings.view"
	PermVenueApprove      = "venue.approve"
	PermVenueReject       = "venue.reject"
	PermUserManage        = "user.manage"
	PermAdminDashboard    = "admin.dashboard"
)

// RoleDef declares one role of a hierarchy.
type RoleDef struct {
	Name        string   `yaml:"name"`
	Rank        int      `yaml:"rank"`
	Permissions []string `yaml:"permissions"`
}

// DefaultRoles returns the player < venue_owner < admin hierarchy. Each role
// grants everything the role below it grants.
func DefaultRoles() []RoleDef {
	player := []string{PermVenueBrowse, PermBookingCreate, PermProfileEdit}
	owner := append(append([]string{}, player...), PermVenueCreate, PermVenueEdit, PermVenueBookingsView)
	admin := append(append([]string{}, owner...), PermVenueApprove, PermVenueReject, PermUserManage, PermAdminDashboard)

	return []RoleDef{
		{Name: RolePlayer, Rank: 1, Permissions: player},
		{Name: RoleVenueOwner, Rank: 2, Permissions: owner},
		{Name: RoleAdmin, Rank: 3, Permissions: admin},
	}
}

// NewRoleManagerFromDefs registers every permission referenced by defs, then
// every role, and freezes both the registry and the manager.
func NewRoleManagerFromDefs(defs []RoleDef) (*RoleManager, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("at least one role required")
	}

	registry := NewRegistry()
	for _, def := range defs {
		for _, perm := range def.Permissions {
			if _, ok := registry.Bit(perm); ok {
				continue
			}
			if _, err := registry.Register(perm); err != nil {
				return nil, fmt.Errorf("register permission %q: %w", perm, err)
			}
		}
	}
	registry.Freeze()

	rm := NewRoleManager(registry)
	for _, def := range defs {
		if err := rm.RegisterRole(def.Name, def.Rank, def.Permissions); err != nil {
			return nil, fmt.Errorf("register role %q: %w", def.Name, err)
		}
	}
	rm.Freeze()
	return rm, nil
}

// DefaultRoleManager returns a frozen RoleManager for [DefaultRoles].
func DefaultRoleManager() *RoleManager {
	rm, err := NewRoleManagerFromDefs(DefaultRoles())
	if err != nil {
		panic("permission: default roles invalid: " + err.Error())
	}
	return rm
}
