package domain

// Role represents an access-level tag granted to an identity.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleEOOwner    Role = "eo-owner"
	RoleSuperAdmin Role = "super-admin"
	RoleEventPIC   Role = "event-pic"
	RoleCrew       Role = "crew"
	RoleFinance    Role = "finance"
	RoleCashier    Role = "cashier"
)

// rolePriority orders roles for default dashboard selection; earlier wins.
var rolePriority = []Role{
	RoleEventPIC,
	RoleEOOwner,
	RoleSuperAdmin,
	RoleCrew,
	RoleFinance,
	RoleCashier,
	RoleCustomer,
}

var knownRoles = map[Role]struct{}{
	RoleCustomer:   {},
	RoleEOOwner:    {},
	RoleSuperAdmin: {},
	RoleEventPIC:   {},
	RoleCrew:       {},
	RoleFinance:    {},
	RoleCashier:    {},
}

// ValidRole reports whether the value belongs to the closed role set.
func ValidRole(r Role) bool {
	_, ok := knownRoles[r]
	return ok
}

// ParseRoles maps arbitrary backend input into the closed role set.
// Unknown values are discarded and duplicates collapsed; an empty result
// defaults to {customer}.
func ParseRoles(raw []string) []Role {
	seen := make(map[Role]struct{}, len(raw))
	roles := make([]Role, 0, len(raw))
	for _, value := range raw {
		role := Role(value)
		if !ValidRole(role) {
			continue
		}
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		return []Role{RoleCustomer}
	}
	return roles
}

// ActiveRole resolves the highest-priority role the identity holds.
func ActiveRole(roles []Role) Role {
	held := make(map[Role]struct{}, len(roles))
	for _, role := range roles {
		held[role] = struct{}{}
	}
	for _, candidate := range rolePriority {
		if _, ok := held[candidate]; ok {
			return candidate
		}
	}
	return RoleCustomer
}

// ContainsRole reports whether the role set holds the given role.
func ContainsRole(roles []Role, role Role) bool {
	for _, held := range roles {
		if held == role {
			return true
		}
	}
	return false
}
