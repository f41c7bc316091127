package auth

// UserRole is a role name carried in token claims.
type UserRole = string

const (
	// RoleUser can read and manage their own documents.
	RoleUser UserRole = "User"
	// RoleAdmin can additionally manage document types and other users' documents.
	RoleAdmin UserRole = "Admin"
)

// RoleSet is a set of role names with order-independent membership checks.
type RoleSet map[string]struct{}

// NewRoleSet builds a set from role names, ignoring empties.
func NewRoleSet(roles ...string) RoleSet {
	set := make(RoleSet, len(roles))
	for _, role := range roles {
		if role != "" {
			set[role] = struct{}{}
		}
	}
	return set
}

// Contains reports membership of a single role.
func (s RoleSet) Contains(role string) bool {
	_, ok := s[role]
	return ok
}

// ContainsAny reports whether any of the given roles is in the set.
func (s RoleSet) ContainsAny(roles []string) bool {
	for _, role := range roles {
		if s.Contains(role) {
			return true
		}
	}
	return false
}

// List returns the members; order is unspecified.
func (s RoleSet) List() []string {
	out := make([]string, 0, len(s))
	for role := range s {
		out = append(out, role)
	}
	return out
}

// HasAnyRole reports whether the held roles intersect the required roles.
// An empty required set means no role restriction.
func HasAnyRole(held, required []string) bool {
	if len(required) == 0 {
		return true
	}
	return NewRoleSet(held...).ContainsAny(required)
}
