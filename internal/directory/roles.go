package directory

import "fmt"

// Role is a tenant-scoped role. It is a closed enum threaded explicitly
// through route definitions and guard contracts; roles are never
// inferred from URL text.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// ParseRole converts a wire string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("directory: unknown role %q", s)
	}
	return r, nil
}

// MembershipStatus is the lifecycle state of a membership. Only active
// memberships grant access; suspended is a soft-delete state.
type MembershipStatus string

const (
	StatusActive    MembershipStatus = "active"
	StatusInvited   MembershipStatus = "invited"
	StatusSuspended MembershipStatus = "suspended"
)

// Valid reports whether s is one of the known statuses.
func (s MembershipStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInvited, StatusSuspended:
		return true
	}
	return false
}

// ParseMembershipStatus converts a wire string into a MembershipStatus.
func ParseMembershipStatus(s string) (MembershipStatus, error) {
	st := MembershipStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("directory: unknown membership status %q", s)
	}
	return st, nil
}
