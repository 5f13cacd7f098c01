package enums

import "fmt"

// UserRole is the actor role carried in access tokens.
type UserRole string

const (
	UserRoleBuyer  UserRole = "buyer"
	UserRoleVendor UserRole = "vendor"
	UserRoleAdmin  UserRole = "admin"
)

// String implements fmt.Stringer.
func (r UserRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known UserRole.
func (r UserRole) IsValid() bool {
	return r == UserRoleBuyer || r == UserRoleVendor || r == UserRoleAdmin
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	switch UserRole(value) {
	case UserRoleBuyer:
		return UserRoleBuyer, nil
	case UserRoleVendor:
		return UserRoleVendor, nil
	case UserRoleAdmin:
		return UserRoleAdmin, nil
	default:
		return "", fmt.Errorf("invalid user role %q", value)
	}
}
