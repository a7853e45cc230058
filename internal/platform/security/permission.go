package security

import "strings"

// WildcardPermission grants everything.
const WildcardPermission = "*"

// HasPermission reports whether the claims grant permission. A granted
// "*" matches anything and "orders:*" matches every "orders:<action>".
func (c *Claims) HasPermission(permission string) bool {
	for _, granted := range c.Permissions {
		if permissionMatches(granted, permission) {
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether any of the permissions is granted.
func (c *Claims) HasAnyPermission(permissions ...string) bool {
	for _, p := range permissions {
		if c.HasPermission(p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every permission is granted.
func (c *Claims) HasAllPermissions(permissions ...string) bool {
	for _, p := range permissions {
		if !c.HasPermission(p) {
			return false
		}
	}
	return true
}

func permissionMatches(granted, required string) bool {
	if granted == WildcardPermission || granted == required {
		return true
	}
	if resource, ok := strings.CutSuffix(granted, ":*"); ok {
		return strings.HasPrefix(required, resource+":")
	}
	return false
}
