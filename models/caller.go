package models

// Caller is the authenticated identity a request acts on behalf of. A nil
// *Caller is an anonymous visitor.
type Caller struct {
	ID   uint
	Name string
	Role UserRole
}

func (c *Caller) HasRole(roles ...UserRole) bool {
	if c == nil {
		return false
	}
	for _, role := range roles {
		if c.Role == role {
			return true
		}
	}
	return false
}
