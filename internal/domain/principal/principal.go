// Package principal defines the caller identity model for authorization.
package principal

// Role represents the authorization level of a caller.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// ValidRoles is the set of all valid caller roles.
var ValidRoles = map[Role]bool{
	RoleAdmin:  true,
	RoleEditor: true,
	RoleViewer: true,
}

// Principal is an authenticated caller: an id, the organizations it may
// query, and the roles it holds.
type Principal struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Organizations []int64 `json:"organizations"`
	Roles         []Role  `json:"roles"`
}

// HasRole reports whether the principal holds the required role.
// The admin role satisfies any requirement.
func (p *Principal) HasRole(required Role) bool {
	for _, r := range p.Roles {
		if r == RoleAdmin || r == required {
			return true
		}
	}
	return false
}

// AllowsOrganization reports whether orgID is in the principal's allow-list.
func (p *Principal) AllowsOrganization(orgID int64) bool {
	for _, id := range p.Organizations {
		if id == orgID {
			return true
		}
	}
	return false
}
