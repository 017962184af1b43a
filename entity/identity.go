package entity

import "time"

// Role controls what an authenticated caller may do.
// Role hierarchy: RoleMember < RoleStaff < RoleAdmin.
type Role string

const (
	RoleMember Role = "member" // can redeem tokens and read own attendance
	RoleStaff  Role = "staff"  // can additionally read attendance for own organizations
	RoleAdmin  Role = "admin"  // can issue and deactivate tokens for own organizations
)

// Identity is the authenticated-identity claim resolved by the
// authenticate middleware. It is trusted as already verified; the core
// never re-checks credentials.
type Identity struct {
	UserId          string    `json:"user_id" bson:"user_id"`
	Name            string    `json:"name" bson:"name"`
	Token           string    `json:"-" bson:"token"`
	Role            Role      `json:"role" bson:"role"`
	OrganizationIds []string  `json:"organization_ids" bson:"organization_ids"`
	RegisteredAt    time.Time `json:"registered_at" bson:"registered_at"`
}

func (i *Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

func (i *Identity) IsStaff() bool {
	return i.Role == RoleStaff || i.Role == RoleAdmin
}

// MemberOf checks organization membership. An empty list means the
// identity belongs to no organization, never to all of them.
func (i *Identity) MemberOf(orgId string) bool {
	for _, id := range i.OrganizationIds {
		if id == orgId {
			return true
		}
	}
	return false
}

// CanManage reports whether the identity holds administrative capability
// over a scope. For session scopes the caller passes the owning
// organization id resolved from the directory.
func (i *Identity) CanManage(orgId string) bool {
	return i.IsAdmin() && i.MemberOf(orgId)
}
