package domain

// Role identifies what kind of participant is acting on a damage.
type Role string

const (
	RoleTenant        Role = "tenant"
	RoleObjectOwner   Role = "object_owner"
	RolePropertyAdmin Role = "property_admin"
	RoleJanitor       Role = "janitor"
	RoleCompany       Role = "company"
	RoleGuest         Role = "guest"
)

// AllRoles lists every known role.
func AllRoles() []Role {
	return []Role{RoleTenant, RoleObjectOwner, RolePropertyAdmin, RoleJanitor, RoleCompany, RoleGuest}
}

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleTenant, RoleObjectOwner, RolePropertyAdmin, RoleJanitor, RoleCompany, RoleGuest:
		return true
	}
	return false
}

// IsOwnerSide groups the roles that act on behalf of the property owner.
func (r Role) IsOwnerSide() bool {
	return r == RoleObjectOwner || r == RolePropertyAdmin || r == RoleJanitor
}

// Actor is the authenticated participant performing an operation.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Party is the side currently driving a damage towards the company.
type Party string

const (
	PartyOwner  Party = "owner"
	PartyTenant Party = "tenant"
)

// PartyOf maps a role to the party it belongs to. Companies and guests have none.
func PartyOf(r Role) (Party, bool) {
	switch {
	case r == RoleTenant:
		return PartyTenant, true
	case r.IsOwnerSide():
		return PartyOwner, true
	}
	return "", false
}
