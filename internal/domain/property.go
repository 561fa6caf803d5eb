package domain

import "time"

// Attachment references a stored document (image, offer pdf, defect photo).
type Attachment struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	StorageKey string    `json:"storage_key"`
	URL        string    `json:"url"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

// Apartment is the property unit a damage belongs to, with its members.
type Apartment struct {
	ID         string
	Name       string
	Active     bool
	OwnerID    string
	AdminIDs   []string
	JanitorIDs []string
	TenantIDs  []string
}

// HasMember reports whether actorID belongs to the apartment in the given role.
func (a *Apartment) HasMember(actor Actor) bool {
	switch actor.Role {
	case RoleObjectOwner:
		return a.OwnerID == actor.ID
	case RolePropertyAdmin:
		return contains(a.AdminIDs, actor.ID)
	case RoleJanitor:
		return contains(a.JanitorIDs, actor.ID)
	case RoleTenant:
		return contains(a.TenantIDs, actor.ID)
	}
	return false
}

// Company is a repair company that may receive damage requests.
type Company struct {
	ID     string
	Name   string
	Email  string
	Active bool
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
