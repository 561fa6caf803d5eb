package domain

import "time"

// Ticket is the damage aggregate. Status is written only by the workflow engine.
type Ticket struct {
	ID                 string
	Number             int64
	Title              string
	Description        string
	DeviceAffected     bool
	BarCode            string
	CategoryID         *string
	FloorPlanImage     string
	LocationImage      string
	InternalReference  string
	JanitorLoopedIn    bool
	Deleted            bool
	ReporterID         string
	ReporterRole       Role
	ApartmentID        string
	PreferredCompanyID *string
	AssignedCompanyID  *string
	CompanyAssignedBy  *string
	Status             Status
	Party              Party
	ScheduledAt        *time.Time
	RepairSignature    string
	RepairConfirmedAt  *time.Time
	Images             []Attachment
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsAssignedTo reports whether companyID is the assigned company.
func (t *Ticket) IsAssignedTo(companyID string) bool {
	return t.AssignedCompanyID != nil && *t.AssignedCompanyID == companyID
}

// Clone returns a deep copy safe to mutate independently.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	cp.CategoryID = cloneString(t.CategoryID)
	cp.PreferredCompanyID = cloneString(t.PreferredCompanyID)
	cp.AssignedCompanyID = cloneString(t.AssignedCompanyID)
	cp.CompanyAssignedBy = cloneString(t.CompanyAssignedBy)
	cp.ScheduledAt = cloneTime(t.ScheduledAt)
	cp.RepairConfirmedAt = cloneTime(t.RepairConfirmedAt)
	cp.Images = append([]Attachment(nil), t.Images...)
	return &cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
