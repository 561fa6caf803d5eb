package domain

import "fmt"

// Status enumerates the lifecycle states of a damage.
type Status string

const (
	StatusTenantCreateDamage              Status = "TENANT_CREATE_DAMAGE"
	StatusObjectOwnerCreateDamage         Status = "OBJECT_OWNER_CREATE_DAMAGE"
	StatusOwnerSendToCompanyWithOffer     Status = "OWNER_SEND_TO_COMPANY_WITH_OFFER"
	StatusOwnerSendToCompanyWithoutOffer  Status = "OWNER_SEND_TO_COMPANY_WITHOUT_OFFER"
	StatusTenantSendToCompanyWithOffer    Status = "TENANT_SEND_TO_COMPANY_WITH_OFFER"
	StatusTenantSendToCompanyWithoutOffer Status = "TENANT_SEND_TO_COMPANY_WITHOUT_OFFER"
	StatusTenantCloseTheDamage            Status = "TENANT_CLOSE_THE_DAMAGE"
	StatusCompanyAcceptsDamageWithOffer   Status = "COMPANY_ACCEPTS_DAMAGE_WITH_OFFER"
	StatusCompanyAcceptsDamageWithout     Status = "COMPANY_ACCEPTS_DAMAGE_WITHOUT_OFFER"
	StatusCompanyRejectTheDamage          Status = "COMPANY_REJECT_THE_DAMAGE"
	StatusCompanyGiveOfferToTenant        Status = "COMPANY_GIVE_OFFER_TO_TENANT"
	StatusCompanyGiveOfferToOwner         Status = "COMPANY_GIVE_OFFER_TO_OWNER"
	StatusTenantAcceptsTheOffer           Status = "TENANT_ACCEPTS_THE_OFFER"
	StatusTenantRejectsTheOffer           Status = "TENANT_REJECTS_THE_OFFER"
	StatusOwnerAcceptsTheOffer            Status = "OWNER_ACCEPTS_THE_OFFER"
	StatusOwnerRejectsTheOffer            Status = "OWNER_REJECTS_THE_OFFER"
	StatusCompanyScheduleDate             Status = "COMPANY_SCHEDULE_DATE"
	StatusTenantAcceptsDate               Status = "TENANT_ACCEPTS_DATE"
	StatusTenantRejectsDate               Status = "TENANT_REJECTS_DATE"
	StatusOwnerAcceptsDate                Status = "OWNER_ACCEPTS_DATE"
	StatusOwnerRejectsDate                Status = "OWNER_REJECTS_DATE"
	StatusOwnerCloseTheDamage             Status = "OWNER_CLOSE_THE_DAMAGE"
	StatusRepairConfirmed                 Status = "REPAIR_CONFIRMED"
	StatusDefectRaised                    Status = "DEFECT_RAISED"
	StatusOwnerRejectDamage               Status = "OWNER_REJECT_DAMAGE"
)

var allStatuses = []Status{
	StatusTenantCreateDamage,
	StatusObjectOwnerCreateDamage,
	StatusOwnerSendToCompanyWithOffer,
	StatusOwnerSendToCompanyWithoutOffer,
	StatusTenantSendToCompanyWithOffer,
	StatusTenantSendToCompanyWithoutOffer,
	StatusTenantCloseTheDamage,
	StatusCompanyAcceptsDamageWithOffer,
	StatusCompanyAcceptsDamageWithout,
	StatusCompanyRejectTheDamage,
	StatusCompanyGiveOfferToTenant,
	StatusCompanyGiveOfferToOwner,
	StatusTenantAcceptsTheOffer,
	StatusTenantRejectsTheOffer,
	StatusOwnerAcceptsTheOffer,
	StatusOwnerRejectsTheOffer,
	StatusCompanyScheduleDate,
	StatusTenantAcceptsDate,
	StatusTenantRejectsDate,
	StatusOwnerAcceptsDate,
	StatusOwnerRejectsDate,
	StatusOwnerCloseTheDamage,
	StatusRepairConfirmed,
	StatusDefectRaised,
	StatusOwnerRejectDamage,
}

// AllStatuses returns every status in declaration order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown damage status %q", raw)
	}
	return s, nil
}

func (s Status) IsValid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports statuses that end the lifecycle.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusTenantCloseTheDamage, StatusOwnerCloseTheDamage, StatusOwnerRejectDamage:
		return true
	}
	return false
}

// IsInitial reports statuses a damage is created in.
func (s Status) IsInitial() bool {
	return s == StatusTenantCreateDamage || s == StatusObjectOwnerCreateDamage
}

// InitialStatusFor returns the creation status for the reporting role.
func InitialStatusFor(r Role) (Status, Party, bool) {
	switch {
	case r == RoleTenant:
		return StatusTenantCreateDamage, PartyTenant, true
	case r.IsOwnerSide():
		return StatusObjectOwnerCreateDamage, PartyOwner, true
	}
	return "", "", false
}

// GiveOfferStatus is the status a company offer moves the damage to for the given party.
func GiveOfferStatus(p Party) Status {
	if p == PartyTenant {
		return StatusCompanyGiveOfferToTenant
	}
	return StatusCompanyGiveOfferToOwner
}
