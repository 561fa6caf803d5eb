package workflow

import (
	"sort"

	"github.com/balu-property/damage-service/internal/domain"
)

var (
	ownerSide = []domain.Role{domain.RoleObjectOwner, domain.RolePropertyAdmin, domain.RoleJanitor}
	tenant    = []domain.Role{domain.RoleTenant}
	company   = []domain.Role{domain.RoleCompany}
	reporters = []domain.Role{domain.RoleObjectOwner, domain.RolePropertyAdmin, domain.RoleJanitor, domain.RoleTenant}
)

type edge struct {
	from domain.Status
	to   domain.Status
}

var table = buildTable()

func buildTable() map[edge]Rule {
	t := make(map[edge]Rule)
	add := func(tmpl Rule, froms ...domain.Status) {
		for _, from := range froms {
			r := tmpl
			r.From = from
			t[edge{from: from, to: r.To}] = r
		}
	}

	// sending to companies
	add(Rule{To: domain.StatusOwnerSendToCompanyWithOffer, Roles: ownerSide, Requires: RequireCompany,
		Effects: EffectSetParty | EffectRequestOffers, SetsParty: domain.PartyOwner},
		domain.StatusTenantCreateDamage, domain.StatusObjectOwnerCreateDamage,
		domain.StatusOwnerRejectsTheOffer, domain.StatusCompanyRejectTheDamage)
	add(Rule{To: domain.StatusOwnerSendToCompanyWithoutOffer, Roles: ownerSide, Requires: RequireCompany,
		Effects: EffectSetParty | EffectRequestWork, SetsParty: domain.PartyOwner},
		domain.StatusTenantCreateDamage, domain.StatusObjectOwnerCreateDamage,
		domain.StatusOwnerRejectsTheOffer, domain.StatusCompanyRejectTheDamage)
	add(Rule{To: domain.StatusTenantSendToCompanyWithOffer, Roles: tenant, Requires: RequireCompany,
		Effects: EffectSetParty | EffectRequestOffers, SetsParty: domain.PartyTenant, PartyGuard: domain.PartyTenant},
		domain.StatusTenantCreateDamage, domain.StatusTenantRejectsTheOffer, domain.StatusCompanyRejectTheDamage)
	add(Rule{To: domain.StatusTenantSendToCompanyWithoutOffer, Roles: tenant, Requires: RequireCompany,
		Effects: EffectSetParty | EffectRequestWork, SetsParty: domain.PartyTenant, PartyGuard: domain.PartyTenant},
		domain.StatusTenantCreateDamage, domain.StatusTenantRejectsTheOffer, domain.StatusCompanyRejectTheDamage)

	// company answers
	add(Rule{To: domain.StatusCompanyAcceptsDamageWithOffer, Roles: company, Scope: ScopeRequested},
		domain.StatusOwnerSendToCompanyWithOffer, domain.StatusTenantSendToCompanyWithOffer)
	add(Rule{To: domain.StatusCompanyAcceptsDamageWithout, Roles: company, Scope: ScopeRequested,
		Effects: EffectAssignCompany},
		domain.StatusOwnerSendToCompanyWithoutOffer, domain.StatusTenantSendToCompanyWithoutOffer)
	add(Rule{To: domain.StatusCompanyRejectTheDamage, Roles: company, Scope: ScopeRequested,
		Requires: RequireComment, Effects: EffectWithdrawRequest},
		domain.StatusOwnerSendToCompanyWithOffer, domain.StatusOwnerSendToCompanyWithoutOffer,
		domain.StatusTenantSendToCompanyWithOffer, domain.StatusTenantSendToCompanyWithoutOffer,
		domain.StatusCompanyAcceptsDamageWithOffer)
	add(Rule{To: domain.StatusCompanyGiveOfferToOwner, Roles: company, Scope: ScopeRequested,
		Requires: RequireOfferDetails, Effects: EffectCreateOffer, PartyGuard: domain.PartyOwner},
		domain.StatusOwnerSendToCompanyWithOffer, domain.StatusTenantSendToCompanyWithOffer,
		domain.StatusCompanyAcceptsDamageWithOffer, domain.StatusOwnerRejectsTheOffer)
	add(Rule{To: domain.StatusCompanyGiveOfferToTenant, Roles: company, Scope: ScopeRequested,
		Requires: RequireOfferDetails, Effects: EffectCreateOffer, PartyGuard: domain.PartyTenant},
		domain.StatusOwnerSendToCompanyWithOffer, domain.StatusTenantSendToCompanyWithOffer,
		domain.StatusCompanyAcceptsDamageWithOffer, domain.StatusTenantRejectsTheOffer)

	// offer decisions
	add(Rule{To: domain.StatusOwnerAcceptsTheOffer, Roles: ownerSide, Requires: RequireOffer,
		Effects: EffectAcceptOffer},
		domain.StatusCompanyGiveOfferToOwner, domain.StatusOwnerRejectsTheOffer)
	add(Rule{To: domain.StatusOwnerRejectsTheOffer, Roles: ownerSide, Requires: RequireOffer | RequireComment,
		Effects: EffectRejectOffer},
		domain.StatusCompanyGiveOfferToOwner)
	add(Rule{To: domain.StatusTenantAcceptsTheOffer, Roles: tenant, Requires: RequireOffer,
		Effects: EffectAcceptOffer},
		domain.StatusCompanyGiveOfferToTenant, domain.StatusTenantRejectsTheOffer)
	add(Rule{To: domain.StatusTenantRejectsTheOffer, Roles: tenant, Requires: RequireOffer | RequireComment,
		Effects: EffectRejectOffer},
		domain.StatusCompanyGiveOfferToTenant)

	// scheduling
	add(Rule{To: domain.StatusCompanyScheduleDate, Roles: company, Scope: ScopeAssigned,
		Requires: RequireSchedule, Effects: EffectSchedule},
		domain.StatusCompanyAcceptsDamageWithout, domain.StatusOwnerAcceptsTheOffer,
		domain.StatusTenantAcceptsTheOffer, domain.StatusOwnerRejectsDate,
		domain.StatusTenantRejectsDate, domain.StatusDefectRaised)
	add(Rule{To: domain.StatusOwnerAcceptsDate, Roles: ownerSide}, domain.StatusCompanyScheduleDate)
	add(Rule{To: domain.StatusOwnerRejectsDate, Roles: ownerSide}, domain.StatusCompanyScheduleDate)
	add(Rule{To: domain.StatusTenantAcceptsDate, Roles: tenant}, domain.StatusCompanyScheduleDate)
	add(Rule{To: domain.StatusTenantRejectsDate, Roles: tenant}, domain.StatusCompanyScheduleDate)

	// repair and defects
	add(Rule{To: domain.StatusRepairConfirmed, Roles: company, Scope: ScopeAssigned,
		Requires: RequireSignature, Effects: EffectConfirmRepair},
		domain.StatusOwnerAcceptsDate, domain.StatusTenantAcceptsDate, domain.StatusDefectRaised)
	add(Rule{To: domain.StatusDefectRaised, Roles: reporters, Requires: RequireDefect, Effects: EffectCreateDefect},
		domain.StatusRepairConfirmed)

	// rejecting and closing
	add(Rule{To: domain.StatusOwnerRejectDamage, Roles: ownerSide, Requires: RequireComment},
		domain.StatusTenantCreateDamage)
	add(Rule{To: domain.StatusTenantCloseTheDamage, Roles: tenant},
		domain.StatusTenantCreateDamage)
	add(Rule{To: domain.StatusTenantCloseTheDamage, Roles: tenant, PartyGuard: domain.PartyTenant},
		domain.StatusTenantSendToCompanyWithOffer, domain.StatusTenantSendToCompanyWithoutOffer,
		domain.StatusCompanyAcceptsDamageWithOffer, domain.StatusCompanyGiveOfferToTenant,
		domain.StatusTenantRejectsTheOffer, domain.StatusCompanyRejectTheDamage,
		domain.StatusRepairConfirmed)
	for _, s := range domain.AllStatuses() {
		if s.IsTerminal() {
			continue
		}
		add(Rule{To: domain.StatusOwnerCloseTheDamage, Roles: ownerSide}, s)
	}

	return t
}

// Lookup returns the rule for the (from, to) edge.
func Lookup(from, to domain.Status) (Rule, bool) {
	r, ok := table[edge{from: from, to: to}]
	return r, ok
}

// Rules returns every rule ordered by (from, to).
func Rules() []Rule {
	out := make([]Rule, 0, len(table))
	for _, r := range table {
		out = append(out, r)
	}
	sortRules(out)
	return out
}

// Allowed returns the outgoing rules of a status.
func Allowed(from domain.Status) []Rule {
	var out []Rule
	for k, r := range table {
		if k.from == from {
			out = append(out, r)
		}
	}
	sortRules(out)
	return out
}

// NextFor lists the statuses role could move the damage to from status, ignoring scope and party.
func NextFor(from domain.Status, role domain.Role) []domain.Status {
	var out []domain.Status
	for _, r := range Allowed(from) {
		if r.Permits(role) {
			out = append(out, r.To)
		}
	}
	return out
}

func sortRules(rules []Rule) {
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].From != rules[j].From {
			return rules[i].From < rules[j].From
		}
		return rules[i].To < rules[j].To
	})
}
