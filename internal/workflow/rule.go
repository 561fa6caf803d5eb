// Package workflow holds the declarative damage transition table.
package workflow

import "github.com/balu-property/damage-service/internal/domain"

// Requirement flags the payload fields a transition needs.
type Requirement uint16

const (
	RequireCompany Requirement = 1 << iota
	RequireComment
	RequireSchedule
	RequireOffer
	RequireOfferDetails
	RequireDefect
	RequireSignature
)

// Effect flags the side effects applied together with the status change.
type Effect uint16

const (
	EffectSetParty Effect = 1 << iota
	EffectRequestOffers
	EffectRequestWork
	EffectWithdrawRequest
	EffectAssignCompany
	EffectCreateOffer
	EffectAcceptOffer
	EffectRejectOffer
	EffectSchedule
	EffectConfirmRepair
	EffectCreateDefect
)

// CompanyScope restricts which company may fire a company rule.
type CompanyScope int

const (
	ScopeNone CompanyScope = iota
	// ScopeRequested admits companies holding an active request on the damage.
	ScopeRequested
	// ScopeAssigned admits only the assigned company.
	ScopeAssigned
)

// Rule is one legal (from, to) edge of the lifecycle.
type Rule struct {
	From     domain.Status
	To       domain.Status
	Roles    []domain.Role
	Requires Requirement
	Effects  Effect
	// PartyGuard, when set, must equal the damage's current party.
	PartyGuard domain.Party
	// SetsParty is applied when Effects has EffectSetParty.
	SetsParty domain.Party
	Scope     CompanyScope
}

// Permits reports whether role may fire the rule.
func (r Rule) Permits(role domain.Role) bool {
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

func (r Rule) Needs(q Requirement) bool {
	return r.Requires&q != 0
}

func (r Rule) Has(e Effect) bool {
	return r.Effects&e != 0
}
