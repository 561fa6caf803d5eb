package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balu-property/damage-service/internal/domain"
)

func TestTableCoversEveryStatus(t *testing.T) {
	incoming := map[domain.Status]int{}
	outgoing := map[domain.Status]int{}
	for _, r := range Rules() {
		incoming[r.To]++
		outgoing[r.From]++
	}

	for _, s := range domain.AllStatuses() {
		switch {
		case s.IsInitial():
			assert.Zero(t, incoming[s], "initial status %s must not be a transition target", s)
			assert.NotZero(t, outgoing[s], "initial status %s needs outgoing rules", s)
		case s.IsTerminal():
			assert.Zero(t, outgoing[s], "terminal status %s must not have outgoing rules", s)
			assert.NotZero(t, incoming[s], "terminal status %s is unreachable", s)
		default:
			assert.NotZero(t, incoming[s], "status %s is unreachable", s)
			assert.NotZero(t, outgoing[s], "status %s is a dead end", s)
		}
	}
}

func TestNoSelfLoops(t *testing.T) {
	for _, r := range Rules() {
		assert.NotEqual(t, r.From, r.To, "self loop on %s", r.From)
	}
}

func TestEveryRuleHasRoles(t *testing.T) {
	for _, r := range Rules() {
		assert.NotEmpty(t, r.Roles, "%s -> %s", r.From, r.To)
		if r.Permits(domain.RoleCompany) {
			assert.NotEqual(t, ScopeNone, r.Scope, "company rule %s -> %s needs a scope", r.From, r.To)
		}
		assert.False(t, r.Permits(domain.RoleGuest), "guest may not fire %s -> %s", r.From, r.To)
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		from, to domain.Status
		ok       bool
	}{
		{domain.StatusTenantCreateDamage, domain.StatusOwnerSendToCompanyWithOffer, true},
		{domain.StatusCompanyRejectTheDamage, domain.StatusOwnerSendToCompanyWithOffer, true},
		{domain.StatusCompanyRejectTheDamage, domain.StatusRepairConfirmed, false},
		{domain.StatusOwnerAcceptsDate, domain.StatusRepairConfirmed, true},
		{domain.StatusRepairConfirmed, domain.StatusDefectRaised, true},
		{domain.StatusOwnerCloseTheDamage, domain.StatusDefectRaised, false},
		{domain.StatusObjectOwnerCreateDamage, domain.StatusOwnerRejectDamage, false},
	}
	for _, tt := range tests {
		_, ok := Lookup(tt.from, tt.to)
		assert.Equal(t, tt.ok, ok, "%s -> %s", tt.from, tt.to)
	}
}

func TestGiveOfferRulesGuardParty(t *testing.T) {
	owner, ok := Lookup(domain.StatusCompanyAcceptsDamageWithOffer, domain.StatusCompanyGiveOfferToOwner)
	require.True(t, ok)
	assert.Equal(t, domain.PartyOwner, owner.PartyGuard)
	assert.True(t, owner.Has(EffectCreateOffer))

	tenantRule, ok := Lookup(domain.StatusCompanyAcceptsDamageWithOffer, domain.StatusCompanyGiveOfferToTenant)
	require.True(t, ok)
	assert.Equal(t, domain.PartyTenant, tenantRule.PartyGuard)
}

func TestAcceptRulesAssignThroughOffer(t *testing.T) {
	for _, to := range []domain.Status{domain.StatusOwnerAcceptsTheOffer, domain.StatusTenantAcceptsTheOffer} {
		for _, rule := range Rules() {
			if rule.To != to {
				continue
			}
			assert.True(t, rule.Has(EffectAcceptOffer), "%s -> %s", rule.From, rule.To)
			assert.False(t, rule.Has(EffectAssignCompany), "%s -> %s", rule.From, rule.To)
		}
	}
	for _, rule := range Rules() {
		if rule.Has(EffectAssignCompany) {
			assert.Equal(t, []domain.Role{domain.RoleCompany}, rule.Roles, "%s -> %s", rule.From, rule.To)
		}
	}
}

func TestNextFor(t *testing.T) {
	next := NextFor(domain.StatusCompanyScheduleDate, domain.RoleTenant)
	assert.ElementsMatch(t, []domain.Status{domain.StatusTenantAcceptsDate, domain.StatusTenantRejectsDate}, next)
	assert.Empty(t, NextFor(domain.StatusOwnerCloseTheDamage, domain.RoleObjectOwner))
}

func TestMissingFields(t *testing.T) {
	schedule, ok := Lookup(domain.StatusOwnerAcceptsTheOffer, domain.StatusCompanyScheduleDate)
	require.True(t, ok)
	assert.Equal(t, []string{"date", "time"}, MissingFields(schedule, Payload{}))
	assert.Equal(t, []string{"time"}, MissingFields(schedule, Payload{Date: "2024-01-10"}))
	assert.Empty(t, MissingFields(schedule, Payload{Date: "2024-01-10", Time: "09:30"}))

	reject, ok := Lookup(domain.StatusCompanyGiveOfferToOwner, domain.StatusOwnerRejectsTheOffer)
	require.True(t, ok)
	assert.Equal(t, []string{"comment", "offer_id"}, MissingFields(reject, Payload{Comment: "  "}))

	send, ok := Lookup(domain.StatusTenantCreateDamage, domain.StatusOwnerSendToCompanyWithOffer)
	require.True(t, ok)
	assert.Equal(t, []string{"company_ids"}, MissingFields(send, Payload{CompanyIDs: []string{""}}))
	assert.Empty(t, MissingFields(send, Payload{CompanyEmails: []string{"x@example.com"}}))
}

func TestPayloadParsing(t *testing.T) {
	at, err := Payload{Date: "2024-01-10", Time: "14:00"}.ScheduledAt(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC), at)

	_, err = Payload{Date: "10.01.2024", Time: "14:00"}.ScheduledAt(time.UTC)
	assert.Error(t, err)

	requested, err := Payload{}.RequestedAt()
	require.NoError(t, err)
	assert.Nil(t, requested)

	_, err = Payload{RequestedDate: "tomorrow"}.RequestedAt()
	assert.Error(t, err)
}
