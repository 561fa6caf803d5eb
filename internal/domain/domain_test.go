package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, s := range AllStatuses() {
		parsed, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	_, err := ParseStatus("OPEN")
	assert.Error(t, err)
	assert.Len(t, AllStatuses(), 25)
}

func TestInitialStatusFor(t *testing.T) {
	tests := []struct {
		role   Role
		status Status
		party  Party
		ok     bool
	}{
		{RoleTenant, StatusTenantCreateDamage, PartyTenant, true},
		{RoleObjectOwner, StatusObjectOwnerCreateDamage, PartyOwner, true},
		{RolePropertyAdmin, StatusObjectOwnerCreateDamage, PartyOwner, true},
		{RoleJanitor, StatusObjectOwnerCreateDamage, PartyOwner, true},
		{RoleCompany, "", "", false},
		{RoleGuest, "", "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			status, party, ok := InitialStatusFor(tt.role)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.party, party)
		})
	}
}

func TestApartmentHasMember(t *testing.T) {
	apt := &Apartment{
		OwnerID:    "owner-1",
		AdminIDs:   []string{"admin-1"},
		JanitorIDs: []string{"janitor-1"},
		TenantIDs:  []string{"tenant-1"},
	}

	assert.True(t, apt.HasMember(Actor{ID: "owner-1", Role: RoleObjectOwner}))
	assert.True(t, apt.HasMember(Actor{ID: "admin-1", Role: RolePropertyAdmin}))
	assert.True(t, apt.HasMember(Actor{ID: "janitor-1", Role: RoleJanitor}))
	assert.True(t, apt.HasMember(Actor{ID: "tenant-1", Role: RoleTenant}))
	assert.False(t, apt.HasMember(Actor{ID: "tenant-1", Role: RoleObjectOwner}))
	assert.False(t, apt.HasMember(Actor{ID: "company-1", Role: RoleCompany}))
}

func TestCategoryName(t *testing.T) {
	cat := &Category{Names: map[Locale]string{LocaleDE: "Heizung", LocaleEN: "Heating"}}

	assert.Equal(t, "Heating", cat.Name(LocaleEN))
	assert.Equal(t, "Heizung", cat.Name(LocaleFR))
	assert.Equal(t, LocaleEN, ParseLocale("en-GB"))
	assert.Equal(t, LocaleIT, ParseLocale("IT"))
	assert.Equal(t, LocaleDE, ParseLocale("es"))

	onlyFrench := &Category{Names: map[Locale]string{LocaleFR: "Chauffage"}}
	assert.Equal(t, "Chauffage", onlyFrench.Name(LocaleEN))
}

func TestTicketCloneIsIndependent(t *testing.T) {
	company := "c1"
	orig := &Ticket{ID: "t1", AssignedCompanyID: &company}
	cp := orig.Clone()
	*cp.AssignedCompanyID = "c2"
	assert.Equal(t, "c1", *orig.AssignedCompanyID)
}
