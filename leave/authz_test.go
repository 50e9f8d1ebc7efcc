package leave

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/chain"
)

func employee(id string, role Role, unitID string) Employee {
	return Employee{ID: id, Name: id, Role: role, UnitID: unitID}
}

func TestAuthorize_RolePerLevel(t *testing.T) {
	table := DefaultAuthzTable()
	requester := employee("emp-1", RoleEmployee, "unit-eng")

	cases := []struct {
		level chain.Level
		actor Employee
	}{
		{chain.Level1, employee("dir", RoleUnitDirector, "unit-eng")},
		{chain.Level2, employee("staff", RoleCentralStaff, "unit-central")},
		{chain.Level3, employee("head", RoleCentralHead, "unit-central")},
		{chain.Level4, employee("admin", RoleTopAdmin, "unit-central")},
	}

	for _, tc := range cases {
		assert.NoError(t, table.Authorize(tc.actor, requester, tc.level), "level %d", tc.level)
	}
}

func TestAuthorize_WrongRole(t *testing.T) {
	table := DefaultAuthzTable()
	requester := employee("emp-1", RoleEmployee, "unit-eng")
	staff := employee("staff", RoleCentralStaff, "unit-central")

	err := table.Authorize(staff, requester, chain.Level3)
	require.Error(t, err)

	var fe *ForbiddenError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, chain.ErrForbidden)
	assert.Equal(t, chain.Level3, fe.Level)
}

func TestAuthorize_Level1RequiresSameUnit(t *testing.T) {
	// GIVEN: A director of a different unit
	// WHEN:  Acting at level 1 for an engineering requester
	// THEN:  FORBIDDEN

	table := DefaultAuthzTable()
	requester := employee("emp-1", RoleEmployee, "unit-eng")
	foreignDirector := employee("dir-sales", RoleUnitDirector, "unit-sales")

	assert.ErrorIs(t, table.Authorize(foreignDirector, requester, chain.Level1), chain.ErrForbidden)

	ownDirector := employee("dir-eng", RoleUnitDirector, "unit-eng")
	assert.NoError(t, table.Authorize(ownDirector, requester, chain.Level1))
}

func TestAuthorize_UnknownLevel(t *testing.T) {
	table := AuthzTable{}
	actor := employee("anyone", RoleTopAdmin, "unit-central")

	assert.ErrorIs(t, table.Authorize(actor, actor, chain.Level4), chain.ErrForbidden)
}
