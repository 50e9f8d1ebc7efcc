/*
seed.go - Demo organization loader

PURPOSE:
  Populates the store with a small organization that exercises every
  path of the engine: a regular unit whose requests travel all four
  levels, the central unit whose requests skip level 1, one reviewer
  for each chain level, and both capped and uncapped leave types.

  Dev/demo only. Seeding is idempotent: reference-data saves are
  upserts, so calling it twice leaves the same organization.
*/
package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/ledger"
)

// SeedDemo loads the demo organization.
// POST /api/seed
func (h *Handler) SeedDemo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	units := []leave.OrgUnit{
		{ID: "unit-eng", Name: "Engineering", Central: false},
		{ID: "unit-sales", Name: "Sales", Central: false},
		{ID: "unit-central", Name: "Central Administration", Central: true},
	}

	employees := []leave.Employee{
		{ID: "emp-ana", Name: "Ana Ortiz", Email: "ana@example.com", Role: leave.RoleEmployee, UnitID: "unit-eng"},
		{ID: "emp-bo", Name: "Bo Lindqvist", Email: "bo@example.com", Role: leave.RoleEmployee, UnitID: "unit-sales"},
		{ID: "emp-cleo", Name: "Cleo Mensah", Email: "cleo@example.com", Role: leave.RoleEmployee, UnitID: "unit-central"},

		{ID: "dir-eng", Name: "Dana Faruqi", Email: "dana@example.com", Role: leave.RoleUnitDirector, UnitID: "unit-eng"},
		{ID: "dir-sales", Name: "Emil Novak", Email: "emil@example.com", Role: leave.RoleUnitDirector, UnitID: "unit-sales"},

		{ID: "staff-central", Name: "Farah Haddad", Email: "farah@example.com", Role: leave.RoleCentralStaff, UnitID: "unit-central"},
		{ID: "head-central", Name: "Goran Ilic", Email: "goran@example.com", Role: leave.RoleCentralHead, UnitID: "unit-central"},
		{ID: "admin-top", Name: "Hana Sato", Email: "hana@example.com", Role: leave.RoleTopAdmin, UnitID: "unit-central"},
	}

	leaveTypes := []ledger.LeaveType{
		{ID: "annual", Name: "Annual Leave", Capped: true, AnnualQuota: decimal.NewFromInt(12)},
		{ID: "sick", Name: "Sick Leave", Capped: false},
	}

	err := h.Store.WithTx(ctx, func(s leave.Store) error {
		for _, u := range units {
			if err := s.SaveOrgUnit(ctx, u); err != nil {
				return err
			}
		}
		for _, e := range employees {
			if err := s.SaveEmployee(ctx, e); err != nil {
				return err
			}
		}
		for _, lt := range leaveTypes {
			if err := s.SaveLeaveType(ctx, lt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed demo data", "", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"units":       len(units),
		"employees":   len(employees),
		"leave_types": len(leaveTypes),
	})
}
