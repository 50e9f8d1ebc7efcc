/*
authz.go - Role-to-level authorization table

PURPOSE:
  Authorization as a single lookup instead of scattered conditionals:
  a static table maps each chain level to the role allowed to act there
  and an optional organizational-scope predicate. The orchestrator is
  handed the table; the state machine never sees roles.

THE DEFAULT CHAIN:
  Level 1: unit director of the requester's own unit
  Level 2: central-office staff
  Level 3: central-office head
  Level 4: top administrator

  The cancellation chain reviews at the same desks, so it reuses the
  same table.

SEE ALSO:
  - workflow/: calls Authorize before delegating to the chain engine
*/
package leave

import (
	"fmt"

	"github.com/warp/leave-engine/chain"
)

// =============================================================================
// AUTHORIZATION TABLE
// =============================================================================

// LevelRule names the role that acts at one level, with an optional
// same-unit scope restriction.
type LevelRule struct {
	Role Role

	// SameUnit requires the actor to belong to the requester's unit
	// (the level-1 "your own director signs first" rule).
	SameUnit bool
}

// AuthzTable maps chain levels to the rule governing them.
type AuthzTable map[chain.Level]LevelRule

// DefaultAuthzTable returns the fixed four-level hierarchy.
func DefaultAuthzTable() AuthzTable {
	return AuthzTable{
		chain.Level1: {Role: RoleUnitDirector, SameUnit: true},
		chain.Level2: {Role: RoleCentralStaff},
		chain.Level3: {Role: RoleCentralHead},
		chain.Level4: {Role: RoleTopAdmin},
	}
}

// Authorize checks whether actor may decide the given level for a
// request owned by requester.
func (t AuthzTable) Authorize(actor, requester Employee, level chain.Level) error {
	rule, ok := t[level]
	if !ok {
		return &ForbiddenError{ActorID: actor.ID, Level: level, Detail: "no rule for level"}
	}
	if actor.Role != rule.Role {
		return &ForbiddenError{
			ActorID: actor.ID,
			Level:   level,
			Detail:  fmt.Sprintf("level requires role %s, actor has %s", rule.Role, actor.Role),
		}
	}
	if rule.SameUnit && actor.UnitID != requester.UnitID {
		return &ForbiddenError{
			ActorID: actor.ID,
			Level:   level,
			Detail:  "actor does not direct the requester's unit",
		}
	}
	return nil
}

// ForbiddenError details an authorization failure.
type ForbiddenError struct {
	ActorID string
	Level   chain.Level
	Detail  string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("actor %s not authorized for level %d: %s", e.ActorID, e.Level, e.Detail)
}

func (e *ForbiddenError) Unwrap() error { return chain.ErrForbidden }
