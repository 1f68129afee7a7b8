package importer

import (
	"github.com/google/uuid"

	"github.com/leadcraft/leadflow/internal/lead"
)

// AssignmentMode selects how accepted records receive an owner.
type AssignmentMode string

const (
	// AssignNone leaves records unowned.
	AssignNone AssignmentMode = "none"
	// AssignFixed gives every accepted record the same owner.
	AssignFixed AssignmentMode = "fixed"
	// AssignRoundRobin rotates ownership across the roster in order.
	AssignRoundRobin AssignmentMode = "round_robin"
)

// Distributor assigns owners to accepted records. The rotation index is
// scoped to one import run: a new Distributor starts at zero and its state is
// never persisted or shared across runs.
type Distributor struct {
	mode   AssignmentMode
	fixed  uuid.UUID
	roster []lead.TeamMember
	next   int
}

// NewDistributor builds a run-local distributor. Round-robin over an empty
// roster degrades to no assignment.
func NewDistributor(mode AssignmentMode, fixed uuid.UUID, roster []lead.TeamMember) *Distributor {
	if mode == AssignRoundRobin && len(roster) == 0 {
		mode = AssignNone
	}
	return &Distributor{mode: mode, fixed: fixed, roster: roster}
}

// Next returns the owner for the next accepted record, advancing the
// rotation in round-robin mode. Callers must invoke it once per accepted
// record, not per raw row.
func (d *Distributor) Next() *uuid.UUID {
	switch d.mode {
	case AssignFixed:
		id := d.fixed
		return &id
	case AssignRoundRobin:
		member := d.roster[d.next%len(d.roster)]
		d.next++
		id := member.ID
		return &id
	default:
		return nil
	}
}
