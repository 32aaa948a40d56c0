// Package workflow owns the approval lifecycle of purchase requests and
// expense reimbursement forms: a small builder-configured state machine plus
// the canonical transition table.
package workflow

import (
	"fmt"

	"github.com/opsfinance/formflow/internal/domain/entity"
)

// transitionTriggers maps a (from, to) status pair onto the trigger that
// performs it. Pairs absent from this table are invalid transitions.
var transitionTriggers = map[entity.Status]map[entity.Status]Trigger{
	entity.StatusDraft: {
		entity.StatusPending: TriggerSubmit,
	},
	entity.StatusPending: {
		entity.StatusApproved: TriggerApprove,
		entity.StatusRejected: TriggerReject,
	},
	entity.StatusRejected: {
		entity.StatusPending: TriggerResubmit,
	},
}

// NewRequestLifecycle builds the approval machine for a request currently in
// the given status:
//
//	draft    -> pending              (submit)
//	pending  -> approved | rejected  (elevated roles only)
//	approved -> terminal
//	rejected -> pending              (resubmit)
func NewRequestLifecycle(current entity.Status) (*Machine, error) {
	if !current.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, current)
	}

	decide := func(actor entity.Actor) bool { return actor.CanDecide() }

	b := NewBuilder()
	b.Configure(entity.StatusDraft).
		Permit(TriggerSubmit, entity.StatusPending)
	b.Configure(entity.StatusPending).
		PermitIf(TriggerApprove, entity.StatusApproved, decide).
		PermitIf(TriggerReject, entity.StatusRejected, decide)
	b.Configure(entity.StatusRejected).
		Permit(TriggerResubmit, entity.StatusPending)

	return b.Build(current), nil
}

// TriggerFor maps a requested (from, to) status pair onto its trigger. The
// second return value is false when no such transition exists.
func TriggerFor(from, to entity.Status) (Trigger, bool) {
	trigger, ok := transitionTriggers[from][to]
	return trigger, ok
}

// IsTerminal returns true for statuses with no outgoing transitions
func IsTerminal(s entity.Status) bool {
	return s == entity.StatusApproved
}
