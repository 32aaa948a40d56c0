package workflow

import (
	"fmt"

	"github.com/opsfinance/formflow/internal/domain/entity"
)

// GuardFunc evaluates whether the acting user may take a transition
type GuardFunc func(actor entity.Actor) bool

// transition is a target status with an optional role guard
type transition struct {
	toStatus entity.Status
	guard    GuardFunc
}

// Machine tracks the current status of a request and validates transitions
// against its configured table. A Machine is a cheap, single-use value built
// per call; it holds no shared state.
type Machine struct {
	current        entity.Status
	configurations map[entity.Status]map[Trigger][]transition
}

// Builder assembles a transition table for a Machine
type Builder struct {
	configurations map[entity.Status]map[Trigger][]transition
}

// StatusConfig configures the transitions leaving a single status
type StatusConfig struct {
	transitions map[Trigger][]transition
}

// NewBuilder creates an empty state machine builder
func NewBuilder() *Builder {
	return &Builder{
		configurations: make(map[entity.Status]map[Trigger][]transition),
	}
}

// Configure returns the configuration for the given status, creating it on
// first use. Panics on an unknown status: the table is program-defined, so a
// bad status is a bug, not an input error.
func (b *Builder) Configure(status entity.Status) *StatusConfig {
	if !status.IsValid() {
		panic(fmt.Sprintf("invalid status: %s", status))
	}

	transitions, exists := b.configurations[status]
	if !exists {
		transitions = make(map[Trigger][]transition)
		b.configurations[status] = transitions
	}
	return &StatusConfig{transitions: transitions}
}

// Permit allows the trigger to move to the target status unconditionally
func (c *StatusConfig) Permit(trigger Trigger, toStatus entity.Status) *StatusConfig {
	return c.PermitIf(trigger, toStatus, nil)
}

// PermitIf allows the trigger to move to the target status when the guard
// passes for the acting user
func (c *StatusConfig) PermitIf(trigger Trigger, toStatus entity.Status, guard GuardFunc) *StatusConfig {
	if !toStatus.IsValid() {
		panic(fmt.Sprintf("invalid target status: %s", toStatus))
	}

	c.transitions[trigger] = append(c.transitions[trigger], transition{
		toStatus: toStatus,
		guard:    guard,
	})
	return c
}

// Build creates a machine positioned at the given status. Machines built from
// the same builder are independent.
func (b *Builder) Build(current entity.Status) *Machine {
	if !current.IsValid() {
		panic(fmt.Sprintf("invalid initial status: %s", current))
	}

	configsCopy := make(map[entity.Status]map[Trigger][]transition, len(b.configurations))
	for status, triggers := range b.configurations {
		triggersCopy := make(map[Trigger][]transition, len(triggers))
		for trigger, transitions := range triggers {
			triggersCopy[trigger] = append([]transition{}, transitions...)
		}
		configsCopy[status] = triggersCopy
	}

	return &Machine{
		current:        current,
		configurations: configsCopy,
	}
}

// Status returns the current status
func (m *Machine) Status() entity.Status {
	return m.current
}

// CanFire returns true if the actor may fire the trigger from the current
// status
func (m *Machine) CanFire(trigger Trigger, actor entity.Actor) bool {
	for _, t := range m.configurations[m.current][trigger] {
		if t.guard == nil || t.guard(actor) {
			return true
		}
	}
	return false
}

// Fire executes the trigger, moving the machine to the new status if the
// transition table allows it and a guard passes. On failure the status is
// unchanged.
func (m *Machine) Fire(trigger Trigger, actor entity.Actor) error {
	transitions, exists := m.configurations[m.current][trigger]
	if !exists || len(transitions) == 0 {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.current)
	}

	for _, t := range transitions {
		if t.guard == nil || t.guard(actor) {
			m.current = t.toStatus
			return nil
		}
	}

	return fmt.Errorf("%w: %s from %s", ErrNotPermitted, trigger, m.current)
}

// PermittedTriggers returns the triggers the actor may fire from the current
// status
func (m *Machine) PermittedTriggers(actor entity.Actor) []Trigger {
	var triggers []Trigger
	for trigger := range m.configurations[m.current] {
		if m.CanFire(trigger, actor) {
			triggers = append(triggers, trigger)
		}
	}
	return triggers
}
