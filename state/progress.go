package state

import (
	"errors"
	"fmt"
)

// Progress is where one user stands on one quest.
type Progress string

const (
	// Locked quests cannot be attempted yet. Derived, never stored.
	Locked Progress = "locked"
	// Available quests can be attempted. Untouched quests are Available.
	Available Progress = "available"
	// PendingReview quests wait for an admin decision.
	PendingReview Progress = "pending_review"
	// Completed quests are done and their reward granted.
	Completed Progress = "completed"
	// Rejected quests were refused by an admin and may be attempted again.
	Rejected Progress = "rejected"
)

// ErrTransitionNotAllowed is returned when a progress change is not in the table.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// Valid reports whether p is a known progress value.
func (p Progress) Valid() bool {
	switch p {
	case Locked, Available, PendingReview, Completed, Rejected:
		return true
	}
	return false
}

// Stored reports whether p is kept in a game state rather than derived.
func (p Progress) Stored() bool {
	return p == PendingReview || p == Completed || p == Rejected
}

// Machine holds the allowed transitions between progress values. Each edge
// may carry a guard evaluated at transition time.
type Machine struct {
	transitions map[Progress]map[Progress]func() bool
}

// NewMachine returns an empty transition table.
func NewMachine() *Machine {
	return &Machine{transitions: make(map[Progress]map[Progress]func() bool)}
}

// AddTransition allows from -> to, guarded by condition when it is non-nil.
func (m *Machine) AddTransition(from, to Progress, condition func() bool) {
	if _, exists := m.transitions[from]; !exists {
		m.transitions[from] = make(map[Progress]func() bool)
	}
	m.transitions[from][to] = condition
}

// CanTransition reports whether from -> to is allowed right now.
func (m *Machine) CanTransition(from, to Progress) bool {
	targets, exists := m.transitions[from]
	if !exists {
		return false
	}
	condition, exists := targets[to]
	if !exists {
		return false
	}
	return condition == nil || condition()
}

// Transition validates from -> to and returns to on success.
func (m *Machine) Transition(from, to Progress) (Progress, error) {
	if !m.CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, from, to)
	}
	return to, nil
}

// QuestMachine is the quest progress lifecycle:
//
//	locked -> available
//	available, rejected -> completed | pending_review
//	pending_review -> completed | rejected
//	completed -> rejected
var QuestMachine = newQuestMachine()

func newQuestMachine() *Machine {
	m := NewMachine()
	m.AddTransition(Locked, Available, nil)
	for _, from := range []Progress{Available, Rejected} {
		m.AddTransition(from, Completed, nil)
		m.AddTransition(from, PendingReview, nil)
	}
	m.AddTransition(PendingReview, Completed, nil)
	m.AddTransition(PendingReview, Rejected, nil)
	m.AddTransition(Completed, Rejected, nil)
	return m
}
