package models

import (
	"fmt"
	"time"

	"github.com/wfunc/gardien/quest"
	"github.com/wfunc/gardien/state"
)

// GameState is one user's private progress. Quest progress is kept as one
// record per quest, so a quest is never both pending and completed.
type GameState struct {
	Quests     map[int]QuestRecord `json:"quests"`
	Proofs     map[int]Proof       `json:"proofs"`
	Inventory  []InventoryItem     `json:"inventory"`
	HasStarted bool                `json:"has_started"`
	IsComplete bool                `json:"is_completed"`
}

// NewGameState returns an empty game state.
func NewGameState() GameState {
	return GameState{
		Quests:    make(map[int]QuestRecord),
		Proofs:    make(map[int]Proof),
		Inventory: []InventoryItem{},
	}
}

// Clone returns a deep copy.
func (g GameState) Clone() GameState {
	c := GameState{
		Quests:     make(map[int]QuestRecord, len(g.Quests)),
		Proofs:     make(map[int]Proof, len(g.Proofs)),
		Inventory:  make([]InventoryItem, len(g.Inventory)),
		HasStarted: g.HasStarted,
		IsComplete: g.IsComplete,
	}
	for id, r := range g.Quests {
		c.Quests[id] = r
	}
	for id, p := range g.Proofs {
		data := make([]byte, len(p.Data))
		copy(data, p.Data)
		p.Data = data
		c.Proofs[id] = p
	}
	copy(c.Inventory, g.Inventory)
	return c
}

func (g *GameState) ensure() {
	if g.Quests == nil {
		g.Quests = make(map[int]QuestRecord)
	}
	if g.Proofs == nil {
		g.Proofs = make(map[int]Proof)
	}
}

// Progress returns the stored progress of a quest, Available when untouched.
func (g *GameState) Progress(questID int) state.Progress {
	if r, ok := g.Quests[questID]; ok {
		return r.State
	}
	return state.Available
}

// IsCompleted reports whether questID is completed.
func (g *GameState) IsCompleted(questID int) bool {
	return g.Progress(questID) == state.Completed
}

// IsPending reports whether questID awaits review.
func (g *GameState) IsPending(questID int) bool {
	return g.Progress(questID) == state.PendingReview
}

// CompletedQuestIDs lists completed quests in id order.
func (g *GameState) CompletedQuestIDs() []int {
	return sortedIDs(g.Quests, state.Completed)
}

// PendingReviewQuestIDs lists quests awaiting review in id order.
func (g *GameState) PendingReviewQuestIDs() []int {
	return sortedIDs(g.Quests, state.PendingReview)
}

// HasItem reports whether the inventory holds key.
func (g *GameState) HasItem(key string) bool {
	for _, item := range g.Inventory {
		if item.ID == key {
			return true
		}
	}
	return false
}

// Grant adds item unless an item with the same id is already held.
func (g *GameState) Grant(item InventoryItem) bool {
	if g.HasItem(item.ID) {
		return false
	}
	g.Inventory = append(g.Inventory, item)
	return true
}

// Revoke removes every item with id key.
func (g *GameState) Revoke(key string) bool {
	kept := g.Inventory[:0]
	removed := false
	for _, item := range g.Inventory {
		if item.ID == key {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	g.Inventory = kept
	return removed
}

// StoreProof keeps the latest image for questID.
func (g *GameState) StoreProof(questID int, proof Proof) {
	g.ensure()
	g.Proofs[questID] = proof
}

func (g *GameState) move(questID int, to state.Progress, now time.Time) error {
	from := g.Progress(questID)
	next, err := state.QuestMachine.Transition(from, to)
	if err != nil {
		return fmt.Errorf("quest %d: %w", questID, err)
	}
	g.ensure()
	g.Quests[questID] = QuestRecord{State: next, UpdatedAt: now}
	return nil
}

// Complete marks q completed and grants its reward. Completing an already
// completed quest is a no-op. granted reports whether an item was added.
func (g *GameState) Complete(q quest.Quest, now time.Time) (granted bool, err error) {
	if g.IsCompleted(q.ID) {
		return false, nil
	}
	if err := g.move(q.ID, state.Completed, now); err != nil {
		return false, err
	}
	if q.Reward != nil {
		granted = g.Grant(NewInventoryItem(*q.Reward, now))
	}
	if q.IsFinale() {
		g.IsComplete = true
	}
	return granted, nil
}

// Escalate puts questID in manual review. Escalating a pending quest is a
// no-op; escalating a completed one is refused.
func (g *GameState) Escalate(questID int, now time.Time) (added bool, err error) {
	if g.IsPending(questID) {
		return false, nil
	}
	if err := g.move(questID, state.PendingReview, now); err != nil {
		return false, err
	}
	return true, nil
}

// Approve resolves a review in the player's favour: the quest leaves pending
// and is completed with its reward.
func (g *GameState) Approve(q quest.Quest, now time.Time) (granted bool, err error) {
	return g.Complete(q, now)
}

// Reject resolves a review against the player. A pending quest becomes
// rejected; a completed one is revoked along with its reward. Untouched and
// already rejected quests are left alone. revoked reports whether an item was
// removed.
func (g *GameState) Reject(q quest.Quest, now time.Time) (revoked bool, err error) {
	switch g.Progress(q.ID) {
	case state.PendingReview:
		return false, g.move(q.ID, state.Rejected, now)
	case state.Completed:
		if err := g.move(q.ID, state.Rejected, now); err != nil {
			return false, err
		}
		if q.Reward != nil {
			revoked = g.Revoke(q.Reward.Key)
		}
		if q.IsFinale() {
			g.IsComplete = false
		}
		return revoked, nil
	}
	return false, nil
}
