package services

import (
	"strings"
	"time"

	"github.com/sahilm/fuzzy"
	"github.com/wfunc/gardien/geo"
	"github.com/wfunc/gardien/models"
	"github.com/wfunc/gardien/quest"
	"github.com/wfunc/gardien/state"
)

// GlobalKeys returns every key held by at least one user, recomputed from the
// current users on each call.
func (s *GameService) GlobalKeys() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return sortKeys(s.keysLocked())
}

// UnionReady reports whether every elemental key has been found by someone.
func (s *GameService) UnionReady() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return quest.InventoryCheck{RequiredKeys: quest.ElementalKeys}.Satisfied(s.keysLocked())
}

// QuestStatus returns the user's progress on questID as the client sees it.
func (s *GameService) QuestStatus(userID string, questID int) (state.Progress, error) {
	q, ok := s.catalog.Get(questID)
	if !ok {
		return "", ErrUnknownQuest
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return "", ErrUnknownUser
	}
	return s.progressLocked(u, q), nil
}

type HubEntry struct {
	Quest  quest.Public   `json:"quest"`
	Status state.Progress `json:"status"`
}

// Hub is the quest journal: the key quests in order, followed by the finale
// once it is open and not yet done by this user.
func (s *GameService) Hub(userID string) ([]HubEntry, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrUnknownUser
	}

	var out []HubEntry
	for _, q := range s.catalog.All() {
		if q.ID == quest.EntryID {
			continue
		}
		status := s.progressLocked(u, q)
		if q.IsFinale() && (status == state.Locked || status == state.Completed) {
			continue
		}
		out = append(out, HubEntry{Quest: q.Public(), Status: status})
	}
	return out, nil
}

type SlotState string

const (
	SlotHeld    SlotState = "held"
	SlotFound   SlotState = "found"
	SlotUnknown SlotState = "unknown"
)

// Slot is one elemental key seen from one user.
type Slot struct {
	Key         string     `json:"key"`
	Name        string     `json:"name"`
	Icon        quest.Icon `json:"icon"`
	Description string     `json:"description"`
	State       SlotState  `json:"state"`
	AcquiredAt  *time.Time `json:"acquired_at,omitempty"`
}

// Inventory returns the four elemental slots: held by the user, found by
// someone else, or still unknown.
func (s *GameService) Inventory(userID string) ([]Slot, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrUnknownUser
	}
	global := s.keysLocked()

	slots := make([]Slot, 0, len(quest.ElementalKeys))
	for _, key := range quest.ElementalKeys {
		info := quest.KeyDescriptions[key]
		slot := Slot{Key: key, Icon: info.Icon, Description: info.Description, State: SlotUnknown}
		for _, q := range s.catalog.All() {
			if q.Reward != nil && q.Reward.Key == key {
				slot.Name = q.Reward.Name
				break
			}
		}
		for _, item := range u.GameState.Inventory {
			if item.ID == key {
				at := item.AcquiredAt
				slot.State = SlotHeld
				slot.AcquiredAt = &at
			}
		}
		if slot.State != SlotHeld && global[key] {
			slot.State = SlotFound
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// Nearby ranks every located quest by distance from pos.
func (s *GameService) Nearby(pos geo.Point) []geo.Proximity {
	return geo.Rank(pos, s.catalog.Waypoints(), s.nearbyRadius)
}

// UserSummary is the admin dashboard line for one user.
type UserSummary struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Role      models.Role `json:"role"`
	Completed []int       `json:"completed"`
	Pending   []int       `json:"pending"`
	Keys      []string    `json:"keys"`
	Finished  bool        `json:"finished"`
	CreatedAt time.Time   `json:"created_at"`
}

func summarize(u *models.User) UserSummary {
	keys := make([]string, 0, len(u.GameState.Inventory))
	for _, item := range u.GameState.Inventory {
		keys = append(keys, item.ID)
	}
	return UserSummary{
		ID:        u.ID,
		Name:      u.Name,
		Role:      u.Role,
		Completed: u.GameState.CompletedQuestIDs(),
		Pending:   u.GameState.PendingReviewQuestIDs(),
		Keys:      keys,
		Finished:  u.GameState.IsComplete,
		CreatedAt: u.CreatedAt,
	}
}

// Summary describes one user for their own profile screen.
func (s *GameService) Summary(userID string) (UserSummary, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return UserSummary{}, ErrUnknownUser
	}
	return summarize(u), nil
}

type userSource []*models.User

func (u userSource) String(i int) string { return models.NameKey(u[i].Name) }
func (u userSource) Len() int            { return len(u) }

// SearchUsers fuzzy matches names against query, best match first. An empty
// query lists everyone in creation order.
func (s *GameService) SearchUsers(query string) []UserSummary {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	users := make(userSource, 0, len(s.order))
	for _, id := range s.order {
		users = append(users, s.users[id])
	}

	query = strings.TrimSpace(query)
	if query == "" {
		out := make([]UserSummary, 0, len(users))
		for _, u := range users {
			out = append(out, summarize(u))
		}
		return out
	}

	matches := fuzzy.FindFrom(models.NameKey(query), users)
	out := make([]UserSummary, 0, len(matches))
	for _, m := range matches {
		out = append(out, summarize(users[m.Index]))
	}
	return out
}
