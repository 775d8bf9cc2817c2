// models/models.go
package models

import (
	"sort"
	"strings"
	"time"

	"github.com/wfunc/gardien/quest"
	"github.com/wfunc/gardien/state"
	"golang.org/x/text/cases"
)

// Role is a user's privilege level.
type Role string

const (
	RoleAdmin  Role = "admin"
	RolePlayer Role = "player"
)

// User 玩家账号
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Password is stored as given and never checked on login.
	Password  string    `json:"password,omitempty"`
	Role      Role      `json:"role"`
	GameState GameState `json:"game_state"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAdmin reports whether u holds the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	c := *u
	c.GameState = u.GameState.Clone()
	return &c
}

// InventoryItem is a key held by one user.
type InventoryItem struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Icon        quest.Icon `json:"icon"`
	Description string     `json:"description"`
	AcquiredAt  time.Time  `json:"acquired_at"`
}

// NewInventoryItem builds the item granted by reward.
func NewInventoryItem(reward quest.Reward, now time.Time) InventoryItem {
	info := quest.KeyDescriptions[reward.Key]
	return InventoryItem{
		ID:          reward.Key,
		Name:        reward.Name,
		Icon:        info.Icon,
		Description: info.Description,
		AcquiredAt:  now,
	}
}

// Proof is the last image submitted for a quest.
type Proof struct {
	Data        []byte    `json:"data"`
	MimeType    string    `json:"mime_type"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// QuestRecord is the stored progress of one quest.
type QuestRecord struct {
	State     state.Progress `json:"state"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ChatMessage is one line of an oracle conversation.
type ChatMessage struct {
	ID     string `json:"id"`
	Sender string `json:"sender"` // user/oracle
	Text   string `json:"text"`
}

const (
	SenderUser   = "user"
	SenderOracle = "oracle"
)

// sortedIDs returns the ids of records in state p, ascending.
func sortedIDs(records map[int]QuestRecord, p state.Progress) []int {
	var ids []int
	for id, r := range records {
		if r.State == p {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

var nameFolder = cases.Fold()

// NameKey is the case-insensitive login key for a display name.
func NameKey(name string) string {
	return nameFolder.String(strings.TrimSpace(name))
}
