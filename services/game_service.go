package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/gardien/archive"
	"github.com/wfunc/gardien/classifier"
	"github.com/wfunc/gardien/geo"
	"github.com/wfunc/gardien/logger"
	"github.com/wfunc/gardien/models"
	"github.com/wfunc/gardien/persistence"
	"github.com/wfunc/gardien/quest"
)

const DefaultMaxAdmins = 3

// Recorder receives validation metrics.
type Recorder interface {
	ObserveValidation(kind quest.ValidationType, outcome ResultKind)
	ObserveClassification(d time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveValidation(quest.ValidationType, ResultKind) {}
func (nopRecorder) ObserveClassification(time.Duration, error)         {}

type EventKind int

const (
	// EventKeysChanged fires when the global key set gains or loses a key.
	EventKeysChanged EventKind = iota + 1
	// EventReviewResolved fires when an admin decides on a pending quest.
	EventReviewResolved
)

type Event struct {
	Kind     EventKind
	UserID   string
	QuestID  int
	Approved bool
	Keys     []string
}

type Listener func(Event)

type Config struct {
	Catalog      *quest.Catalog
	DB           persistence.Database
	Classifier   classifier.Classifier
	Archive      archive.Archive
	Recorder     Recorder
	MaxAdmins    int
	NearbyRadius float64
	Now          func() time.Time
}

// GameService owns every user's state. All mutations go through one mutex;
// the classifier is called outside it.
type GameService struct {
	catalog      *quest.Catalog
	db           persistence.Database
	classifier   classifier.Classifier
	archive      archive.Archive
	recorder     Recorder
	maxAdmins    int
	nearbyRadius float64
	now          func() time.Time

	mutex    sync.Mutex
	users    map[string]*models.User
	order    []string          // user ids in creation order
	byName   map[string]string // folded name -> user id
	sessions map[string]string // device id -> user id

	listenerMutex sync.RWMutex
	listeners     []Listener
}

// NewGameService loads users and sessions from cfg.DB.
func NewGameService(ctx context.Context, cfg Config) (*GameService, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("game service: database is required")
	}
	s := &GameService{
		catalog:      cfg.Catalog,
		db:           cfg.DB,
		classifier:   cfg.Classifier,
		archive:      cfg.Archive,
		recorder:     cfg.Recorder,
		maxAdmins:    cfg.MaxAdmins,
		nearbyRadius: cfg.NearbyRadius,
		now:          cfg.Now,
		users:        make(map[string]*models.User),
		byName:       make(map[string]string),
		sessions:     make(map[string]string),
	}
	if s.catalog == nil {
		s.catalog = quest.Default()
	}
	if s.classifier == nil {
		s.classifier = classifier.Func(func(context.Context, []byte, string, string) (classifier.Verdict, error) {
			return classifier.Verdict{}, classifier.ErrUnavailable
		})
	}
	if s.archive == nil {
		s.archive = archive.Nop{}
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.maxAdmins <= 0 {
		s.maxAdmins = DefaultMaxAdmins
	}
	if s.nearbyRadius <= 0 {
		s.nearbyRadius = geo.NearbyRadius
	}
	if s.now == nil {
		s.now = time.Now
	}

	users, err := cfg.DB.LoadUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	for _, u := range users {
		s.addUserLocked(u)
	}

	sessions, err := cfg.DB.LoadSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	for device, userID := range sessions {
		if _, ok := s.users[userID]; ok {
			s.sessions[device] = userID
		}
	}

	logger.Log.Infof("Game service loaded %d users and %d sessions", len(s.users), len(s.sessions))
	return s, nil
}

func (s *GameService) Catalog() *quest.Catalog { return s.catalog }

// Subscribe registers fn for events. Listeners run synchronously after the
// store lock is released.
func (s *GameService) Subscribe(fn Listener) {
	s.listenerMutex.Lock()
	defer s.listenerMutex.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *GameService) emit(e Event) {
	s.listenerMutex.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.listenerMutex.RUnlock()
	for _, fn := range listeners {
		fn(e)
	}
}

func (s *GameService) addUserLocked(u *models.User) {
	if u.GameState.Quests == nil {
		u.GameState.Quests = make(map[int]models.QuestRecord)
	}
	if u.GameState.Proofs == nil {
		u.GameState.Proofs = make(map[int]models.Proof)
	}
	s.users[u.ID] = u
	s.order = append(s.order, u.ID)
	s.byName[models.NameKey(u.Name)] = u.ID
}

// mutate applies fn to a copy of the user and commits it once persisted.
// fn reports whether it changed anything; unchanged copies are discarded.
func (s *GameService) mutate(ctx context.Context, userID string, fn func(u *models.User) (bool, error)) error {
	s.mutex.Lock()
	user, ok := s.users[userID]
	if !ok {
		s.mutex.Unlock()
		return ErrUnknownUser
	}
	before := s.keysLocked()

	next := user.Clone()
	changed, err := fn(next)
	if err != nil || !changed {
		s.mutex.Unlock()
		return err
	}
	if err := s.db.SaveUser(ctx, next); err != nil {
		s.mutex.Unlock()
		return fmt.Errorf("save user %s: %w", userID, err)
	}
	s.users[userID] = next
	after := s.keysLocked()
	s.mutex.Unlock()

	if !sameKeys(before, after) {
		s.emit(Event{Kind: EventKeysChanged, Keys: sortKeys(after)})
	}
	return nil
}

// keysLocked is the union of every inventory.
func (s *GameService) keysLocked() map[string]bool {
	keys := make(map[string]bool)
	for _, u := range s.users {
		for _, item := range u.GameState.Inventory {
			keys[item.ID] = true
		}
	}
	return keys
}

func sameKeys(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// sortKeys lists the elemental keys first in display order, then any other
// key alphabetically.
func sortKeys(keys map[string]bool) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range quest.ElementalKeys {
		if keys[k] {
			out = append(out, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range keys {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
