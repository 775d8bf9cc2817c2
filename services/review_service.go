package services

import (
	"context"
	"time"

	"github.com/wfunc/gardien/logger"
	"github.com/wfunc/gardien/models"
)

type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
)

func (d Decision) Valid() bool { return d == Approve || d == Reject }

// PendingReview is one quest awaiting an admin decision.
type PendingReview struct {
	UserID      string        `json:"user_id"`
	UserName    string        `json:"user_name"`
	QuestID     int           `json:"quest_id"`
	QuestTitle  string        `json:"quest_title"`
	RequestedAt time.Time     `json:"requested_at"`
	Proof       *models.Proof `json:"proof,omitempty"`
}

// PendingReviews lists every pending quest of every user, by user creation
// order then quest id, with the last submitted photo when there is one.
func (s *GameService) PendingReviews() []PendingReview {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var out []PendingReview
	for _, id := range s.order {
		u := s.users[id]
		for _, qid := range u.GameState.PendingReviewQuestIDs() {
			r := PendingReview{
				UserID:      u.ID,
				UserName:    u.Name,
				QuestID:     qid,
				RequestedAt: u.GameState.Quests[qid].UpdatedAt,
			}
			if q, ok := s.catalog.Get(qid); ok {
				r.QuestTitle = q.Title
			}
			if p, ok := u.GameState.Proofs[qid]; ok {
				p.Data = append([]byte(nil), p.Data...)
				r.Proof = &p
			}
			out = append(out, r)
		}
	}
	return out
}

// ReviewDecision applies an admin's verdict on one user's quest. Approving
// completes the quest and grants its reward once. Rejecting drops a pending
// request, or revokes a completion and its reward.
func (s *GameService) ReviewDecision(ctx context.Context, adminID, userID string, questID int, decision Decision) error {
	if !decision.Valid() {
		return ErrInvalidDecision
	}
	if !s.isAdmin(adminID) {
		return ErrNotAdmin
	}
	q, ok := s.catalog.Get(questID)
	if !ok {
		return ErrUnknownQuest
	}

	var changed bool
	err := s.mutate(ctx, userID, func(u *models.User) (bool, error) {
		before := u.GameState.Progress(q.ID)
		var err error
		if decision == Approve {
			_, err = u.GameState.Approve(q, s.now())
		} else {
			_, err = u.GameState.Reject(q, s.now())
		}
		if err != nil {
			return false, err
		}
		changed = u.GameState.Progress(q.ID) != before
		return changed, nil
	})
	if err != nil || !changed {
		return err
	}

	logger.Log.Infof("Admin %s decided %s on quest %d of user %s", adminID, decision, questID, userID)
	s.emit(Event{Kind: EventReviewResolved, UserID: userID, QuestID: questID, Approved: decision == Approve})
	return nil
}
