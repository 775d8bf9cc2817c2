package services

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/gardien/classifier"
	"github.com/wfunc/gardien/logger"
	"github.com/wfunc/gardien/models"
	"github.com/wfunc/gardien/quest"
	"github.com/wfunc/gardien/state"
)

// ValidateQuest judges a quest whose rule needs no photo: narrative quests,
// typed answers and the finale's key check. answer is ignored by rules that
// do not read it.
func (s *GameService) ValidateQuest(ctx context.Context, userID string, questID int, answer string) (Result, error) {
	q, ok := s.catalog.Get(questID)
	if !ok {
		return Result{}, ErrUnknownQuest
	}

	var res Result
	err := s.mutate(ctx, userID, func(u *models.User) (bool, error) {
		if r, done := s.gateLocked(u, q); done {
			res = r
			return false, nil
		}

		switch rule := q.Rule.(type) {
		case quest.NoProof:
			if q.ID == quest.EntryID {
				u.GameState.HasStarted = true
			}
		case quest.AnswerProof:
			if !rule.Match(answer) {
				res = failed(Rejected, MsgWrongAnswer)
				return false, nil
			}
		case quest.InventoryCheck:
			if !rule.Satisfied(s.keysLocked()) {
				res = failed(Rejected, MsgUnionIncomplete)
				return false, nil
			}
		case quest.ImageProof:
			res = failed(Invalid, MsgNeedsPhoto)
			return false, nil
		default:
			res = failed(Invalid, MsgLocked)
			return false, nil
		}

		var err error
		res, err = s.completeLocked(u, q)
		return err == nil, err
	})
	if err != nil {
		return Result{}, err
	}
	s.recorder.ObserveValidation(q.Rule.Type(), res.Kind)
	return res, nil
}

// ValidateImageQuest stores the photo as the quest's latest proof, then asks
// the classifier. The proof is persisted before the classifier is called so
// it stays available for manual review whatever the verdict.
func (s *GameService) ValidateImageQuest(ctx context.Context, userID string, questID int, image []byte, mimeType string) (Result, error) {
	q, ok := s.catalog.Get(questID)
	if !ok {
		return Result{}, ErrUnknownQuest
	}
	rule, ok := q.Rule.(quest.ImageProof)
	if !ok {
		return failed(Invalid, MsgNoPhotoRule), nil
	}
	if len(image) == 0 {
		return failed(Invalid, MsgEmptyImage), nil
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	submitted := s.now()
	var (
		res  Result
		done bool
	)
	err := s.mutate(ctx, userID, func(u *models.User) (bool, error) {
		if res, done = s.gateLocked(u, q); done {
			return false, nil
		}
		u.GameState.StoreProof(q.ID, models.Proof{
			Data:        append([]byte(nil), image...),
			MimeType:    mimeType,
			SubmittedAt: submitted,
		})
		return true, nil
	})
	if err != nil {
		return Result{}, err
	}
	if done {
		s.recorder.ObserveValidation(rule.Type(), res.Kind)
		return res, nil
	}

	if key, err := s.archive.Put(ctx, userID, q.ID, image, mimeType, submitted); err != nil {
		logger.Log.Warnf("Archiving proof for user %s quest %d failed: %v", userID, q.ID, err)
	} else {
		logger.Log.Debugf("Proof archived as %s", key)
	}

	start := time.Now()
	verdict, err := s.classifier.Classify(ctx, image, mimeType, rule.Prompt)
	s.recorder.ObserveClassification(time.Since(start), err)
	if err != nil {
		if errors.Is(err, classifier.ErrMalformed) {
			logger.Log.Warnf("Classifier answered nonsense for user %s quest %d: %v", userID, q.ID, err)
		} else {
			logger.Log.Errorf("Classifier unavailable for user %s quest %d: %v", userID, q.ID, err)
		}
		res = failed(Unavailable, MsgVeil)
		res.Err = err
		s.recorder.ObserveValidation(rule.Type(), res.Kind)
		return res, nil
	}

	if !verdict.Valid {
		res = failed(Rejected, verdict.Reason)
		if res.Message == "" {
			res.Message = MsgUndecided
		}
		s.recorder.ObserveValidation(rule.Type(), res.Kind)
		return res, nil
	}

	err = s.mutate(ctx, userID, func(u *models.User) (bool, error) {
		var err error
		res, err = s.completeLocked(u, q)
		return err == nil, err
	})
	if err != nil {
		return Result{}, err
	}
	if verdict.Reason != "" {
		res.Message = verdict.Reason
	}
	s.recorder.ObserveValidation(rule.Type(), res.Kind)
	return res, nil
}

// RequestManualReview hands a photo quest to the admins. A photo must be on
// file for them to judge. Asking twice is the same as asking once.
func (s *GameService) RequestManualReview(ctx context.Context, userID string, questID int) (Result, error) {
	q, ok := s.catalog.Get(questID)
	if !ok {
		return Result{}, ErrUnknownQuest
	}
	if _, ok := q.Rule.(quest.ImageProof); !ok {
		return failed(Invalid, MsgReviewNotAllowed), nil
	}

	var res Result
	err := s.mutate(ctx, userID, func(u *models.User) (bool, error) {
		switch s.progressLocked(u, q) {
		case state.Completed:
			res = failed(Invalid, MsgAlreadyDone)
			return false, nil
		case state.Locked:
			res = failed(Locked, MsgNotStarted)
			return false, nil
		}
		if _, ok := u.GameState.Proofs[q.ID]; !ok {
			res = failed(Invalid, MsgNoProof)
			return false, nil
		}
		res = Result{Success: true, Kind: Passed, Message: MsgReviewRequested}
		added, err := u.GameState.Escalate(q.ID, s.now())
		if added {
			logger.Log.Infof("User %s asked for review of quest %d", u.ID, q.ID)
		}
		return added, err
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// gateLocked decides submissions that must not reach the rule: completed
// quests succeed again without side effects, locked and pending ones fail.
func (s *GameService) gateLocked(u *models.User, q quest.Quest) (Result, bool) {
	switch u.GameState.Progress(q.ID) {
	case state.Completed:
		msg := q.SuccessMessage
		if msg == "" {
			msg = MsgAlreadyDone
		}
		return passed(msg), true
	case state.PendingReview:
		return failed(Invalid, MsgAwaitingReview), true
	}
	if !u.GameState.HasStarted && q.ID != quest.EntryID {
		return failed(Locked, MsgNotStarted), true
	}
	return Result{}, false
}

// completeLocked completes q for u and describes the outcome.
func (s *GameService) completeLocked(u *models.User, q quest.Quest) (Result, error) {
	now := s.now()
	granted, err := u.GameState.Complete(q, now)
	if err != nil {
		return Result{}, err
	}

	msg := q.SuccessMessage
	if q.IsFinale() {
		msg = MsgUnionDone
	}
	res := passed(msg)
	if granted {
		item := models.NewInventoryItem(*q.Reward, now)
		res.Granted = &item
		logger.Log.Infof("User %s earned %s", u.ID, item.ID)
	}
	res.GameCompleted = q.IsFinale() && u.GameState.IsComplete
	return res, nil
}

// progressLocked is the player's view of a quest: stored progress when there
// is any, otherwise Locked until the game has started (and, for the finale,
// until every elemental key has been found by someone).
func (s *GameService) progressLocked(u *models.User, q quest.Quest) state.Progress {
	if p := u.GameState.Progress(q.ID); p.Stored() {
		return p
	}
	if !u.GameState.HasStarted && q.ID != quest.EntryID {
		return state.Locked
	}
	if check, ok := q.Rule.(quest.InventoryCheck); ok && !check.Satisfied(s.keysLocked()) {
		return state.Locked
	}
	return state.Available
}
