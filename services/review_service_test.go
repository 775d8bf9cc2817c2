package services

import (
	"errors"
	"testing"

	"github.com/wfunc/gardien/classifier"
	"github.com/wfunc/gardien/persistence"
	"github.com/wfunc/gardien/quest"
)

func reviewFixture(t *testing.T) (*GameService, *fakeClassifier, string, string) {
	t.Helper()
	fc := &fakeClassifier{verdict: classifier.Verdict{Valid: false, Reason: "non"}}
	s := newTestService(t, persistence.NewMemory(), fc)
	admin := startedUser(t, s, "Admin")
	player := startedUser(t, s, "Player")
	return s, fc, admin, player
}

func TestReviewDecision_ApproveGrantsOnce(t *testing.T) {
	s, _, admin, player := reviewFixture(t)
	if _, err := s.ValidateImageQuest(ctx, player, 2, []byte("x"), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RequestManualReview(ctx, player, 2); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := s.ReviewDecision(ctx, admin, player, 2, Approve); err != nil {
			t.Fatalf("Approve #%d failed: %v", i, err)
		}
	}
	u, _ := s.User(player)
	if !u.GameState.IsCompleted(2) || u.GameState.IsPending(2) {
		t.Error("Approved quest should be completed and not pending")
	}
	if len(u.GameState.Inventory) != 1 || u.GameState.Inventory[0].ID != quest.KeyWater {
		t.Errorf("Expected one water key, got %+v", u.GameState.Inventory)
	}
	if len(s.PendingReviews()) != 0 {
		t.Error("No review should remain")
	}
}

func TestReviewDecision_RejectPending(t *testing.T) {
	s, _, admin, player := reviewFixture(t)
	if _, err := s.ValidateImageQuest(ctx, player, 3, []byte("x"), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RequestManualReview(ctx, player, 3); err != nil {
		t.Fatal(err)
	}
	if err := s.ReviewDecision(ctx, admin, player, 3, Reject); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	u, _ := s.User(player)
	if u.GameState.IsPending(3) || u.GameState.IsCompleted(3) {
		t.Error("Rejected quest should be neither pending nor completed")
	}

	// the player may try again after a rejection
	if res, _ := s.RequestManualReview(ctx, player, 3); !res.Success {
		t.Errorf("Rejected quest should be escalable again, got %+v", res)
	}
}

func TestReviewDecision_RejectCompletedRevokes(t *testing.T) {
	s, fc, admin, player := reviewFixture(t)
	fc.verdict = classifier.Verdict{Valid: true}
	if _, err := s.ValidateImageQuest(ctx, player, 5, []byte("x"), ""); err != nil {
		t.Fatal(err)
	}
	if err := s.ReviewDecision(ctx, admin, player, 5, Reject); err != nil {
		t.Fatal(err)
	}
	u, _ := s.User(player)
	if u.GameState.IsCompleted(5) || u.GameState.HasItem(quest.KeyFire) {
		t.Error("Rejecting a completed quest should revoke it and its key")
	}
	if len(s.GlobalKeys()) != 0 {
		t.Errorf("Global keys should follow the revocation, got %v", s.GlobalKeys())
	}
}

func TestReviewDecision_Errors(t *testing.T) {
	s, _, admin, player := reviewFixture(t)
	if err := s.ReviewDecision(ctx, player, admin, 2, Approve); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("Expected ErrNotAdmin, got %v", err)
	}
	if err := s.ReviewDecision(ctx, admin, player, 77, Approve); !errors.Is(err, ErrUnknownQuest) {
		t.Errorf("Expected ErrUnknownQuest, got %v", err)
	}
	if err := s.ReviewDecision(ctx, admin, "ghost", 2, Approve); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("Expected ErrUnknownUser, got %v", err)
	}
	if err := s.ReviewDecision(ctx, admin, player, 2, Decision("maybe")); !errors.Is(err, ErrInvalidDecision) {
		t.Errorf("Expected ErrInvalidDecision, got %v", err)
	}
	if err := s.ReviewDecision(ctx, admin, player, 2, Reject); err != nil {
		t.Errorf("Rejecting an untouched quest should be a no-op, got %v", err)
	}
}

func TestPendingReviews_Order(t *testing.T) {
	s, _, admin, player := reviewFixture(t)
	late := startedUser(t, s, "Late")

	for _, r := range []struct {
		user  string
		quest int
	}{{late, 1}, {player, 4}, {player, 2}, {admin, 3}} {
		if _, err := s.ValidateImageQuest(ctx, r.user, r.quest, []byte("four"), "image/png"); err != nil {
			t.Fatal(err)
		}
		if _, err := s.RequestManualReview(ctx, r.user, r.quest); err != nil {
			t.Fatal(err)
		}
	}

	pending := s.PendingReviews()
	want := []struct {
		user  string
		quest int
	}{{admin, 3}, {player, 2}, {player, 4}, {late, 1}}
	if len(pending) != len(want) {
		t.Fatalf("Expected %d reviews, got %d", len(want), len(pending))
	}
	for i, w := range want {
		if pending[i].UserID != w.user || pending[i].QuestID != w.quest {
			t.Errorf("Review %d: expected %s/%d, got %s/%d", i, w.user, w.quest, pending[i].UserID, pending[i].QuestID)
		}
	}
	for i, p := range pending {
		if p.Proof == nil || string(p.Proof.Data) != "four" || p.Proof.MimeType != "image/png" {
			t.Errorf("Review %d should carry the stored proof, got %+v", i, p.Proof)
		}
	}
	if pending[1].QuestTitle != "La Clé de l'Eau" || pending[1].UserName != "Player" {
		t.Errorf("Unexpected labels %+v", pending[1])
	}
}
