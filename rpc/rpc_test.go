package rpc

import (
	"context"
	"net/rpc"
	"strings"
	"testing"

	"github.com/wfunc/gardien/classifier"
	"github.com/wfunc/gardien/persistence"
	"github.com/wfunc/gardien/services"
)

func startServer(t *testing.T) (*services.GameService, *rpc.Client) {
	t.Helper()
	game, err := services.NewGameService(context.Background(), services.Config{
		DB: persistence.NewMemory(),
		Classifier: classifier.Func(func(context.Context, []byte, string, string) (classifier.Verdict, error) {
			return classifier.Verdict{}, classifier.ErrUnavailable
		}),
	})
	if err != nil {
		t.Fatal(err)
	}
	srv, err := NewServer("127.0.0.1:0", NewAdminService(game))
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	go srv.Start()
	t.Cleanup(srv.Stop)

	client, err := rpc.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return game, client
}

func TestAdminService_ReviewRoundTrip(t *testing.T) {
	game, client := startServer(t)
	ctx := context.Background()
	admin, _ := game.Login(ctx, "d1", "Admin", "")
	player, _ := game.Login(ctx, "d2", "Player", "")
	game.StartEntryQuest(ctx, player.ID)
	game.ValidateImageQuest(ctx, player.ID, 4, []byte("img"), "image/jpeg")
	game.RequestManualReview(ctx, player.ID, 4)

	var pending PendingReviewsReply
	if err := client.Call("Admin.PendingReviews", &AdminArgs{AdminID: admin.ID}, &pending); err != nil {
		t.Fatalf("PendingReviews failed: %v", err)
	}
	if len(pending.Reviews) != 1 || pending.Reviews[0].QuestID != 4 || pending.Reviews[0].Proof == nil {
		t.Fatalf("Unexpected reviews %+v", pending.Reviews)
	}

	args := &DecisionArgs{AdminID: admin.ID, UserID: player.ID, QuestID: 4, Decision: services.Approve}
	var ack Ack
	if err := client.Call("Admin.ReviewDecision", args, &ack); err != nil || !ack.OK {
		t.Fatalf("ReviewDecision failed: %v", err)
	}

	var keys KeysReply
	if err := client.Call("Admin.GlobalKeys", &AdminArgs{}, &keys); err != nil {
		t.Fatal(err)
	}
	if len(keys.Keys) != 1 || keys.Keys[0] != "KEY_AIR" || keys.UnionReady {
		t.Errorf("Unexpected keys %+v", keys)
	}
}

func TestAdminService_Errors(t *testing.T) {
	game, client := startServer(t)
	ctx := context.Background()
	admin, _ := game.Login(ctx, "d1", "Admin", "")
	player, _ := game.Login(ctx, "d2", "Player", "")

	err := client.Call("Admin.PromoteToAdmin", &PromoteArgs{AdminID: player.ID, UserID: player.ID}, &Ack{})
	if err == nil || !strings.Contains(err.Error(), services.ErrNotAdmin.Error()) {
		t.Errorf("Expected not admin error, got %v", err)
	}

	var pending PendingReviewsReply
	if err := client.Call("Admin.PendingReviews", &AdminArgs{AdminID: player.ID}, &pending); err == nil {
		t.Error("Players should not list reviews")
	}

	var found SearchReply
	if err := client.Call("Admin.SearchUsers", &SearchArgs{AdminID: admin.ID, Query: "pla"}, &found); err != nil {
		t.Fatal(err)
	}
	if len(found.Users) != 1 || found.Users[0].ID != player.ID {
		t.Errorf("Unexpected search result %+v", found.Users)
	}
}
