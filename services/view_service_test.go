package services

import (
	"testing"

	"github.com/wfunc/gardien/classifier"
	"github.com/wfunc/gardien/geo"
	"github.com/wfunc/gardien/persistence"
	"github.com/wfunc/gardien/quest"
	"github.com/wfunc/gardien/state"
)

func TestGlobalKeys_UnionOfInventories(t *testing.T) {
	fc := &fakeClassifier{verdict: classifier.Verdict{Valid: true}}
	s := newTestService(t, persistence.NewMemory(), fc)
	alice := startedUser(t, s, "Alice")
	bob := startedUser(t, s, "Bob")

	if len(s.GlobalKeys()) != 0 {
		t.Fatal("No keys expected at start")
	}
	s.ValidateImageQuest(ctx, bob, 5, []byte("x"), "")
	s.ValidateImageQuest(ctx, alice, 2, []byte("x"), "")
	s.ValidateImageQuest(ctx, bob, 2, []byte("x"), "")

	keys := s.GlobalKeys()
	if len(keys) != 2 || keys[0] != quest.KeyWater || keys[1] != quest.KeyFire {
		t.Errorf("Expected water and fire in display order, got %v", keys)
	}
}

func TestHub(t *testing.T) {
	fc := &fakeClassifier{verdict: classifier.Verdict{Valid: true}}
	s := newTestService(t, persistence.NewMemory(), fc)
	alice := startedUser(t, s, "Alice")

	hub, err := s.Hub(alice)
	if err != nil {
		t.Fatal(err)
	}
	if len(hub) != 5 {
		t.Fatalf("Expected the five key quests, got %d", len(hub))
	}
	for i, e := range hub {
		if e.Quest.ID != i+1 || e.Status != state.Available {
			t.Errorf("Entry %d unexpected: %+v", i, e)
		}
	}

	for id := 2; id <= 5; id++ {
		s.ValidateImageQuest(ctx, alice, id, []byte("x"), "")
	}
	hub, _ = s.Hub(alice)
	if len(hub) != 6 || hub[5].Quest.ID != quest.FinaleID || hub[5].Status != state.Available {
		t.Fatalf("Finale should appear once the keys are found, got %+v", hub)
	}
	if hub[1].Status != state.Completed {
		t.Errorf("Quest 2 should show completed, got %s", hub[1].Status)
	}

	s.ValidateQuest(ctx, alice, quest.FinaleID, "")
	hub, _ = s.Hub(alice)
	if len(hub) != 5 {
		t.Errorf("Finale should disappear once done, got %d entries", len(hub))
	}
}

func TestInventorySlots(t *testing.T) {
	fc := &fakeClassifier{verdict: classifier.Verdict{Valid: true}}
	s := newTestService(t, persistence.NewMemory(), fc)
	alice := startedUser(t, s, "Alice")
	bob := startedUser(t, s, "Bob")

	s.ValidateImageQuest(ctx, alice, 2, []byte("x"), "")
	s.ValidateImageQuest(ctx, bob, 3, []byte("x"), "")

	slots, err := s.Inventory(alice)
	if err != nil {
		t.Fatal(err)
	}
	want := []SlotState{SlotHeld, SlotFound, SlotUnknown, SlotUnknown}
	for i, w := range want {
		if slots[i].State != w {
			t.Errorf("Slot %s: expected %s, got %s", slots[i].Key, w, slots[i].State)
		}
	}
	if slots[0].Name != "Clé de l'Eau" || slots[0].AcquiredAt == nil {
		t.Errorf("Held slot should carry name and date, got %+v", slots[0])
	}
	if slots[3].Icon != quest.IconFire {
		t.Errorf("Expected fire icon, got %s", slots[3].Icon)
	}
}

func TestSearchUsers(t *testing.T) {
	s := newTestService(t, persistence.NewMemory(), nil)
	for _, name := range []string{"Margaux", "Martin", "Zoé"} {
		s.Login(ctx, "d-"+name, name, "")
	}

	all := s.SearchUsers("")
	if len(all) != 3 || all[0].Name != "Margaux" || all[0].Role != "admin" {
		t.Fatalf("Empty query should list everyone in order, got %+v", all)
	}

	got := s.SearchUsers("mrt")
	if len(got) != 1 || got[0].Name != "Martin" {
		t.Errorf("Expected Martin, got %+v", got)
	}
	if got := s.SearchUsers("ZO"); len(got) != 1 || got[0].Name != "Zoé" {
		t.Errorf("Search should ignore case, got %+v", got)
	}
}

func TestNearby(t *testing.T) {
	s := newTestService(t, persistence.NewMemory(), nil)
	pontNeuf := geo.Point{Lat: 48.8570, Lng: 2.3413}

	ranked := s.Nearby(pontNeuf)
	if len(ranked) != 7 {
		t.Fatalf("Expected every located quest, got %d", len(ranked))
	}
	if ranked[0].ID != 2 || !ranked[0].IsNearby || ranked[0].Label != "0 m" {
		t.Errorf("Pont-Neuf should come first and be nearby, got %+v", ranked[0])
	}
	if ranked[1].IsNearby {
		t.Errorf("Other waypoints are far away, got %+v", ranked[1])
	}
}
