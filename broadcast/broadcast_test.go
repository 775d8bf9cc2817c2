package broadcast

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/wfunc/gardien/network"
	"github.com/wfunc/gardien/quest"
	"github.com/wfunc/gardien/services"
	"github.com/wfunc/gardien/session"
)

type sent struct {
	msgID uint16
	data  []byte
}

type MockConnection struct {
	sent []sent
}

func (m *MockConnection) Send(msgID uint16, data []byte) error {
	m.sent = append(m.sent, sent{msgID, data})
	return nil
}
func (m *MockConnection) Close() error                         { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func setup() (*SessionBroadcaster, map[string]*MockConnection) {
	manager := session.NewManager()
	conns := map[string]*MockConnection{}
	for id, user := range map[string]string{"s1": "alice", "s2": "bob", "s3": ""} {
		conn := &MockConnection{}
		conns[id] = conn
		s := session.NewSession(id, conn)
		if user != "" {
			s.Bind("dev-"+id, user)
		}
		manager.Add(s)
	}
	return NewSessionBroadcaster(manager), conns
}

func TestRelay_KeysChangedGoesToLoggedInSessions(t *testing.T) {
	b, conns := setup()
	Relay(b)(services.Event{Kind: services.EventKeysChanged, Keys: quest.ElementalKeys})

	for _, id := range []string{"s1", "s2"} {
		if len(conns[id].sent) != 1 || conns[id].sent[0].msgID != network.MsgTypeKeysChanged {
			t.Fatalf("Session %s should get the key push, got %+v", id, conns[id].sent)
		}
	}
	if len(conns["s3"].sent) != 0 {
		t.Error("Anonymous session should not get pushes")
	}

	var msg network.KeysChanged
	if err := json.Unmarshal(conns["s1"].sent[0].data, &msg); err != nil {
		t.Fatal(err)
	}
	if !msg.UnionReady || len(msg.Keys) != 4 {
		t.Errorf("Unexpected payload %+v", msg)
	}
}

func TestRelay_ReviewGoesToUser(t *testing.T) {
	b, conns := setup()
	Relay(b)(services.Event{Kind: services.EventReviewResolved, UserID: "bob", QuestID: 3, Approved: true})

	if len(conns["s1"].sent) != 0 {
		t.Error("Other users should not be told")
	}
	if len(conns["s2"].sent) != 1 || conns["s2"].sent[0].msgID != network.MsgTypeReviewResolved {
		t.Fatalf("Bob should be told, got %+v", conns["s2"].sent)
	}
	var msg network.ReviewResolved
	json.Unmarshal(conns["s2"].sent[0].data, &msg)
	if msg.QuestID != 3 || !msg.Approved {
		t.Errorf("Unexpected payload %+v", msg)
	}
}

func TestRelay_PartialKeysNotReady(t *testing.T) {
	b, conns := setup()
	Relay(b)(services.Event{Kind: services.EventKeysChanged, Keys: []string{quest.KeyWater}})
	var msg network.KeysChanged
	json.Unmarshal(conns["s2"].sent[0].data, &msg)
	if msg.UnionReady {
		t.Error("Union should not be ready with one key")
	}
}
