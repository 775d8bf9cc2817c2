package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wfunc/gardien/classifier"
	"github.com/wfunc/gardien/monitor"
	"github.com/wfunc/gardien/network"
	"github.com/wfunc/gardien/oracle"
	"github.com/wfunc/gardien/persistence"
	"github.com/wfunc/gardien/quest"
	"github.com/wfunc/gardien/services"
	"github.com/wfunc/gardien/session"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct {
	mu      sync.Mutex
	packets []*network.Packet
	closed  bool
}

func (m *MockConnection) Send(msgID uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packets = append(m.packets, &network.Packet{MsgID: msgID, Data: data, Length: uint32(len(data))})
	return nil
}
func (m *MockConnection) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

// last returns the most recent packet sent.
func (m *MockConnection) last(t *testing.T) *network.Packet {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.packets) == 0 {
		t.Fatal("No packet sent")
	}
	return m.packets[len(m.packets)-1]
}

func (m *MockConnection) find(msgID uint16) *network.Packet {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.packets {
		if p.MsgID == msgID {
			return p
		}
	}
	return nil
}

type fakeOracle struct{ asked []oracle.HintRequest }

func (f *fakeOracle) Hint(_ context.Context, req oracle.HintRequest) (string, error) {
	f.asked = append(f.asked, req)
	return "Cherche l'eau qui souffle.", nil
}

func newTestServer(t *testing.T, verdict classifier.Verdict) (*GameServer, *fakeOracle) {
	t.Helper()
	game, err := services.NewGameService(context.Background(), services.Config{
		DB: persistence.NewMemory(),
		Classifier: classifier.Func(func(context.Context, []byte, string, string) (classifier.Verdict, error) {
			return verdict, nil
		}),
	})
	if err != nil {
		t.Fatal(err)
	}
	o := &fakeOracle{}
	s, err := NewGameServer(Options{HTTPAddr: "127.0.0.1:0", HeartbeatInterval: time.Hour}, game, o, nil, monitor.NewMonitor("test"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Shutdown)
	return s, o
}

func send(t *testing.T, s *GameServer, sess *session.Session, msgID uint16, v interface{}) {
	t.Helper()
	var data []byte
	if v != nil {
		var err error
		if data, err = json.Marshal(v); err != nil {
			t.Fatal(err)
		}
	}
	s.handlePacket(sess, &network.Packet{MsgID: msgID, Data: data, Length: uint32(len(data))})
}

func newPlayer(t *testing.T, s *GameServer, name string) (*session.Session, *MockConnection) {
	t.Helper()
	conn := &MockConnection{}
	sess := session.NewSession("sess-"+name, conn)
	s.sessionManager.Add(sess)
	send(t, s, sess, network.MsgTypeLogin, network.LoginRequest{DeviceID: "dev-" + name, Name: name})
	if p := conn.last(t); p.MsgID != network.MsgTypeLogin {
		t.Fatalf("Login failed: %d %s", p.MsgID, p.Data)
	}
	return sess, conn
}

func TestHandlePacket_RequiresLogin(t *testing.T) {
	s, _ := newTestServer(t, classifier.Verdict{})
	conn := &MockConnection{}
	sess := session.NewSession("anon", conn)

	send(t, s, sess, network.MsgTypeQuestHub, nil)
	p := conn.last(t)
	if p.MsgID != network.MsgTypeError {
		t.Fatalf("Expected an error packet, got %d", p.MsgID)
	}
	var e network.ErrorMessage
	json.Unmarshal(p.Data, &e)
	if e.Code != "not_logged_in" || e.Request != network.MsgTypeQuestHub {
		t.Errorf("Unexpected error payload: %+v", e)
	}
}

func TestHandlePacket_Heartbeat(t *testing.T) {
	s, _ := newTestServer(t, classifier.Verdict{})
	conn := &MockConnection{}
	sess := session.NewSession("hb", conn)
	before := sess.LastActive()

	time.Sleep(time.Millisecond)
	send(t, s, sess, network.MsgTypeHeartbeat, nil)
	if conn.last(t).MsgID != network.MsgTypeHeartbeat {
		t.Error("Heartbeat should be echoed")
	}
	if !sess.LastActive().After(before) {
		t.Error("Heartbeat should touch the session")
	}
}

func TestLoginAndProfile(t *testing.T) {
	s, _ := newTestServer(t, classifier.Verdict{})
	alice, conn := newPlayer(t, s, "Alice")

	var p ProfileReply
	json.Unmarshal(conn.last(t).Data, &p)
	if p.User.Name != "Alice" || p.User.Role != "admin" {
		t.Errorf("First user should be admin: %+v", p.User)
	}

	_, bobConn := newPlayer(t, s, "Bob")
	json.Unmarshal(bobConn.last(t).Data, &p)
	if p.User.Role != "player" {
		t.Errorf("Second user should be a player: %+v", p.User)
	}

	send(t, s, alice, network.MsgTypeProfile, nil)
	if conn.last(t).MsgID != network.MsgTypeProfile {
		t.Errorf("Expected a profile reply, got %d", conn.last(t).MsgID)
	}
}

func TestQuestFlow_ImageAndPush(t *testing.T) {
	s, _ := newTestServer(t, classifier.Verdict{Valid: true, Reason: "Bravo"})
	alice, aliceConn := newPlayer(t, s, "Alice")
	_, bobConn := newPlayer(t, s, "Bob")

	send(t, s, alice, network.MsgTypeSubmitImage, network.ImageRequest{QuestID: 2, Image: []byte("jpeg"), MimeType: "image/jpeg"})
	s.inflight.Wait()
	if p := aliceConn.find(network.MsgTypeSubmitImage); p == nil || !strings.Contains(string(p.Data), `"kind":"locked"`) {
		t.Fatalf("Quest 2 should be locked before the call is answered")
	}

	send(t, s, alice, network.MsgTypeStartGame, nil)
	send(t, s, alice, network.MsgTypeSubmitImage, network.ImageRequest{QuestID: 2, Image: []byte("jpeg"), MimeType: "image/jpeg"})
	s.inflight.Wait()

	var res services.Result
	json.Unmarshal(aliceConn.last(t).Data, &res)
	if !res.Success || res.Granted == nil || res.Granted.ID != quest.KeyWater {
		t.Fatalf("Expected the water key, got %+v", res)
	}

	p := bobConn.find(network.MsgTypeKeysChanged)
	if p == nil {
		t.Fatal("Bob should be told about the new key")
	}
	var kc network.KeysChanged
	json.Unmarshal(p.Data, &kc)
	if len(kc.Keys) != 1 || kc.Keys[0] != quest.KeyWater || kc.UnionReady {
		t.Errorf("Unexpected keys push: %+v", kc)
	}
}

func TestSubmitImage_EmptyImage(t *testing.T) {
	s, _ := newTestServer(t, classifier.Verdict{Valid: true})
	alice, conn := newPlayer(t, s, "Alice")

	send(t, s, alice, network.MsgTypeSubmitImage, network.ImageRequest{QuestID: 2})
	var e network.ErrorMessage
	json.Unmarshal(conn.last(t).Data, &e)
	if e.Code != "bad_request" {
		t.Errorf("Expected bad_request, got %+v", e)
	}
}

func TestSelectQuestAndOracle(t *testing.T) {
	s, o := newTestServer(t, classifier.Verdict{})
	alice, conn := newPlayer(t, s, "Alice")

	send(t, s, alice, network.MsgTypeOracleAsk, network.OracleRequest{Message: "Aide-moi"})
	var e network.ErrorMessage
	json.Unmarshal(conn.last(t).Data, &e)
	if e.Code != "unknown_quest" {
		t.Fatalf("Asking without a quest should fail, got %+v", e)
	}

	send(t, s, alice, network.MsgTypeSelectQuest, network.QuestRequest{QuestID: 2})
	var qr QuestReply
	json.Unmarshal(conn.last(t).Data, &qr)
	if qr.Quest.ID != 2 || qr.Status != "locked" {
		t.Errorf("Unexpected quest reply: %+v", qr)
	}

	send(t, s, alice, network.MsgTypeOracleAsk, network.OracleRequest{Message: "Aide-moi"})
	s.inflight.Wait()
	var or OracleReply
	json.Unmarshal(conn.last(t).Data, &or)
	if or.QuestID != 2 || or.Message.Sender != "oracle" || or.Message.Text == "" {
		t.Errorf("Unexpected oracle reply: %+v", or)
	}
	if len(o.asked) != 1 || o.asked[0].QuestTitle != "La Clé de l'Eau" {
		t.Errorf("Oracle should be asked about the focused quest: %+v", o.asked)
	}

	send(t, s, alice, network.MsgTypeSelectQuest, network.QuestRequest{QuestID: 3})
	if len(alice.Transcript.Messages()) != 0 {
		t.Error("Changing quest should clear the transcript")
	}
}

func TestPosition(t *testing.T) {
	s, _ := newTestServer(t, classifier.Verdict{})
	conn := &MockConnection{}
	sess := session.NewSession("walker", conn)

	send(t, s, sess, network.MsgTypePosition, network.PositionRequest{Lat: 48.8570, Lng: 2.3413})
	var nr NearbyReply
	json.Unmarshal(conn.last(t).Data, &nr)
	if len(nr.Quests) == 0 || nr.Quests[0].ID != 2 || !nr.Quests[0].IsNearby {
		t.Errorf("Pont-Neuf should rank first and nearby: %+v", nr.Quests)
	}
}

func TestLogoutUnbinds(t *testing.T) {
	s, _ := newTestServer(t, classifier.Verdict{})
	alice, conn := newPlayer(t, s, "Alice")

	send(t, s, alice, network.MsgTypeLogout, nil)
	if conn.last(t).MsgID != network.MsgTypeLogout || alice.UserID() != "" {
		t.Fatal("Logout should unbind the session")
	}
}

func TestSweepIdle(t *testing.T) {
	s, _ := newTestServer(t, classifier.Verdict{})
	s.opts.IdleTimeout = time.Millisecond
	conn := &MockConnection{}
	s.sessionManager.Add(session.NewSession("stale", conn))

	time.Sleep(5 * time.Millisecond)
	s.sweepIdle()
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if !conn.closed {
		t.Error("Idle session should be closed")
	}
}

func TestWebSocketRoundTrip(t *testing.T) {
	s, _ := newTestServer(t, classifier.Verdict{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer ws.Close()

	body, _ := json.Marshal(network.LoginRequest{DeviceID: "phone", Name: "Zoé"})
	frame, _ := network.Encode(network.MsgTypeLogin, body)
	if err := ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatal(err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	p, err := network.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	var profile ProfileReply
	json.Unmarshal(p.Data, &profile)
	if p.MsgID != network.MsgTypeLogin || profile.User.Name != "Zoé" {
		t.Errorf("Unexpected login reply %d: %s", p.MsgID, p.Data)
	}
}
