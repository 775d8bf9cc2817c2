package server

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/wfunc/gardien/classifier"
	"github.com/wfunc/gardien/geo"
	"github.com/wfunc/gardien/logger"
	"github.com/wfunc/gardien/models"
	"github.com/wfunc/gardien/network"
	"github.com/wfunc/gardien/oracle"
	"github.com/wfunc/gardien/quest"
	"github.com/wfunc/gardien/services"
	"github.com/wfunc/gardien/session"
	"github.com/wfunc/gardien/state"
)

var errBadRequest = errors.New("malformed request")

// Reply payloads.

type ProfileReply struct {
	User       services.UserSummary `json:"user"`
	Keys       []string             `json:"keys"`
	UnionReady bool                 `json:"union_ready"`
}

type QuestReply struct {
	Quest  quest.Public   `json:"quest"`
	Status state.Progress `json:"status"`
}

type NearbyReply struct {
	Quests []geo.Proximity `json:"quests"`
}

type OracleReply struct {
	QuestID int                `json:"quest_id"`
	Message models.ChatMessage `json:"message"`
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	start := time.Now()
	sess.Touch()
	if s.monitor != nil {
		s.monitor.IncMessagesReceived()
		defer func() { s.monitor.ObserveMessageLatency(time.Since(start)) }()
	}

	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.Send(network.MsgTypeHeartbeat, nil)
	case network.MsgTypeLogin:
		s.handleLogin(sess, packet)
	case network.MsgTypeLogout:
		s.handleLogout(sess, packet)
	case network.MsgTypeStartGame:
		s.handleStartGame(sess, packet)
	case network.MsgTypeProfile:
		s.handleProfile(sess, packet)
	case network.MsgTypeQuestHub:
		s.handleQuestHub(sess, packet)
	case network.MsgTypeSelectQuest:
		s.handleSelectQuest(sess, packet)
	case network.MsgTypeSubmitAnswer:
		s.handleSubmitAnswer(sess, packet)
	case network.MsgTypeSubmitImage:
		s.handleSubmitImage(sess, packet)
	case network.MsgTypeRequestReview:
		s.handleRequestReview(sess, packet)
	case network.MsgTypeInventory:
		s.handleInventory(sess, packet)
	case network.MsgTypePosition:
		s.handlePosition(sess, packet)
	case network.MsgTypeOracleAsk:
		s.handleOracleAsk(sess, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

func (s *GameServer) reply(sess *session.Session, msgID uint16, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Log.Errorf("Encode reply %d for session %s: %v", msgID, sess.GetID(), err)
		return
	}
	if err := sess.Send(msgID, data); err != nil {
		logger.Log.Warnf("Send %d to session %s: %v", msgID, sess.GetID(), err)
	}
}

func (s *GameServer) fail(sess *session.Session, msgID uint16, err error) {
	s.reply(sess, network.MsgTypeError, network.ErrorMessage{
		Request: msgID,
		Code:    errorCode(err),
		Message: err.Error(),
	})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, errBadRequest):
		return "bad_request"
	case errors.Is(err, services.ErrNotLoggedIn):
		return "not_logged_in"
	case errors.Is(err, services.ErrUnknownUser):
		return "unknown_user"
	case errors.Is(err, services.ErrUnknownQuest):
		return "unknown_quest"
	case errors.Is(err, services.ErrNotAdmin):
		return "forbidden"
	case errors.Is(err, services.ErrAdminCapReached):
		return "admin_cap_reached"
	case errors.Is(err, services.ErrInvalidName), errors.Is(err, services.ErrInvalidDevice):
		return "invalid_login"
	case errors.Is(err, oracle.ErrEmptyMessage):
		return "empty_message"
	case errors.Is(err, classifier.ErrUnavailable), errors.Is(err, classifier.ErrMalformed):
		return "unavailable"
	default:
		return "internal"
	}
}

func decode(packet *network.Packet, v interface{}) error {
	if err := json.Unmarshal(packet.Data, v); err != nil {
		return errBadRequest
	}
	return nil
}

// player returns the user bound to sess, or sends not_logged_in.
func (s *GameServer) player(sess *session.Session, msgID uint16) (string, bool) {
	userID := sess.UserID()
	if userID == "" {
		s.fail(sess, msgID, services.ErrNotLoggedIn)
		return "", false
	}
	return userID, true
}

func (s *GameServer) profile(userID string) (ProfileReply, error) {
	summary, err := s.game.Summary(userID)
	if err != nil {
		return ProfileReply{}, err
	}
	return ProfileReply{User: summary, Keys: s.game.GlobalKeys(), UnionReady: s.game.UnionReady()}, nil
}

func (s *GameServer) handleLogin(sess *session.Session, packet *network.Packet) {
	var req network.LoginRequest
	if err := decode(packet, &req); err != nil {
		s.fail(sess, packet.MsgID, err)
		return
	}
	u, err := s.game.Login(s.baseCtx, req.DeviceID, req.Name, req.Password)
	if err != nil {
		s.fail(sess, packet.MsgID, err)
		return
	}
	sess.Bind(req.DeviceID, u.ID)
	logger.Log.Infof("Session %s logged in as %s", sess.GetID(), u.Name)

	p, err := s.profile(u.ID)
	if err != nil {
		s.fail(sess, packet.MsgID, err)
		return
	}
	s.reply(sess, packet.MsgID, p)
}

func (s *GameServer) handleLogout(sess *session.Session, packet *network.Packet) {
	if _, ok := s.player(sess, packet.MsgID); !ok {
		return
	}
	if err := s.game.Logout(s.baseCtx, sess.DeviceID()); err != nil {
		s.fail(sess, packet.MsgID, err)
		return
	}
	sess.Unbind()
	s.reply(sess, packet.MsgID, struct{}{})
}

func (s *GameServer) handleStartGame(sess *session.Session, packet *network.Packet) {
	userID, ok := s.player(sess, packet.MsgID)
	if !ok {
		return
	}
	res, err := s.game.StartEntryQuest(s.baseCtx, userID)
	if err != nil {
		s.fail(sess, packet.MsgID, err)
		return
	}
	s.reply(sess, packet.MsgID, res)
}

func (s *GameServer) handleProfile(sess *session.Session, packet *network.Packet) {
	userID, ok := s.player(sess, packet.MsgID)
	if !ok {
		return
	}
	p, err := s.profile(userID)
	if err != nil {
		s.fail(sess, packet.MsgID, err)
		return
	}
	s.reply(sess, packet.MsgID, p)
}

func (s *GameServer) handleQuestHub(sess *session.Session, packet *network.Packet) {
	userID, ok := s.player(sess, packet.MsgID)
	if !ok {
		return
	}
	hub, err := s.game.Hub(userID)
	if err != nil {
		s.fail(sess, packet.MsgID, err)
		return
	}
	s.reply(sess, packet.MsgID, hub)
}

func (s *GameServer) handleSelectQuest(sess *session.Session, packet *network.Packet) {
	userID, ok := s.player(sess, packet.MsgID)
	if !ok {
		return
	}
	var req network.QuestRequest
	if err := decode(packet, &req); err != nil {
		s.fail(sess, packet.MsgID, err)
		return
	}
	q, found := s.game.Catalog().Get(req.QuestID)
	if !found {
		s.fail(sess, packet.MsgID, services.ErrUnknownQuest)
		return
	}
	status, err := s.game.QuestStatus(userID, q.ID)
	if err != nil {
		s.fail(sess, packet.MsgID, err)
		return
	}
	sess.Focus(q.ID)
	s.reply(sess, packet.MsgID, QuestReply{Quest: q.Public(), Status: status})
}

func (s *GameServer) handleSubmitAnswer(sess *session.Session, packet *network.Packet) {
	userID, ok := s.player(sess, packet.MsgID)
	if !ok {
		return
	}
	var req network.AnswerRequest
	if err := decode(packet, &req); err != nil {
		s.fail(sess, packet.MsgID, err)
		return
	}
	res, err := s.game.ValidateQuest(s.baseCtx, userID, req.QuestID, req.Answer)
	if err != nil {
		s.fail(sess, packet.MsgID, err)
		return
	}
	s.reply(sess, packet.MsgID, res)
}

// handleSubmitImage judges the photo off the read loop so heartbeats keep
// flowing while the classifier works.
func (s *GameServer) handleSubmitImage(sess *session.Session, packet *network.Packet) {
	userID, ok := s.player(sess, packet.MsgID)
	if !ok {
		return
	}
	var req network.ImageRequest
	if err := decode(packet, &req); err != nil {
		s.fail(sess, packet.MsgID, err)
		return
	}
	if len(req.Image) == 0 {
		s.fail(sess, packet.MsgID, errBadRequest)
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		res, err := s.game.ValidateImageQuest(s.baseCtx, userID, req.QuestID, req.Image, req.MimeType)
		if err != nil {
			s.fail(sess, packet.MsgID, err)
			return
		}
		if res.Err != nil {
			logger.Log.Warnf("Image for quest %d from %s not judged: %v", req.QuestID, userID, res.Err)
		}
		s.reply(sess, packet.MsgID, res)
	}()
}

func (s *GameServer) handleRequestReview(sess *session.Session, packet *network.Packet) {
	userID, ok := s.player(sess, packet.MsgID)
	if !ok {
		return
	}
	var req network.QuestRequest
	if err := decode(packet, &req); err != nil {
		s.fail(sess, packet.MsgID, err)
		return
	}
	res, err := s.game.RequestManualReview(s.baseCtx, userID, req.QuestID)
	if err != nil {
		s.fail(sess, packet.MsgID, err)
		return
	}
	s.reply(sess, packet.MsgID, res)
}

func (s *GameServer) handleInventory(sess *session.Session, packet *network.Packet) {
	userID, ok := s.player(sess, packet.MsgID)
	if !ok {
		return
	}
	slots, err := s.game.Inventory(userID)
	if err != nil {
		s.fail(sess, packet.MsgID, err)
		return
	}
	s.reply(sess, packet.MsgID, slots)
}

func (s *GameServer) handlePosition(sess *session.Session, packet *network.Packet) {
	var req network.PositionRequest
	if err := decode(packet, &req); err != nil {
		s.fail(sess, packet.MsgID, err)
		return
	}
	s.reply(sess, packet.MsgID, NearbyReply{Quests: s.game.Nearby(geo.Point{Lat: req.Lat, Lng: req.Lng})})
}

// handleOracleAsk asks for a hint about the focused quest.
func (s *GameServer) handleOracleAsk(sess *session.Session, packet *network.Packet) {
	if _, ok := s.player(sess, packet.MsgID); !ok {
		return
	}
	var req network.OracleRequest
	if err := decode(packet, &req); err != nil {
		s.fail(sess, packet.MsgID, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.fail(sess, packet.MsgID, oracle.ErrEmptyMessage)
		return
	}
	questID, focused := sess.ActiveQuest()
	if !focused {
		s.fail(sess, packet.MsgID, services.ErrUnknownQuest)
		return
	}
	q, _ := s.game.Catalog().Get(questID)
	if s.oracle == nil {
		s.reply(sess, packet.MsgID, OracleReply{QuestID: questID, Message: sess.Transcript.Append(models.SenderOracle, oracle.Fallback)})
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		msg, err := sess.Transcript.Ask(s.baseCtx, s.oracle, q.Title, req.Message)
		if errors.Is(err, oracle.ErrStale) {
			logger.Log.Debugf("Dropping oracle reply for session %s, quest %d is no longer active", sess.GetID(), questID)
			return
		}
		if err != nil {
			logger.Log.Warnf("Oracle for session %s: %v", sess.GetID(), err)
			s.fail(sess, packet.MsgID, err)
			return
		}
		s.reply(sess, packet.MsgID, OracleReply{QuestID: questID, Message: msg})
	}()
}
