package broadcast

import (
	"encoding/json"

	"github.com/wfunc/gardien/logger"
	"github.com/wfunc/gardien/network"
	"github.com/wfunc/gardien/quest"
	"github.com/wfunc/gardien/services"
	"github.com/wfunc/gardien/session"
)

// 广播接口
type Broadcaster interface {
	BroadcastToAll(msgID uint16, data []byte) error
	BroadcastToUsers(userIDs []string, msgID uint16, data []byte) error
}

// 基于会话的广播器
type SessionBroadcaster struct {
	sessionManager *session.Manager
}

func NewSessionBroadcaster(sessionManager *session.Manager) *SessionBroadcaster {
	return &SessionBroadcaster{sessionManager: sessionManager}
}

// BroadcastToAll sends to every logged in session.
func (b *SessionBroadcaster) BroadcastToAll(msgID uint16, data []byte) error {
	for _, s := range b.sessionManager.All() {
		if s.UserID() == "" {
			continue
		}
		if err := s.Send(msgID, data); err != nil {
			// 发送失败的连接由读循环负责清理
			logger.Log.Debugf("Broadcast to session %s failed: %v", s.GetID(), err)
			continue
		}
	}
	return nil
}

func (b *SessionBroadcaster) BroadcastToUsers(userIDs []string, msgID uint16, data []byte) error {
	for _, userID := range userIDs {
		sessions := b.sessionManager.GetByUserID(userID)
		for _, s := range sessions {
			if err := s.Send(msgID, data); err != nil {
				logger.Log.Debugf("Send to session %s failed: %v", s.GetID(), err)
				continue
			}
		}
	}
	return nil
}

// Relay forwards game events to the connected players: key changes go to
// everyone, review outcomes to the reviewed user only.
func Relay(b Broadcaster) services.Listener {
	return func(e services.Event) {
		switch e.Kind {
		case services.EventKeysChanged:
			ready := true
			have := make(map[string]bool, len(e.Keys))
			for _, k := range e.Keys {
				have[k] = true
			}
			for _, k := range quest.ElementalKeys {
				if !have[k] {
					ready = false
				}
			}
			data, _ := json.Marshal(network.KeysChanged{Keys: e.Keys, UnionReady: ready})
			b.BroadcastToAll(network.MsgTypeKeysChanged, data)
		case services.EventReviewResolved:
			data, _ := json.Marshal(network.ReviewResolved{QuestID: e.QuestID, Approved: e.Approved})
			b.BroadcastToUsers([]string{e.UserID}, network.MsgTypeReviewResolved, data)
		}
	}
}
