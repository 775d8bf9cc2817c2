package network

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	MsgTypeHeartbeat = 1
	MsgTypeError     = 2

	MsgTypeLogin     = 101
	MsgTypeLogout    = 102
	MsgTypeStartGame = 103
	MsgTypeProfile   = 104

	MsgTypeQuestHub      = 201
	MsgTypeSelectQuest   = 202
	MsgTypeSubmitAnswer  = 203
	MsgTypeSubmitImage   = 204
	MsgTypeRequestReview = 205
	MsgTypeInventory     = 206
	MsgTypePosition      = 207

	MsgTypeOracleAsk = 301

	MsgTypeKeysChanged    = 401
	MsgTypeReviewResolved = 402
)

// 包头: 2字节消息ID + 4字节数据长度
const HeaderSize = 6

// MaxPayload bounds one packet; photos are the largest payloads.
const MaxPayload = 8 << 20

var (
	ErrShortPacket     = errors.New("packet shorter than its header")
	ErrPayloadTooLarge = errors.New("packet payload too large")
)

type Packet struct {
	MsgID  uint16
	Data   []byte
	Length uint32
}

func Encode(msgID uint16, data []byte) ([]byte, error) {
	if len(data) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(data))
	}
	packet := make([]byte, HeaderSize+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint32(packet[2:6], uint32(len(data)))
	copy(packet[HeaderSize:], data)
	return packet, nil
}

func Decode(data []byte) (*Packet, error) {
	if len(data) < HeaderSize {
		return nil, ErrShortPacket
	}
	msgID := binary.BigEndian.Uint16(data[0:2])
	length := binary.BigEndian.Uint32(data[2:6])
	if length > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	if uint64(len(data)) < uint64(HeaderSize)+uint64(length) {
		return nil, ErrShortPacket
	}
	return &Packet{
		MsgID:  msgID,
		Length: length,
		Data:   data[HeaderSize : HeaderSize+int(length)],
	}, nil
}

// Request payloads.

type LoginRequest struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
	Password string `json:"password,omitempty"`
}

type QuestRequest struct {
	QuestID int `json:"quest_id"`
}

type AnswerRequest struct {
	QuestID int    `json:"quest_id"`
	Answer  string `json:"answer"`
}

// ImageRequest carries the photo base64 encoded in JSON.
type ImageRequest struct {
	QuestID  int    `json:"quest_id"`
	Image    []byte `json:"image"`
	MimeType string `json:"mime_type"`
}

type PositionRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type OracleRequest struct {
	Message string `json:"message"`
}

// Push and error payloads.

type ErrorMessage struct {
	Request uint16 `json:"request"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type KeysChanged struct {
	Keys       []string `json:"keys"`
	UnionReady bool     `json:"union_ready"`
}

type ReviewResolved struct {
	QuestID  int  `json:"quest_id"`
	Approved bool `json:"approved"`
}
