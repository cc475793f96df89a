// Package envelope defines the tagged payloads exchanged over the chat socket.
// Every frame is a JSON object carrying a "messageType" discriminator.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Type string

const (
	TypeChatMessage    Type = "CHAT_MESSAGE"
	TypeChatEnter      Type = "CHAT_ENTER"
	TypeUpdateChatRoom Type = "UPDATE_CHAT_ROOM"
	TypeError          Type = "ERROR"
)

// ErrUnknownType is returned by Decode for a tag outside the known set.
// Callers log it and drop the frame.
var ErrUnknownType = errors.New("envelope: unknown messageType")

// Envelope is implemented by every payload variant.
type Envelope interface {
	MessageType() Type
}

// ChatMessage is both the inbound send request (roomId, text) and the
// outbound broadcast of a persisted message.
type ChatMessage struct {
	SenderID       int64     `json:"senderId"`
	SenderNickname string    `json:"senderNickname"`
	RoomID         int64     `json:"roomId"`
	Text           string    `json:"text"`
	MessageID      int64     `json:"messageId"`
	UnreadCount    int       `json:"unreadCount"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ChatEnter announces that a member entered a room. LastReadMessageID is
// null when the member has never read anything in the room.
type ChatEnter struct {
	MemberID          int64  `json:"memberId"`
	RoomID            int64  `json:"roomId"`
	LastReadMessageID *int64 `json:"lastReadMessageId"`
}

// UpdateChatRoom refreshes one member's room list entry.
type UpdateChatRoom struct {
	RoomID               int64     `json:"roomId"`
	LastMessageText      string    `json:"lastMessageText"`
	LastMessageTimestamp time.Time `json:"lastMessageTimestamp"`
	UnreadCount          int       `json:"unreadCount"`
}

// Failure is sent only to the connection whose request failed. Request is
// the tag of the rejected frame; Reason is a stable machine-readable code.
type Failure struct {
	Request Type   `json:"request"`
	RoomID  int64  `json:"roomId"`
	Reason  string `json:"reason"`
}

func (ChatMessage) MessageType() Type    { return TypeChatMessage }
func (ChatEnter) MessageType() Type      { return TypeChatEnter }
func (UpdateChatRoom) MessageType() Type { return TypeUpdateChatRoom }
func (Failure) MessageType() Type        { return TypeError }

func (m ChatMessage) MarshalJSON() ([]byte, error) {
	type alias ChatMessage
	return json.Marshal(struct {
		MessageType Type `json:"messageType"`
		alias
	}{TypeChatMessage, alias(m)})
}

func (m ChatEnter) MarshalJSON() ([]byte, error) {
	type alias ChatEnter
	return json.Marshal(struct {
		MessageType Type `json:"messageType"`
		alias
	}{TypeChatEnter, alias(m)})
}

func (m UpdateChatRoom) MarshalJSON() ([]byte, error) {
	type alias UpdateChatRoom
	return json.Marshal(struct {
		MessageType Type `json:"messageType"`
		alias
	}{TypeUpdateChatRoom, alias(m)})
}

func (m Failure) MarshalJSON() ([]byte, error) {
	type alias Failure
	return json.Marshal(struct {
		MessageType Type `json:"messageType"`
		alias
	}{TypeError, alias(m)})
}

// Encode serializes e with its discriminator.
func Encode(e Envelope) ([]byte, error) {
	if e == nil {
		return nil, errors.New("envelope: nil envelope")
	}
	return json.Marshal(e)
}

// Decode reads the discriminator and unmarshals into the matching variant.
func Decode(data []byte) (Envelope, error) {
	var head struct {
		MessageType Type `json:"messageType"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("envelope: decode: %w", err)
	}

	var (
		out Envelope
		err error
	)
	switch head.MessageType {
	case TypeChatMessage:
		var m ChatMessage
		err = json.Unmarshal(data, &m)
		out = m
	case TypeChatEnter:
		var m ChatEnter
		err = json.Unmarshal(data, &m)
		out = m
	case TypeUpdateChatRoom:
		var m UpdateChatRoom
		err = json.Unmarshal(data, &m)
		out = m
	case TypeError:
		var m Failure
		err = json.Unmarshal(data, &m)
		out = m
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.MessageType)
	}
	if err != nil {
		return nil, fmt.Errorf("envelope: decode %s: %w", head.MessageType, err)
	}
	return out, nil
}
