package chat

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrNotFound is the base of every lookup failure so callers can test with errors.Is.
var ErrNotFound = errors.New("chat: not found")

// Domain-level errors for chat behaviors
var (
	ErrMemberNotFound    = fmt.Errorf("%w: member", ErrNotFound)
	ErrRoomNotFound      = fmt.Errorf("%w: room", ErrNotFound)
	ErrMessageNotFound   = fmt.Errorf("%w: message", ErrNotFound)
	ErrMembersNotFound   = fmt.Errorf("%w: one or more receivers", ErrNotFound)
	ErrNotParticipant    = errors.New("chat: member is not a participant in the room")
	ErrRoomAlreadyExists = errors.New("chat: a room with the same members already exists")
	ErrSenderInReceivers = errors.New("chat: sender must not be listed as a receiver")
	ErrNoReceivers       = errors.New("chat: at least one receiver is required")
	ErrInvalidMessage    = errors.New("chat: room_id and sender_id are required")
	ErrEmptyMessage      = errors.New("chat: empty message")
	ErrMessageTooLong    = errors.New("chat: message exceeds maximum length")
)

// ChatRoom is the aggregate for a room and its durable participants.
//
// The application layer hydrates it from the store before invoking its
// behaviors; persistence stays outside the domain.
type ChatRoom struct {
	Room         Room
	Participants map[int64]Participant // keyed by memberID
}

// NewChatRoom builds the aggregate from a room and its participant rows.
func NewChatRoom(room Room, participants []Participant) *ChatRoom {
	byMember := make(map[int64]Participant, len(participants))
	for _, p := range participants {
		byMember[p.MemberID] = p
	}
	return &ChatRoom{Room: room, Participants: byMember}
}

// HasParticipant tells whether memberID belongs to this room.
func (c *ChatRoom) HasParticipant(memberID int64) bool {
	if c == nil || c.Participants == nil {
		return false
	}
	_, ok := c.Participants[memberID]
	return ok
}

// MemberIDs returns participant ids in ascending order.
func (c *ChatRoom) MemberIDs() []int64 {
	ids := make([]int64, 0, len(c.Participants))
	for id := range c.Participants {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PostMessage applies domain rules and returns a validated message ready to persist.
//
// Validations:
//   - Sender must be a participant
//   - Text must be non-blank and within MaxMessageLength
//
// If now is zero, the current UTC time is used as CreatedAt.
func (c *ChatRoom) PostMessage(senderID int64, text string, now time.Time) (Message, error) {
	if !c.HasParticipant(senderID) {
		return Message{}, ErrNotParticipant
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	msg, err := NewMessage(Message{
		RoomID:    c.Room.ID,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: now,
	})
	if err != nil {
		return Message{}, err
	}
	return *msg, nil
}
