package repository

import (
	"context"

	chat "go-chatroom/internal/pkg/chat/application/domain"
)

// MemberRepository resolves members from the member directory.
type MemberRepository interface {
	FindMember(ctx context.Context, memberID int64) (chat.Member, error)
	FindMembers(ctx context.Context, memberIDs []int64) ([]chat.Member, error)
	ListMembers(ctx context.Context) ([]chat.Member, error)
}

// RoomRepository covers rooms and their durable participants.
type RoomRepository interface {
	CreateRoom(ctx context.Context, r chat.Room, memberIDs []int64) (chat.Room, error)
	FindRoom(ctx context.Context, roomID int64) (chat.Room, error)
	// FindRoomByMembers returns the room whose participant set is exactly memberIDs.
	FindRoomByMembers(ctx context.Context, memberIDs []int64) (chat.Room, bool, error)
	RoomsOfMember(ctx context.Context, memberID int64) ([]chat.Room, error)
	Participants(ctx context.Context, roomID int64) ([]chat.Participant, error)
	SetPresent(ctx context.Context, roomID int64, memberID int64, present bool) error
	ClearPresence(ctx context.Context) error
}

// MessageRepository stores immutable messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, m chat.Message) (chat.Message, error)
	FindMessage(ctx context.Context, messageID int64) (chat.Message, error)
	FindLatestMessage(ctx context.Context, roomID int64) (chat.Message, bool, error)
	// ListMessages returns up to limit most recent messages in ascending id order.
	ListMessages(ctx context.Context, roomID int64, limit int) ([]chat.Message, error)
}

// ReadFlagRepository stores one read flag per (message, member).
type ReadFlagRepository interface {
	InsertReadFlags(ctx context.Context, flags []chat.ReadFlag) error
	MarkRoomRead(ctx context.Context, memberID int64, roomID int64) (int64, error)
	MarkMessageRead(ctx context.Context, messageID int64, memberID int64) error
	CountUnreadInRoom(ctx context.Context, roomID int64, memberID int64) (int, error)
	CountUnreadForMessage(ctx context.Context, messageID int64) (int, error)
	// MaxReadMessageID reports false when the member has no read row in the room.
	MaxReadMessageID(ctx context.Context, memberID int64, roomID int64) (int64, bool, error)
	// LastReadByMember maps each member with a read row to its highest read message id.
	LastReadByMember(ctx context.Context, roomID int64) (map[int64]int64, error)
}

// ChatRepository defines persistence operations for the chat domain.
// InTx runs fn against a store bound to one atomic unit of work: either every
// write inside fn becomes visible or none does.
type ChatRepository interface {
	MemberRepository
	RoomRepository
	MessageRepository
	ReadFlagRepository
	InTx(ctx context.Context, fn func(ctx context.Context, tx ChatRepository) error) error
}
