// Package ledger computes and mutates per-member read state: presence flags,
// read-flag rows and the unread counts derived from them.
package ledger

import (
	"context"

	chat "go-chatroom/internal/pkg/chat/application/domain"
	repository "go-chatroom/internal/pkg/chat/persistence/repository/port"

	"github.com/samber/lo"
)

type Ledger struct {
	repo repository.ChatRepository
}

func New(repo repository.ChatRepository) *Ledger {
	return &Ledger{repo: repo}
}

// Within returns a ledger bound to tx, typically the store handed to InTx.
func (l *Ledger) Within(tx repository.ChatRepository) *Ledger {
	return &Ledger{repo: tx}
}

// PresentFlagFor reports whether the member is currently inside the room for
// read accounting.
func (l *Ledger) PresentFlagFor(ctx context.Context, roomID int64, memberID int64) (bool, error) {
	participants, err := l.repo.Participants(ctx, roomID)
	if err != nil {
		return false, err
	}
	p, ok := lo.Find(participants, func(p chat.Participant) bool { return p.MemberID == memberID })
	if !ok {
		return false, chat.ErrNotParticipant
	}
	return p.Present, nil
}

func (l *Ledger) SetPresent(ctx context.Context, roomID int64, memberID int64, present bool) error {
	return l.repo.SetPresent(ctx, roomID, memberID, present)
}

// RecordMessageReadFlags creates one row per current participant of the
// message's room. The sender's row is always read; any other participant's
// row is read when that participant is present.
func (l *Ledger) RecordMessageReadFlags(ctx context.Context, msg chat.Message) ([]chat.ReadFlag, error) {
	participants, err := l.repo.Participants(ctx, msg.RoomID)
	if err != nil {
		return nil, err
	}
	flags := lo.Map(participants, func(p chat.Participant, _ int) chat.ReadFlag {
		return chat.ReadFlag{
			MessageID: msg.ID,
			MemberID:  p.MemberID,
			RoomID:    msg.RoomID,
			Read:      p.MemberID == msg.SenderID || p.Present,
		}
	})
	if err := l.repo.InsertReadFlags(ctx, flags); err != nil {
		return nil, err
	}
	return flags, nil
}

// MarkAllReadUpTo flips every unread row of the member in the room.
func (l *Ledger) MarkAllReadUpTo(ctx context.Context, memberID int64, roomID int64) (int64, error) {
	return l.repo.MarkRoomRead(ctx, memberID, roomID)
}

func (l *Ledger) MarkMessageRead(ctx context.Context, messageID int64, memberID int64) error {
	return l.repo.MarkMessageRead(ctx, messageID, memberID)
}

func (l *Ledger) UnreadCount(ctx context.Context, roomID int64, memberID int64) (int, error) {
	return l.repo.CountUnreadInRoom(ctx, roomID, memberID)
}

func (l *Ledger) UnreadCountForMessage(ctx context.Context, messageID int64) (int, error) {
	return l.repo.CountUnreadForMessage(ctx, messageID)
}

// LastReadMessage returns the highest read message id of the member in the
// room. ok is false when there is no read row at all, which is different
// from having read message 0.
func (l *Ledger) LastReadMessage(ctx context.Context, memberID int64, roomID int64) (id int64, ok bool, err error) {
	return l.repo.MaxReadMessageID(ctx, memberID, roomID)
}

// LastReads maps every participant of the room to its last read message id,
// defaulting to 0.
func (l *Ledger) LastReads(ctx context.Context, roomID int64) (map[int64]int64, error) {
	participants, err := l.repo.Participants(ctx, roomID)
	if err != nil {
		return nil, err
	}
	reads, err := l.repo.LastReadByMember(ctx, roomID)
	if err != nil {
		return nil, err
	}
	res := make(map[int64]int64, len(participants))
	for _, p := range participants {
		res[p.MemberID] = reads[p.MemberID]
	}
	return res, nil
}
