package usecase

import (
	"context"
	"fmt"

	"go-chatroom/internal/pkg/chat/application/dispatch"
	chat "go-chatroom/internal/pkg/chat/application/domain"
	"go-chatroom/internal/pkg/chat/application/ledger"
	repository "go-chatroom/internal/pkg/chat/persistence/repository/port"

	"github.com/samber/lo"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// Nicknamer resolves display names for a batch of members.
type Nicknamer interface {
	Nicknames(ctx context.Context, memberIDs []int64) (map[int64]string, error)
}

// RoomEnterer enters a room with the member's live connection, if any.
type RoomEnterer interface {
	EnterConnected(ctx context.Context, memberID int64, roomID int64) (*dispatch.EnterResult, error)
}

// GetHistoryInput carries parameters to fetch the latest messages of a room.
type GetHistoryInput struct {
	MemberID int64
	RoomID   int64
	Limit    int
}

type HistoryItem struct {
	Message        chat.Message
	SenderNickname string
	UnreadCount    int
}

// GetHistoryUseCase marks the room read for the member, returns the latest
// messages in ascending order and then enters the room with the member's
// live connection.
type GetHistoryUseCase struct {
	Repo    repository.ChatRepository
	Names   Nicknamer
	Enterer RoomEnterer
}

// NewGetHistoryUseCase builds the use case. enterer may be nil.
func NewGetHistoryUseCase(repo repository.ChatRepository, names Nicknamer, enterer RoomEnterer) *GetHistoryUseCase {
	return &GetHistoryUseCase{Repo: repo, Names: names, Enterer: enterer}
}

func (uc *GetHistoryUseCase) Execute(ctx context.Context, in GetHistoryInput) ([]HistoryItem, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)

	if err := requireParticipant(ctx, uc.Repo, in.RoomID, in.MemberID); err != nil {
		return nil, err
	}

	var (
		msgs   []chat.Message
		unread = map[int64]int{}
	)
	err := uc.Repo.InTx(ctx, func(ctx context.Context, tx repository.ChatRepository) error {
		l := ledger.New(tx)
		if _, err := l.MarkAllReadUpTo(ctx, in.MemberID, in.RoomID); err != nil {
			return err
		}
		var err error
		if msgs, err = tx.ListMessages(ctx, in.RoomID, limit); err != nil {
			return err
		}
		for _, m := range msgs {
			if unread[m.ID], err = l.UnreadCountForMessage(ctx, m.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}

	senderIDs := lo.Uniq(lo.Map(msgs, func(m chat.Message, _ int) int64 { return m.SenderID }))
	names, err := uc.Names.Nicknames(ctx, senderIDs)
	if err != nil {
		return nil, storeErr(err)
	}

	items := lo.Map(msgs, func(m chat.Message, _ int) HistoryItem {
		return HistoryItem{Message: m, SenderNickname: names[m.SenderID], UnreadCount: unread[m.ID]}
	})

	if uc.Enterer != nil {
		if _, err := uc.Enterer.EnterConnected(ctx, in.MemberID, in.RoomID); err != nil {
			return nil, fmt.Errorf("enter room %d: %w", in.RoomID, err)
		}
	}
	return items, nil
}

func requireParticipant(ctx context.Context, repo repository.RoomRepository, roomID, memberID int64) error {
	if _, err := repo.FindRoom(ctx, roomID); err != nil {
		return storeErr(err)
	}
	participants, err := repo.Participants(ctx, roomID)
	if err != nil {
		return storeErr(err)
	}
	if !lo.ContainsBy(participants, func(p chat.Participant) bool { return p.MemberID == memberID }) {
		return chat.ErrNotParticipant
	}
	return nil
}
