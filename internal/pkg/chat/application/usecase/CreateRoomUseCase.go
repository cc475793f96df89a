package usecase

import (
	"context"
	"strings"
	"time"

	chat "go-chatroom/internal/pkg/chat/application/domain"
	repository "go-chatroom/internal/pkg/chat/persistence/repository/port"

	"github.com/samber/lo"
)

// CreateRoomInput carries the creator and the members to invite.
type CreateRoomInput struct {
	CreatorID   int64
	ReceiverIDs []int64
	Title       string
}

// CreateRoomUseCase opens a room for an exact set of members.
// A set that already has a room is rejected rather than duplicated.
type CreateRoomUseCase struct {
	Repo repository.ChatRepository
}

func NewCreateRoomUseCase(repo repository.ChatRepository) *CreateRoomUseCase {
	return &CreateRoomUseCase{Repo: repo}
}

func (uc *CreateRoomUseCase) Execute(ctx context.Context, in CreateRoomInput) (*chat.Room, error) {
	receiverIDs := lo.Uniq(in.ReceiverIDs)
	if len(receiverIDs) == 0 {
		return nil, chat.ErrNoReceivers
	}
	if lo.Contains(receiverIDs, in.CreatorID) {
		return nil, chat.ErrSenderInReceivers
	}

	memberIDs := append([]int64{in.CreatorID}, receiverIDs...)
	members, err := uc.Repo.FindMembers(ctx, memberIDs)
	if err != nil {
		return nil, storeErr(err)
	}
	if len(members) != len(memberIDs) {
		found := lo.Map(members, func(m chat.Member, _ int) int64 { return m.ID })
		if !lo.Contains(found, in.CreatorID) {
			return nil, chat.ErrMemberNotFound
		}
		return nil, chat.ErrMembersNotFound
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = chat.DefaultTitle(members)
	}

	var room chat.Room
	err = uc.Repo.InTx(ctx, func(ctx context.Context, tx repository.ChatRepository) error {
		_, exists, err := tx.FindRoomByMembers(ctx, memberIDs)
		if err != nil {
			return storeErr(err)
		}
		if exists {
			return chat.ErrRoomAlreadyExists
		}
		room, err = tx.CreateRoom(ctx, chat.Room{Title: title, CreatedAt: time.Now().UTC()}, memberIDs)
		if err != nil {
			return storeErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &room, nil
}
