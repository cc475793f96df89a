package usecase

import (
	"context"
	"sort"
	"time"

	chat "go-chatroom/internal/pkg/chat/application/domain"
	"go-chatroom/internal/pkg/chat/application/ledger"
	repository "go-chatroom/internal/pkg/chat/persistence/repository/port"

	"github.com/samber/lo"
)

// ListRoomsInput identifies whose room list to build.
type ListRoomsInput struct {
	MemberID int64
}

// RoomSummary is one entry of a member's room list.
type RoomSummary struct {
	Room        chat.Room
	LastMessage *chat.Message
	UnreadCount int
	Opponents   []chat.Member
}

// LastActivity is the latest message time, or the creation time of an empty room.
func (s RoomSummary) LastActivity() time.Time {
	if s.LastMessage != nil {
		return s.LastMessage.CreatedAt
	}
	return s.Room.CreatedAt
}

// ListRoomsUseCase returns the member's rooms, most recently active first.
type ListRoomsUseCase struct {
	Repo repository.ChatRepository
}

func NewListRoomsUseCase(repo repository.ChatRepository) *ListRoomsUseCase {
	return &ListRoomsUseCase{Repo: repo}
}

func (uc *ListRoomsUseCase) Execute(ctx context.Context, in ListRoomsInput) ([]RoomSummary, error) {
	if _, err := uc.Repo.FindMember(ctx, in.MemberID); err != nil {
		return nil, storeErr(err)
	}
	rooms, err := uc.Repo.RoomsOfMember(ctx, in.MemberID)
	if err != nil {
		return nil, storeErr(err)
	}

	l := ledger.New(uc.Repo)
	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		s := RoomSummary{Room: room}

		last, ok, err := uc.Repo.FindLatestMessage(ctx, room.ID)
		if err != nil {
			return nil, storeErr(err)
		}
		if ok {
			s.LastMessage = &last
		}
		if s.UnreadCount, err = l.UnreadCount(ctx, room.ID, in.MemberID); err != nil {
			return nil, storeErr(err)
		}

		participants, err := uc.Repo.Participants(ctx, room.ID)
		if err != nil {
			return nil, storeErr(err)
		}
		opponentIDs := lo.FilterMap(participants, func(p chat.Participant, _ int) (int64, bool) {
			return p.MemberID, p.MemberID != in.MemberID
		})
		if s.Opponents, err = uc.Repo.FindMembers(ctx, opponentIDs); err != nil {
			return nil, storeErr(err)
		}
		summaries = append(summaries, s)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		ai, aj := summaries[i].LastActivity(), summaries[j].LastActivity()
		if ai.Equal(aj) {
			return summaries[i].Room.ID > summaries[j].Room.ID
		}
		return ai.After(aj)
	})
	return summaries, nil
}
