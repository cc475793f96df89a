package usecase

import (
	"context"

	"go-chatroom/internal/pkg/chat/application/ledger"
	repository "go-chatroom/internal/pkg/chat/persistence/repository/port"
)

// LastReadsInput identifies the room and the member asking.
type LastReadsInput struct {
	MemberID int64
	RoomID   int64
}

// LastReadsUseCase maps every participant of a room to its last read
// message id, 0 meaning nothing read yet.
type LastReadsUseCase struct {
	Repo repository.ChatRepository
}

func NewLastReadsUseCase(repo repository.ChatRepository) *LastReadsUseCase {
	return &LastReadsUseCase{Repo: repo}
}

func (uc *LastReadsUseCase) Execute(ctx context.Context, in LastReadsInput) (map[int64]int64, error) {
	if err := requireParticipant(ctx, uc.Repo, in.RoomID, in.MemberID); err != nil {
		return nil, err
	}
	reads, err := ledger.New(uc.Repo).LastReads(ctx, in.RoomID)
	if err != nil {
		return nil, storeErr(err)
	}
	return reads, nil
}
