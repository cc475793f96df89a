package usecase

import (
	"context"

	chat "go-chatroom/internal/pkg/chat/application/domain"
	repository "go-chatroom/internal/pkg/chat/persistence/repository/port"
)

// ListMembersUseCase returns the member directory.
type ListMembersUseCase struct {
	Repo repository.MemberRepository
}

func NewListMembersUseCase(repo repository.MemberRepository) *ListMembersUseCase {
	return &ListMembersUseCase{Repo: repo}
}

func (uc *ListMembersUseCase) Execute(ctx context.Context) ([]chat.Member, error) {
	members, err := uc.Repo.ListMembers(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return members, nil
}
