package usecase

import (
	"errors"
	"fmt"

	"go-chatroom/internal/pkg/chat/application/dispatch"
	chat "go-chatroom/internal/pkg/chat/application/domain"
)

// ErrPersistence indicates an infrastructure/repository failure inside a use case.
// It is the same sentinel the dispatch pipeline reports.
var ErrPersistence = dispatch.ErrPersistence

// storeErr keeps domain lookup failures intact and tags everything else as
// a persistence failure.
func storeErr(err error) error {
	if errors.Is(err, chat.ErrNotFound) || errors.Is(err, chat.ErrNotParticipant) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
