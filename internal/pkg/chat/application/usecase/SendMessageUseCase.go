package usecase

import (
	"context"

	"go-chatroom/internal/pkg/chat/application/dispatch"
)

// SendMessageInput carries the data needed to send a new message.
type SendMessageInput struct {
	RoomID   int64
	SenderID int64
	Text     string
}

func (in SendMessageInput) toDispatch() dispatch.SendInput {
	return dispatch.SendInput{SenderID: in.SenderID, RoomID: in.RoomID, Text: in.Text}
}

// Sender is the part of the dispatch pipeline this use case drives.
type Sender interface {
	Send(ctx context.Context, in dispatch.SendInput) (*dispatch.SendResult, error)
	Check(ctx context.Context, in dispatch.SendInput) error
	ReportSendFailure(ctx context.Context, senderID int64, roomID int64, cause error) bool
}

// SendMessageUseCase persists a message and fans it out to the room.
type SendMessageUseCase struct {
	Sender Sender
}

func NewSendMessageUseCase(sender Sender) *SendMessageUseCase {
	return &SendMessageUseCase{Sender: sender}
}

func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (*dispatch.SendResult, error) {
	return uc.Sender.Send(ctx, in.toDispatch())
}

// Validate rejects a send that would fail before reaching the store, so a
// deferred send can be refused while the caller is still waiting.
func (uc *SendMessageUseCase) Validate(ctx context.Context, in SendMessageInput) error {
	return uc.Sender.Check(ctx, in.toDispatch())
}

// ReportFailure notifies the sender's live connection that in was not sent.
func (uc *SendMessageUseCase) ReportFailure(ctx context.Context, in SendMessageInput, cause error) bool {
	return uc.Sender.ReportSendFailure(ctx, in.SenderID, in.RoomID, cause)
}
