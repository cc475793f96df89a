package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	qport "go-chatroom/internal/infrastructure/queue/port"
	"go-chatroom/internal/pkg/chat/application/dispatch"
	"go-chatroom/internal/pkg/chat/application/usecase"
)

// SendMessageTaskType is the queue task name for sending a chat message.
const SendMessageTaskType = "chat:send_message"

// SendMessageQueue is the logical queue chat tasks are enqueued on.
const SendMessageQueue = "chat"

const sendBudget = 10 * time.Second

// SendMessageTaskPayload is the JSON payload transported via the queue.
// Kept decoupled from domain types to avoid tight coupling with JSON tags.
type SendMessageTaskPayload struct {
	RoomID   int64  `json:"roomId"`
	SenderID int64  `json:"senderId"`
	Text     string `json:"text"`
}

// EnqueueSendMessage schedules p on the chat queue and returns the task id.
func EnqueueSendMessage(ctx context.Context, client qport.Client, p SendMessageTaskPayload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return client.Enqueue(ctx, qport.Task{Type: SendMessageTaskType, Payload: b}, qport.EnqueueOption{
		Queue:    SendMessageQueue,
		MaxRetry: 5,
		Timeout:  sendBudget,
	})
}

// RegisterSendMessageTask binds the handler that runs the send pipeline.
// Only persistence failures are retried; a request the domain rejects will
// be rejected again. The sender is told over its socket once a send is given
// up on.
func RegisterSendMessageTask(log *slog.Logger, srv qport.Server, uc *usecase.SendMessageUseCase) {
	srv.Register(SendMessageTaskType, func(ctx context.Context, t qport.Task) error {
		var p SendMessageTaskPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			return fmt.Errorf("%w: decode payload: %v", qport.ErrSkipRetry, err)
		}

		ctx, cancel := context.WithTimeout(ctx, sendBudget)
		defer cancel()

		in := usecase.SendMessageInput{RoomID: p.RoomID, SenderID: p.SenderID, Text: p.Text}
		res, err := uc.Execute(ctx, in)
		if err == nil {
			log.Debug("message sent", "room_id", p.RoomID, "message_id", res.Message.ID)
			return nil
		}

		if errors.Is(err, dispatch.ErrPersistence) {
			if attempt, ok := qport.AttemptFrom(ctx); !ok || !attempt.Final() {
				return err
			}
			log.Error("send message abandoned", "room_id", p.RoomID, "sender_id", p.SenderID, "error", err)
			uc.ReportFailure(ctx, in, err)
			return err
		}
		log.Warn("send message rejected", "room_id", p.RoomID, "sender_id", p.SenderID, "error", err)
		uc.ReportFailure(ctx, in, err)
		return fmt.Errorf("%w: %v", qport.ErrSkipRetry, err)
	})
}
