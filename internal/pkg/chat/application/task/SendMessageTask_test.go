package task_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	qport "go-chatroom/internal/infrastructure/queue/port"
	"go-chatroom/internal/pkg/chat/application/dispatch"
	chat "go-chatroom/internal/pkg/chat/application/domain"
	"go-chatroom/internal/pkg/chat/application/task"
	"go-chatroom/internal/pkg/chat/application/usecase"
	"go-chatroom/mocks"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type failureReport struct {
	senderID int64
	roomID   int64
	cause    error
}

type recordingSender struct {
	got      []dispatch.SendInput
	reported []failureReport
	err      error
}

func (r *recordingSender) Check(context.Context, dispatch.SendInput) error { return r.err }

func (r *recordingSender) ReportSendFailure(_ context.Context, senderID int64, roomID int64, cause error) bool {
	r.reported = append(r.reported, failureReport{senderID: senderID, roomID: roomID, cause: cause})
	return true
}

func (r *recordingSender) Send(_ context.Context, in dispatch.SendInput) (*dispatch.SendResult, error) {
	r.got = append(r.got, in)
	if r.err != nil {
		return nil, r.err
	}
	return &dispatch.SendResult{Message: chat.Message{ID: 1, RoomID: in.RoomID, SenderID: in.SenderID, Text: in.Text}}, nil
}

func registerHandler(t *testing.T, sender *recordingSender) qport.Handler {
	t.Helper()
	ctrl := gomock.NewController(t)
	srv := mocks.NewMockServer(ctrl)

	var handler qport.Handler
	srv.EXPECT().
		Register(task.SendMessageTaskType, gomock.Any()).
		Do(func(_ string, h qport.Handler) { handler = h })

	task.RegisterSendMessageTask(logs.GetLoggerFromLevel(slog.LevelDebug), srv, usecase.NewSendMessageUseCase(sender))
	require.NotNil(t, handler)
	return handler
}

func payload(t *testing.T, p task.SendMessageTaskPayload) qport.Task {
	t.Helper()
	b, err := json.Marshal(p)
	require.NoError(t, err)
	return qport.Task{Type: task.SendMessageTaskType, Payload: b}
}

func TestSendMessageTask_RunsPipeline(t *testing.T) {
	req := require.New(t)
	sender := &recordingSender{}
	handler := registerHandler(t, sender)

	err := handler(context.Background(), payload(t, task.SendMessageTaskPayload{RoomID: 7, SenderID: 1, Text: "hi"}))

	req.NoError(err)
	req.Equal([]dispatch.SendInput{{SenderID: 1, RoomID: 7, Text: "hi"}}, sender.got)
}

func TestSendMessageTask_RetryPolicy(t *testing.T) {
	persistence := errors.Join(dispatch.ErrPersistence, errors.New("timeout"))
	tests := []struct {
		name      string
		sendErr   error
		attempt   *qport.Attempt
		skipRetry bool
		reported  bool
	}{
		{"persistence failure is retried", persistence, &qport.Attempt{Retried: 1, MaxRetry: 5}, false, false},
		{"last persistence failure is reported", persistence, &qport.Attempt{Retried: 5, MaxRetry: 5}, false, true},
		{"persistence failure outside a worker is reported", persistence, nil, false, true},
		{"domain rejection is final and reported", chat.ErrNotParticipant, &qport.Attempt{MaxRetry: 5}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			sender := &recordingSender{err: tt.sendErr}
			handler := registerHandler(t, sender)
			ctx := context.Background()
			if tt.attempt != nil {
				ctx = qport.WithAttempt(ctx, *tt.attempt)
			}

			err := handler(ctx, payload(t, task.SendMessageTaskPayload{RoomID: 7, SenderID: 1, Text: "hi"}))

			req.Error(err)
			req.Equal(tt.skipRetry, errors.Is(err, qport.ErrSkipRetry))
			if !tt.reported {
				req.Empty(sender.reported)
				return
			}
			req.Len(sender.reported, 1)
			req.Equal(int64(1), sender.reported[0].senderID)
			req.Equal(int64(7), sender.reported[0].roomID)
			req.ErrorIs(sender.reported[0].cause, tt.sendErr)
		})
	}
}

func TestSendMessageTask_MalformedPayload(t *testing.T) {
	sender := &recordingSender{}
	handler := registerHandler(t, sender)

	err := handler(context.Background(), qport.Task{Type: task.SendMessageTaskType, Payload: []byte("{")})

	require.ErrorIs(t, err, qport.ErrSkipRetry)
	require.Empty(t, sender.got)
}

func TestEnqueueSendMessage(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	client.EXPECT().
		Enqueue(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, tk qport.Task, opts ...qport.EnqueueOption) (string, error) {
			req.Equal(task.SendMessageTaskType, tk.Type)
			req.JSONEq(`{"roomId":7,"senderId":1,"text":"hi"}`, string(tk.Payload))
			req.Len(opts, 1)
			req.Equal(task.SendMessageQueue, opts[0].Queue)
			return "task-1", nil
		})

	id, err := task.EnqueueSendMessage(context.Background(), client, task.SendMessageTaskPayload{RoomID: 7, SenderID: 1, Text: "hi"})
	req.NoError(err)
	req.Equal("task-1", id)
}
