package controller

import (
	"context"
	"net/http"
	"time"

	queueport "go-chatroom/internal/infrastructure/queue/port"
	chat "go-chatroom/internal/pkg/chat/application/domain"
	"go-chatroom/internal/pkg/chat/application/task"
	"go-chatroom/internal/pkg/chat/application/usecase"

	"github.com/gin-gonic/gin"
)

// SendMessageController handles the send-message endpoint. With a queue
// client the send is checked up front and then runs in a background worker,
// otherwise it runs inline.
type SendMessageController struct {
	Q       queueport.Client
	UC      *usecase.SendMessageUseCase
	Timeout time.Duration
}

func NewSendMessageController(client queueport.Client, uc *usecase.SendMessageUseCase, timeout time.Duration) *SendMessageController {
	return &SendMessageController{Q: client, UC: uc, Timeout: timeout}
}

// sendMessageRequest is the DTO for the HTTP request body
type sendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		sender, ok := memberID(c)
		if !ok {
			return
		}
		room, ok := roomID(c)
		if !ok {
			return
		}
		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if len([]rune(req.Text)) > chat.MaxMessageLength {
			writeError(c, chat.ErrMessageTooLong)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()

		if h.Q == nil {
			h.sendInline(ctx, c, sender, room, req.Text)
			return
		}

		in := usecase.SendMessageInput{RoomID: room, SenderID: sender, Text: req.Text}
		if err := h.UC.Validate(ctx, in); err != nil {
			writeError(c, err)
			return
		}
		id, err := task.EnqueueSendMessage(ctx, h.Q, task.SendMessageTaskPayload{RoomID: room, SenderID: sender, Text: req.Text})
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to enqueue message"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"status":   "queued",
			"taskId":   id,
			"roomId":   room,
			"senderId": sender,
		})
	}
}

func (h *SendMessageController) sendInline(ctx context.Context, c *gin.Context, sender, room int64, text string) {
	res, err := h.UC.Execute(ctx, usecase.SendMessageInput{RoomID: room, SenderID: sender, Text: text})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, messageResponse{
		MessageID:      res.Message.ID,
		SenderID:       res.Message.SenderID,
		SenderNickname: res.SenderNickname,
		Text:           res.Message.Text,
		UnreadCount:    res.UnreadCount,
		CreatedAt:      res.Message.CreatedAt,
	})
}
