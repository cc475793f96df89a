package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go-chatroom/internal/pkg/chat/application/usecase"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// GetHistoryController returns the latest messages of a room and marks them
// read for the caller.
type GetHistoryController struct {
	UC      *usecase.GetHistoryUseCase
	Timeout time.Duration
}

func NewGetHistoryController(uc *usecase.GetHistoryUseCase, timeout time.Duration) *GetHistoryController {
	return &GetHistoryController{UC: uc, Timeout: timeout}
}

type messageResponse struct {
	MessageID      int64     `json:"messageId"`
	SenderID       int64     `json:"senderId"`
	SenderNickname string    `json:"senderNickname"`
	Text           string    `json:"text"`
	UnreadCount    int       `json:"unreadCount"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (h *GetHistoryController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		member, ok := memberID(c)
		if !ok {
			return
		}
		room, ok := roomID(c)
		if !ok {
			return
		}

		limit := usecase.DefaultHistoryLimit
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()
		items, err := h.UC.Execute(ctx, usecase.GetHistoryInput{MemberID: member, RoomID: room, Limit: limit})
		if err != nil {
			writeError(c, err)
			return
		}

		out := lo.Map(items, func(it usecase.HistoryItem, _ int) messageResponse {
			return messageResponse{
				MessageID:      it.Message.ID,
				SenderID:       it.Message.SenderID,
				SenderNickname: it.SenderNickname,
				Text:           it.Message.Text,
				UnreadCount:    it.UnreadCount,
				CreatedAt:      it.Message.CreatedAt,
			}
		})
		c.JSON(http.StatusOK, gin.H{
			"roomId":   room,
			"messages": out,
			"count":    len(out),
		})
	}
}
