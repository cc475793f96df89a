package controller

import (
	"context"
	"net/http"
	"time"

	chat "go-chatroom/internal/pkg/chat/application/domain"
	"go-chatroom/internal/pkg/chat/application/usecase"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// ListRoomsController serves the caller's room list
type ListRoomsController struct {
	UC      *usecase.ListRoomsUseCase
	Timeout time.Duration
}

func NewListRoomsController(uc *usecase.ListRoomsUseCase, timeout time.Duration) *ListRoomsController {
	return &ListRoomsController{UC: uc, Timeout: timeout}
}

type opponentResponse struct {
	MemberID int64  `json:"memberId"`
	Nickname string `json:"nickname"`
}

type roomResponse struct {
	RoomID        int64              `json:"roomId"`
	Title         string             `json:"title"`
	LastMessage   *string            `json:"lastMessage"`
	LastMessageAt *time.Time         `json:"lastMessageAt"`
	UnreadCount   int                `json:"unreadCount"`
	Opponents     []opponentResponse `json:"opponents"`
}

func (h *ListRoomsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		member, ok := memberID(c)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()
		summaries, err := h.UC.Execute(ctx, usecase.ListRoomsInput{MemberID: member})
		if err != nil {
			writeError(c, err)
			return
		}

		rooms := lo.Map(summaries, func(s usecase.RoomSummary, _ int) roomResponse {
			r := roomResponse{
				RoomID:      s.Room.ID,
				Title:       s.Room.Title,
				UnreadCount: s.UnreadCount,
				Opponents: lo.Map(s.Opponents, func(m chat.Member, _ int) opponentResponse {
					return opponentResponse{MemberID: m.ID, Nickname: m.Nickname}
				}),
			}
			if s.LastMessage != nil {
				r.LastMessage = &s.LastMessage.Text
				r.LastMessageAt = &s.LastMessage.CreatedAt
			}
			return r
		})
		c.JSON(http.StatusOK, gin.H{"rooms": rooms})
	}
}
