package controller

import (
	"context"
	"net/http"
	"sort"
	"time"

	"go-chatroom/internal/pkg/chat/application/usecase"

	"github.com/gin-gonic/gin"
)

type LastReadsController struct {
	UC      *usecase.LastReadsUseCase
	Timeout time.Duration
}

func NewLastReadsController(uc *usecase.LastReadsUseCase, timeout time.Duration) *LastReadsController {
	return &LastReadsController{UC: uc, Timeout: timeout}
}

type lastReadResponse struct {
	MemberID          int64 `json:"memberId"`
	LastReadMessageID int64 `json:"lastReadMessageId"`
}

func (h *LastReadsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		member, ok := memberID(c)
		if !ok {
			return
		}
		room, ok := roomID(c)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()
		reads, err := h.UC.Execute(ctx, usecase.LastReadsInput{MemberID: member, RoomID: room})
		if err != nil {
			writeError(c, err)
			return
		}

		out := make([]lastReadResponse, 0, len(reads))
		for id, last := range reads {
			out = append(out, lastReadResponse{MemberID: id, LastReadMessageID: last})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
		c.JSON(http.StatusOK, gin.H{"roomId": room, "lastReads": out})
	}
}
