package controller

import (
	"context"
	"net/http"
	"time"

	"go-chatroom/internal/pkg/chat/application/dispatch"

	"github.com/gin-gonic/gin"
)

// LeaveRoomController takes the caller's connections out of one room.
type LeaveRoomController struct {
	Pipeline *dispatch.Pipeline
	Timeout  time.Duration
}

func NewLeaveRoomController(p *dispatch.Pipeline, timeout time.Duration) *LeaveRoomController {
	return &LeaveRoomController{Pipeline: p, Timeout: timeout}
}

func (h *LeaveRoomController) Handle() gin.HandlerFunc {
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
		if err := h.Pipeline.Leave(ctx, member, room); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
