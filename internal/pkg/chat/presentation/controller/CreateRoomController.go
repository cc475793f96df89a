package controller

import (
	"context"
	"net/http"
	"time"

	"go-chatroom/internal/pkg/chat/application/usecase"

	"github.com/gin-gonic/gin"
)

// CreateRoomController handles the room creation endpoint
type CreateRoomController struct {
	UC      *usecase.CreateRoomUseCase
	Timeout time.Duration
}

func NewCreateRoomController(uc *usecase.CreateRoomUseCase, timeout time.Duration) *CreateRoomController {
	return &CreateRoomController{UC: uc, Timeout: timeout}
}

type createRoomRequest struct {
	ReceiverIDs []int64 `json:"receiverIds" binding:"required,min=1,dive,gt=0"`
	Title       string  `json:"title" binding:"max=100"`
}

func (h *CreateRoomController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		creatorID, ok := memberID(c)
		if !ok {
			return
		}
		var req createRoomRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()
		room, err := h.UC.Execute(ctx, usecase.CreateRoomInput{
			CreatorID:   creatorID,
			ReceiverIDs: req.ReceiverIDs,
			Title:       req.Title,
		})
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"roomId":    room.ID,
			"title":     room.Title,
			"createdAt": room.CreatedAt,
		})
	}
}
