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

type ListMembersController struct {
	UC      *usecase.ListMembersUseCase
	Timeout time.Duration
}

func NewListMembersController(uc *usecase.ListMembersUseCase, timeout time.Duration) *ListMembersController {
	return &ListMembersController{UC: uc, Timeout: timeout}
}

func (h *ListMembersController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()
		members, err := h.UC.Execute(ctx)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"members": lo.Map(members, func(m chat.Member, _ int) gin.H {
				return gin.H{"memberId": m.ID, "username": m.Username, "nickname": m.Nickname}
			}),
		})
	}
}
