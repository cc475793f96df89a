package controller

import (
	"errors"
	"net/http"
	"strconv"

	"go-chatroom/internal/pkg/chat/application/dispatch"
	chat "go-chatroom/internal/pkg/chat/application/domain"

	"github.com/gin-gonic/gin"
)

// MemberHeader carries the caller's member id. Authentication happens upstream.
const MemberHeader = "X-Member-ID"

var errMissingMember = errors.New("missing or invalid " + MemberHeader + " header")

// statusFor maps use case errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrPersistence):
		return http.StatusInternalServerError
	case errors.Is(err, chat.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, chat.ErrRoomAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, chat.ErrSenderInReceivers),
		errors.Is(err, chat.ErrNoReceivers),
		errors.Is(err, chat.ErrInvalidMessage),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrMessageTooLong):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}

// memberID reads the caller from the member header.
func memberID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.GetHeader(MemberHeader), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errMissingMember.Error()})
		return 0, false
	}
	return id, true
}

// roomID parses the :roomId path parameter.
func roomID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("roomId"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "roomId must be a positive integer"})
		return 0, false
	}
	return id, true
}
