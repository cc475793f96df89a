package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go-chatroom/internal/infrastructure/realtime"
	"go-chatroom/internal/pkg/chat/application/dispatch"
	chat "go-chatroom/internal/pkg/chat/application/domain"
	"go-chatroom/internal/pkg/chat/application/envelope"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
)

// ChatSocketController handles the websocket endpoint for realtime chat traffic.
type ChatSocketController struct {
	log         *slog.Logger
	pipeline    *dispatch.Pipeline
	names       dispatch.Nicknamer
	validate    *validator.Validate
	readTimeout time.Duration
	sendTimeout time.Duration
}

func NewChatSocketController(log *slog.Logger, p *dispatch.Pipeline, names dispatch.Nicknamer, readTimeout, sendTimeout time.Duration) *ChatSocketController {
	return &ChatSocketController{
		log:         log,
		pipeline:    p,
		names:       names,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		readTimeout: readTimeout,
		sendTimeout: sendTimeout,
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now; plug a proper checker when auth is added.
		return true
	},
}

// inboundMessage is what a client may set on an inbound CHAT_MESSAGE; the
// sender always comes from the connection.
type inboundMessage struct {
	RoomID int64  `validate:"gt=0"`
	Text   string `validate:"required,max=1000"`
}

type inboundEnter struct {
	RoomID int64 `validate:"gt=0"`
}

// Handle upgrades HTTP connections to websocket and processes frames until the client disconnects.
func (ctl *ChatSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query("member_id")
		if raw == "" {
			raw = c.GetHeader(MemberHeader)
		}
		member, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || member <= 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "member_id is required"})
			return
		}
		if _, err := ctl.names.Nickname(c.Request.Context(), member); err != nil {
			writeError(c, err)
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response.
			ctl.log.Debug("websocket upgrade failed", "member_id", member, "error", err)
			return
		}

		conn := realtime.NewConnection(member, ws)
		conn.Start()
		ctl.pipeline.Connect(c.Request.Context(), conn)
		ctl.log.Info("member connected", "member_id", member, "conn_id", conn.ID())
		defer func() {
			ctl.pipeline.Disconnect(context.Background(), conn)
			ctl.log.Info("member disconnected", "member_id", member, "conn_id", conn.ID())
		}()

		ws.SetReadLimit(1 << 20) // 1MB payload cap
		_ = ws.SetReadDeadline(time.Now().Add(ctl.readTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(ctl.readTimeout))
		})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
					!errors.Is(err, websocket.ErrCloseSent) {
					ctl.log.Debug("websocket read ended", "member_id", member, "error", err)
				}
				return
			}
			_ = ws.SetReadDeadline(time.Now().Add(ctl.readTimeout))
			ctl.handleFrame(c.Request.Context(), conn, data)
		}
	}
}

func (ctl *ChatSocketController) handleFrame(ctx context.Context, conn *realtime.Connection, data []byte) {
	e, err := envelope.Decode(data)
	if err != nil {
		ctl.log.Warn("dropping inbound frame", "member_id", conn.MemberID(), "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, ctl.sendTimeout)
	defer cancel()

	switch m := e.(type) {
	case envelope.ChatMessage:
		in := inboundMessage{RoomID: m.RoomID, Text: m.Text}
		if err := ctl.validate.Struct(in); err != nil {
			ctl.reject("invalid chat message", conn, envelope.TypeChatMessage, m.RoomID, fmt.Errorf("%w: %v", chat.ErrInvalidMessage, err))
			return
		}
		if _, err := ctl.pipeline.Send(ctx, dispatch.SendInput{SenderID: conn.MemberID(), RoomID: in.RoomID, Text: in.Text}); err != nil {
			ctl.reject("send failed", conn, envelope.TypeChatMessage, in.RoomID, err)
		}
	case envelope.ChatEnter:
		in := inboundEnter{RoomID: m.RoomID}
		if err := ctl.validate.Struct(in); err != nil {
			ctl.reject("invalid enter", conn, envelope.TypeChatEnter, m.RoomID, fmt.Errorf("%w: %v", chat.ErrInvalidMessage, err))
			return
		}
		if _, err := ctl.pipeline.Enter(ctx, conn, in.RoomID); err != nil {
			ctl.reject("enter failed", conn, envelope.TypeChatEnter, in.RoomID, err)
		}
	default:
		ctl.log.Debug("ignoring server-only envelope", "member_id", conn.MemberID(), "type", e.MessageType())
	}
}

// reject logs a failed request and answers it with an ERROR envelope.
func (ctl *ChatSocketController) reject(msg string, conn realtime.Conn, request envelope.Type, roomID int64, err error) {
	level := slog.LevelWarn
	switch dispatch.FailureReason(err) {
	case dispatch.ReasonPersistence, dispatch.ReasonInternal:
		level = slog.LevelError
	}
	ctl.log.Log(context.Background(), level, msg, "member_id", conn.MemberID(), "room_id", roomID, "error", err)
	ctl.pipeline.ReportFailure(context.Background(), conn, request, roomID, err)
}
