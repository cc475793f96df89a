package http

import (
	"log/slog"
	"time"

	qport "go-chatroom/internal/infrastructure/queue/port"
	"go-chatroom/internal/pkg/chat/application/directory"
	"go-chatroom/internal/pkg/chat/application/dispatch"
	"go-chatroom/internal/pkg/chat/application/usecase"
	repository "go-chatroom/internal/pkg/chat/persistence/repository/port"
	"go-chatroom/internal/pkg/chat/presentation/controller"

	"github.com/gin-gonic/gin"
)

// Dependencies are the shared services the chat endpoints are built from.
type Dependencies struct {
	Log      *slog.Logger
	Repo     repository.ChatRepository
	Names    *directory.Directory
	Pipeline *dispatch.Pipeline
	// Queue is optional; without it messages are sent inline.
	Queue qport.Client

	RequestTimeout time.Duration
	ReadTimeout    time.Duration
	SendTimeout    time.Duration
}

// RegisterRoutes registers chat-related HTTP endpoints under the given router group
// It constructs per-endpoint controllers and binds them directly to routes.
func RegisterRoutes(g *gin.RouterGroup, d Dependencies) {
	sendUC := usecase.NewSendMessageUseCase(d.Pipeline)

	createCtl := controller.NewCreateRoomController(usecase.NewCreateRoomUseCase(d.Repo), d.RequestTimeout)
	listCtl := controller.NewListRoomsController(usecase.NewListRoomsUseCase(d.Repo), d.RequestTimeout)
	historyCtl := controller.NewGetHistoryController(usecase.NewGetHistoryUseCase(d.Repo, d.Names, d.Pipeline), d.RequestTimeout)
	readsCtl := controller.NewLastReadsController(usecase.NewLastReadsUseCase(d.Repo), d.RequestTimeout)
	sendCtl := controller.NewSendMessageController(d.Queue, sendUC, d.SendTimeout)
	leaveCtl := controller.NewLeaveRoomController(d.Pipeline, d.RequestTimeout)
	membersCtl := controller.NewListMembersController(usecase.NewListMembersUseCase(d.Repo), d.RequestTimeout)
	socketCtl := controller.NewChatSocketController(d.Log, d.Pipeline, d.Names, d.ReadTimeout, d.SendTimeout)

	// POST /api/v1/chat/rooms -> create a room
	g.POST("/chat/rooms", createCtl.Handle())

	// GET /api/v1/chat/rooms -> rooms of the caller, latest activity first
	g.GET("/chat/rooms", listCtl.Handle())

	// GET /api/v1/chat/rooms/:roomId/messages -> history; marks it read
	g.GET("/chat/rooms/:roomId/messages", historyCtl.Handle())

	// POST /api/v1/chat/rooms/:roomId/messages -> send a message into a room
	g.POST("/chat/rooms/:roomId/messages", sendCtl.Handle())

	// GET /api/v1/chat/rooms/:roomId/reads -> last read message per participant
	g.GET("/chat/rooms/:roomId/reads", readsCtl.Handle())

	// POST /api/v1/chat/rooms/:roomId/leave -> leave the room without disconnecting
	g.POST("/chat/rooms/:roomId/leave", leaveCtl.Handle())

	// GET /api/v1/members -> member directory
	g.GET("/members", membersCtl.Handle())

	// GET /api/v1/chat/ws -> websocket endpoint for realtime chat
	g.GET("/chat/ws", socketCtl.Handle())
}
