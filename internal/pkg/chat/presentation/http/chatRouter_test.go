package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	qport "go-chatroom/internal/infrastructure/queue/port"
	"go-chatroom/internal/infrastructure/realtime"
	"go-chatroom/internal/infrastructure/telemetry"
	"go-chatroom/internal/pkg/chat/application/directory"
	"go-chatroom/internal/pkg/chat/application/dispatch"
	chat "go-chatroom/internal/pkg/chat/application/domain"
	"go-chatroom/internal/pkg/chat/application/envelope"
	"go-chatroom/internal/pkg/chat/application/task"
	"go-chatroom/internal/pkg/chat/persistence/repository/adapter"
	httpHandler "go-chatroom/internal/pkg/chat/presentation/http"
	"go-chatroom/mocks"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	repo    *adapter.MemoryChatRepository
	engine  *gin.Engine
	alice   chat.Member
	bob     chat.Member
	charlie chat.Member
}

func newFixture(t *testing.T, queue qport.Client) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	repo := adapter.NewMemoryChatRepository()
	f := fixture{
		repo:    repo,
		alice:   repo.AddMember(chat.Member{Username: "alice", Nickname: "Alice"}),
		bob:     repo.AddMember(chat.Member{Username: "bob", Nickname: "Bob"}),
		charlie: repo.AddMember(chat.Member{Username: "charlie", Nickname: "Charlie"}),
	}

	metrics, err := telemetry.NewMetrics()
	require.NoError(t, err)
	names := directory.New(log, repo, nil, time.Minute)
	pipeline := dispatch.New(log, repo, names, realtime.NewSessions(log, 4), realtime.NewRooms(4), metrics)

	f.engine = gin.New()
	httpHandler.RegisterRoutes(f.engine.Group("/api/v1"), httpHandler.Dependencies{
		Log:            log,
		Repo:           repo,
		Names:          names,
		Pipeline:       pipeline,
		Queue:          queue,
		RequestTimeout: time.Second,
		ReadTimeout:    5 * time.Second,
		SendTimeout:    time.Second,
	})
	return f
}

func (f fixture) do(t *testing.T, method, path string, member int64, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if member != 0 {
		req.Header.Set("X-Member-ID", strconv.FormatInt(member, 10))
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func (f fixture) createRoom(t *testing.T, creator chat.Member, receivers ...chat.Member) int64 {
	t.Helper()
	ids := make([]int64, 0, len(receivers))
	for _, r := range receivers {
		ids = append(ids, r.ID)
	}
	w := f.do(t, http.MethodPost, "/api/v1/chat/rooms", creator.ID, gin.H{"receiverIds": ids})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[struct {
		RoomID int64 `json:"roomId"`
	}](t, w).RoomID
}

func TestRoutes_RoomLifecycle(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)

	// Given alice opens a room with bob
	roomID := f.createRoom(t, f.alice, f.bob)

	// When alice sends inline (no queue configured)
	w := f.do(t, http.MethodPost, "/api/v1/chat/rooms/"+strconv.FormatInt(roomID, 10)+"/messages", f.alice.ID, gin.H{"text": "hi bob"})
	req.Equal(http.StatusCreated, w.Code, w.Body.String())
	sent := decode[struct {
		MessageID   int64 `json:"messageId"`
		UnreadCount int   `json:"unreadCount"`
	}](t, w)
	req.Equal(1, sent.UnreadCount)

	// Then bob sees one unread message in his room list
	w = f.do(t, http.MethodGet, "/api/v1/chat/rooms", f.bob.ID, nil)
	req.Equal(http.StatusOK, w.Code)
	rooms := decode[struct {
		Rooms []struct {
			RoomID      int64   `json:"roomId"`
			Title       string  `json:"title"`
			LastMessage *string `json:"lastMessage"`
			UnreadCount int     `json:"unreadCount"`
			Opponents   []struct {
				MemberID int64  `json:"memberId"`
				Nickname string `json:"nickname"`
			} `json:"opponents"`
		} `json:"rooms"`
	}](t, w).Rooms
	req.Len(rooms, 1)
	req.Equal("alice, bob", rooms[0].Title)
	req.Equal("hi bob", *rooms[0].LastMessage)
	req.Equal(1, rooms[0].UnreadCount)
	req.Equal(f.alice.ID, rooms[0].Opponents[0].MemberID)
	req.Equal("Alice", rooms[0].Opponents[0].Nickname)

	// And opening the history marks it read
	w = f.do(t, http.MethodGet, "/api/v1/chat/rooms/"+strconv.FormatInt(roomID, 10)+"/messages?limit=10", f.bob.ID, nil)
	req.Equal(http.StatusOK, w.Code)
	history := decode[struct {
		Messages []struct {
			MessageID      int64  `json:"messageId"`
			SenderNickname string `json:"senderNickname"`
			UnreadCount    int    `json:"unreadCount"`
		} `json:"messages"`
	}](t, w).Messages
	req.Len(history, 1)
	req.Equal(sent.MessageID, history[0].MessageID)
	req.Equal("Alice", history[0].SenderNickname)
	req.Equal(0, history[0].UnreadCount)

	w = f.do(t, http.MethodGet, "/api/v1/chat/rooms/"+strconv.FormatInt(roomID, 10)+"/reads", f.alice.ID, nil)
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"roomId":`+strconv.FormatInt(roomID, 10)+`,"lastReads":[`+
		`{"memberId":`+strconv.FormatInt(f.alice.ID, 10)+`,"lastReadMessageId":`+strconv.FormatInt(sent.MessageID, 10)+`},`+
		`{"memberId":`+strconv.FormatInt(f.bob.ID, 10)+`,"lastReadMessageId":`+strconv.FormatInt(sent.MessageID, 10)+`}]}`,
		w.Body.String())
}

func TestRoutes_Errors(t *testing.T) {
	f := newFixture(t, nil)
	roomID := f.createRoom(t, f.alice, f.bob)
	room := strconv.FormatInt(roomID, 10)

	tests := []struct {
		name   string
		method string
		path   string
		member int64
		body   any
		want   int
	}{
		{"missing member header", http.MethodGet, "/api/v1/chat/rooms", 0, nil, http.StatusUnauthorized},
		{"duplicate room", http.MethodPost, "/api/v1/chat/rooms", f.bob.ID, gin.H{"receiverIds": []int64{f.alice.ID}}, http.StatusConflict},
		{"creator as receiver", http.MethodPost, "/api/v1/chat/rooms", f.bob.ID, gin.H{"receiverIds": []int64{f.bob.ID}}, http.StatusBadRequest},
		{"unknown receiver", http.MethodPost, "/api/v1/chat/rooms", f.bob.ID, gin.H{"receiverIds": []int64{404}}, http.StatusNotFound},
		{"empty receivers", http.MethodPost, "/api/v1/chat/rooms", f.bob.ID, gin.H{"receiverIds": []int64{}}, http.StatusBadRequest},
		{"outsider history", http.MethodGet, "/api/v1/chat/rooms/" + room + "/messages", f.charlie.ID, nil, http.StatusForbidden},
		{"unknown room", http.MethodGet, "/api/v1/chat/rooms/404/reads", f.alice.ID, nil, http.StatusNotFound},
		{"bad room id", http.MethodGet, "/api/v1/chat/rooms/abc/messages", f.alice.ID, nil, http.StatusBadRequest},
		{"blank text", http.MethodPost, "/api/v1/chat/rooms/" + room + "/messages", f.alice.ID, gin.H{"text": "  "}, http.StatusBadRequest},
		{"too long", http.MethodPost, "/api/v1/chat/rooms/" + room + "/messages", f.alice.ID, gin.H{"text": strings.Repeat("a", chat.MaxMessageLength+1)}, http.StatusBadRequest},
		{"outsider leave", http.MethodPost, "/api/v1/chat/rooms/" + room + "/leave", f.charlie.ID, nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, tt.method, tt.path, tt.member, tt.body)
			require.Equal(t, tt.want, w.Code, w.Body.String())
			if w.Code >= 400 {
				require.Contains(t, w.Body.String(), `"error"`)
			}
		})
	}
}

func TestRoutes_SendEnqueuesWhenQueueConfigured(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	queue := mocks.NewMockClient(ctrl)
	f := newFixture(t, queue)
	roomID := f.createRoom(t, f.alice, f.bob)

	queue.EXPECT().
		Enqueue(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, tk qport.Task, _ ...qport.EnqueueOption) (string, error) {
			var p task.SendMessageTaskPayload
			req.NoError(json.Unmarshal(tk.Payload, &p))
			req.Equal(task.SendMessageTaskPayload{RoomID: roomID, SenderID: f.alice.ID, Text: "later"}, p)
			return "task-42", nil
		})

	w := f.do(t, http.MethodPost, "/api/v1/chat/rooms/"+strconv.FormatInt(roomID, 10)+"/messages", f.alice.ID, gin.H{"text": "later"})

	req.Equal(http.StatusAccepted, w.Code)
	req.Contains(w.Body.String(), `"taskId":"task-42"`)

	// Nothing is persisted until a worker runs the task
	msgs, err := f.repo.ListMessages(context.Background(), roomID, 10)
	req.NoError(err)
	req.Empty(msgs)
}

func TestRoutes_QueuedSendIsCheckedBeforeEnqueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	queue := mocks.NewMockClient(ctrl)
	f := newFixture(t, queue)
	roomID := f.createRoom(t, f.alice, f.bob)
	roomPath := "/api/v1/chat/rooms/" + strconv.FormatInt(roomID, 10) + "/messages"

	queue.EXPECT().Enqueue(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	tests := []struct {
		name   string
		path   string
		member int64
		text   string
		status int
	}{
		{"unknown room", "/api/v1/chat/rooms/999/messages", f.alice.ID, "hi", http.StatusNotFound},
		{"unknown member", roomPath, 4242, "hi", http.StatusNotFound},
		{"not a participant", roomPath, f.charlie.ID, "hi", http.StatusForbidden},
		{"blank text", roomPath, f.alice.ID, "   ", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, tt.path, tt.member, gin.H{"text": tt.text})

			require.Equal(t, tt.status, w.Code, w.Body.String())
			require.NotContains(t, w.Body.String(), "taskId")
		})
	}
}

func TestRoutes_Members(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodGet, "/api/v1/members", f.alice.ID, nil)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"username":"charlie"`)
}

func dial(t *testing.T, srv *httptest.Server, member int64) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/chat/ws?member_id=" + strconv.FormatInt(member, 10)
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readEnvelope(t *testing.T, ws *websocket.Conn) envelope.Envelope {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	e, err := envelope.Decode(data)
	require.NoError(t, err)
	return e
}

func writeEnvelope(t *testing.T, ws *websocket.Conn, e envelope.Envelope) {
	t.Helper()
	data, err := envelope.Encode(e)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))
}

func TestSocket_EnterThenChat(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	roomID := f.createRoom(t, f.alice, f.bob)
	srv := httptest.NewServer(f.engine)
	defer srv.Close()

	a := dial(t, srv, f.alice.ID)
	b := dial(t, srv, f.bob.ID)

	// Given both members entered the room over the socket
	writeEnvelope(t, a, envelope.ChatEnter{RoomID: roomID})
	req.Equal(envelope.ChatEnter{MemberID: f.alice.ID, RoomID: roomID}, readEnvelope(t, a))

	writeEnvelope(t, b, envelope.ChatEnter{RoomID: roomID})
	req.Equal(envelope.ChatEnter{MemberID: f.bob.ID, RoomID: roomID}, readEnvelope(t, b))
	req.Equal(envelope.ChatEnter{MemberID: f.bob.ID, RoomID: roomID}, readEnvelope(t, a))

	// Frames with an unknown tag are ignored
	req.NoError(a.WriteMessage(websocket.TextMessage, []byte(`{"messageType":"TYPING","roomId":1}`)))

	// When alice sends a message
	writeEnvelope(t, a, envelope.ChatMessage{RoomID: roomID, Text: "hello"})

	// Then bob gets it already read, followed by his room update
	got, ok := readEnvelope(t, b).(envelope.ChatMessage)
	req.True(ok)
	req.Equal(f.alice.ID, got.SenderID)
	req.Equal("Alice", got.SenderNickname)
	req.Equal("hello", got.Text)
	req.Equal(0, got.UnreadCount)

	update, ok := readEnvelope(t, b).(envelope.UpdateChatRoom)
	req.True(ok)
	req.Equal(roomID, update.RoomID)
	req.Equal("hello", update.LastMessageText)
	req.Equal(0, update.UnreadCount)
}

func TestSocket_UnknownMember(t *testing.T) {
	f := newFixture(t, nil)
	srv := httptest.NewServer(f.engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/chat/ws?member_id=404"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)

	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestSocket_FailedRequestsAreAnswered(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	roomID := f.createRoom(t, f.alice, f.bob)
	srv := httptest.NewServer(f.engine)
	defer srv.Close()

	c := dial(t, srv, f.charlie.ID)

	// When charlie sends into a room he is not part of
	writeEnvelope(t, c, envelope.ChatMessage{RoomID: roomID, Text: "let me in"})

	// Then he is told why, and nothing was stored
	req.Equal(envelope.Failure{Request: envelope.TypeChatMessage, RoomID: roomID, Reason: dispatch.ReasonNotParticipant}, readEnvelope(t, c))
	msgs, err := f.repo.ListMessages(context.Background(), roomID, 10)
	req.NoError(err)
	req.Empty(msgs)

	// Invalid frames and rejected enters get the same treatment
	writeEnvelope(t, c, envelope.ChatMessage{RoomID: roomID})
	req.Equal(envelope.Failure{Request: envelope.TypeChatMessage, RoomID: roomID, Reason: dispatch.ReasonInvalid}, readEnvelope(t, c))

	writeEnvelope(t, c, envelope.ChatEnter{RoomID: 999})
	req.Equal(envelope.Failure{Request: envelope.TypeChatEnter, RoomID: 999, Reason: dispatch.ReasonNotFound}, readEnvelope(t, c))
}
