// Package dispatch orchestrates room entry and message sending: it validates
// requests, persists messages together with their read state in one unit of
// work, and fans events out to live connections only after that unit of work
// has committed.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go-chatroom/internal/infrastructure/realtime"
	"go-chatroom/internal/infrastructure/telemetry"
	chat "go-chatroom/internal/pkg/chat/application/domain"
	"go-chatroom/internal/pkg/chat/application/envelope"
	"go-chatroom/internal/pkg/chat/application/ledger"
	repository "go-chatroom/internal/pkg/chat/persistence/repository/port"
)

// ErrPersistence means the unit of work failed and nothing was delivered.
var ErrPersistence = errors.New("dispatch: persistence failure")

// Nicknamer resolves member display names.
type Nicknamer interface {
	Nickname(ctx context.Context, memberID int64) (string, error)
}

type Pipeline struct {
	log      *slog.Logger
	repo     repository.ChatRepository
	ledger   *ledger.Ledger
	names    Nicknamer
	sessions *realtime.Sessions
	rooms    *realtime.Rooms
	metrics  *telemetry.Metrics
	now      func() time.Time
}

type Option func(*Pipeline)

// WithClock overrides the time source used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(
	log *slog.Logger,
	repo repository.ChatRepository,
	names Nicknamer,
	sessions *realtime.Sessions,
	rooms *realtime.Rooms,
	metrics *telemetry.Metrics,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		log:      log,
		repo:     repo,
		ledger:   ledger.New(repo),
		names:    names,
		sessions: sessions,
		rooms:    rooms,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ledger exposes the read-state ledger bound to the pipeline's store.
func (p *Pipeline) Ledger() *ledger.Ledger {
	return p.ledger
}

type SendInput struct {
	SenderID int64
	RoomID   int64
	Text     string
}

type SendResult struct {
	Message        chat.Message
	SenderNickname string
	UnreadCount    int
}

// persisted is the snapshot taken inside the unit of work.
type persisted struct {
	message        chat.Message
	senderNickname string
	unreadCount    int
	participants   []chat.Participant
	roomUnread     map[int64]int
}

// commit is handed out only after the unit of work has committed. Post-commit
// side effects run through Then.
type commit struct {
	state persisted
}

func (c *commit) Then(fn func(persisted)) {
	fn(c.state)
}

// Send validates, persists and then fans out a chat message.
func (p *Pipeline) Send(ctx context.Context, in SendInput) (*SendResult, error) {
	room, msg, nickname, err := p.validate(ctx, in)
	if err != nil {
		return nil, err
	}

	committed, err := p.persist(ctx, room, msg, nickname)
	if err != nil {
		p.metrics.PersistenceFailed(ctx)
		p.log.Error("message not persisted", "room_id", in.RoomID, "sender_id", in.SenderID, "error", err)
		return nil, err
	}
	p.metrics.MessagePersisted(ctx)

	var result SendResult
	committed.Then(func(s persisted) {
		result = SendResult{Message: s.message, SenderNickname: s.senderNickname, UnreadCount: s.unreadCount}
		p.fanout(ctx, s)
	})
	return &result, nil
}

// Check runs the validation step of Send without persisting or delivering
// anything.
func (p *Pipeline) Check(ctx context.Context, in SendInput) error {
	_, _, _, err := p.validate(ctx, in)
	return err
}

func (p *Pipeline) validate(ctx context.Context, in SendInput) (*chat.ChatRoom, chat.Message, string, error) {
	nickname, err := p.names.Nickname(ctx, in.SenderID)
	if err != nil {
		return nil, chat.Message{}, "", storeErr(err)
	}
	room, err := p.loadRoom(ctx, in.RoomID)
	if err != nil {
		return nil, chat.Message{}, "", err
	}
	msg, err := room.PostMessage(in.SenderID, in.Text, p.now())
	if err != nil {
		return nil, chat.Message{}, "", err
	}
	return room, msg, nickname, nil
}

func (p *Pipeline) loadRoom(ctx context.Context, roomID int64) (*chat.ChatRoom, error) {
	room, err := p.repo.FindRoom(ctx, roomID)
	if err != nil {
		return nil, storeErr(err)
	}
	participants, err := p.repo.Participants(ctx, roomID)
	if err != nil {
		return nil, storeErr(err)
	}
	return chat.NewChatRoom(room, participants), nil
}

// persist appends the message, records its read flags and marks everything
// before it read for the sender, all in one transaction.
func (p *Pipeline) persist(ctx context.Context, room *chat.ChatRoom, msg chat.Message, nickname string) (*commit, error) {
	var state persisted
	err := p.repo.InTx(ctx, func(ctx context.Context, tx repository.ChatRepository) error {
		l := p.ledger.Within(tx)

		saved, err := tx.CreateMessage(ctx, msg)
		if err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		if _, err := l.RecordMessageReadFlags(ctx, saved); err != nil {
			return fmt.Errorf("record read flags: %w", err)
		}
		if _, err := l.MarkAllReadUpTo(ctx, saved.SenderID, saved.RoomID); err != nil {
			return fmt.Errorf("mark read: %w", err)
		}
		unread, err := l.UnreadCountForMessage(ctx, saved.ID)
		if err != nil {
			return fmt.Errorf("count unread: %w", err)
		}
		participants, err := tx.Participants(ctx, saved.RoomID)
		if err != nil {
			return fmt.Errorf("participants: %w", err)
		}
		roomUnread := make(map[int64]int, len(participants))
		for _, part := range participants {
			n, err := l.UnreadCount(ctx, saved.RoomID, part.MemberID)
			if err != nil {
				return fmt.Errorf("count room unread: %w", err)
			}
			roomUnread[part.MemberID] = n
		}

		state = persisted{
			message:        saved,
			senderNickname: nickname,
			unreadCount:    unread,
			participants:   participants,
			roomUnread:     roomUnread,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: room %d: %v", ErrPersistence, room.Room.ID, err)
	}
	return &commit{state: state}, nil
}

// fanout sends CHAT_MESSAGE to the room and UPDATE_CHAT_ROOM to every
// participant's personal connection.
func (p *Pipeline) fanout(ctx context.Context, s persisted) {
	msg := s.message
	payload, err := envelope.Encode(envelope.ChatMessage{
		SenderID:       msg.SenderID,
		SenderNickname: s.senderNickname,
		RoomID:         msg.RoomID,
		Text:           msg.Text,
		MessageID:      msg.ID,
		UnreadCount:    s.unreadCount,
		CreatedAt:      msg.CreatedAt,
	})
	if err != nil {
		p.log.Error("failed to encode chat message", "message_id", msg.ID, "error", err)
		return
	}
	p.broadcast(ctx, msg.RoomID, payload, envelope.TypeChatMessage)

	for _, part := range s.participants {
		conn, ok := p.sessions.Lookup(part.MemberID)
		if !ok {
			continue
		}
		update, err := envelope.Encode(envelope.UpdateChatRoom{
			RoomID:               msg.RoomID,
			LastMessageText:      msg.Text,
			LastMessageTimestamp: msg.CreatedAt,
			UnreadCount:          s.roomUnread[part.MemberID],
		})
		if err != nil {
			p.log.Error("failed to encode room update", "member_id", part.MemberID, "error", err)
			continue
		}
		p.deliver(ctx, conn, update, envelope.TypeUpdateChatRoom)
	}
}

// broadcast attempts delivery to every connection in the room and returns
// how many succeeded.
func (p *Pipeline) broadcast(ctx context.Context, roomID int64, payload []byte, typ envelope.Type) int {
	conns, err := p.rooms.Connections(roomID)
	if err != nil {
		if errors.Is(err, realtime.ErrNoActiveConnections) {
			p.log.Debug("nobody to notify", "room_id", roomID, "type", typ)
		}
		return 0
	}
	delivered := 0
	for _, conn := range conns {
		if p.deliver(ctx, conn, payload, typ) {
			delivered++
		}
	}
	return delivered
}

// deliver sends payload to one connection. A failure is logged and the
// connection dropped; it never propagates.
func (p *Pipeline) deliver(ctx context.Context, conn realtime.Conn, payload []byte, typ envelope.Type) bool {
	if err := conn.Send(payload); err != nil {
		err = realtime.DeliveryError(conn, err)
		p.metrics.DeliveryFailed(ctx, string(typ))
		p.log.Warn("dropping connection after failed delivery", "member_id", conn.MemberID(), "type", typ, "error", err)
		p.Disconnect(ctx, conn)
		return false
	}
	p.metrics.Delivered(ctx, string(typ))
	return true
}

func storeErr(err error) error {
	if errors.Is(err, chat.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
