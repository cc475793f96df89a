package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go-chatroom/internal/infrastructure/realtime"
	chat "go-chatroom/internal/pkg/chat/application/domain"
	"go-chatroom/internal/pkg/chat/application/envelope"
)

type EnterResult struct {
	RoomID            int64
	LastReadMessageID *int64
	Delivered         int
}

// Connect registers conn as the member's live connection. A connection it
// replaces leaves its rooms and the member's presence there is cleared; the
// new connection has to enter rooms again.
func (p *Pipeline) Connect(ctx context.Context, conn realtime.Conn) {
	previous := p.sessions.Register(conn)
	if previous == nil {
		return
	}
	left := p.rooms.LeaveConn(previous)
	p.log.Info("session replaced", "member_id", conn.MemberID(), "rooms_left", len(left))
	p.clearPresence(ctx, conn.MemberID(), left)
}

// Disconnect removes conn from every room and from the session registry.
// Presence is cleared only for rooms the member no longer has a connection in.
func (p *Pipeline) Disconnect(ctx context.Context, conn realtime.Conn) {
	left := p.rooms.LeaveConn(conn)
	if !p.sessions.RemoveIf(conn) {
		_ = conn.Close(realtime.CloseNormal, "session closed")
	}
	p.clearPresence(ctx, conn.MemberID(), left)
}

// Enter joins conn to the room, marks the member present and broadcasts
// CHAT_ENTER with the member's last read message to everyone in the room,
// the entering connection included.
func (p *Pipeline) Enter(ctx context.Context, conn realtime.Conn, roomID int64) (*EnterResult, error) {
	memberID := conn.MemberID()
	room, err := p.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(memberID) {
		return nil, chat.ErrNotParticipant
	}

	if p.rooms.Join(roomID, conn) {
		p.metrics.RoomJoined(ctx)
	}
	if err := p.ledger.SetPresent(ctx, roomID, memberID, true); err != nil {
		p.rooms.LeaveOne(roomID, memberID)
		return nil, storeErr(err)
	}

	result := &EnterResult{RoomID: roomID}
	lastRead, ok, err := p.ledger.LastReadMessage(ctx, memberID, roomID)
	if err != nil {
		p.rooms.LeaveOne(roomID, memberID)
		p.clearPresence(ctx, memberID, []int64{roomID})
		return nil, storeErr(err)
	}
	if ok {
		result.LastReadMessageID = &lastRead
	}

	payload, err := envelope.Encode(envelope.ChatEnter{
		MemberID:          memberID,
		RoomID:            roomID,
		LastReadMessageID: result.LastReadMessageID,
	})
	if err != nil {
		return nil, fmt.Errorf("encode enter: %w", err)
	}
	result.Delivered = p.broadcast(ctx, roomID, payload, envelope.TypeChatEnter)
	p.log.Debug("member entered room", "member_id", memberID, "room_id", roomID, "delivered", result.Delivered)
	return result, nil
}

// EnterConnected enters the room with the member's live connection. It
// returns nil without error when the member is not connected.
func (p *Pipeline) EnterConnected(ctx context.Context, memberID int64, roomID int64) (*EnterResult, error) {
	conn, ok := p.sessions.Lookup(memberID)
	if !ok {
		return nil, nil
	}
	return p.Enter(ctx, conn, roomID)
}

// Leave removes the member's connections from one room and clears presence.
func (p *Pipeline) Leave(ctx context.Context, memberID int64, roomID int64) error {
	p.rooms.LeaveOne(roomID, memberID)
	if err := p.ledger.SetPresent(ctx, roomID, memberID, false); err != nil {
		if errors.Is(err, chat.ErrNotParticipant) {
			return err
		}
		return storeErr(err)
	}
	return nil
}

// LeaveAll removes the member from every room and clears presence there.
// The member's session is left untouched.
func (p *Pipeline) LeaveAll(ctx context.Context, memberID int64) []int64 {
	left := p.rooms.LeaveAll(memberID)
	p.clearPresence(ctx, memberID, left)
	return left
}

// clearPresence runs on cleanup paths, so it ignores caller cancellation and
// only logs failures.
func (p *Pipeline) clearPresence(ctx context.Context, memberID int64, roomIDs []int64) {
	ctx = context.WithoutCancel(ctx)
	for _, roomID := range roomIDs {
		if err := p.ledger.SetPresent(ctx, roomID, memberID, false); err != nil {
			p.log.Warn("failed to clear presence", "member_id", memberID, "room_id", roomID, "error", err)
		}
	}
}
