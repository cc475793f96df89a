package dispatch

import (
	"context"
	"errors"

	"go-chatroom/internal/infrastructure/realtime"
	chat "go-chatroom/internal/pkg/chat/application/domain"
	"go-chatroom/internal/pkg/chat/application/envelope"
)

// Reason codes carried by ERROR envelopes.
const (
	ReasonNotFound       = "not_found"
	ReasonNotParticipant = "not_participant"
	ReasonInvalid        = "invalid_message"
	ReasonPersistence    = "persistence_failure"
	ReasonInternal       = "internal_error"
)

// FailureReason maps a send or enter error onto its reason code.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrPersistence):
		return ReasonPersistence
	case errors.Is(err, chat.ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, chat.ErrNotParticipant):
		return ReasonNotParticipant
	case errors.Is(err, chat.ErrInvalidMessage),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrMessageTooLong):
		return ReasonInvalid
	default:
		return ReasonInternal
	}
}

// ReportFailure answers a failed request on conn with an ERROR envelope.
// It reports whether the envelope was delivered.
func (p *Pipeline) ReportFailure(ctx context.Context, conn realtime.Conn, request envelope.Type, roomID int64, cause error) bool {
	payload, err := envelope.Encode(envelope.Failure{Request: request, RoomID: roomID, Reason: FailureReason(cause)})
	if err != nil {
		p.log.Error("failed to encode failure", "member_id", conn.MemberID(), "error", err)
		return false
	}
	return p.deliver(ctx, conn, payload, envelope.TypeError)
}

// ReportSendFailure tells the sender's live connection, if any, that a send
// into roomID did not go through.
func (p *Pipeline) ReportSendFailure(ctx context.Context, senderID int64, roomID int64, cause error) bool {
	conn, ok := p.sessions.Lookup(senderID)
	if !ok {
		return false
	}
	return p.ReportFailure(ctx, conn, envelope.TypeChatMessage, roomID, cause)
}
