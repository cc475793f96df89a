package envelope_test

import (
	"encoding/json"
	"testing"
	"time"

	"go-chatroom/internal/pkg/chat/application/envelope"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	t.Run("should tag a chat message with its messageType", func(t *testing.T) {
		req := require.New(t)
		createdAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

		data, err := envelope.Encode(envelope.ChatMessage{
			SenderID:       1,
			SenderNickname: "alice",
			RoomID:         7,
			Text:           "hi",
			MessageID:      12,
			UnreadCount:    1,
			CreatedAt:      createdAt,
		})
		req.NoError(err)

		var raw map[string]any
		req.NoError(json.Unmarshal(data, &raw))
		req.Equal("CHAT_MESSAGE", raw["messageType"])
		req.Equal("hi", raw["text"])
		req.EqualValues(7, raw["roomId"])
		req.EqualValues(1, raw["unreadCount"])
		req.Equal("2024-05-01T10:00:00Z", raw["createdAt"])
	})

	t.Run("should write a null last read marker when none exists", func(t *testing.T) {
		req := require.New(t)

		data, err := envelope.Encode(envelope.ChatEnter{MemberID: 2, RoomID: 7})
		req.NoError(err)
		req.JSONEq(`{"messageType":"CHAT_ENTER","memberId":2,"roomId":7,"lastReadMessageId":null}`, string(data))

		data, err = envelope.Encode(envelope.ChatEnter{MemberID: 2, RoomID: 7, LastReadMessageID: lo.ToPtr(int64(0))})
		req.NoError(err)
		req.JSONEq(`{"messageType":"CHAT_ENTER","memberId":2,"roomId":7,"lastReadMessageId":0}`, string(data))
	})

	t.Run("should tag a failure with the rejected request", func(t *testing.T) {
		req := require.New(t)

		data, err := envelope.Encode(envelope.Failure{Request: envelope.TypeChatMessage, RoomID: 7, Reason: "not_participant"})
		req.NoError(err)
		req.JSONEq(`{"messageType":"ERROR","request":"CHAT_MESSAGE","roomId":7,"reason":"not_participant"}`, string(data))
	})

	t.Run("should reject a nil envelope", func(t *testing.T) {
		_, err := envelope.Encode(nil)
		require.Error(t, err)
	})
}

func TestDecode(t *testing.T) {
	t.Run("should decode each known variant", func(t *testing.T) {
		req := require.New(t)
		ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

		for _, in := range []envelope.Envelope{
			envelope.ChatMessage{SenderID: 1, RoomID: 7, Text: "hi", MessageID: 3, CreatedAt: ts},
			envelope.ChatEnter{MemberID: 1, RoomID: 7, LastReadMessageID: lo.ToPtr(int64(3))},
			envelope.UpdateChatRoom{RoomID: 7, LastMessageText: "hi", LastMessageTimestamp: ts, UnreadCount: 2},
			envelope.Failure{Request: envelope.TypeChatEnter, RoomID: 7, Reason: "not_found"},
		} {
			data, err := envelope.Encode(in)
			req.NoError(err)

			out, err := envelope.Decode(data)
			req.NoError(err)
			req.Equal(in.MessageType(), out.MessageType())
			req.Equal(in, out)
		}
	})

	t.Run("should decode an inbound send request", func(t *testing.T) {
		req := require.New(t)

		out, err := envelope.Decode([]byte(`{"messageType":"CHAT_MESSAGE","roomId":7,"text":"hello"}`))
		req.NoError(err)
		msg, ok := out.(envelope.ChatMessage)
		req.True(ok)
		req.Equal(int64(7), msg.RoomID)
		req.Equal("hello", msg.Text)
	})

	t.Run("should report unknown tags without panicking", func(t *testing.T) {
		req := require.New(t)

		_, err := envelope.Decode([]byte(`{"messageType":"TYPING","roomId":7}`))
		req.ErrorIs(err, envelope.ErrUnknownType)

		_, err = envelope.Decode([]byte(`{"roomId":7}`))
		req.ErrorIs(err, envelope.ErrUnknownType)
	})

	t.Run("should fail on malformed json", func(t *testing.T) {
		req := require.New(t)

		_, err := envelope.Decode([]byte(`{"messageType":`))
		req.Error(err)
		req.NotErrorIs(err, envelope.ErrUnknownType)
	})
}
