package ledger_test

import (
	"context"
	"testing"
	"time"

	chat "go-chatroom/internal/pkg/chat/application/domain"
	"go-chatroom/internal/pkg/chat/application/ledger"
	"go-chatroom/internal/pkg/chat/persistence/repository/adapter"
	repository "go-chatroom/internal/pkg/chat/persistence/repository/port"

	"github.com/stretchr/testify/require"
)

type fixture struct {
	repo    *adapter.MemoryChatRepository
	ledger  *ledger.Ledger
	room    chat.Room
	alice   chat.Member
	bob     chat.Member
	charlie chat.Member
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := adapter.NewMemoryChatRepository()
	alice := repo.AddMember(chat.Member{Username: "alice", Nickname: "Alice"})
	bob := repo.AddMember(chat.Member{Username: "bob", Nickname: "Bob"})
	charlie := repo.AddMember(chat.Member{Username: "charlie", Nickname: "Charlie"})
	room, err := repo.CreateRoom(context.Background(), chat.Room{Title: "team", CreatedAt: time.Now()},
		[]int64{alice.ID, bob.ID, charlie.ID})
	require.NoError(t, err)
	return fixture{repo: repo, ledger: ledger.New(repo), room: room, alice: alice, bob: bob, charlie: charlie}
}

func (f fixture) post(t *testing.T, sender chat.Member, text string) chat.Message {
	t.Helper()
	ctx := context.Background()
	msg, err := f.repo.CreateMessage(ctx, chat.Message{RoomID: f.room.ID, SenderID: sender.ID, Text: text, CreatedAt: time.Now()})
	require.NoError(t, err)
	_, err = f.ledger.RecordMessageReadFlags(ctx, msg)
	require.NoError(t, err)
	return msg
}

func TestLedger_RecordMessageReadFlags(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	// Given bob is present and charlie is not
	req.NoError(f.ledger.SetPresent(ctx, f.room.ID, f.bob.ID, true))

	// When alice posts
	msg, err := f.repo.CreateMessage(ctx, chat.Message{RoomID: f.room.ID, SenderID: f.alice.ID, Text: "hi", CreatedAt: time.Now()})
	req.NoError(err)
	flags, err := f.ledger.RecordMessageReadFlags(ctx, msg)
	req.NoError(err)

	// Then one row per participant, only charlie unread
	req.Len(flags, 3)
	stored := f.repo.ReadFlagsFor(msg.ID)
	req.Equal([]chat.ReadFlag{
		{MessageID: msg.ID, MemberID: f.alice.ID, RoomID: f.room.ID, Read: true},
		{MessageID: msg.ID, MemberID: f.bob.ID, RoomID: f.room.ID, Read: true},
		{MessageID: msg.ID, MemberID: f.charlie.ID, RoomID: f.room.ID, Read: false},
	}, stored)

	unread, err := f.ledger.UnreadCountForMessage(ctx, msg.ID)
	req.NoError(err)
	req.Equal(1, unread)
}

func TestLedger_UnreadCount(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	// Absent members accumulate exactly one unread row per message
	f.post(t, f.alice, "one")
	f.post(t, f.alice, "two")
	n, err := f.ledger.UnreadCount(ctx, f.room.ID, f.bob.ID)
	req.NoError(err)
	req.Equal(2, n)

	// A present member does not
	req.NoError(f.ledger.SetPresent(ctx, f.room.ID, f.bob.ID, true))
	f.post(t, f.alice, "three")
	n, err = f.ledger.UnreadCount(ctx, f.room.ID, f.bob.ID)
	req.NoError(err)
	req.Equal(2, n)

	// The sender never has unread rows for its own messages
	n, err = f.ledger.UnreadCount(ctx, f.room.ID, f.alice.ID)
	req.NoError(err)
	req.Equal(0, n)
}

func TestLedger_MarkAllReadUpTo(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	f.post(t, f.alice, "one")
	f.post(t, f.alice, "two")

	flipped, err := f.ledger.MarkAllReadUpTo(ctx, f.bob.ID, f.room.ID)
	req.NoError(err)
	req.Equal(int64(2), flipped)

	flipped, err = f.ledger.MarkAllReadUpTo(ctx, f.bob.ID, f.room.ID)
	req.NoError(err)
	req.Zero(flipped)

	n, err := f.ledger.UnreadCount(ctx, f.room.ID, f.bob.ID)
	req.NoError(err)
	req.Zero(n)

	// charlie is untouched
	n, err = f.ledger.UnreadCount(ctx, f.room.ID, f.charlie.ID)
	req.NoError(err)
	req.Equal(2, n)
}

func TestLedger_LastReadMessage(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	// No rows at all: no marker
	_, ok, err := f.ledger.LastReadMessage(ctx, f.bob.ID, f.room.ID)
	req.NoError(err)
	req.False(ok)

	// Rows exist but none read: still no marker
	first := f.post(t, f.alice, "one")
	_, ok, err = f.ledger.LastReadMessage(ctx, f.bob.ID, f.room.ID)
	req.NoError(err)
	req.False(ok)

	second := f.post(t, f.alice, "two")
	id, ok, err := f.ledger.LastReadMessage(ctx, f.alice.ID, f.room.ID)
	req.NoError(err)
	req.True(ok)
	req.Equal(second.ID, id)

	req.NoError(f.ledger.MarkMessageRead(ctx, first.ID, f.bob.ID))
	id, ok, err = f.ledger.LastReadMessage(ctx, f.bob.ID, f.room.ID)
	req.NoError(err)
	req.True(ok)
	req.Equal(first.ID, id)
}

func TestLedger_LastReads(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	msg := f.post(t, f.alice, "one")

	reads, err := f.ledger.LastReads(ctx, f.room.ID)
	req.NoError(err)
	req.Equal(map[int64]int64{f.alice.ID: msg.ID, f.bob.ID: 0, f.charlie.ID: 0}, reads)
}

func TestLedger_PresentFlagFor(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	present, err := f.ledger.PresentFlagFor(ctx, f.room.ID, f.bob.ID)
	req.NoError(err)
	req.False(present)

	req.NoError(f.ledger.SetPresent(ctx, f.room.ID, f.bob.ID, true))
	present, err = f.ledger.PresentFlagFor(ctx, f.room.ID, f.bob.ID)
	req.NoError(err)
	req.True(present)

	_, err = f.ledger.PresentFlagFor(ctx, f.room.ID, 999)
	req.ErrorIs(err, chat.ErrNotParticipant)

	req.ErrorIs(f.ledger.SetPresent(ctx, f.room.ID, 999, true), chat.ErrNotParticipant)
}

func TestLedger_Within(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	// Work done through a ledger bound to an aborted transaction is discarded
	err := f.repo.InTx(ctx, func(ctx context.Context, tx repository.ChatRepository) error {
		msg, err := tx.CreateMessage(ctx, chat.Message{RoomID: f.room.ID, SenderID: f.alice.ID, Text: "x", CreatedAt: time.Now()})
		req.NoError(err)
		_, err = f.ledger.Within(tx).RecordMessageReadFlags(ctx, msg)
		req.NoError(err)
		return context.Canceled
	})
	req.ErrorIs(err, context.Canceled)

	n, err := f.ledger.UnreadCount(ctx, f.room.ID, f.bob.ID)
	req.NoError(err)
	req.Zero(n)
}
