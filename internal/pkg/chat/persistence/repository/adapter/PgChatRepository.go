package adapter

import (
	"context"
	"errors"
	"sort"

	chat "go-chatroom/internal/pkg/chat/application/domain"
	repository "go-chatroom/internal/pkg/chat/persistence/repository/port"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var errNilPool = errors.New("PgChatRepository: nil pool")

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgChatRepository struct {
	pool *pgxpool.Pool
	db   querier
	inTx bool
}

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	r := &PgChatRepository{pool: pool}
	if pool != nil {
		r.db = pool
	}
	return r
}

var _ repository.ChatRepository = (*PgChatRepository)(nil)

// InTx runs fn inside a single database transaction. Nested calls reuse the
// outer transaction.
func (r *PgChatRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.ChatRepository) error) error {
	if r == nil || r.db == nil {
		return errNilPool
	}
	if r.inTx {
		return fn(ctx, r)
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PgChatRepository{pool: r.pool, db: tx, inTx: true})
	})
}

func (r *PgChatRepository) FindMember(ctx context.Context, memberID int64) (chat.Member, error) {
	if r == nil || r.db == nil {
		return chat.Member{}, errNilPool
	}
	var m chat.Member
	err := r.db.QueryRow(ctx,
		"SELECT id, username, nickname FROM chat.member WHERE id = $1",
		memberID,
	).Scan(&m.ID, &m.Username, &m.Nickname)
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Member{}, chat.ErrMemberNotFound
	}
	return m, err
}

func (r *PgChatRepository) FindMembers(ctx context.Context, memberIDs []int64) ([]chat.Member, error) {
	if r == nil || r.db == nil {
		return nil, errNilPool
	}
	rows, err := r.db.Query(ctx,
		"SELECT id, username, nickname FROM chat.member WHERE id = ANY($1::bigint[]) ORDER BY id",
		memberIDs,
	)
	if err != nil {
		return nil, err
	}
	return collectMembers(rows)
}

func (r *PgChatRepository) ListMembers(ctx context.Context) ([]chat.Member, error) {
	if r == nil || r.db == nil {
		return nil, errNilPool
	}
	rows, err := r.db.Query(ctx, "SELECT id, username, nickname FROM chat.member ORDER BY id")
	if err != nil {
		return nil, err
	}
	return collectMembers(rows)
}

func (r *PgChatRepository) CreateRoom(ctx context.Context, room chat.Room, memberIDs []int64) (chat.Room, error) {
	if r == nil || r.db == nil {
		return chat.Room{}, errNilPool
	}
	err := r.db.QueryRow(ctx,
		"INSERT INTO chat.room (title, created_at) VALUES ($1, $2) RETURNING id",
		room.Title, room.CreatedAt,
	).Scan(&room.ID)
	if err != nil {
		return chat.Room{}, err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO chat.participant (room_id, member_id, present)
		SELECT $1, m, false FROM unnest($2::bigint[]) AS m
		ON CONFLICT (room_id, member_id) DO NOTHING
	`, room.ID, memberIDs)
	if err != nil {
		return chat.Room{}, err
	}
	return room, nil
}

func (r *PgChatRepository) FindRoom(ctx context.Context, roomID int64) (chat.Room, error) {
	if r == nil || r.db == nil {
		return chat.Room{}, errNilPool
	}
	var room chat.Room
	err := r.db.QueryRow(ctx,
		"SELECT id, title, created_at FROM chat.room WHERE id = $1",
		roomID,
	).Scan(&room.ID, &room.Title, &room.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Room{}, chat.ErrRoomNotFound
	}
	return room, err
}

func (r *PgChatRepository) FindRoomByMembers(ctx context.Context, memberIDs []int64) (chat.Room, bool, error) {
	if r == nil || r.db == nil {
		return chat.Room{}, false, errNilPool
	}
	sorted := append([]int64(nil), memberIDs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var room chat.Room
	err := r.db.QueryRow(ctx, `
		SELECT r.id, r.title, r.created_at
		FROM chat.room r
		JOIN chat.participant p ON p.room_id = r.id
		GROUP BY r.id, r.title, r.created_at
		HAVING array_agg(p.member_id ORDER BY p.member_id) = $1::bigint[]
		LIMIT 1
	`, sorted).Scan(&room.ID, &room.Title, &room.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Room{}, false, nil
	}
	if err != nil {
		return chat.Room{}, false, err
	}
	return room, true, nil
}

func (r *PgChatRepository) RoomsOfMember(ctx context.Context, memberID int64) ([]chat.Room, error) {
	if r == nil || r.db == nil {
		return nil, errNilPool
	}
	rows, err := r.db.Query(ctx, `
		SELECT r.id, r.title, r.created_at
		FROM chat.room r
		JOIN chat.participant p ON p.room_id = r.id
		WHERE p.member_id = $1
		ORDER BY r.id
	`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []chat.Room
	for rows.Next() {
		var room chat.Room
		if err := rows.Scan(&room.ID, &room.Title, &room.CreatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (r *PgChatRepository) Participants(ctx context.Context, roomID int64) ([]chat.Participant, error) {
	if r == nil || r.db == nil {
		return nil, errNilPool
	}
	rows, err := r.db.Query(ctx, `
		SELECT room_id, member_id, present
		FROM chat.participant
		WHERE room_id = $1
		ORDER BY member_id
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []chat.Participant
	for rows.Next() {
		var p chat.Participant
		if err := rows.Scan(&p.RoomID, &p.MemberID, &p.Present); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (r *PgChatRepository) SetPresent(ctx context.Context, roomID int64, memberID int64, present bool) error {
	if r == nil || r.db == nil {
		return errNilPool
	}
	ct, err := r.db.Exec(ctx, `
		UPDATE chat.participant
		SET present = $3
		WHERE room_id = $1 AND member_id = $2
	`, roomID, memberID, present)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return chat.ErrNotParticipant
	}
	return nil
}

func (r *PgChatRepository) ClearPresence(ctx context.Context) error {
	if r == nil || r.db == nil {
		return errNilPool
	}
	_, err := r.db.Exec(ctx, "UPDATE chat.participant SET present = false WHERE present")
	return err
}

func (r *PgChatRepository) CreateMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	if r == nil || r.db == nil {
		return chat.Message{}, errNilPool
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO chat.message (room_id, sender_id, text, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, m.RoomID, m.SenderID, m.Text, m.CreatedAt).Scan(&m.ID)
	if err != nil {
		return chat.Message{}, err
	}
	return m, nil
}

func (r *PgChatRepository) FindMessage(ctx context.Context, messageID int64) (chat.Message, error) {
	if r == nil || r.db == nil {
		return chat.Message{}, errNilPool
	}
	var m chat.Message
	err := r.db.QueryRow(ctx,
		"SELECT id, room_id, sender_id, text, created_at FROM chat.message WHERE id = $1",
		messageID,
	).Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Text, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Message{}, chat.ErrMessageNotFound
	}
	return m, err
}

func (r *PgChatRepository) FindLatestMessage(ctx context.Context, roomID int64) (chat.Message, bool, error) {
	if r == nil || r.db == nil {
		return chat.Message{}, false, errNilPool
	}
	var m chat.Message
	err := r.db.QueryRow(ctx, `
		SELECT id, room_id, sender_id, text, created_at
		FROM chat.message
		WHERE room_id = $1
		ORDER BY id DESC
		LIMIT 1
	`, roomID).Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Text, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Message{}, false, nil
	}
	if err != nil {
		return chat.Message{}, false, err
	}
	return m, true, nil
}

func (r *PgChatRepository) ListMessages(ctx context.Context, roomID int64, limit int) ([]chat.Message, error) {
	if r == nil || r.db == nil {
		return nil, errNilPool
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, room_id, sender_id, text, created_at FROM (
			SELECT id, room_id, sender_id, text, created_at
			FROM chat.message
			WHERE room_id = $1
			ORDER BY id DESC
			LIMIT $2
		) recent
		ORDER BY id ASC
	`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return msgs, nil
}

func (r *PgChatRepository) InsertReadFlags(ctx context.Context, flags []chat.ReadFlag) error {
	if r == nil || r.db == nil {
		return errNilPool
	}
	if len(flags) == 0 {
		return nil
	}
	messageIDs := make([]int64, len(flags))
	memberIDs := make([]int64, len(flags))
	roomIDs := make([]int64, len(flags))
	reads := make([]bool, len(flags))
	for i, f := range flags {
		messageIDs[i], memberIDs[i], roomIDs[i], reads[i] = f.MessageID, f.MemberID, f.RoomID, f.Read
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO chat.read_flag (message_id, member_id, room_id, is_read)
		SELECT * FROM unnest($1::bigint[], $2::bigint[], $3::bigint[], $4::boolean[])
	`, messageIDs, memberIDs, roomIDs, reads)
	return err
}

func (r *PgChatRepository) MarkRoomRead(ctx context.Context, memberID int64, roomID int64) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errNilPool
	}
	ct, err := r.db.Exec(ctx, `
		UPDATE chat.read_flag
		SET is_read = true
		WHERE member_id = $1 AND room_id = $2 AND NOT is_read
	`, memberID, roomID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (r *PgChatRepository) MarkMessageRead(ctx context.Context, messageID int64, memberID int64) error {
	if r == nil || r.db == nil {
		return errNilPool
	}
	_, err := r.db.Exec(ctx, `
		UPDATE chat.read_flag
		SET is_read = true
		WHERE message_id = $1 AND member_id = $2 AND NOT is_read
	`, messageID, memberID)
	return err
}

func (r *PgChatRepository) CountUnreadInRoom(ctx context.Context, roomID int64, memberID int64) (int, error) {
	if r == nil || r.db == nil {
		return 0, errNilPool
	}
	var n int64
	err := r.db.QueryRow(ctx, `
		SELECT count(*) FROM chat.read_flag
		WHERE room_id = $1 AND member_id = $2 AND NOT is_read
	`, roomID, memberID).Scan(&n)
	return int(n), err
}

func (r *PgChatRepository) CountUnreadForMessage(ctx context.Context, messageID int64) (int, error) {
	if r == nil || r.db == nil {
		return 0, errNilPool
	}
	var n int64
	err := r.db.QueryRow(ctx,
		"SELECT count(*) FROM chat.read_flag WHERE message_id = $1 AND NOT is_read",
		messageID,
	).Scan(&n)
	return int(n), err
}

func (r *PgChatRepository) MaxReadMessageID(ctx context.Context, memberID int64, roomID int64) (int64, bool, error) {
	if r == nil || r.db == nil {
		return 0, false, errNilPool
	}
	var id *int64
	err := r.db.QueryRow(ctx, `
		SELECT max(message_id) FROM chat.read_flag
		WHERE member_id = $1 AND room_id = $2 AND is_read
	`, memberID, roomID).Scan(&id)
	if err != nil {
		return 0, false, err
	}
	if id == nil {
		return 0, false, nil
	}
	return *id, true, nil
}

func (r *PgChatRepository) LastReadByMember(ctx context.Context, roomID int64) (map[int64]int64, error) {
	if r == nil || r.db == nil {
		return nil, errNilPool
	}
	rows, err := r.db.Query(ctx, `
		SELECT member_id, max(message_id)
		FROM chat.read_flag
		WHERE room_id = $1 AND is_read
		GROUP BY member_id
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make(map[int64]int64)
	for rows.Next() {
		var memberID, messageID int64
		if err := rows.Scan(&memberID, &messageID); err != nil {
			return nil, err
		}
		res[memberID] = messageID
	}
	return res, rows.Err()
}

func collectMembers(rows pgx.Rows) ([]chat.Member, error) {
	defer rows.Close()
	var members []chat.Member
	for rows.Next() {
		var m chat.Member
		if err := rows.Scan(&m.ID, &m.Username, &m.Nickname); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
