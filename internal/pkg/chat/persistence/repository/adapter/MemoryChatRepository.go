package adapter

import (
	"context"
	"sort"
	"sync"

	chat "go-chatroom/internal/pkg/chat/application/domain"
	repository "go-chatroom/internal/pkg/chat/persistence/repository/port"

	"github.com/samber/lo"
)

type flagKey struct {
	messageID int64
	memberID  int64
}

type participantKey struct {
	roomID   int64
	memberID int64
}

type memState struct {
	members      map[int64]chat.Member
	rooms        map[int64]chat.Room
	participants map[participantKey]chat.Participant
	messages     map[int64]chat.Message
	flags        map[flagKey]chat.ReadFlag
	nextMember   int64
	nextRoom     int64
	nextMessage  int64
}

func newMemState() *memState {
	return &memState{
		members:      make(map[int64]chat.Member),
		rooms:        make(map[int64]chat.Room),
		participants: make(map[participantKey]chat.Participant),
		messages:     make(map[int64]chat.Message),
		flags:        make(map[flagKey]chat.ReadFlag),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		members:      make(map[int64]chat.Member, len(s.members)),
		rooms:        make(map[int64]chat.Room, len(s.rooms)),
		participants: make(map[participantKey]chat.Participant, len(s.participants)),
		messages:     make(map[int64]chat.Message, len(s.messages)),
		flags:        make(map[flagKey]chat.ReadFlag, len(s.flags)),
		nextMember:   s.nextMember,
		nextRoom:     s.nextRoom,
		nextMessage:  s.nextMessage,
	}
	for k, v := range s.members {
		c.members[k] = v
	}
	for k, v := range s.rooms {
		c.rooms[k] = v
	}
	for k, v := range s.participants {
		c.participants[k] = v
	}
	for k, v := range s.messages {
		c.messages[k] = v
	}
	for k, v := range s.flags {
		c.flags[k] = v
	}
	return c
}

// MemoryChatRepository keeps the whole chat store in process memory.
// A transaction works on a private copy of the state that replaces the
// shared one only when fn succeeds, so aborted work is never observable.
//
// Every InTx deep-copies the whole store and holds the global mutex until fn
// returns, so a send costs O(rows stored) and transactions run one at a time.
// It is meant for development and tests; use the Postgres adapter for load.
type MemoryChatRepository struct {
	mu    *sync.Mutex
	state *memState
	inTx  bool
}

func NewMemoryChatRepository() *MemoryChatRepository {
	return &MemoryChatRepository{mu: &sync.Mutex{}, state: newMemState()}
}

var _ repository.ChatRepository = (*MemoryChatRepository)(nil)

// lock acquires the store mutex unless the caller already runs inside InTx,
// which holds it for the whole transaction.
func (r *MemoryChatRepository) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

// AddMember inserts a member and assigns its id when zero.
func (r *MemoryChatRepository) AddMember(m chat.Member) chat.Member {
	defer r.lock()()
	if m.ID == 0 {
		r.state.nextMember++
		m.ID = r.state.nextMember
	} else if m.ID > r.state.nextMember {
		r.state.nextMember = m.ID
	}
	r.state.members[m.ID] = m
	return m
}

func (r *MemoryChatRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.ChatRepository) error) error {
	if r.inTx {
		return fn(ctx, r)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &MemoryChatRepository{mu: r.mu, state: r.state.clone(), inTx: true}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.state = tx.state
	return nil
}

func (r *MemoryChatRepository) FindMember(_ context.Context, memberID int64) (chat.Member, error) {
	defer r.lock()()
	m, ok := r.state.members[memberID]
	if !ok {
		return chat.Member{}, chat.ErrMemberNotFound
	}
	return m, nil
}

func (r *MemoryChatRepository) FindMembers(_ context.Context, memberIDs []int64) ([]chat.Member, error) {
	defer r.lock()()
	var members []chat.Member
	for _, id := range lo.Uniq(memberIDs) {
		if m, ok := r.state.members[id]; ok {
			members = append(members, m)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

func (r *MemoryChatRepository) ListMembers(_ context.Context) ([]chat.Member, error) {
	defer r.lock()()
	members := lo.Values(r.state.members)
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

func (r *MemoryChatRepository) CreateRoom(_ context.Context, room chat.Room, memberIDs []int64) (chat.Room, error) {
	defer r.lock()()
	if room.ID == 0 {
		r.state.nextRoom++
		room.ID = r.state.nextRoom
	} else if room.ID > r.state.nextRoom {
		r.state.nextRoom = room.ID
	}
	r.state.rooms[room.ID] = room
	for _, id := range memberIDs {
		key := participantKey{roomID: room.ID, memberID: id}
		if _, ok := r.state.participants[key]; !ok {
			r.state.participants[key] = chat.Participant{RoomID: room.ID, MemberID: id}
		}
	}
	return room, nil
}

func (r *MemoryChatRepository) FindRoom(_ context.Context, roomID int64) (chat.Room, error) {
	defer r.lock()()
	room, ok := r.state.rooms[roomID]
	if !ok {
		return chat.Room{}, chat.ErrRoomNotFound
	}
	return room, nil
}

func (r *MemoryChatRepository) FindRoomByMembers(_ context.Context, memberIDs []int64) (chat.Room, bool, error) {
	defer r.lock()()
	want := lo.Uniq(memberIDs)
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

	byRoom := make(map[int64][]int64)
	for key := range r.state.participants {
		byRoom[key.roomID] = append(byRoom[key.roomID], key.memberID)
	}
	roomIDs := lo.Keys(byRoom)
	sort.Slice(roomIDs, func(i, j int) bool { return roomIDs[i] < roomIDs[j] })
	for _, roomID := range roomIDs {
		got := byRoom[roomID]
		sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
		if lo.Every(got, want) && len(got) == len(want) {
			return r.state.rooms[roomID], true, nil
		}
	}
	return chat.Room{}, false, nil
}

func (r *MemoryChatRepository) RoomsOfMember(_ context.Context, memberID int64) ([]chat.Room, error) {
	defer r.lock()()
	var rooms []chat.Room
	for key := range r.state.participants {
		if key.memberID == memberID {
			rooms = append(rooms, r.state.rooms[key.roomID])
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}

func (r *MemoryChatRepository) Participants(_ context.Context, roomID int64) ([]chat.Participant, error) {
	defer r.lock()()
	var participants []chat.Participant
	for key, p := range r.state.participants {
		if key.roomID == roomID {
			participants = append(participants, p)
		}
	}
	sort.Slice(participants, func(i, j int) bool { return participants[i].MemberID < participants[j].MemberID })
	return participants, nil
}

func (r *MemoryChatRepository) SetPresent(_ context.Context, roomID int64, memberID int64, present bool) error {
	defer r.lock()()
	key := participantKey{roomID: roomID, memberID: memberID}
	p, ok := r.state.participants[key]
	if !ok {
		return chat.ErrNotParticipant
	}
	p.Present = present
	r.state.participants[key] = p
	return nil
}

func (r *MemoryChatRepository) ClearPresence(_ context.Context) error {
	defer r.lock()()
	for key, p := range r.state.participants {
		p.Present = false
		r.state.participants[key] = p
	}
	return nil
}

func (r *MemoryChatRepository) CreateMessage(_ context.Context, m chat.Message) (chat.Message, error) {
	defer r.lock()()
	r.state.nextMessage++
	m.ID = r.state.nextMessage
	r.state.messages[m.ID] = m
	return m, nil
}

func (r *MemoryChatRepository) FindMessage(_ context.Context, messageID int64) (chat.Message, error) {
	defer r.lock()()
	m, ok := r.state.messages[messageID]
	if !ok {
		return chat.Message{}, chat.ErrMessageNotFound
	}
	return m, nil
}

func (r *MemoryChatRepository) FindLatestMessage(_ context.Context, roomID int64) (chat.Message, bool, error) {
	defer r.lock()()
	var (
		latest chat.Message
		found  bool
	)
	for _, m := range r.state.messages {
		if m.RoomID == roomID && m.ID > latest.ID {
			latest, found = m, true
		}
	}
	return latest, found, nil
}

func (r *MemoryChatRepository) ListMessages(_ context.Context, roomID int64, limit int) ([]chat.Message, error) {
	defer r.lock()()
	if limit <= 0 {
		limit = 50
	}
	msgs := lo.Filter(lo.Values(r.state.messages), func(m chat.Message, _ int) bool {
		return m.RoomID == roomID
	})
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (r *MemoryChatRepository) InsertReadFlags(_ context.Context, flags []chat.ReadFlag) error {
	defer r.lock()()
	for _, f := range flags {
		r.state.flags[flagKey{messageID: f.MessageID, memberID: f.MemberID}] = f
	}
	return nil
}

func (r *MemoryChatRepository) MarkRoomRead(_ context.Context, memberID int64, roomID int64) (int64, error) {
	defer r.lock()()
	var n int64
	for key, f := range r.state.flags {
		if f.MemberID == memberID && f.RoomID == roomID && !f.Read {
			f.Read = true
			r.state.flags[key] = f
			n++
		}
	}
	return n, nil
}

func (r *MemoryChatRepository) MarkMessageRead(_ context.Context, messageID int64, memberID int64) error {
	defer r.lock()()
	key := flagKey{messageID: messageID, memberID: memberID}
	if f, ok := r.state.flags[key]; ok && !f.Read {
		f.Read = true
		r.state.flags[key] = f
	}
	return nil
}

func (r *MemoryChatRepository) CountUnreadInRoom(_ context.Context, roomID int64, memberID int64) (int, error) {
	defer r.lock()()
	return lo.CountBy(lo.Values(r.state.flags), func(f chat.ReadFlag) bool {
		return f.RoomID == roomID && f.MemberID == memberID && !f.Read
	}), nil
}

func (r *MemoryChatRepository) CountUnreadForMessage(_ context.Context, messageID int64) (int, error) {
	defer r.lock()()
	return lo.CountBy(lo.Values(r.state.flags), func(f chat.ReadFlag) bool {
		return f.MessageID == messageID && !f.Read
	}), nil
}

func (r *MemoryChatRepository) MaxReadMessageID(_ context.Context, memberID int64, roomID int64) (int64, bool, error) {
	defer r.lock()()
	var (
		maxID int64
		found bool
	)
	for _, f := range r.state.flags {
		if f.MemberID == memberID && f.RoomID == roomID && f.Read && f.MessageID > maxID {
			maxID, found = f.MessageID, true
		}
	}
	return maxID, found, nil
}

func (r *MemoryChatRepository) LastReadByMember(_ context.Context, roomID int64) (map[int64]int64, error) {
	defer r.lock()()
	res := make(map[int64]int64)
	for _, f := range r.state.flags {
		if f.RoomID == roomID && f.Read && f.MessageID > res[f.MemberID] {
			res[f.MemberID] = f.MessageID
		}
	}
	return res, nil
}

// ReadFlagsFor returns the flags of one message ordered by member id.
func (r *MemoryChatRepository) ReadFlagsFor(messageID int64) []chat.ReadFlag {
	defer r.lock()()
	flags := lo.Filter(lo.Values(r.state.flags), func(f chat.ReadFlag, _ int) bool {
		return f.MessageID == messageID
	})
	sort.Slice(flags, func(i, j int) bool { return flags[i].MemberID < flags[j].MemberID })
	return flags
}
