package realtime

import (
	"log/slog"
	"sync"
)

type sessionShard struct {
	mu    sync.RWMutex
	conns map[int64]Conn // memberID -> connection
}

// Sessions keeps at most one live connection per member.
// State is split across shards chosen by member id so that unrelated
// members never contend on the same lock.
type Sessions struct {
	log    *slog.Logger
	shards []*sessionShard
}

// NewSessions constructs a Sessions registry with n shards.
func NewSessions(log *slog.Logger, n int) *Sessions {
	n = shardCount(n)
	shards := make([]*sessionShard, n)
	for i := range shards {
		shards[i] = &sessionShard{conns: make(map[int64]Conn)}
	}
	return &Sessions{log: log, shards: shards}
}

func (s *Sessions) shard(memberID int64) *sessionShard {
	return s.shards[shardOf(memberID, len(s.shards))]
}

// Register stores conn as the member's connection. A previous connection, if
// any, is swapped out and closed after the swap; it is returned so callers
// can clean up state tied to it.
func (s *Sessions) Register(conn Conn) Conn {
	sh := s.shard(conn.MemberID())
	sh.mu.Lock()
	previous, ok := sh.conns[conn.MemberID()]
	sh.conns[conn.MemberID()] = conn
	sh.mu.Unlock()

	if !ok || previous.ID() == conn.ID() {
		return nil
	}
	s.closeConn(previous, CloseSessionReplaced, "session replaced")
	return previous
}

// Lookup returns the member's current connection.
func (s *Sessions) Lookup(memberID int64) (Conn, bool) {
	sh := s.shard(memberID)
	sh.mu.RLock()
	conn, ok := sh.conns[memberID]
	sh.mu.RUnlock()
	return conn, ok
}

// Remove deletes and closes the member's connection. Absent members are a no-op.
func (s *Sessions) Remove(memberID int64) {
	sh := s.shard(memberID)
	sh.mu.Lock()
	conn, ok := sh.conns[memberID]
	delete(sh.conns, memberID)
	sh.mu.Unlock()

	if ok {
		s.closeConn(conn, CloseNormal, "session closed")
	}
}

// RemoveIf removes and closes conn only while it is still the member's
// current connection. It reports whether conn was current.
func (s *Sessions) RemoveIf(conn Conn) bool {
	sh := s.shard(conn.MemberID())
	sh.mu.Lock()
	current, ok := sh.conns[conn.MemberID()]
	ok = ok && current.ID() == conn.ID()
	if ok {
		delete(sh.conns, conn.MemberID())
	}
	sh.mu.Unlock()

	if ok {
		s.closeConn(conn, CloseNormal, "session closed")
	}
	return ok
}

// Len returns the number of registered members.
func (s *Sessions) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.conns)
		sh.mu.RUnlock()
	}
	return n
}

// Close terminates all tracked connections and clears the registry.
func (s *Sessions) Close() {
	var conns []Conn
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, conn := range sh.conns {
			conns = append(conns, conn)
		}
		sh.conns = make(map[int64]Conn)
		sh.mu.Unlock()
	}
	for _, conn := range conns {
		s.closeConn(conn, CloseServerShutdown, "server shutdown")
	}
}

func (s *Sessions) closeConn(conn Conn, code int, reason string) {
	if err := conn.Close(code, reason); err != nil {
		s.log.Warn("failed to close connection",
			"member_id", conn.MemberID(),
			"conn_id", conn.ID(),
			"error", err,
		)
	}
}
