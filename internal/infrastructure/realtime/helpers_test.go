package realtime_test

import (
	"sync"

	"go-chatroom/internal/infrastructure/realtime"
)

type fakeConn struct {
	id     string
	member int64

	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func newFakeConn(id string, member int64) *fakeConn {
	return &fakeConn{id: id, member: member}
}

var _ realtime.Conn = (*fakeConn)(nil)

func (f *fakeConn) ID() string      { return f.id }
func (f *fakeConn) MemberID() int64 { return f.member }

func (f *fakeConn) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return realtime.ErrConnectionClosed
	}
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeConn) Close(int, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
