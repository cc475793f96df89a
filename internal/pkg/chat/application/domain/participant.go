package chat

// Participant captures durable room membership.
// Present means "currently inside the room for read accounting", which is
// not the same as holding a live connection.
// Primary key: (RoomID, MemberID)
type Participant struct {
	RoomID   int64 `db:"room_id"`
	MemberID int64 `db:"member_id"`
	Present  bool  `db:"present"`
}

// ReadFlag records whether one member has seen one message.
// Read only ever moves from false to true.
type ReadFlag struct {
	MessageID int64 `db:"message_id"`
	MemberID  int64 `db:"member_id"`
	RoomID    int64 `db:"room_id"`
	Read      bool  `db:"read"`
}
