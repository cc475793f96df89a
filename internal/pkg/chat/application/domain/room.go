package chat

import (
	"sort"
	"strings"
	"time"
)

// Room is a named group of members sharing a message stream
type Room struct {
	ID        int64     `db:"id"`
	Title     string    `db:"title"`
	CreatedAt time.Time `db:"created_at"`
}

// Member is a directory entry; the chat core only uses the id and nickname.
type Member struct {
	ID       int64  `db:"id"`
	Username string `db:"username"`
	Nickname string `db:"nickname"`
}

// DefaultTitle joins the sorted usernames with ", ".
func DefaultTitle(members []Member) string {
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Username)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
