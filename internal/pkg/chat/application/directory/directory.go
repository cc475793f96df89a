// Package directory resolves member display names, reading through an
// optional cache in front of the member repository.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cacheport "go-chatroom/internal/infrastructure/cache/port"
	repository "go-chatroom/internal/pkg/chat/persistence/repository/port"
)

type Directory struct {
	log     *slog.Logger
	members repository.MemberRepository
	cache   cacheport.Cache
	ttl     time.Duration
}

// New builds a Directory. cache may be nil, in which case every lookup goes
// to the repository.
func New(log *slog.Logger, members repository.MemberRepository, cache cacheport.Cache, ttl time.Duration) *Directory {
	return &Directory{log: log, members: members, cache: cache, ttl: ttl}
}

func nicknameKey(memberID int64) string {
	return fmt.Sprintf("member:nickname:%d", memberID)
}

// Nickname returns the member's display name. Cache failures are logged and
// fall back to the repository; a missing member yields chat.ErrMemberNotFound.
func (d *Directory) Nickname(ctx context.Context, memberID int64) (string, error) {
	if d.cache != nil {
		v, err := d.cache.Get(ctx, nicknameKey(memberID))
		switch {
		case err == nil:
			return v, nil
		case !errors.Is(err, cacheport.ErrMiss):
			d.log.Warn("nickname cache read failed", "member_id", memberID, "error", err)
		}
	}

	m, err := d.members.FindMember(ctx, memberID)
	if err != nil {
		return "", err
	}

	if d.cache != nil {
		if err := d.cache.Set(ctx, nicknameKey(memberID), m.Nickname, d.ttl); err != nil {
			d.log.Warn("nickname cache write failed", "member_id", memberID, "error", err)
		}
	}
	return m.Nickname, nil
}

// Nicknames resolves several members at once. Unknown ids are omitted.
func (d *Directory) Nicknames(ctx context.Context, memberIDs []int64) (map[int64]string, error) {
	res := make(map[int64]string, len(memberIDs))
	var missing []int64
	for _, id := range memberIDs {
		if d.cache == nil {
			missing = append(missing, id)
			continue
		}
		v, err := d.cache.Get(ctx, nicknameKey(id))
		if err != nil {
			if !errors.Is(err, cacheport.ErrMiss) {
				d.log.Warn("nickname cache read failed", "member_id", id, "error", err)
			}
			missing = append(missing, id)
			continue
		}
		res[id] = v
	}
	if len(missing) == 0 {
		return res, nil
	}

	members, err := d.members.FindMembers(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		res[m.ID] = m.Nickname
		if d.cache != nil {
			if err := d.cache.Set(ctx, nicknameKey(m.ID), m.Nickname, d.ttl); err != nil {
				d.log.Warn("nickname cache write failed", "member_id", m.ID, "error", err)
			}
		}
	}
	return res, nil
}
