package realtime

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// DefaultShards is used when a registry is built with a non-positive shard count.
const DefaultShards = 32

func shardCount(n int) int {
	if n <= 0 {
		return DefaultShards
	}
	return n
}

// shardOf maps an id onto [0, n).
func shardOf(id int64, n int) int {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(id))
	return int(xxhash.Sum64(buf[:]) % uint64(n))
}
