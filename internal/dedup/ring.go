package dedup

import (
	"hash/fnv"
	"sync"

	"github.com/kodascan/whalewatch/internal/domain/model"
)

// recordRing keeps the last N records for one (whale_address,
// token_symbol) key, oldest evicted first. Callers hold the owning
// shard's lock.
type recordRing struct {
	buf  []model.WhaleRecord
	next int
	full bool
}

func newRecordRing(size int) *recordRing {
	return &recordRing{buf: make([]model.WhaleRecord, size)}
}

func (r *recordRing) add(rec model.WhaleRecord) {
	r.buf[r.next] = rec
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

// each calls fn over every held record; fn returning false stops the walk.
func (r *recordRing) each(fn func(*model.WhaleRecord) bool) {
	n := r.next
	if r.full {
		n = len(r.buf)
	}
	for i := 0; i < n; i++ {
		if !fn(&r.buf[i]) {
			return
		}
	}
}

// replace overwrites the held record with the same (chain, tx_hash), if any.
func (r *recordRing) replace(rec model.WhaleRecord) {
	r.each(func(held *model.WhaleRecord) bool {
		if held.Chain == rec.Chain && held.TxHash == rec.TxHash {
			*held = rec
			return false
		}
		return true
	})
}

// memoryCache is the L1 layer: rings per dedup key, sharded by FNV-32a
// of the whale address so shard workers on different whales never
// contend, same sharding strategy as cache.ShardedLRU.
type memoryCache struct {
	shards   []*cacheShard
	ringSize int
}

type cacheShard struct {
	mu    sync.Mutex
	rings map[model.DedupKey]*recordRing
}

func newMemoryCache(shardCount, ringSize int) *memoryCache {
	if shardCount <= 0 {
		shardCount = 32
	}
	if ringSize <= 0 {
		ringSize = 50
	}
	shards := make([]*cacheShard, shardCount)
	for i := range shards {
		shards[i] = &cacheShard{rings: make(map[model.DedupKey]*recordRing)}
	}
	return &memoryCache{shards: shards, ringSize: ringSize}
}

func (c *memoryCache) shard(key model.DedupKey) *cacheShard {
	h := fnv.New32a()
	h.Write([]byte(key.WhaleAddress))
	return c.shards[int(h.Sum32())%len(c.shards)]
}

// candidates returns a copy of the held records for key.
func (c *memoryCache) candidates(key model.DedupKey) []model.WhaleRecord {
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	ring, ok := s.rings[key]
	if !ok {
		return nil
	}
	var out []model.WhaleRecord
	ring.each(func(rec *model.WhaleRecord) bool {
		out = append(out, *rec)
		return true
	})
	return out
}

func (c *memoryCache) add(rec model.WhaleRecord) {
	key := rec.DedupGroupKey()
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	ring, ok := s.rings[key]
	if !ok {
		ring = newRecordRing(c.ringSize)
		s.rings[key] = ring
	}
	ring.add(rec)
}

func (c *memoryCache) replace(rec model.WhaleRecord) {
	key := rec.DedupGroupKey()
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if ring, ok := s.rings[key]; ok {
		ring.replace(rec)
	}
}
