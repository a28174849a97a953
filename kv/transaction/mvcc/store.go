package mvcc

import (
	"sort"
	"sync"

	"github.com/google/btree"
	"github.com/pingcap-incubator/omvcc/kv/util/codec"
	"go.uber.org/atomic"
)

type storeShard struct {
	mu   sync.RWMutex
	tree *btree.BTree
}

// Store holds the version chain of every key. Chains are kept in shards selected by key fingerprint, each shard a
// btree ordered by key. Shard locks only guard the trees; the content of a chain is guarded by its key latch.
type Store struct {
	shards []*storeShard
	mask   uint64
	seq    *atomic.Uint64
}

// NewStore creates an empty store. shardCount is rounded up to a power of two.
func NewStore(shardCount, degree int) *Store {
	size := 1
	for size < shardCount {
		size <<= 1
	}
	s := &Store{
		shards: make([]*storeShard, size),
		mask:   uint64(size - 1),
		seq:    atomic.NewUint64(0),
	}
	for i := range s.shards {
		s.shards[i] = &storeShard{tree: btree.New(degree)}
	}
	return s
}

func (s *Store) shardFor(key int64) *storeShard {
	return s.shards[codec.Fingerprint(key)&s.mask]
}

// Lookup returns the chain for key, or nil if the key has never been written.
func (s *Store) Lookup(key int64) *VersionChain {
	shard := s.shardFor(key)
	probe := &VersionChain{key: key}
	shard.mu.RLock()
	item := shard.tree.Get(probe)
	shard.mu.RUnlock()
	if item == nil {
		return nil
	}
	return item.(*VersionChain)
}

// Chain returns the chain for key, creating an empty one if needed.
func (s *Store) Chain(key int64) *VersionChain {
	if c := s.Lookup(key); c != nil {
		return c
	}
	shard := s.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	probe := NewVersionChain(key)
	if item := shard.tree.Get(probe); item != nil {
		return item.(*VersionChain)
	}
	shard.tree.ReplaceOrInsert(probe)
	return probe
}

// Remove drops the chain for key if it is empty. The caller must hold the key latch.
func (s *Store) Remove(key int64) bool {
	shard := s.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	item := shard.tree.Get(&VersionChain{key: key})
	if item == nil || !item.(*VersionChain).Empty() {
		return false
	}
	shard.tree.Delete(item)
	return true
}

// Keys returns every key with a chain, in ascending order. The result is a snapshot; chains may be created or
// removed concurrently.
func (s *Store) Keys() []int64 {
	var keys []int64
	for _, shard := range s.shards {
		shard.mu.RLock()
		shard.tree.Ascend(func(item btree.Item) bool {
			keys = append(keys, item.(*VersionChain).key)
			return true
		})
		shard.mu.RUnlock()
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Len returns the number of chains.
func (s *Store) Len() int {
	n := 0
	for _, shard := range s.shards {
		shard.mu.RLock()
		n += shard.tree.Len()
		shard.mu.RUnlock()
	}
	return n
}

// NewVersion creates an uncommitted version owned by startTS.
func (s *Store) NewVersion(key, value int64, startTS uint64) *Version {
	return &Version{Key: key, Value: value, StartTS: startTS, Seq: s.seq.Inc()}
}
