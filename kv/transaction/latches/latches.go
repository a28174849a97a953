package latches

import (
	"sort"
	"sync"

	"github.com/pingcap-incubator/omvcc/kv/transaction/mvcc"
	"github.com/pingcap-incubator/omvcc/kv/util/codec"
)

// Latching provides atomicity of engine operations. This should not be confused with transactions which provide
// atomicity for multiple engine operations. For example, consider two commits which write to overlapping keys: if they
// race, then both could validate against the same stale chain and both publish. By latching the keys each operation
// touches, we ensure that the two operations will not race on the same version chain.
//
// A latch is a per-key lock. There is exactly one latch per key while any thread holds or waits for it; latches are
// created on demand and dropped once no thread references them. A thread which needs several keys must latch them in
// one call so that they are taken in ascending key order, which keeps concurrent multi-key acquisitions deadlock free.
//
// Latch objects live in shards selected by a fingerprint of the encoded key. A shard mutex only guards the lookup of
// the latch object, it is never held while a thread waits for a latch, so unrelated keys never serialize each other.

type latch struct {
	// A buffered channel of capacity one, full while the latch is held.
	sem chan struct{}
	// Number of threads holding or waiting for this latch. Guarded by the shard mutex.
	refs int
}

type latchShard struct {
	mu      sync.Mutex
	latches map[int64]*latch
}

type Latches struct {
	shards []*latchShard
	mask   uint64
	// An optional validation function, only used for testing.
	Validation func(txn *mvcc.MvccTxn, keys []int64)
}

// NewLatches creates a new Latches object for managing an engine's latches. There should only be one such object,
// shared between all threads. shardCount is rounded up to a power of two.
func NewLatches(shardCount int) *Latches {
	size := 1
	for size < shardCount {
		size <<= 1
	}
	l := &Latches{
		shards: make([]*latchShard, size),
		mask:   uint64(size - 1),
	}
	for i := range l.shards {
		l.shards[i] = &latchShard{latches: make(map[int64]*latch)}
	}
	return l
}

func (l *Latches) shardFor(key int64) *latchShard {
	return l.shards[codec.Fingerprint(key)&l.mask]
}

// ref returns the latch object for key, creating it if needed, and registers the caller as a user of it.
func (l *Latches) ref(key int64) *latch {
	shard := l.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	lt, ok := shard.latches[key]
	if !ok {
		lt = &latch{sem: make(chan struct{}, 1)}
		shard.latches[key] = lt
	}
	lt.refs++
	return lt
}

// unref drops the caller's reference on the latch for key.
func (l *Latches) unref(key int64) *latch {
	shard := l.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	lt := shard.latches[key]
	lt.refs--
	if lt.refs == 0 {
		delete(shard.latches, key)
	}
	return lt
}

// AcquireLatches tries to lock all latches specified by keys without blocking. If this succeeds, true is returned and
// the caller must release them with ReleaseLatches. If any of the keys is latched, nothing is held on return.
func (l *Latches) AcquireLatches(keysToLatch []int64) bool {
	keys := SortKeys(keysToLatch)
	for i, key := range keys {
		lt := l.ref(key)
		select {
		case lt.sem <- struct{}{}:
		default:
			l.unref(key)
			l.ReleaseLatches(keys[:i])
			return false
		}
	}
	return true
}

// WaitForLatches locks all keys in keysToLatch in ascending key order, waiting for each latch to become free.
// Latches are only ever held for the duration of a single engine operation, so the wait is short.
func (l *Latches) WaitForLatches(keysToLatch []int64) {
	for _, key := range SortKeys(keysToLatch) {
		lt := l.ref(key)
		lt.sem <- struct{}{}
	}
}

// ReleaseLatches releases the latches for all keys in keysToUnlatch. All keys in keysToUnlatch must have been latched
// by the caller.
func (l *Latches) ReleaseLatches(keysToUnlatch []int64) {
	for _, key := range SortKeys(keysToUnlatch) {
		lt := l.unref(key)
		<-lt.sem
	}
}

// Len returns the number of keys which are latched or waited for.
func (l *Latches) Len() int {
	n := 0
	for _, shard := range l.shards {
		shard.mu.Lock()
		n += len(shard.latches)
		shard.mu.Unlock()
	}
	return n
}

// Validate calls the function in Validation, if it exists.
func (l *Latches) Validate(txn *mvcc.MvccTxn, latched []int64) {
	if l.Validation != nil {
		l.Validation(txn, latched)
	}
}

// SortKeys returns a sorted copy of keys with duplicates removed.
func SortKeys(keys []int64) []int64 {
	sorted := make([]int64, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	n := 0
	for i, key := range sorted {
		if i > 0 && key == sorted[n-1] {
			continue
		}
		sorted[n] = key
		n++
	}
	return sorted[:n]
}
