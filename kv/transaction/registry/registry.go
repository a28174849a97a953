package registry

import (
	"sync"

	"github.com/pingcap-incubator/omvcc/kv/transaction/mvcc"
	"github.com/pingcap-incubator/omvcc/kv/util/codec"
	"github.com/pingcap/errors"
)

type registryShard struct {
	mu   sync.RWMutex
	txns map[uint64]*mvcc.MvccTxn
	// Final states of pruned transactions.
	tombstones map[uint64]mvcc.TxnState
}

// Registry maps transaction ids to transaction records. Once a transaction commits or aborts, Prune may drop its
// record, but its final state is kept so late operations on it keep failing with ErrInvalidTxnState.
type Registry struct {
	shards []*registryShard
	mask   uint64
}

// NewRegistry creates an empty registry. shardCount is rounded up to a power of two.
func NewRegistry(shardCount int) *Registry {
	size := 1
	for size < shardCount {
		size <<= 1
	}
	r := &Registry{
		shards: make([]*registryShard, size),
		mask:   uint64(size - 1),
	}
	for i := range r.shards {
		r.shards[i] = &registryShard{
			txns:       make(map[uint64]*mvcc.MvccTxn),
			tombstones: make(map[uint64]mvcc.TxnState),
		}
	}
	return r
}

func (r *Registry) shardFor(startTS uint64) *registryShard {
	return r.shards[codec.Fingerprint(int64(startTS))&r.mask]
}

// Add registers a new active transaction.
func (r *Registry) Add(txn *mvcc.MvccTxn) {
	shard := r.shardFor(txn.StartTS)
	shard.mu.Lock()
	shard.txns[txn.StartTS] = txn
	shard.mu.Unlock()
}

// Get returns the transaction with id startTS. A pruned transaction gives ErrInvalidTxnState, an id which was never
// registered gives ErrTxnNotFound.
func (r *Registry) Get(startTS uint64) (*mvcc.MvccTxn, error) {
	shard := r.shardFor(startTS)
	shard.mu.RLock()
	txn, ok := shard.txns[startTS]
	state, pruned := shard.tombstones[startTS]
	shard.mu.RUnlock()
	if ok {
		return txn, nil
	}
	if pruned {
		return nil, errors.Trace(&mvcc.ErrInvalidTxnState{StartTS: startTS, State: state})
	}
	return nil, errors.Annotatef(mvcc.ErrTxnNotFound, "startTS: %v", startTS)
}

// State returns the state of a transaction, including pruned ones.
func (r *Registry) State(startTS uint64) (mvcc.TxnState, error) {
	shard := r.shardFor(startTS)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	if txn, ok := shard.txns[startTS]; ok {
		return txn.State(), nil
	}
	if state, ok := shard.tombstones[startTS]; ok {
		return state, nil
	}
	return 0, errors.Annotatef(mvcc.ErrTxnNotFound, "startTS: %v", startTS)
}

// MinActiveStartTS returns the lowest start timestamp among active transactions. ok is false if none is active.
func (r *Registry) MinActiveStartTS() (min uint64, ok bool) {
	for _, shard := range r.shards {
		shard.mu.RLock()
		for ts, txn := range shard.txns {
			if txn.State() == mvcc.TxnActive && (!ok || ts < min) {
				min, ok = ts, true
			}
		}
		shard.mu.RUnlock()
	}
	return min, ok
}

// Prune drops the records of committed and aborted transactions, keeping only their final state, and returns how
// many were dropped.
func (r *Registry) Prune() int {
	n := 0
	for _, shard := range r.shards {
		shard.mu.Lock()
		for ts, txn := range shard.txns {
			if state := txn.State(); state != mvcc.TxnActive {
				shard.tombstones[ts] = state
				delete(shard.txns, ts)
				n++
			}
		}
		shard.mu.Unlock()
	}
	return n
}

// Count returns the number of registered transactions and how many of them are active.
func (r *Registry) Count() (total, active int) {
	for _, shard := range r.shards {
		shard.mu.RLock()
		total += len(shard.txns)
		for _, txn := range shard.txns {
			if txn.State() == mvcc.TxnActive {
				active++
			}
		}
		shard.mu.RUnlock()
	}
	return total, active
}
