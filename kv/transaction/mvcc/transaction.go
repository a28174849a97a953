package mvcc

import (
	"sort"
	"sync"

	"go.uber.org/atomic"
)

// TxnState is the lifecycle state of a transaction. Active is the only non-terminal state.
type TxnState int32

const (
	TxnActive TxnState = iota
	TxnCommitted
	TxnAborted
)

func (s TxnState) String() string {
	switch s {
	case TxnActive:
		return "active"
	case TxnCommitted:
		return "committed"
	case TxnAborted:
		return "aborted"
	}
	return "unknown"
}

// MvccTxn is the record of one transaction. StartTS is both the transaction's id and its snapshot boundary.
//
// Callers serialize operations on a transaction with Lock/Unlock; the write-set and predicates are only touched while
// the lock is held. State may be read without the lock.
type MvccTxn struct {
	StartTS uint64

	mu       sync.Mutex
	state    *atomic.Int32
	commitTS *atomic.Uint64
	writes   map[int64]struct{}
	points   map[int64]struct{}
	mods     map[int64]struct{}
}

func NewTxn(startTS uint64) *MvccTxn {
	return &MvccTxn{
		StartTS:  startTS,
		state:    atomic.NewInt32(int32(TxnActive)),
		commitTS: atomic.NewUint64(0),
		writes:   make(map[int64]struct{}),
		points:   make(map[int64]struct{}),
		mods:     make(map[int64]struct{}),
	}
}

func (txn *MvccTxn) Lock() {
	txn.mu.Lock()
}

func (txn *MvccTxn) Unlock() {
	txn.mu.Unlock()
}

func (txn *MvccTxn) State() TxnState {
	return TxnState(txn.state.Load())
}

// CheckActive returns an *ErrInvalidTxnState unless the transaction is active.
func (txn *MvccTxn) CheckActive() error {
	if state := txn.State(); state != TxnActive {
		return &ErrInvalidTxnState{StartTS: txn.StartTS, State: state}
	}
	return nil
}

// AddWrite records that the transaction owns the uncommitted version of key.
func (txn *MvccTxn) AddWrite(key int64) {
	txn.writes[key] = struct{}{}
}

func (txn *MvccTxn) RemoveWrite(key int64) {
	delete(txn.writes, key)
}

// Writes returns the keys of the write-set in ascending order.
func (txn *MvccTxn) Writes() []int64 {
	keys := make([]int64, 0, len(txn.writes))
	for key := range txn.writes {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (txn *MvccTxn) ReadOnly() bool {
	return len(txn.writes) == 0
}

// AddPointRead records that the transaction read key from its snapshot.
func (txn *MvccTxn) AddPointRead(key int64) {
	txn.points[key] = struct{}{}
}

// AddModQuery records that the transaction observed every value divisible by modulus.
func (txn *MvccTxn) AddModQuery(modulus int64) {
	txn.mods[modulus] = struct{}{}
}

// Predicates returns everything the transaction observed, point reads first, each group in ascending order.
func (txn *MvccTxn) Predicates() []Predicate {
	points := make([]int64, 0, len(txn.points))
	for key := range txn.points {
		points = append(points, key)
	}
	mods := make([]int64, 0, len(txn.mods))
	for m := range txn.mods {
		mods = append(mods, m)
	}
	sort.Slice(points, func(i, j int) bool { return points[i] < points[j] })
	sort.Slice(mods, func(i, j int) bool { return mods[i] < mods[j] })

	preds := make([]Predicate, 0, len(points)+len(mods))
	for _, key := range points {
		preds = append(preds, PointPredicate{Key: key})
	}
	for _, m := range mods {
		preds = append(preds, ModPredicate{Modulus: m})
	}
	return preds
}

// SetCommitted moves the transaction to its terminal committed state. commitTS is 0 for a read-only commit.
func (txn *MvccTxn) SetCommitted(commitTS uint64) {
	txn.commitTS.Store(commitTS)
	txn.state.Store(int32(TxnCommitted))
	txn.writes = nil
}

// SetAborted moves the transaction to its terminal aborted state.
func (txn *MvccTxn) SetAborted() {
	txn.state.Store(int32(TxnAborted))
	txn.writes = nil
}

func (txn *MvccTxn) CommitTS() uint64 {
	return txn.commitTS.Load()
}
