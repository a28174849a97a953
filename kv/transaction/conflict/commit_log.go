package conflict

import (
	"sync"

	"github.com/google/btree"
	"github.com/pingcap-incubator/omvcc/kv/transaction/mvcc"
)

// CommitRecord is what a committed transaction wrote. Records are kept until no active transaction started before
// them, so that overlapping transactions can be validated against them.
type CommitRecord struct {
	StartTS  uint64
	CommitTS uint64
	Writes   []*mvcc.Write
}

func (r *CommitRecord) Less(than btree.Item) bool {
	return r.CommitTS < than.(*CommitRecord).CommitTS
}

// CommitLog is the ordered set of commit records, keyed by commit timestamp.
type CommitLog struct {
	mu   sync.RWMutex
	tree *btree.BTree
}

func NewCommitLog(degree int) *CommitLog {
	return &CommitLog{tree: btree.New(degree)}
}

func (l *CommitLog) Append(rec *CommitRecord) {
	l.mu.Lock()
	l.tree.ReplaceOrInsert(rec)
	l.mu.Unlock()
}

// Range calls fn for every record with after < CommitTS < before in ascending commit order, until fn returns false.
func (l *CommitLog) Range(after, before uint64, fn func(rec *CommitRecord) bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.tree.AscendRange(&CommitRecord{CommitTS: after + 1}, &CommitRecord{CommitTS: before}, func(item btree.Item) bool {
		return fn(item.(*CommitRecord))
	})
}

// Truncate drops every record with CommitTS < below and returns how many were dropped.
func (l *CommitLog) Truncate(below uint64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for {
		min := l.tree.Min()
		if min == nil || min.(*CommitRecord).CommitTS >= below {
			return n
		}
		l.tree.DeleteMin()
		n++
	}
}

func (l *CommitLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tree.Len()
}
