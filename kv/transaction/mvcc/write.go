package mvcc

import "fmt"

// Write is the effect of one committed version on its key. The before-image is the value of the latest version
// committed when the write was published, so that validation can tell what a concurrent transaction saw.
type Write struct {
	Key       int64
	StartTS   uint64
	CommitTS  uint64
	Value     int64
	HasBefore bool
	Before    int64
}

func (w *Write) String() string {
	if !w.HasBefore {
		return fmt.Sprintf("key: %d, value: %d, commitTS: %d", w.Key, w.Value, w.CommitTS)
	}
	return fmt.Sprintf("key: %d, value: %d -> %d, commitTS: %d", w.Key, w.Before, w.Value, w.CommitTS)
}
