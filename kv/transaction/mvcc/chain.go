package mvcc

import (
	"sort"

	"github.com/google/btree"
)

// VersionChain holds every live version of one key: at most one uncommitted version and the committed versions in
// ascending commit timestamp order. A chain must only be read or mutated while its key is latched.
type VersionChain struct {
	key       int64
	pending   *Version
	committed []*Version
}

func NewVersionChain(key int64) *VersionChain {
	return &VersionChain{key: key}
}

// Less orders chains by key inside a store shard.
func (c *VersionChain) Less(than btree.Item) bool {
	return c.key < than.(*VersionChain).key
}

func (c *VersionChain) Key() int64 {
	return c.key
}

// Pending returns the uncommitted version of the key, or nil.
func (c *VersionChain) Pending() *Version {
	return c.pending
}

// Latest returns the most recently committed version, or nil.
func (c *VersionChain) Latest() *Version {
	if len(c.committed) == 0 {
		return nil
	}
	return c.committed[len(c.committed)-1]
}

// Get returns the version visible to the transaction started at startTS: its own uncommitted version if it has
// one, otherwise the latest version committed at or before startTS. Returns nil if nothing is visible.
func (c *VersionChain) Get(startTS uint64) *Version {
	if c.pending != nil && c.pending.StartTS == startTS {
		return c.pending
	}
	i := sort.Search(len(c.committed), func(i int) bool { return c.committed[i].CommitTS > startTS })
	if i == 0 {
		return nil
	}
	return c.committed[i-1]
}

// PutPending installs v as the uncommitted version of the key, replacing whatever was pending. The caller checks
// for write conflicts first.
func (c *VersionChain) PutPending(v *Version) {
	c.pending = v
}

// DiscardPending drops the uncommitted version if it belongs to startTS. Returns false if there was nothing to drop.
func (c *VersionChain) DiscardPending(startTS uint64) bool {
	if c.pending == nil || c.pending.StartTS != startTS {
		return false
	}
	c.pending = nil
	return true
}

// Publish stamps the uncommitted version of startTS with commitTS and appends it to the committed versions. The
// returned Write carries the value it replaced.
func (c *VersionChain) Publish(startTS, commitTS uint64) (*Write, error) {
	if c.pending == nil || c.pending.StartTS != startTS {
		return nil, &ErrNoVisibleVersion{StartTS: startTS, Key: c.key}
	}
	if latest := c.Latest(); latest != nil && latest.CommitTS >= commitTS {
		return nil, &ErrWriteConflict{StartTS: startTS, ConflictTS: latest.CommitTS, Key: c.key, Reason: ReasonStaleSnapshot}
	}
	w := &Write{Key: c.key, StartTS: startTS, CommitTS: commitTS, Value: c.pending.Value}
	if latest := c.Latest(); latest != nil {
		w.HasBefore = true
		w.Before = latest.Value
	}
	c.pending.CommitTS = commitTS
	c.committed = append(c.committed, c.pending)
	c.pending = nil
	return w, nil
}

// Compact drops committed versions which no transaction with a snapshot at or after safePoint can see, that is every
// version shadowed by a newer one committed at or before safePoint. Returns the number of versions dropped.
func (c *VersionChain) Compact(safePoint uint64) int {
	i := sort.Search(len(c.committed), func(i int) bool { return c.committed[i].CommitTS > safePoint })
	// committed[i-1] is the version visible at safePoint, everything before it is shadowed.
	if i <= 1 {
		return 0
	}
	dropped := i - 1
	kept := make([]*Version, len(c.committed)-dropped)
	copy(kept, c.committed[dropped:])
	c.committed = kept
	return dropped
}

// Len returns the number of versions in the chain, including an uncommitted one.
func (c *VersionChain) Len() int {
	if c.pending != nil {
		return len(c.committed) + 1
	}
	return len(c.committed)
}

func (c *VersionChain) Empty() bool {
	return c.Len() == 0
}

// Versions returns a copy of the committed versions, oldest first.
func (c *VersionChain) Versions() []*Version {
	vs := make([]*Version, len(c.committed))
	copy(vs, c.committed)
	return vs
}
