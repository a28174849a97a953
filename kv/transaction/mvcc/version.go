package mvcc

import "fmt"

// Version is one value of a key. A version is uncommitted (CommitTS == 0) from the write which creates it until its
// owner commits; after that it is immutable.
type Version struct {
	Key      int64
	Value    int64
	StartTS  uint64
	CommitTS uint64
	// Seq orders versions by creation across the whole store.
	Seq uint64
}

// Committed returns true once the owner has committed this version.
func (v *Version) Committed() bool {
	return v.CommitTS != 0
}

func (v *Version) String() string {
	if v.Committed() {
		return fmt.Sprintf("key: %d, value: %d, startTS: %d, commitTS: %d", v.Key, v.Value, v.StartTS, v.CommitTS)
	}
	return fmt.Sprintf("key: %d, value: %d, startTS: %d, uncommitted", v.Key, v.Value, v.StartTS)
}
