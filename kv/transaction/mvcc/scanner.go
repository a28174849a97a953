package mvcc

// KeyLatcher latches keys for the duration of a single chain access.
type KeyLatcher interface {
	WaitForLatches(keys []int64)
	ReleaseLatches(keys []int64)
}

// Scanner is used for reading the values visible to a transaction in ascending key order. The set of keys is fixed
// when the scanner is created; each chain is latched only while its visible version is read, so a scan never holds
// more than one latch.
// Invariant: either the scanner is finished and cannot be used, or pos indexes the next key to examine.
type Scanner struct {
	store   *Store
	latches KeyLatcher
	txn     *MvccTxn
	keys    []int64
	pos     int
}

// NewScanner creates a new scanner ready to read from the snapshot of txn, starting at startKey.
func NewScanner(store *Store, latches KeyLatcher, txn *MvccTxn, startKey int64) *Scanner {
	keys := store.Keys()
	pos := 0
	for pos < len(keys) && keys[pos] < startKey {
		pos++
	}
	return &Scanner{
		store:   store,
		latches: latches,
		txn:     txn,
		keys:    keys,
		pos:     pos,
	}
}

// Next returns the next key and value visible to the transaction. ok is false once the scanner is exhausted.
func (scan *Scanner) Next() (key int64, value int64, ok bool) {
	for scan.pos < len(scan.keys) {
		key = scan.keys[scan.pos]
		scan.pos++

		latched := []int64{key}
		scan.latches.WaitForLatches(latched)
		var v *Version
		// The chain may have been removed by GC after the key list was taken.
		if chain := scan.store.Lookup(key); chain != nil {
			v = chain.Get(scan.txn.StartTS)
		}
		scan.latches.ReleaseLatches(latched)

		if v != nil {
			return key, v.Value, true
		}
	}
	return 0, 0, false
}
