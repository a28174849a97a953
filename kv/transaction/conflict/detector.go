package conflict

import (
	"github.com/pingcap-incubator/omvcc/kv/transaction/mvcc"
)

// Detector decides whether writes and commits may proceed. Write checks look at a single chain; commit validation
// looks at the chains of the write-set and at the commit log.
//
// Every method must be called with the latches of the chains involved held.
type Detector struct {
	log *CommitLog
}

func NewDetector(log *CommitLog) *Detector {
	return &Detector{log: log}
}

// CheckWrite returns an *mvcc.ErrWriteConflict if txn may not install a version on chain: another transaction has
// an uncommitted version there, or a version was committed after txn started. Rewriting its own uncommitted version
// is allowed.
func (d *Detector) CheckWrite(txn *mvcc.MvccTxn, chain *mvcc.VersionChain) error {
	if pending := chain.Pending(); pending != nil && pending.StartTS != txn.StartTS {
		return &mvcc.ErrWriteConflict{
			StartTS:    txn.StartTS,
			ConflictTS: pending.StartTS,
			Key:        chain.Key(),
			Reason:     mvcc.ReasonDirtyWrite,
		}
	}
	if latest := chain.Latest(); latest != nil && latest.CommitTS > txn.StartTS {
		return &mvcc.ErrWriteConflict{
			StartTS:    txn.StartTS,
			ConflictTS: latest.CommitTS,
			Key:        chain.Key(),
			Reason:     mvcc.ReasonStaleSnapshot,
		}
	}
	return nil
}

// ValidateWriteSet fails if any key in the write-set has been committed by someone else since txn started.
func (d *Detector) ValidateWriteSet(txn *mvcc.MvccTxn, chains []*mvcc.VersionChain) error {
	for _, chain := range chains {
		if latest := chain.Latest(); latest != nil && latest.CommitTS > txn.StartTS {
			return &mvcc.ErrCommitFailed{
				StartTS:          txn.StartTS,
				Key:              chain.Key(),
				ConflictCommitTS: latest.CommitTS,
			}
		}
	}
	return nil
}

// ValidatePredicates fails if a transaction which committed between txn's start and commitTS wrote anything txn
// observed. All commits below commitTS must have finished.
func (d *Detector) ValidatePredicates(txn *mvcc.MvccTxn, commitTS uint64) error {
	preds := txn.Predicates()
	if len(preds) == 0 {
		return nil
	}
	var err error
	d.log.Range(txn.StartTS, commitTS, func(rec *CommitRecord) bool {
		for _, w := range rec.Writes {
			for _, p := range preds {
				if p.Matches(w) {
					err = &mvcc.ErrCommitFailed{
						StartTS:          txn.StartTS,
						CommitTS:         commitTS,
						ConflictCommitTS: rec.CommitTS,
						Key:              w.Key,
						Predicate:        p.String(),
					}
					return false
				}
			}
		}
		return true
	})
	return err
}

// Record adds the writes of a successful commit to the log.
func (d *Detector) Record(txn *mvcc.MvccTxn, commitTS uint64, writes []*mvcc.Write) {
	d.log.Append(&CommitRecord{StartTS: txn.StartTS, CommitTS: commitTS, Writes: writes})
}

func (d *Detector) Log() *CommitLog {
	return d.log
}
