package mvcc

import (
	"fmt"

	"github.com/pingcap/errors"
)

// ConflictReason describes why a write was refused.
type ConflictReason int

const (
	// ReasonDirtyWrite means another transaction holds an uncommitted version of the key.
	ReasonDirtyWrite ConflictReason = iota
	// ReasonStaleSnapshot means a version of the key was committed after the writer's snapshot.
	ReasonStaleSnapshot
)

func (r ConflictReason) String() string {
	switch r {
	case ReasonDirtyWrite:
		return "dirty-write"
	case ReasonStaleSnapshot:
		return "stale-snapshot"
	}
	return "unknown"
}

// ErrWriteConflict is returned by a write which cannot proceed. The writing transaction stays active; it is up to
// the client whether to continue, retry the write later, or roll back.
type ErrWriteConflict struct {
	StartTS    uint64
	ConflictTS uint64
	Key        int64
	Reason     ConflictReason
}

func (e *ErrWriteConflict) Error() string {
	return fmt.Sprintf("write conflict (%v), key: %d, startTS: %v, conflictTS: %v", e.Reason, e.Key, e.StartTS, e.ConflictTS)
}

// ErrCommitFailed is returned when commit validation finds a transaction which committed after our snapshot and
// touched something we depend on. The transaction has been aborted.
type ErrCommitFailed struct {
	StartTS          uint64
	CommitTS         uint64
	ConflictCommitTS uint64
	Key              int64
	// Predicate is the read predicate which was invalidated, empty for write-set conflicts.
	Predicate string
}

func (e *ErrCommitFailed) Error() string {
	if e.Predicate == "" {
		return fmt.Sprintf("commit failed, key: %d was committed at %v after startTS: %v", e.Key, e.ConflictCommitTS, e.StartTS)
	}
	return fmt.Sprintf("commit failed, %s invalidated by key: %d committed at %v, startTS: %v",
		e.Predicate, e.Key, e.ConflictCommitTS, e.StartTS)
}

// ErrNoVisibleVersion is returned when a key has no version visible to the reader.
type ErrNoVisibleVersion struct {
	StartTS uint64
	Key     int64
}

func (e *ErrNoVisibleVersion) Error() string {
	return fmt.Sprintf("no visible version, key: %d, startTS: %v", e.Key, e.StartTS)
}

// ErrInvalidTxnState is returned for any operation on a transaction which has already committed or aborted.
type ErrInvalidTxnState struct {
	StartTS uint64
	State   TxnState
}

func (e *ErrInvalidTxnState) Error() string {
	return fmt.Sprintf("txn %v is %v", e.StartTS, e.State)
}

var (
	ErrTxnNotFound    = errors.New("txn not found")
	ErrInvalidModulus = errors.New("modulus must not be zero")
)

// IsWriteConflict reports whether the cause of err is a write conflict.
func IsWriteConflict(err error) bool {
	_, ok := errors.Cause(err).(*ErrWriteConflict)
	return ok
}

// IsCommitFailed reports whether the cause of err is a failed commit validation.
func IsCommitFailed(err error) bool {
	_, ok := errors.Cause(err).(*ErrCommitFailed)
	return ok
}

func IsNoVisibleVersion(err error) bool {
	_, ok := errors.Cause(err).(*ErrNoVisibleVersion)
	return ok
}

func IsInvalidTxnState(err error) bool {
	_, ok := errors.Cause(err).(*ErrInvalidTxnState)
	return ok
}
