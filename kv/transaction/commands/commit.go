package commands

import (
	"github.com/pingcap-incubator/omvcc/kv/transaction/mvcc"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Commit validates a transaction and makes all its writes visible at one commit timestamp. A transaction which
// wrote nothing commits without validation. If validation fails, the transaction is aborted and none of its writes
// become visible.
//
// Validation runs with the write-set latched:
// 1. no key in the write-set may have been committed by someone else after the transaction started;
// 2. after a commit timestamp is allocated and every lower commit has finished, no transaction which committed
//    between our start and our commit timestamp may have written anything we read or queried.
type Commit struct {
	CommandBase
	WriteSetLatches
}

func NewCommit(startTs uint64) Commit {
	return Commit{CommandBase: CommandBase{startTs: startTs}}
}

// Execute returns the commit timestamp, zero for a read-only transaction.
func (c *Commit) Execute(env *Env, txn *mvcc.MvccTxn) (interface{}, error) {
	if txn.ReadOnly() {
		txn.SetCommitted(0)
		return uint64(0), nil
	}

	keys := txn.Writes()
	chains := make([]*mvcc.VersionChain, 0, len(keys))
	for _, key := range keys {
		chain := env.Store.Lookup(key)
		if chain == nil || chain.Pending() == nil || chain.Pending().StartTS != txn.StartTS {
			log.Panic("uncommitted version lost", zap.Uint64("start-ts", txn.StartTS), zap.Int64("key", key))
		}
		chains = append(chains, chain)
	}

	if err := env.Detector.ValidateWriteSet(txn, chains); err != nil {
		discardAll(env, txn)
		return nil, errors.Trace(err)
	}

	commitTS := env.Oracle.CommitTS()
	defer env.Oracle.Done(commitTS)
	// Every record the predicates must be checked against is in the log once lower commits have finished.
	env.Oracle.WaitFor(commitTS)

	if err := env.Detector.ValidatePredicates(txn, commitTS); err != nil {
		discardAll(env, txn)
		return nil, errors.Trace(err)
	}

	writes := make([]*mvcc.Write, 0, len(chains))
	for _, chain := range chains {
		w, err := chain.Publish(txn.StartTS, commitTS)
		if err != nil {
			log.Panic("publish validated version", zap.Uint64("start-ts", txn.StartTS), zap.Error(err))
		}
		writes = append(writes, w)
	}
	env.Detector.Record(txn, commitTS, writes)
	txn.SetCommitted(commitTS)
	return commitTS, nil
}
