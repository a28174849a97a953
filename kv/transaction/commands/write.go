package commands

import (
	"github.com/pingcap-incubator/omvcc/kv/transaction/mvcc"
	"github.com/pingcap/errors"
)

// Write installs an uncommitted version of a key. It fails with a write conflict if another transaction has an
// uncommitted version of the key, or a version was committed after this transaction started. A conflict leaves the
// transaction active.
type Write struct {
	CommandBase
	key   int64
	value int64
}

func NewWrite(startTs uint64, key, value int64) Write {
	return Write{CommandBase: CommandBase{startTs: startTs}, key: key, value: value}
}

func (w *Write) WillLatch(txn *mvcc.MvccTxn) []int64 {
	return []int64{w.key}
}

func (w *Write) Execute(env *Env, txn *mvcc.MvccTxn) (interface{}, error) {
	chain := env.Store.Chain(w.key)
	if err := env.Detector.CheckWrite(txn, chain); err != nil {
		return nil, errors.Trace(err)
	}
	chain.PutPending(env.Store.NewVersion(w.key, w.value, txn.StartTS))
	txn.AddWrite(w.key)
	return nil, nil
}
