package commands

import (
	"github.com/pingcap-incubator/omvcc/kv/transaction/mvcc"
	"github.com/pingcap/errors"
)

// Read returns the value of a key visible to the transaction: its own uncommitted write, or the latest version
// committed at or before its start. The key becomes part of what the transaction observed, whether or not a version
// was found.
type Read struct {
	CommandBase
	key int64
}

func NewRead(startTs uint64, key int64) Read {
	return Read{CommandBase: CommandBase{startTs: startTs}, key: key}
}

func (r *Read) WillLatch(txn *mvcc.MvccTxn) []int64 {
	return []int64{r.key}
}

func (r *Read) Execute(env *Env, txn *mvcc.MvccTxn) (interface{}, error) {
	txn.AddPointRead(r.key)
	var v *mvcc.Version
	if chain := env.Store.Lookup(r.key); chain != nil {
		v = chain.Get(txn.StartTS)
	}
	if v == nil {
		return nil, errors.Trace(&mvcc.ErrNoVisibleVersion{StartTS: txn.StartTS, Key: r.key})
	}
	return v.Value, nil
}
