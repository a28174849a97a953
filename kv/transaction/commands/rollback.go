package commands

import (
	"github.com/pingcap-incubator/omvcc/kv/transaction/mvcc"
)

// Rollback discards every uncommitted version of the transaction and aborts it.
type Rollback struct {
	CommandBase
	WriteSetLatches
}

func NewRollback(startTs uint64) Rollback {
	return Rollback{CommandBase: CommandBase{startTs: startTs}}
}

func (r *Rollback) Execute(env *Env, txn *mvcc.MvccTxn) (interface{}, error) {
	discardAll(env, txn)
	return nil, nil
}
