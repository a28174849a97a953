package commands

import (
	"github.com/pingcap-incubator/omvcc/kv/transaction/conflict"
	"github.com/pingcap-incubator/omvcc/kv/transaction/latches"
	"github.com/pingcap-incubator/omvcc/kv/transaction/mvcc"
	"github.com/pingcap-incubator/omvcc/kv/transaction/oracle"
	"github.com/pingcap-incubator/omvcc/kv/transaction/registry"
	"github.com/pingcap/errors"
)

// Env is the shared state commands run against.
type Env struct {
	Store    *mvcc.Store
	Latches  *latches.Latches
	Oracle   *oracle.Oracle
	Registry *registry.Registry
	Detector *conflict.Detector
}

// Command is an abstraction which covers the process from receiving a client operation on a transaction to returning
// its result.
type Command interface {
	StartTs() uint64
	// WillLatch returns the keys which must be latched while Execute runs, or nil if the command latches on its own.
	WillLatch(txn *mvcc.MvccTxn) []int64
	// Execute runs the command. The transaction is locked and active, and the keys from WillLatch are latched.
	Execute(env *Env, txn *mvcc.MvccTxn) (interface{}, error)
}

// RunCommand runs a command on the transaction it names.
func RunCommand(cmd Command, env *Env) (interface{}, error) {
	txn, err := env.Registry.Get(cmd.StartTs())
	if err != nil {
		return nil, err
	}

	txn.Lock()
	defer txn.Unlock()
	if err := txn.CheckActive(); err != nil {
		return nil, errors.Trace(err)
	}

	keysToLatch := cmd.WillLatch(txn)
	if len(keysToLatch) > 0 {
		env.Latches.WaitForLatches(keysToLatch)
		defer env.Latches.ReleaseLatches(keysToLatch)
		env.Latches.Validate(txn, keysToLatch)
	}

	return cmd.Execute(env, txn)
}

// CommandBase provides some default function implementations for the Command interface.
type CommandBase struct {
	startTs uint64
}

func (base CommandBase) StartTs() uint64 {
	return base.startTs
}

// WriteSetLatches is for commands which touch every key the transaction has written.
type WriteSetLatches struct{}

func (WriteSetLatches) WillLatch(txn *mvcc.MvccTxn) []int64 {
	return txn.Writes()
}

// discardAll drops every uncommitted version of txn and aborts it. The write-set must be latched.
func discardAll(env *Env, txn *mvcc.MvccTxn) {
	for _, key := range txn.Writes() {
		if chain := env.Store.Lookup(key); chain != nil {
			chain.DiscardPending(txn.StartTS)
		}
	}
	txn.SetAborted()
}
