package commands

import (
	"math"

	"github.com/pingcap-incubator/omvcc/kv/transaction/mvcc"
	"github.com/pingcap/errors"
)

// ModQuery returns every value visible to the transaction which is divisible by a modulus, in ascending key order.
type ModQuery struct {
	CommandBase
	modulus int64
}

func NewModQuery(startTs uint64, modulus int64) ModQuery {
	return ModQuery{CommandBase: CommandBase{startTs: startTs}, modulus: modulus}
}

// WillLatch returns nil, the scan latches one key at a time.
func (m *ModQuery) WillLatch(txn *mvcc.MvccTxn) []int64 {
	return nil
}

func (m *ModQuery) Execute(env *Env, txn *mvcc.MvccTxn) (interface{}, error) {
	if m.modulus == 0 {
		return nil, errors.Trace(mvcc.ErrInvalidModulus)
	}
	values := make([]int64, 0)
	scan := mvcc.NewScanner(env.Store, env.Latches, txn, math.MinInt64)
	for {
		_, value, ok := scan.Next()
		if !ok {
			break
		}
		if value%m.modulus == 0 {
			values = append(values, value)
		}
	}
	txn.AddModQuery(m.modulus)
	return values, nil
}
