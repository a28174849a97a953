package engine

import (
	"sync"
	"time"

	"github.com/pingcap-incubator/omvcc/kv/config"
	"github.com/pingcap-incubator/omvcc/kv/transaction/commands"
	"github.com/pingcap-incubator/omvcc/kv/transaction/conflict"
	"github.com/pingcap-incubator/omvcc/kv/transaction/latches"
	"github.com/pingcap-incubator/omvcc/kv/transaction/mvcc"
	"github.com/pingcap-incubator/omvcc/kv/transaction/oracle"
	"github.com/pingcap-incubator/omvcc/kv/transaction/registry"
	"github.com/pingcap-incubator/omvcc/kv/util/worker"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// TxnID is the handle of a transaction. It is the transaction's start timestamp.
type TxnID uint64

// Engine is an in-memory transactional key-value store. Transactions read from the snapshot taken when they began
// and are validated against concurrent commits when they commit.
//
// All methods are safe for concurrent use. Operations on one transaction are serialized.
type Engine struct {
	conf *config.Config
	env  *commands.Env

	// Held shared while a transaction is allocated and registered, and exclusively while gc picks its safe point.
	beginMu sync.RWMutex

	stats engineStats

	wg       sync.WaitGroup
	gcWorker *worker.Worker
	gcTicker *worker.Ticker
	closed   *atomic.Bool
}

type engineStats struct {
	begun          *atomic.Uint64
	committed      *atomic.Uint64
	aborted        *atomic.Uint64
	rolledBack     *atomic.Uint64
	writeConflicts *atomic.Uint64
	commitFailures *atomic.Uint64
}

// NewEngine creates an empty engine. If conf has a gc interval, garbage collection runs in the background until
// Close.
func NewEngine(conf *config.Config) (*Engine, error) {
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	e := &Engine{
		conf: conf,
		env: &commands.Env{
			Store:    mvcc.NewStore(conf.StoreShards, conf.BTreeDegree),
			Latches:  latches.NewLatches(conf.LatchShards),
			Oracle:   oracle.NewOracle(),
			Registry: registry.NewRegistry(conf.RegistryShards),
			Detector: conflict.NewDetector(conflict.NewCommitLog(conf.BTreeDegree)),
		},
		stats: engineStats{
			begun:          atomic.NewUint64(0),
			committed:      atomic.NewUint64(0),
			aborted:        atomic.NewUint64(0),
			rolledBack:     atomic.NewUint64(0),
			writeConflicts: atomic.NewUint64(0),
			commitFailures: atomic.NewUint64(0),
		},
		closed: atomic.NewBool(false),
	}
	if conf.GCInterval.Duration > 0 {
		e.gcWorker = worker.NewWorker("gc-worker", 1, &e.wg)
		e.gcWorker.Start(&gcTaskHandler{engine: e})
		e.gcTicker = worker.NewTicker(e.gcWorker, conf.GCInterval.Duration, func() worker.Task { return gcTask{} })
	}
	log.Info("engine started",
		zap.Int("latch-shards", conf.LatchShards),
		zap.Int("store-shards", conf.StoreShards),
		zap.Duration("gc-interval", conf.GCInterval.Duration))
	return e, nil
}

// Close stops background garbage collection. Transactions may still be used afterwards.
func (e *Engine) Close() {
	if !e.closed.CAS(false, true) {
		return
	}
	if e.gcTicker != nil {
		e.gcTicker.Stop()
		e.gcWorker.Stop()
		e.wg.Wait()
	}
	log.Info("engine closed")
}

// Latches exposes the engine's latches, only used for testing.
func (e *Engine) Latches() *latches.Latches {
	return e.env.Latches
}

// Begin starts a transaction. It never fails.
func (e *Engine) Begin() TxnID {
	e.beginMu.RLock()
	ts := e.env.Oracle.BeginTS()
	e.env.Registry.Add(mvcc.NewTxn(ts))
	e.beginMu.RUnlock()

	e.stats.begun.Inc()
	txnCounter.WithLabelValues("begin").Inc()
	activeTxnGauge.Inc()
	log.Debug("begin txn", zap.Uint64("start-ts", ts))
	return TxnID(ts)
}

// Read returns the value of key visible to the transaction.
func (e *Engine) Read(id TxnID, key int64) (int64, error) {
	cmd := commands.NewRead(uint64(id), key)
	resp, err := commands.RunCommand(&cmd, e.env)
	if err != nil {
		return 0, err
	}
	return resp.(int64), nil
}

// Write sets key to value within the transaction. A write conflict leaves the transaction active.
func (e *Engine) Write(id TxnID, key, value int64) error {
	cmd := commands.NewWrite(uint64(id), key, value)
	_, err := commands.RunCommand(&cmd, e.env)
	if err != nil {
		if conflict, ok := errors.Cause(err).(*mvcc.ErrWriteConflict); ok {
			e.stats.writeConflicts.Inc()
			if conflict.Reason == mvcc.ReasonDirtyWrite {
				conflictCounter.WithLabelValues("dirty_write").Inc()
			} else {
				conflictCounter.WithLabelValues("stale_snapshot").Inc()
			}
			log.Debug("write conflict", zap.Uint64("start-ts", uint64(id)), zap.Int64("key", key), zap.Error(err))
		}
		return err
	}
	return nil
}

// Commit makes the transaction's writes visible atomically, or aborts it if validation fails.
func (e *Engine) Commit(id TxnID) error {
	start := time.Now()
	cmd := commands.NewCommit(uint64(id))
	resp, err := commands.RunCommand(&cmd, e.env)
	commitDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if failed, ok := errors.Cause(err).(*mvcc.ErrCommitFailed); ok {
			e.stats.commitFailures.Inc()
			e.stats.aborted.Inc()
			txnCounter.WithLabelValues("abort").Inc()
			activeTxnGauge.Dec()
			if failed.Predicate == "" {
				conflictCounter.WithLabelValues("write_set").Inc()
			} else {
				conflictCounter.WithLabelValues("predicate").Inc()
			}
			log.Debug("commit failed", zap.Uint64("start-ts", uint64(id)), zap.Error(err))
		}
		return err
	}

	e.stats.committed.Inc()
	txnCounter.WithLabelValues("commit").Inc()
	activeTxnGauge.Dec()
	log.Debug("commit txn", zap.Uint64("start-ts", uint64(id)), zap.Uint64("commit-ts", resp.(uint64)))
	return nil
}

// Rollback aborts the transaction and discards its writes.
func (e *Engine) Rollback(id TxnID) error {
	cmd := commands.NewRollback(uint64(id))
	if _, err := commands.RunCommand(&cmd, e.env); err != nil {
		return err
	}
	e.stats.rolledBack.Inc()
	txnCounter.WithLabelValues("rollback").Inc()
	activeTxnGauge.Dec()
	log.Debug("rollback txn", zap.Uint64("start-ts", uint64(id)))
	return nil
}

// ModQuery returns every value visible to the transaction which is divisible by modulus, ordered by key.
func (e *Engine) ModQuery(id TxnID, modulus int64) ([]int64, error) {
	cmd := commands.NewModQuery(uint64(id), modulus)
	resp, err := commands.RunCommand(&cmd, e.env)
	if err != nil {
		return nil, err
	}
	return resp.([]int64), nil
}

// State returns the state of a transaction. Finished transactions report their final state even after gc.
func (e *Engine) State(id TxnID) (mvcc.TxnState, error) {
	return e.env.Registry.State(uint64(id))
}
