package engine

import (
	"time"

	"github.com/pingcap-incubator/omvcc/kv/util/worker"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// GCStats describes one garbage collection.
type GCStats struct {
	SafePoint     uint64
	Versions      int
	Chains        int
	CommitRecords int
	Txns          int
}

type gcTask struct{}

type gcTaskHandler struct {
	engine *Engine
}

func (h *gcTaskHandler) Handle(t worker.Task) {
	switch t.(type) {
	case gcTask:
		h.engine.GC()
	default:
		log.Error("unsupported worker.Task", zap.Any("task", t))
	}
}

// safePoint returns a timestamp such that every active and every future transaction starts at or after it.
func (e *Engine) safePoint() uint64 {
	e.beginMu.Lock()
	defer e.beginMu.Unlock()
	// The next begin gets at least this.
	safe := e.env.Oracle.Now() + 1
	if min, ok := e.env.Registry.MinActiveStartTS(); ok && min < safe {
		safe = min
	}
	return safe
}

// GC drops versions and commit records no transaction can need any more, and drops the records of finished
// transactions. Only their final state is kept, so operations on them still fail with ErrInvalidTxnState.
func (e *Engine) GC() GCStats {
	start := time.Now()
	stats := GCStats{SafePoint: e.safePoint()}

	store, l := e.env.Store, e.env.Latches
	for _, key := range store.Keys() {
		latched := []int64{key}
		l.WaitForLatches(latched)
		if chain := store.Lookup(key); chain != nil {
			stats.Versions += chain.Compact(stats.SafePoint)
			if chain.Empty() && store.Remove(key) {
				stats.Chains++
			}
		}
		l.ReleaseLatches(latched)
	}

	commitLog := e.env.Detector.Log()
	stats.CommitRecords = commitLog.Truncate(stats.SafePoint)
	stats.Txns = e.env.Registry.Prune()
	gcVersionCounter.Add(float64(stats.Versions))

	log.Info("gc finished",
		zap.Uint64("safe-point", stats.SafePoint),
		zap.Int("versions", stats.Versions),
		zap.Int("chains", stats.Chains),
		zap.Int("commit-records", stats.CommitRecords),
		zap.Int("txns", stats.Txns),
		zap.Duration("cost", time.Since(start)))
	if n := commitLog.Len(); n > e.conf.CommitLogLimit {
		log.Warn("commit log is large, a long running transaction may be holding back gc",
			zap.Int("records", n), zap.Uint64("safe-point", stats.SafePoint))
	}
	return stats
}
