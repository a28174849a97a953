package engine

import (
	"testing"

	"github.com/pingcap-incubator/omvcc/kv/config"
	"github.com/pingcap-incubator/omvcc/kv/transaction/mvcc"
	"github.com/pingcap/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	e, err := NewEngine(config.NewTestConfig())
	require.NoError(t, err)
	return e
}

func mustRead(t *testing.T, e *Engine, id TxnID, key int64) int64 {
	value, err := e.Read(id, key)
	require.NoError(t, err)
	return value
}

func putCommitted(t *testing.T, e *Engine, key, value int64) {
	id := e.Begin()
	require.NoError(t, e.Write(id, key, value))
	require.NoError(t, e.Commit(id))
}

func TestNewEngineInvalidConfig(t *testing.T) {
	conf := config.NewTestConfig()
	conf.LatchShards = 3
	_, err := NewEngine(conf)
	assert.Error(t, err)
}

func TestBeginIncreasing(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	prev := e.Begin()
	for i := 0; i < 10; i++ {
		id := e.Begin()
		assert.True(t, id > prev)
		prev = id
	}
}

func TestReadYourOwnWrites(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	putCommitted(t, e, 1, 10)

	id := e.Begin()
	require.NoError(t, e.Write(id, 1, 20))
	assert.Equal(t, int64(20), mustRead(t, e, id, 1))
	require.NoError(t, e.Write(id, 1, 30))
	assert.Equal(t, int64(30), mustRead(t, e, id, 1))
	require.NoError(t, e.Write(id, 2, 5))
	assert.Equal(t, int64(5), mustRead(t, e, id, 2))

	// Nobody else sees the pending versions.
	other := e.Begin()
	assert.Equal(t, int64(10), mustRead(t, e, other, 1))
	_, err := e.Read(other, 2)
	assert.True(t, mvcc.IsNoVisibleVersion(err))
}

func TestSnapshotStability(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	putCommitted(t, e, 1, 1)
	putCommitted(t, e, 2, 2)

	id := e.Begin()
	assert.Equal(t, int64(1), mustRead(t, e, id, 1))
	for i := int64(0); i < 5; i++ {
		putCommitted(t, e, 1, 100+i)
		putCommitted(t, e, 3, 100+i)
		assert.Equal(t, int64(1), mustRead(t, e, id, 1))
		assert.Equal(t, int64(2), mustRead(t, e, id, 2))
		_, err := e.Read(id, 3)
		assert.True(t, mvcc.IsNoVisibleVersion(err))
	}
	values, err := e.ModQuery(id, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, values)
}

func TestDirtyWriteExclusion(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	t1 := e.Begin()
	t2 := e.Begin()
	require.NoError(t, e.Write(t1, 1, 1))

	err := e.Write(t2, 1, 2)
	require.True(t, mvcc.IsWriteConflict(err))
	conflict := errors.Cause(err).(*mvcc.ErrWriteConflict)
	assert.Equal(t, mvcc.ReasonDirtyWrite, conflict.Reason)
	assert.Equal(t, uint64(t1), conflict.ConflictTS)

	// The failed writer stays active.
	state, err := e.State(t2)
	require.NoError(t, err)
	assert.Equal(t, mvcc.TxnActive, state)
	require.NoError(t, e.Write(t2, 2, 2))

	// Once t1 rolls back, the key is free for transactions whose snapshot is still current.
	require.NoError(t, e.Rollback(t1))
	require.NoError(t, e.Write(t2, 1, 2))
	require.NoError(t, e.Commit(t2))
}

func TestFirstCommitterWins(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	putCommitted(t, e, 1, 1)

	t2 := e.Begin()
	assert.Equal(t, int64(1), mustRead(t, e, t2, 1))
	putCommitted(t, e, 1, 2)

	err := e.Write(t2, 1, 3)
	require.True(t, mvcc.IsWriteConflict(err))
	assert.Equal(t, mvcc.ReasonStaleSnapshot, errors.Cause(err).(*mvcc.ErrWriteConflict).Reason)
	// The earlier read is not affected.
	assert.Equal(t, int64(1), mustRead(t, e, t2, 1))
}

func TestCommitAtomicity(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	id := e.Begin()
	for key := int64(1); key <= 10; key++ {
		require.NoError(t, e.Write(id, key, key*key))
	}
	before := e.Begin()
	require.NoError(t, e.Commit(id))
	after := e.Begin()

	for key := int64(1); key <= 10; key++ {
		_, err := e.Read(before, key)
		assert.True(t, mvcc.IsNoVisibleVersion(err))
		assert.Equal(t, key*key, mustRead(t, e, after, key))
	}
}

func TestRollbackDiscard(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	putCommitted(t, e, 1, 1)

	id := e.Begin()
	require.NoError(t, e.Write(id, 1, 2))
	require.NoError(t, e.Write(id, 2, 2))
	require.NoError(t, e.Rollback(id))

	_, err := e.Read(id, 1)
	assert.True(t, mvcc.IsInvalidTxnState(err))

	other := e.Begin()
	assert.Equal(t, int64(1), mustRead(t, e, other, 1))
	_, err = e.Read(other, 2)
	assert.True(t, mvcc.IsNoVisibleVersion(err))
	values, err := e.ModQuery(other, 2)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestTerminalStates(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	committed := e.Begin()
	require.NoError(t, e.Write(committed, 1, 1))
	require.NoError(t, e.Commit(committed))
	aborted := e.Begin()
	require.NoError(t, e.Rollback(aborted))

	for _, id := range []TxnID{committed, aborted} {
		_, err := e.Read(id, 1)
		assert.True(t, mvcc.IsInvalidTxnState(err))
		assert.True(t, mvcc.IsInvalidTxnState(e.Write(id, 1, 2)))
		assert.True(t, mvcc.IsInvalidTxnState(e.Commit(id)))
		assert.True(t, mvcc.IsInvalidTxnState(e.Rollback(id)))
		_, err = e.ModQuery(id, 2)
		assert.True(t, mvcc.IsInvalidTxnState(err))
	}

	_, err := e.Read(TxnID(1000), 1)
	assert.Equal(t, mvcc.ErrTxnNotFound, errors.Cause(err))
}

// T1 writes 3 and 1 and commits; T2 and T3 race on key 1; T4 sees T2's writes together.
func TestScenarioDirtyWriteThenAtomicCommit(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()

	t1 := e.Begin()
	require.NoError(t, e.Write(t1, 3, 30))
	require.NoError(t, e.Write(t1, 1, 10))
	require.NoError(t, e.Commit(t1))

	t2 := e.Begin()
	assert.Equal(t, int64(10), mustRead(t, e, t2, 1))
	require.NoError(t, e.Write(t2, 1, 11))

	t3 := e.Begin()
	assert.Equal(t, int64(10), mustRead(t, e, t3, 1))
	err := e.Write(t3, 1, 12)
	require.True(t, mvcc.IsWriteConflict(err))
	assert.Equal(t, mvcc.ReasonDirtyWrite, errors.Cause(err).(*mvcc.ErrWriteConflict).Reason)

	assert.Equal(t, int64(30), mustRead(t, e, t2, 3))
	require.NoError(t, e.Write(t2, 3, 31))
	require.NoError(t, e.Commit(t2))

	t4 := e.Begin()
	assert.Equal(t, int64(11), mustRead(t, e, t4, 1))
	assert.Equal(t, int64(31), mustRead(t, e, t4, 3))
	require.NoError(t, e.Commit(t4))
}

// A transaction which began before a conflicting commit cannot write the key, though it still reads the old value.
func TestScenarioFirstCommitterWins(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	const k = 7

	putCommitted(t, e, k, 1)
	t2 := e.Begin()
	t3 := e.Begin()
	require.NoError(t, e.Write(t3, k, 3))
	require.NoError(t, e.Commit(t3))

	assert.Equal(t, int64(1), mustRead(t, e, t2, k))
	assert.True(t, mvcc.IsWriteConflict(e.Write(t2, k, 2)))
}

func TestModQuery(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	// Committed values {4, 6, 8}.
	putCommitted(t, e, 0, 4)
	putCommitted(t, e, 1, 6)
	putCommitted(t, e, 2, 8)

	id := e.Begin()
	values, err := e.ModQuery(id, 4)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 8}, values)

	// Own pending writes are included, ordered by key.
	require.NoError(t, e.Write(id, -5, 12))
	require.NoError(t, e.Write(id, 1, 7))
	values, err = e.ModQuery(id, 4)
	require.NoError(t, err)
	assert.Equal(t, []int64{12, 4, 8}, values)
	values, err = e.ModQuery(id, -7)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, values)

	_, err = e.ModQuery(id, 0)
	assert.Equal(t, mvcc.ErrInvalidModulus, errors.Cause(err))
}

// A value leaving the queried set invalidates the query at commit.
func TestModQueryPredicateConflict(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	putCommitted(t, e, 1, 100)

	t3 := e.Begin()
	values, err := e.ModQuery(t3, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, values)
	require.NoError(t, e.Write(t3, 2, 2))

	t2 := e.Begin()
	require.NoError(t, e.Write(t2, 1, 99))
	require.NoError(t, e.Commit(t2))

	err = e.Commit(t3)
	require.True(t, mvcc.IsCommitFailed(err))
	state, err := e.State(t3)
	require.NoError(t, err)
	assert.Equal(t, mvcc.TxnAborted, state)

	// t3's write never became visible.
	t4 := e.Begin()
	_, err = e.Read(t4, 2)
	assert.True(t, mvcc.IsNoVisibleVersion(err))
}

func TestReadOnlyCommitSkipsValidation(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	putCommitted(t, e, 1, 2)

	id := e.Begin()
	mustRead(t, e, id, 1)
	_, err := e.ModQuery(id, 2)
	require.NoError(t, err)
	putCommitted(t, e, 1, 3)
	assert.NoError(t, e.Commit(id))
}

func TestPointReadConflict(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	putCommitted(t, e, 1, 1)

	id := e.Begin()
	mustRead(t, e, id, 1)
	// Reading a key which does not exist yet also counts.
	_, err := e.Read(id, 5)
	require.True(t, mvcc.IsNoVisibleVersion(err))
	require.NoError(t, e.Write(id, 2, 2))
	putCommitted(t, e, 5, 5)

	err = e.Commit(id)
	require.True(t, mvcc.IsCommitFailed(err))
	assert.Equal(t, int64(5), errors.Cause(err).(*mvcc.ErrCommitFailed).Key)
}

func TestStats(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	putCommitted(t, e, 1, 1)
	id := e.Begin()
	other := e.Begin()
	require.NoError(t, e.Write(id, 1, 2))
	assert.Error(t, e.Write(other, 1, 3))
	require.NoError(t, e.Rollback(id))

	stats := e.Stats()
	assert.Equal(t, uint64(3), stats.Begun)
	assert.Equal(t, uint64(1), stats.Committed)
	assert.Equal(t, uint64(1), stats.RolledBack)
	assert.Equal(t, uint64(1), stats.WriteConflicts)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 3, stats.Registered)
	assert.Equal(t, 1, stats.Keys)
	assert.Equal(t, 1, stats.CommitLog)
}
