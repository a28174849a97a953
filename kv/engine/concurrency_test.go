package engine

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/pingcap-incubator/omvcc/kv/transaction/mvcc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

const (
	accounts       = 8
	initialBalance = 100
)

func setupAccounts(t *testing.T, e *Engine) {
	id := e.Begin()
	for key := int64(0); key < accounts; key++ {
		require.NoError(t, e.Write(id, key, initialBalance))
	}
	require.NoError(t, e.Commit(id))
}

func transfer(e *Engine, rnd *rand.Rand) (bool, error) {
	from := rnd.Int63n(accounts)
	to := (from + 1 + rnd.Int63n(accounts-1)) % accounts
	amount := rnd.Int63n(10)

	id := e.Begin()
	a, err := e.Read(id, from)
	if err != nil {
		return false, err
	}
	b, err := e.Read(id, to)
	if err != nil {
		return false, err
	}
	if err := e.Write(id, from, a-amount); err != nil {
		if mvcc.IsWriteConflict(err) {
			return false, e.Rollback(id)
		}
		return false, err
	}
	if err := e.Write(id, to, b+amount); err != nil {
		if mvcc.IsWriteConflict(err) {
			return false, e.Rollback(id)
		}
		return false, err
	}
	if err := e.Commit(id); err != nil {
		if mvcc.IsCommitFailed(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func sumBalances(e *Engine) (int64, error) {
	id := e.Begin()
	var sum int64
	for key := int64(0); key < accounts; key++ {
		value, err := e.Read(id, key)
		if err != nil {
			return 0, err
		}
		sum += value
	}
	return sum, e.Commit(id)
}

func TestConcurrentTransfersPreserveSum(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	setupAccounts(t, e)

	const workers, rounds = 8, 200
	committed := atomic.NewInt32(0)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			for i := 0; i < rounds; i++ {
				ok, err := transfer(e, rnd)
				assert.NoError(t, err)
				if ok {
					committed.Inc()
				}
			}
		}(int64(w))
	}
	// Every snapshot taken while transfers run must see a consistent total.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			sum, err := sumBalances(e)
			assert.NoError(t, err)
			assert.Equal(t, int64(accounts*initialBalance), sum)
		}
	}()
	wg.Wait()

	sum, err := sumBalances(e)
	require.NoError(t, err)
	assert.Equal(t, int64(accounts*initialBalance), sum)
	assert.True(t, committed.Load() > 0)
	assert.Equal(t, 0, e.Latches().Len())
	assert.Equal(t, 0, e.env.Oracle.Inflight())
}

func TestConcurrentWritersOneWinner(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()

	const writers = 16
	for round := int64(0); round < 20; round++ {
		ids := make([]TxnID, writers)
		for i := range ids {
			ids[i] = e.Begin()
		}
		winners := atomic.NewInt32(0)
		var wg sync.WaitGroup
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := ids[i]
				if err := e.Write(id, 1, int64(i)); err != nil {
					assert.True(t, mvcc.IsWriteConflict(err))
					assert.NoError(t, e.Rollback(id))
					return
				}
				if err := e.Commit(id); err != nil {
					assert.True(t, mvcc.IsCommitFailed(err))
					return
				}
				winners.Inc()
			}(i)
		}
		wg.Wait()
		assert.Equal(t, int32(1), winners.Load(), "round %d", round)
	}
}

func TestConcurrentGC(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	setupAccounts(t, e)

	done := make(chan struct{})
	var gcWg sync.WaitGroup
	gcWg.Add(1)
	go func() {
		defer gcWg.Done()
		for {
			select {
			case <-done:
				return
			default:
				e.GC()
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			for i := 0; i < 100; i++ {
				_, err := transfer(e, rnd)
				assert.NoError(t, err)
			}
		}(int64(w))
	}
	wg.Wait()
	close(done)
	gcWg.Wait()

	sum, err := sumBalances(e)
	require.NoError(t, err)
	assert.Equal(t, int64(accounts*initialBalance), sum)
}
