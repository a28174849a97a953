package mvcc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLatcher struct {
	held int
	max  int
}

func (l *countingLatcher) WaitForLatches(keys []int64) {
	l.held += len(keys)
	if l.held > l.max {
		l.max = l.held
	}
}

func (l *countingLatcher) ReleaseLatches(keys []int64) {
	l.held -= len(keys)
}

func TestScanner(t *testing.T) {
	s := NewStore(4, 4)
	put := func(key, value int64, startTS, commitTS uint64) {
		c := s.Chain(key)
		c.PutPending(s.NewVersion(key, value, startTS))
		if commitTS != 0 {
			_, err := c.Publish(startTS, commitTS)
			require.NoError(t, err)
		}
	}
	put(3, 30, 1, 2)
	put(1, 10, 1, 2)
	put(2, 20, 3, 4)
	put(5, 50, 6, 0)
	put(4, 40, 7, 0)

	latcher := &countingLatcher{}
	scan := NewScanner(s, latcher, NewTxn(3), 0)
	var keys, values []int64
	for {
		key, value, ok := scan.Next()
		if !ok {
			break
		}
		keys = append(keys, key)
		values = append(values, value)
	}
	assert.Equal(t, []int64{1, 3}, keys)
	assert.Equal(t, []int64{10, 30}, values)
	assert.Equal(t, 0, latcher.held)
	assert.Equal(t, 1, latcher.max)

	// Own pending versions are visible, scanning from a start key.
	scan = NewScanner(s, latcher, NewTxn(6), 2)
	keys = keys[:0]
	for {
		key, _, ok := scan.Next()
		if !ok {
			break
		}
		keys = append(keys, key)
	}
	assert.Equal(t, []int64{2, 3, 5}, keys)
	_, _, ok := scan.Next()
	assert.False(t, ok)
}
