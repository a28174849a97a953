package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOp(t *testing.T) {
	cases := []struct {
		text string
		op   *Op
	}{
		{"W(3)", W(3)},
		{" W( -3 ) ", W(-3)},
		{"W2(1,100)", W2(1, 100)},
		{"W2(1, -7)", W2(1, -7)},
		{"R(9)", R(9)},
		{"M(4)", M(4)},
		{"C", C},
		{"A", A},
		{"_", nil},
		{"", nil},
	}
	for _, c := range cases {
		op, err := ParseOp(c.text)
		require.NoError(t, err, c.text)
		assert.Equal(t, c.op, op, c.text)
	}
}

func TestParseOpInvalid(t *testing.T) {
	for _, text := range []string{"X(1)", "W", "W(1,2)", "W2(1)", "R(a)", "M(99999999999999999999)", "C(1)"} {
		_, err := ParseOp(text)
		assert.Error(t, err, text)
	}
}

func TestOpString(t *testing.T) {
	for _, op := range []*Op{W(3), W2(1, 100), R(-2), M(7), C, A} {
		parsed, err := ParseOp(op.String())
		require.NoError(t, err)
		assert.Equal(t, op, parsed)
	}
}

func TestStepValue(t *testing.T) {
	assert.Equal(t, int64(4), StepValue(1))
	assert.Equal(t, int64(22), StepValue(10))
}
