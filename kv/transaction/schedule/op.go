package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pingcap/errors"
)

type OpKind int

const (
	// OpWrite writes a value derived from the step it runs at.
	OpWrite OpKind = iota
	// OpWriteValue writes an explicit value.
	OpWriteValue
	OpRead
	OpModQuery
	OpCommit
	OpAbort
)

// Op is one operation of a transaction in a schedule. Key holds the modulus of a modquery.
type Op struct {
	Kind  OpKind
	Key   int64
	Value int64
}

// StepValue is the value an OpWrite writes at the given one-based step.
func StepValue(step int) int64 {
	return int64(step+1) * 2
}

func W(key int64) *Op {
	return &Op{Kind: OpWrite, Key: key}
}

func W2(key, value int64) *Op {
	return &Op{Kind: OpWriteValue, Key: key, Value: value}
}

func R(key int64) *Op {
	return &Op{Kind: OpRead, Key: key}
}

func M(modulus int64) *Op {
	return &Op{Kind: OpModQuery, Key: modulus}
}

var (
	C = &Op{Kind: OpCommit}
	A = &Op{Kind: OpAbort}
)

func (op *Op) String() string {
	switch op.Kind {
	case OpWrite:
		return fmt.Sprintf("W(%d)", op.Key)
	case OpWriteValue:
		return fmt.Sprintf("W2(%d,%d)", op.Key, op.Value)
	case OpRead:
		return fmt.Sprintf("R(%d)", op.Key)
	case OpModQuery:
		return fmt.Sprintf("M(%d)", op.Key)
	case OpCommit:
		return "C"
	case OpAbort:
		return "A"
	}
	return "?"
}

var opPattern = regexp.MustCompile(`^(W2|W|R|M)\((-?\d+)(?:,(-?\d+))?\)$`)

// ParseOp parses the textual form of an operation. "_" and the empty string stand for no operation and return nil.
func ParseOp(s string) (*Op, error) {
	s = strings.Replace(strings.TrimSpace(s), " ", "", -1)
	switch s {
	case "", "_":
		return nil, nil
	case "C":
		return C, nil
	case "A":
		return A, nil
	}
	m := opPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, errors.Errorf("invalid operation %q", s)
	}
	key, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return nil, errors.Annotatef(err, "invalid operation %q", s)
	}
	if (m[1] == "W2") != (m[3] != "") {
		return nil, errors.Errorf("invalid operation %q", s)
	}
	switch m[1] {
	case "W":
		return W(key), nil
	case "R":
		return R(key), nil
	case "M":
		return M(key), nil
	}
	value, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil {
		return nil, errors.Annotatef(err, "invalid operation %q", s)
	}
	return W2(key, value), nil
}
