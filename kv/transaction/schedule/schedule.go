package schedule

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"
)

type ExpectKind int

const (
	// ExpectValid means a write or commit succeeds.
	ExpectValid ExpectKind = iota
	// ExpectRollback means a write or commit fails and the transaction is abandoned.
	ExpectRollback
	// ExpectResult means a read or modquery returns Values. Modquery results are compared as sorted lists.
	ExpectResult
)

type Expect struct {
	Kind   ExpectKind
	Values []int64
}

var (
	Valid    = Expect{Kind: ExpectValid}
	Rollback = Expect{Kind: ExpectRollback}
)

func Result(values ...int64) Expect {
	return Expect{Kind: ExpectResult, Values: values}
}

func (e Expect) String() string {
	switch e.Kind {
	case ExpectValid:
		return "VALID"
	case ExpectRollback:
		return "ROLLBACK"
	}
	return fmt.Sprintf("%v", e.Values)
}

// Point identifies an operation by one-based transaction label and one-based step.
type Point struct {
	Txn  int
	Step int
}

// Schedule is a fixed interleaving of transactions. Each row holds the operations of one transaction, indexed by
// global step, nil where the transaction does nothing. Exactly one transaction acts per step; a transaction begins
// at its first operation.
type Schedule struct {
	Name    string
	Txns    [][]*Op
	Expects map[Point]Expect
}

func New(name string, txns ...[]*Op) *Schedule {
	return &Schedule{Name: name, Txns: txns, Expects: make(map[Point]Expect)}
}

// Expect records the expected outcome of transaction txn at step.
func (s *Schedule) Expect(txn, step int, e Expect) *Schedule {
	s.Expects[Point{Txn: txn, Step: step}] = e
	return s
}

// Steps returns the number of steps in the schedule.
func (s *Schedule) Steps() int {
	n := 0
	for _, ops := range s.Txns {
		if len(ops) > n {
			n = len(ops)
		}
	}
	return n
}

// Validate checks that at most one transaction acts per step and that every expectation names an operation.
func (s *Schedule) Validate() error {
	for step := 1; step <= s.Steps(); step++ {
		actors := 0
		for _, ops := range s.Txns {
			if step <= len(ops) && ops[step-1] != nil {
				actors++
			}
		}
		if actors > 1 {
			return errors.Errorf("schedule %s: %d transactions act at step %d", s.Name, actors, step)
		}
	}
	for p := range s.Expects {
		if p.Txn < 1 || p.Txn > len(s.Txns) || p.Step < 1 || p.Step > len(s.Txns[p.Txn-1]) ||
			s.Txns[p.Txn-1][p.Step-1] == nil {
			return errors.Errorf("schedule %s: expectation for T(%d) at step %d has no operation", s.Name, p.Txn, p.Step)
		}
	}
	return nil
}

// String draws the schedule as a table, one transaction per line.
func (s *Schedule) String() string {
	var sb strings.Builder
	for i, ops := range s.Txns {
		fmt.Fprintf(&sb, "T%d:", i+1)
		for _, op := range ops {
			if op == nil {
				sb.WriteString("         ")
			} else {
				fmt.Fprintf(&sb, " %-8s", op)
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

type fileTxn struct {
	Ops []string `toml:"ops"`
}

type fileExpect struct {
	Txn    int     `toml:"txn"`
	Step   int     `toml:"step"`
	Status string  `toml:"status"`
	Result []int64 `toml:"result"`
}

type file struct {
	Name   string       `toml:"name"`
	Txns   []fileTxn    `toml:"txn"`
	Expect []fileExpect `toml:"expect"`
}

// Decode reads a schedule in TOML form:
//
//   name = "lost update"
//   [[txn]]
//   ops = ["W(1)", "_", "C"]
//   [[expect]]
//   txn = 1
//   step = 1
//   status = "valid"      # "valid", "rollback" or "result"
//   result = [4]          # implies status = "result"
func Decode(data string) (*Schedule, error) {
	var f file
	meta, err := toml.Decode(data, &f)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("unknown schedule keys: %v", undecoded)
	}

	s := New(f.Name)
	for _, t := range f.Txns {
		ops := make([]*Op, len(t.Ops))
		for i, text := range t.Ops {
			if ops[i], err = ParseOp(text); err != nil {
				return nil, errors.Annotatef(err, "schedule %s T(%d)", f.Name, len(s.Txns)+1)
			}
		}
		s.Txns = append(s.Txns, ops)
	}
	for _, e := range f.Expect {
		status := strings.ToLower(e.Status)
		if status == "" && e.Result != nil {
			status = "result"
		}
		switch status {
		case "valid":
			s.Expect(e.Txn, e.Step, Valid)
		case "rollback":
			s.Expect(e.Txn, e.Step, Rollback)
		case "result":
			s.Expect(e.Txn, e.Step, Result(e.Result...))
		default:
			return nil, errors.Errorf("schedule %s: invalid status %q for T(%d) at step %d", f.Name, e.Status, e.Txn, e.Step)
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadFile reads a schedule from a TOML file. The schedule is named after the file unless it names itself.
func LoadFile(path string) (*Schedule, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	s, err := Decode(string(data))
	if err != nil {
		return nil, errors.Annotatef(err, "load schedule %s", path)
	}
	if s.Name == "" {
		s.Name = filepath.Base(path)
	}
	return s, nil
}
