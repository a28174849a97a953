package schedule

import (
	"fmt"
	"sort"

	"github.com/pingcap-incubator/omvcc/kv/engine"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Engine is the transactional interface a schedule is run against.
type Engine interface {
	Begin() engine.TxnID
	Read(id engine.TxnID, key int64) (int64, error)
	Write(id engine.TxnID, key, value int64) error
	Commit(id engine.TxnID) error
	Rollback(id engine.TxnID) error
	ModQuery(id engine.TxnID, modulus int64) ([]int64, error)
}

// ErrMismatch is returned when an operation does not behave as the schedule expects.
type ErrMismatch struct {
	Txn  int
	Step int
	Msg  string
}

func (e *ErrMismatch) Error() string {
	return fmt.Sprintf("T(%d) at step %d: %s", e.Txn, e.Step, e.Msg)
}

// Report is the command log of a schedule run.
type Report struct {
	Name string
	Log  []string
}

type runner struct {
	engine  Engine
	s       *Schedule
	report  *Report
	ids     map[int]engine.TxnID
	ignored map[int]bool
	pending map[Point]Expect
}

// Run executes the schedule step by step and checks every expectation. Once an operation of a transaction fails,
// the transaction is rolled back if it is still active and its remaining operations are skipped. The report is
// returned even when the run fails.
func Run(e Engine, s *Schedule) (*Report, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	r := &runner{
		engine:  e,
		s:       s,
		report:  &Report{Name: s.Name},
		ids:     make(map[int]engine.TxnID),
		ignored: make(map[int]bool),
		pending: make(map[Point]Expect, len(s.Expects)),
	}
	for p, exp := range s.Expects {
		r.pending[p] = exp
	}

	for step := 1; step <= s.Steps(); step++ {
		for i, ops := range s.Txns {
			if step > len(ops) || ops[step-1] == nil {
				continue
			}
			label := i + 1
			if r.ignored[label] {
				break
			}
			if err := r.runOp(label, step, ops[step-1]); err != nil {
				return r.report, err
			}
			break
		}
	}

	points := make([]Point, 0, len(r.pending))
	for p := range r.pending {
		points = append(points, p)
	}
	if len(points) > 0 {
		sort.Slice(points, func(i, j int) bool { return points[i].Step < points[j].Step })
		p := points[0]
		return r.report, errors.Trace(&ErrMismatch{Txn: p.Txn, Step: p.Step, Msg: "the expected result is not checked"})
	}
	return r.report, nil
}

func (r *runner) logf(format string, args ...interface{}) {
	r.report.Log = append(r.report.Log, fmt.Sprintf(format, args...))
}

func (r *runner) mismatch(label, step int, format string, args ...interface{}) error {
	err := &ErrMismatch{Txn: label, Step: step, Msg: fmt.Sprintf(format, args...)}
	log.Warn("schedule mismatch", zap.String("schedule", r.s.Name), zap.Error(err))
	return errors.Trace(err)
}

// abandon skips the rest of a transaction after a failed operation.
func (r *runner) abandon(label int, cause error) {
	r.ignored[label] = true
	r.logf("    %v", cause)
	// The engine refuses the rollback if the failure already aborted the transaction.
	_ = r.engine.Rollback(r.ids[label])
}

// status takes the VALID/ROLLBACK expectation for a write or commit.
func (r *runner) status(label, step int, what string) (Expect, error) {
	p := Point{Txn: label, Step: step}
	exp, ok := r.pending[p]
	if !ok || exp.Kind == ExpectResult {
		return exp, r.mismatch(label, step, "expected %s status", what)
	}
	delete(r.pending, p)
	return exp, nil
}

func (r *runner) checkStatus(label, step int, what string, exp Expect, err error) error {
	if err == nil {
		if exp.Kind == ExpectRollback {
			return r.mismatch(label, step, "expected %s to fail but it succeeded", what)
		}
		return nil
	}
	if exp.Kind == ExpectValid {
		return r.mismatch(label, step, "expected %s to succeed but it failed: %v", what, err)
	}
	r.logf("%s failed as expected", what)
	r.abandon(label, err)
	return nil
}

func (r *runner) runOp(label, step int, op *Op) error {
	id, ok := r.ids[label]
	if !ok {
		r.logf("T(%d):B", label)
		id = r.engine.Begin()
		r.ids[label] = id
	}

	switch op.Kind {
	case OpCommit:
		r.logf("T(%d):C", label)
		exp, err := r.status(label, step, "commit")
		if err != nil {
			return err
		}
		return r.checkStatus(label, step, "commit", exp, r.engine.Commit(id))

	case OpAbort:
		r.logf("T(%d):A", label)
		if err := r.engine.Rollback(id); err != nil {
			r.abandon(label, err)
		}
		return nil

	case OpWrite, OpWriteValue:
		value := op.Value
		if op.Kind == OpWrite {
			value = StepValue(step)
		}
		r.logf("T(%d):W(%d,%d)", label, op.Key, value)
		exp, err := r.status(label, step, "write")
		if err != nil {
			return err
		}
		return r.checkStatus(label, step, "write", exp, r.engine.Write(id, op.Key, value))

	case OpRead:
		value, err := r.engine.Read(id, op.Key)
		if err != nil {
			r.logf("T(%d):R(%d) => --", label, op.Key)
			r.abandon(label, err)
			return nil
		}
		r.logf("T(%d):R(%d) => %d", label, op.Key, value)
		return r.checkResult(label, step, []int64{value})

	case OpModQuery:
		values, err := r.engine.ModQuery(id, op.Key)
		if err != nil {
			r.logf("T(%d):M(%d) => --", label, op.Key)
			r.abandon(label, err)
			return nil
		}
		r.logf("T(%d):M(%d) => %v", label, op.Key, values)
		return r.checkResult(label, step, sortedCopy(values))
	}
	return errors.Errorf("unknown operation %v", op)
}

// checkResult compares a read or modquery result with its expectation, if there is one.
func (r *runner) checkResult(label, step int, actual []int64) error {
	p := Point{Txn: label, Step: step}
	exp, ok := r.pending[p]
	if !ok {
		return nil
	}
	if exp.Kind != ExpectResult {
		return r.mismatch(label, step, "expected %v for a query", exp)
	}
	expected := sortedCopy(exp.Values)
	if !equalValues(actual, expected) {
		return r.mismatch(label, step, "wrong result (actual: %v, expected: %v)", actual, expected)
	}
	delete(r.pending, p)
	return nil
}

func sortedCopy(values []int64) []int64 {
	sorted := make([]int64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted
}

func equalValues(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
