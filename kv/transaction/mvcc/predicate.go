package mvcc

import "fmt"

// Predicate describes a set of data a transaction observed. A committed write matching the predicate could have
// changed the observation.
type Predicate interface {
	Matches(w *Write) bool
	String() string
}

// PointPredicate is registered by a read of a single key.
type PointPredicate struct {
	Key int64
}

func (p PointPredicate) Matches(w *Write) bool {
	return w.Key == p.Key
}

func (p PointPredicate) String() string {
	return fmt.Sprintf("read(%d)", p.Key)
}

// ModPredicate is registered by a modquery. A write matches if either the old or the new value is divisible by the
// modulus: the value entered or left the result set, or changed inside it.
type ModPredicate struct {
	Modulus int64
}

func (p ModPredicate) Matches(w *Write) bool {
	if w.Value%p.Modulus == 0 {
		return true
	}
	return w.HasBefore && w.Before%p.Modulus == 0
}

func (p ModPredicate) String() string {
	return fmt.Sprintf("modquery(%d)", p.Modulus)
}
