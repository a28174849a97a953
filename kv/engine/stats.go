package engine

// Stats is a snapshot of the engine's counters.
type Stats struct {
	Begun          uint64
	Committed      uint64
	Aborted        uint64
	RolledBack     uint64
	WriteConflicts uint64
	CommitFailures uint64

	Active     int
	Registered int
	Keys       int
	CommitLog  int
	Clock      uint64
}

func (e *Engine) Stats() Stats {
	total, active := e.env.Registry.Count()
	return Stats{
		Begun:          e.stats.begun.Load(),
		Committed:      e.stats.committed.Load(),
		Aborted:        e.stats.aborted.Load(),
		RolledBack:     e.stats.rolledBack.Load(),
		WriteConflicts: e.stats.writeConflicts.Load(),
		CommitFailures: e.stats.commitFailures.Load(),
		Active:         active,
		Registered:     total,
		Keys:           e.env.Store.Len(),
		CommitLog:      e.env.Detector.Log().Len(),
		Clock:          e.env.Oracle.Now(),
	}
}
