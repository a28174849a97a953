package transaction

// The transaction package implements the engine's optimistic multi-version concurrency control. The engine package
// takes calls from clients (begin, read, write, modquery, commit, rollback) and runs each one as a command against the
// state held by the packages below.
//
// Every transaction gets a start timestamp when it begins and reads the snapshot of data committed before it. Writes
// are buffered as pending versions on the key's version chain and become visible to later transactions atomically at
// commit time. A transaction that commits writes gets a commit timestamp from the same clock as start timestamps.
//
// ## Write conflicts
//
// At most one transaction has a pending version on a key. A write fails when another active transaction already holds
// the pending version (a dirty write), or when a version was committed after the writer's start timestamp (a stale
// snapshot). The failing write is rejected but the writer stays active.
//
// ## Validation
//
// Reads are recorded as predicates on the transaction: a point read of a key, or a modquery over every value divisible
// by a modulus. Before a writer commits, its predicates are checked against the writes of every transaction which
// committed between its start and commit timestamps (see conflict.CommitLog). A write matches a point read of the same
// key; it matches a modquery if either the value it wrote or the value it replaced is divisible by the modulus. Any
// match aborts the committing transaction. Read-only transactions always commit and skip validation.
//
// ## Timestamps
//
// The oracle hands out start and commit timestamps. A start timestamp is only handed out once every transaction
// holding a smaller commit timestamp has finished publishing, so a snapshot never observes half of a commit.
//
// ## Latches
//
// *Latches* serialize access to a key's version chain and are not visible to the client. Commands latch the keys they
// touch before executing: a write latches its key, commit latches the whole write set in key order. A modquery latches
// one key at a time while it scans (see mvcc.Scanner). See the latches package for details.
//
// Within this package, `commands` contains one type per client operation implementing the `Command` interface, `mvcc`
// holds transactions, versions and the store, `conflict` keeps the commit log used for validation, `oracle` allocates
// timestamps, `registry` tracks live transactions, and `schedule` runs scripted interleavings of transactions against
// an engine and checks the outcome of each step.
//
// ## Garbage collection
//
// Versions no transaction can read anymore are removed periodically. The safe point is the oldest start timestamp of
// any active transaction: on every chain the newest committed version below the safe point is kept and older ones are
// dropped. Commit records below the safe point and finished transactions are dropped too.
