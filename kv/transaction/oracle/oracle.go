// Copyright 2016 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package oracle

import (
	"sync"

	"go.uber.org/atomic"
)

// Oracle hands out timestamps from a single strictly increasing clock. Start timestamps and commit timestamps share
// the clock, so a transaction started at ts sees exactly the commits with a lower timestamp.
//
// A commit timestamp stays in flight from CommitTS until Done. BeginTS does not return while a lower commit
// timestamp is in flight, which makes every commit visible all at once to later snapshots.
type Oracle struct {
	mu    sync.Mutex
	cond  *sync.Cond
	clock uint64
	marks *watermark

	// A copy of clock which can be read without the mutex.
	now *atomic.Uint64
}

// NewOracle creates an oracle whose first timestamp is 1.
func NewOracle() *Oracle {
	o := &Oracle{
		marks: newWatermark(),
		now:   atomic.NewUint64(0),
	}
	o.cond = sync.NewCond(&o.mu)
	return o
}

func (o *Oracle) next() uint64 {
	o.clock++
	o.now.Store(o.clock)
	return o.clock
}

// BeginTS allocates a start timestamp and waits until every commit below it has finished.
func (o *Oracle) BeginTS() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	ts := o.next()
	for !o.marks.doneBefore(ts) {
		o.cond.Wait()
	}
	return ts
}

// CommitTS allocates a commit timestamp. The caller must call Done with it exactly once.
func (o *Oracle) CommitTS() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	ts := o.next()
	o.marks.begin(ts)
	return ts
}

// WaitFor blocks until every commit timestamp lower than ts has finished.
func (o *Oracle) WaitFor(ts uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for !o.marks.doneBefore(ts) {
		o.cond.Wait()
	}
}

// Done marks a commit timestamp as finished, whether the commit succeeded or not.
func (o *Oracle) Done(ts uint64) {
	o.mu.Lock()
	o.marks.finish(ts)
	o.mu.Unlock()
	o.cond.Broadcast()
}

// Now returns the last allocated timestamp.
func (o *Oracle) Now() uint64 {
	return o.now.Load()
}

// Inflight returns the number of commit timestamps allocated but not finished.
func (o *Oracle) Inflight() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.marks.inflight()
}
