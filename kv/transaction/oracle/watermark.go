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
	"github.com/emirpasic/gods/queues/priorityqueue"
	"github.com/emirpasic/gods/utils"
)

// watermark tracks commit timestamps which have been handed out but not yet finished. It is not safe for concurrent
// use; the oracle guards it with its mutex.
type watermark struct {
	// Min-heap of allocated commit timestamps, may contain finished ones until they reach the top.
	pending *priorityqueue.Queue
	done    map[uint64]struct{}
}

func newWatermark() *watermark {
	return &watermark{
		pending: priorityqueue.NewWith(utils.UInt64Comparator),
		done:    make(map[uint64]struct{}),
	}
}

func (w *watermark) begin(ts uint64) {
	w.pending.Enqueue(ts)
}

func (w *watermark) finish(ts uint64) {
	w.done[ts] = struct{}{}
	w.advance()
}

// advance pops finished timestamps off the top of the heap.
func (w *watermark) advance() {
	for {
		top, ok := w.pending.Peek()
		if !ok {
			return
		}
		ts := top.(uint64)
		if _, finished := w.done[ts]; !finished {
			return
		}
		w.pending.Dequeue()
		delete(w.done, ts)
	}
}

// lowest returns the lowest unfinished timestamp. ok is false if nothing is in flight.
func (w *watermark) lowest() (uint64, bool) {
	top, ok := w.pending.Peek()
	if !ok {
		return 0, false
	}
	return top.(uint64), true
}

// doneBefore reports whether every timestamp lower than ts has finished.
func (w *watermark) doneBefore(ts uint64) bool {
	low, ok := w.lowest()
	return !ok || low >= ts
}

func (w *watermark) inflight() int {
	return w.pending.Size() - len(w.done)
}
