package worker

import (
	"sync"
	"time"

	"github.com/pingcap/log"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// TaskStop makes the worker exit once it reaches the task.
type TaskStop struct{}

type Task interface{}

// Worker runs a handler over tasks sent to it, one at a time, on its own goroutine.
type Worker struct {
	name    string
	tasks   chan Task
	wg      *sync.WaitGroup
	handled *atomic.Uint64
	dropped *atomic.Uint64
}

type TaskHandler interface {
	Handle(t Task)
}

// Starter is implemented by handlers which need to prepare on the worker goroutine before the first task.
type Starter interface {
	Start()
}

func (w *Worker) Start(handler TaskHandler) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if s, ok := handler.(Starter); ok {
			s.Start()
		}
		log.Debug("worker started", zap.String("name", w.name))
		for task := range w.tasks {
			if _, stop := task.(TaskStop); stop {
				break
			}
			handler.Handle(task)
			w.handled.Inc()
		}
		log.Debug("worker stopped", zap.String("name", w.name),
			zap.Uint64("handled", w.handled.Load()), zap.Uint64("dropped", w.dropped.Load()))
	}()
}

func (w *Worker) Sender() chan<- Task {
	return w.tasks
}

// TrySend queues t unless the worker is backlogged. Returns false if the task was dropped.
func (w *Worker) TrySend(t Task) bool {
	select {
	case w.tasks <- t:
		return true
	default:
		w.dropped.Inc()
		return false
	}
}

// Handled returns how many tasks the handler has finished.
func (w *Worker) Handled() uint64 {
	return w.handled.Load()
}

// Dropped returns how many tasks TrySend gave up on.
func (w *Worker) Dropped() uint64 {
	return w.dropped.Load()
}

// Stop asks the worker to exit after the tasks already queued.
func (w *Worker) Stop() {
	w.tasks <- TaskStop{}
}

// NewWorker creates a worker with room for capacity queued tasks. It does nothing until started. wg is done when the
// worker goroutine exits.
func NewWorker(name string, capacity int, wg *sync.WaitGroup) *Worker {
	return &Worker{
		name:    name,
		tasks:   make(chan Task, capacity),
		wg:      wg,
		handled: atomic.NewUint64(0),
		dropped: atomic.NewUint64(0),
	}
}

// Ticker sends a task produced by newTask to a worker every interval until it is stopped. Ticks are dropped while
// the worker is still busy with earlier ones.
type Ticker struct {
	closeCh chan struct{}
	wg      sync.WaitGroup
}

func NewTicker(w *Worker, interval time.Duration, newTask func() Task) *Ticker {
	t := &Ticker{closeCh: make(chan struct{})}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				if !w.TrySend(newTask()) {
					log.Warn("worker is busy, skip tick", zap.String("name", w.name), zap.Uint64("dropped", w.Dropped()))
				}
			case <-t.closeCh:
				return
			}
		}
	}()
	return t
}

// Stop stops the ticker and waits until it will not send any more tasks.
func (t *Ticker) Stop() {
	close(t.closeCh)
	t.wg.Wait()
}
