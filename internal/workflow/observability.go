package workflow

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

type StepObserver interface {
	ObserveStep(runID, nodeID string, duration time.Duration)
}

type StepLatencyLogger struct {
	logger *log.Logger
}

func NewStepLatencyLogger(logger *log.Logger) *StepLatencyLogger {
	return &StepLatencyLogger{logger: logger}
}

func (l *StepLatencyLogger) ObserveStep(runID, nodeID string, duration time.Duration) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf("workflow_step_latency run=%s node=%s duration_ms=%.3f", runID, nodeID, float64(duration.Microseconds())/1000.0)
}

// AsyncStepObserver decouples observation from the step loop: events are
// buffered and dropped under pressure rather than slowing the engine down.
type AsyncStepObserver struct {
	next    StepObserver
	events  chan stepEvent
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

type stepEvent struct {
	runID    string
	nodeID   string
	duration time.Duration
}

func NewAsyncStepObserver(next StepObserver, buffer int) *AsyncStepObserver {
	if buffer <= 0 {
		buffer = 1
	}

	o := &AsyncStepObserver{
		next:   next,
		events: make(chan stepEvent, buffer),
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for ev := range o.events {
			if o.next == nil {
				continue
			}
			o.next.ObserveStep(ev.runID, ev.nodeID, ev.duration)
		}
	}()

	return o
}

func (o *AsyncStepObserver) ObserveStep(runID, nodeID string, duration time.Duration) {
	if o == nil {
		return
	}
	o.mu.RLock()
	if o.closed {
		o.mu.RUnlock()
		o.dropped.Add(1)
		return
	}
	select {
	case o.events <- stepEvent{runID: runID, nodeID: nodeID, duration: duration}:
	default:
		o.dropped.Add(1)
	}
	o.mu.RUnlock()
}

func (o *AsyncStepObserver) Dropped() uint64 {
	if o == nil {
		return 0
	}
	return o.dropped.Load()
}

func (o *AsyncStepObserver) Close() {
	if o == nil {
		return
	}
	o.once.Do(func() {
		o.mu.Lock()
		o.closed = true
		close(o.events)
		o.mu.Unlock()
		o.wg.Wait()
	})
}
