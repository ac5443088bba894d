// Package sink delivers terminal results from the worker pool to every
// consumer (audit log, history database, metrics, renderer) through a single
// goroutine, so consumers never need their own locking.
package sink

import (
	"errors"
	"fmt"
	"sync"

	"dirsweep/internal/logging"
	"dirsweep/internal/model"
)

// Sink consumes the result stream. Accept is called once per result in
// delivery order and Complete once after the last result.
type Sink interface {
	Accept(r model.PathResult) error
	Complete(s model.Summary) error
}

// Dispatcher fans results out to sinks from one consumer goroutine.
type Dispatcher struct {
	sinks   []Sink
	events  chan model.PathResult
	done    chan struct{}
	logger  *logging.Logger
	onError func(err error)

	closeOnce sync.Once
	closeErr  error
}

// NewDispatcher starts the consumer goroutine. buffer bounds how many
// results may wait for the consumer before publishers block.
func NewDispatcher(buffer int, logger *logging.Logger, sinks ...Sink) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = logging.Discard()
	}
	d := &Dispatcher{
		sinks:  sinks,
		events: make(chan model.PathResult, buffer),
		done:   make(chan struct{}),
		logger: logger,
	}
	go d.run()
	return d
}

// OnError registers a callback for sink failures. Must be called before the
// first Publish.
func (d *Dispatcher) OnError(fn func(err error)) {
	d.onError = fn
}

// Publish hands a result to the consumer. Safe for concurrent use; must not
// be called after Close.
func (d *Dispatcher) Publish(r model.PathResult) {
	d.events <- r
}

// Close waits until every published result has been delivered, then sends
// the summary to each sink.
func (d *Dispatcher) Close(summary model.Summary) error {
	d.closeOnce.Do(func() {
		close(d.events)
		<-d.done

		var errs []error
		for _, s := range d.sinks {
			if err := s.Complete(summary); err != nil {
				d.report(fmt.Errorf("complete %T: %w", s, err))
				errs = append(errs, err)
			}
		}
		d.closeErr = errors.Join(errs...)
	})
	return d.closeErr
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for r := range d.events {
		for _, s := range d.sinks {
			if err := s.Accept(r); err != nil {
				d.report(fmt.Errorf("accept %T %s: %w", s, r.Path, err))
			}
		}
	}
}

func (d *Dispatcher) report(err error) {
	d.logger.Error("result sink failed", "error", err)
	if d.onError != nil {
		d.onError(err)
	}
}

// Collector is an in-memory sink.
type Collector struct {
	mu      sync.Mutex
	Results []model.PathResult
	Summary *model.Summary
}

func (c *Collector) Accept(r model.PathResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Results = append(c.Results, r)
	return nil
}

func (c *Collector) Complete(s model.Summary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Summary = &s
	return nil
}

// Snapshot returns a copy of the collected results.
func (c *Collector) Snapshot() []model.PathResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.PathResult(nil), c.Results...)
}
