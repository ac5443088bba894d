package metrics

import (
	"time"

	"dirsweep/internal/model"
)

// Sink feeds the result stream into the registry.
type Sink struct{}

// NewSink initializes metrics and returns a result sink.
func NewSink() Sink {
	Init()
	return Sink{}
}

func (Sink) Accept(r model.PathResult) error {
	RecordResult(r)
	return nil
}

func (Sink) Complete(s model.Summary) error {
	RecordRun(s, time.Now())
	WorkersActive.Set(0)
	return nil
}
