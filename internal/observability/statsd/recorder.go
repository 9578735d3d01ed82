package statsd

import (
	"sync"
	"time"
)

// Kind identifies the metric type of a recorded call.
type Kind string

// Metric kinds captured by Recorder.
const (
	KindCount  Kind = "count"
	KindGauge  Kind = "gauge"
	KindTiming Kind = "timing"
)

// Call is one metric captured by Recorder.
type Call struct {
	Kind  Kind
	Name  string
	Value float64
	Tags  map[string]string
}

// Recorder is an in-memory Sink for tests and for running with metrics disabled
// while still inspecting what would have been sent.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

var _ Sink = (*Recorder)(nil)

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Count implements Sink.
func (r *Recorder) Count(name string, value int64, tags map[string]string) {
	r.add(Call{Kind: KindCount, Name: name, Value: float64(value), Tags: cloneTags(tags)})
}

// Gauge implements Sink.
func (r *Recorder) Gauge(name string, value float64, tags map[string]string) {
	r.add(Call{Kind: KindGauge, Name: name, Value: value, Tags: cloneTags(tags)})
}

// Timing implements Sink.
func (r *Recorder) Timing(name string, value time.Duration, tags map[string]string) {
	r.add(Call{Kind: KindTiming, Name: name, Value: float64(value) / float64(time.Millisecond), Tags: cloneTags(tags)})
}

// Calls returns a copy of everything recorded so far.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CountOf sums the values of counters named name.
func (r *Recorder) CountOf(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, c := range r.calls {
		if c.Kind == KindCount && c.Name == name {
			total += int64(c.Value)
		}
	}
	return total
}

func (r *Recorder) add(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}
