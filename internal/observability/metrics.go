package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu              sync.Mutex
	requestCount    map[string]int64
	requestDuration map[string]time.Duration
	errorCount      map[string]int64
	transitionCount map[string]int64
	transitionFails map[string]int64
	publishFailures int64
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Requests        map[string]int64 `json:"requests"`
	RequestMillis   map[string]int64 `json:"request_millis"`
	Errors          map[string]int64 `json:"errors"`
	Transitions     map[string]int64 `json:"transitions"`
	TransitionFails map[string]int64 `json:"transition_failures"`
	PublishFailures int64            `json:"publish_failures"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]int64),
		requestDuration: make(map[string]time.Duration),
		errorCount:      make(map[string]int64),
		transitionCount: make(map[string]int64),
		transitionFails: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requestDuration[key] += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordTransition counts an applied status change.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitionCount[from+"->"+to]++
}

// RecordTransitionFailure counts a rejected transition by error code.
func (m *Metrics) RecordTransitionFailure(code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitionFails[code]++
}

// RecordPublishFailure counts events that could not be handed to the bus.
func (m *Metrics) RecordPublishFailure() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishFailures++
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	millis := make(map[string]int64, len(m.requestDuration))
	for k, v := range m.requestDuration {
		millis[k] = v.Milliseconds()
	}
	return Snapshot{
		Requests:        copyCounts(m.requestCount),
		RequestMillis:   millis,
		Errors:          copyCounts(m.errorCount),
		Transitions:     copyCounts(m.transitionCount),
		TransitionFails: copyCounts(m.transitionFails),
		PublishFailures: m.publishFailures,
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
