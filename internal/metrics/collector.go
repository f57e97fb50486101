// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Operation names for the collector.
const (
	OpDiscover = "llm_discover"
	OpClassify = "llm_classify"
	OpDescribe = "llm_describe"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Failures  int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	TotalInputTokens  int64
	TotalOutputTokens int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Name        string
	Count       int64
	Failures    int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64

	// Token totals (nil if the backend did not report usage)
	TotalInputTokens  *int64
	TotalOutputTokens *int64
}

// ClusterCount is the number of records routed to one cluster.
type ClusterCount struct {
	Cluster string
	Count   int64
}

// Snapshot represents the run statistics at a point in time.
type Snapshot struct {
	ElapsedSeconds float64
	Operations     []OperationSnapshot
	Clusters       []ClusterCount
}

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
	clusters  map[string]int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
		clusters:  make(map[string]int64),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// RecordCall records timing, outcome and token usage of one LLM call.
// Token counts of zero mean the backend did not report usage.
func (c *Collector) RecordCall(op string, duration time.Duration, failed bool, inputTokens, outputTokens int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	if failed {
		m.Failures++
	}
	m.TotalTime += duration
	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
	m.TotalInputTokens += inputTokens
	m.TotalOutputTokens += outputTokens
}

// RecordCluster counts one record written to cluster.
func (c *Collector) RecordCluster(cluster string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clusters[cluster]++
}

// ClusterTotal returns the number of records counted across all clusters.
func (c *Collector) ClusterTotal() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var total int64
	for _, n := range c.clusters {
		total += n
	}
	return total
}

func snapshotOp(name string, m *OperationMetrics) OperationSnapshot {
	snap := OperationSnapshot{
		Name:        name,
		Count:       m.Count,
		Failures:    m.Failures,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
	if m.Count > 0 {
		snap.AvgTimeMs = float64(m.TotalTime.Milliseconds()) / float64(m.Count)
	} else {
		snap.MinTimeMs = 0
	}

	if m.TotalInputTokens > 0 || m.TotalOutputTokens > 0 {
		totalIn := m.TotalInputTokens
		totalOut := m.TotalOutputTokens
		snap.TotalInputTokens = &totalIn
		snap.TotalOutputTokens = &totalOut
	}
	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
// Operations are sorted by name, clusters by descending count.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{ElapsedSeconds: time.Since(c.startTime).Seconds()}

	for name, m := range c.ops {
		snap.Operations = append(snap.Operations, snapshotOp(name, m))
	}
	sort.Slice(snap.Operations, func(i, j int) bool {
		return snap.Operations[i].Name < snap.Operations[j].Name
	})

	for cluster, n := range c.clusters {
		snap.Clusters = append(snap.Clusters, ClusterCount{Cluster: cluster, Count: n})
	}
	sort.Slice(snap.Clusters, func(i, j int) bool {
		if snap.Clusters[i].Count != snap.Clusters[j].Count {
			return snap.Clusters[i].Count > snap.Clusters[j].Count
		}
		return snap.Clusters[i].Cluster < snap.Clusters[j].Cluster
	})

	return snap
}
