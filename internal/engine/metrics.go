package engine

import "sync/atomic"

// Metrics counts engine activity. Counters are monotonic for the
// process lifetime and exposed on the admin health endpoint.
type Metrics struct {
	Evaluations    atomic.Int64
	Executions     atomic.Int64
	MessagesSent   atomic.Int64
	RenderFailures atomic.Int64
	SendFailures   atomic.Int64
	Skipped        atomic.Int64
}

// MetricsSnapshot is a point-in-time copy for serialization.
type MetricsSnapshot struct {
	Evaluations    int64 `json:"evaluations"`
	Executions     int64 `json:"executions"`
	MessagesSent   int64 `json:"messages_sent"`
	RenderFailures int64 `json:"render_failures"`
	SendFailures   int64 `json:"send_failures"`
	Skipped        int64 `json:"skipped"`
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Evaluations:    m.Evaluations.Load(),
		Executions:     m.Executions.Load(),
		MessagesSent:   m.MessagesSent.Load(),
		RenderFailures: m.RenderFailures.Load(),
		SendFailures:   m.SendFailures.Load(),
		Skipped:        m.Skipped.Load(),
	}
}
