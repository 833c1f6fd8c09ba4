package models

import "time"

// NodeResult records the outcome of one node execution, including every
// retry attempt. Loop nodes aggregate per-iteration results in Iterations.
type NodeResult struct {
	NodeID     string        `json:"node_id"`
	Status     NodeStatus    `json:"status"`
	Output     any           `json:"output,omitempty"`
	Error      string        `json:"error,omitempty"`
	ErrorKind  string        `json:"error_kind,omitempty"`
	Attempts   int           `json:"attempts"`
	Iterations []*NodeResult `json:"iterations,omitempty"`
	StartedAt  time.Time     `json:"started_at,omitempty"`
	FinishedAt time.Time     `json:"finished_at,omitempty"`
}

// Duration returns the wall-clock time the node spent executing, zero if it
// never started or never finished.
func (r *NodeResult) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}

	return r.FinishedAt.Sub(r.StartedAt)
}
