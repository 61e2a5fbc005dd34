package runs

import (
	"encoding/json"
	"time"

	"memeflow/internal/flowconfig"
)

// FlowStatus is the lifecycle state of one flow within a run.
type FlowStatus string

const (
	FlowRunning   FlowStatus = "running"
	FlowCompleted FlowStatus = "completed"
	FlowAborted   FlowStatus = "aborted"
)

// FlowError summarizes why a flow aborted.
type FlowError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// FlowRecord tracks one flow execution.
type FlowRecord struct {
	Name       string     `json:"name"`
	Status     FlowStatus `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	// LastNode is the last node whose output was committed.
	LastNode string     `json:"last_node,omitempty"`
	Error    *FlowError `json:"error,omitempty"`
}

// Run is the registry's summary of one run.
type Run struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Flows     []FlowRecord `json:"flows"`
	Dir       string       `json:"dir"`
}

// Snapshot is the full persisted state of a run.
type Snapshot struct {
	RunID     string       `json:"run_id"`
	CreatedAt time.Time    `json:"created_at"`
	Flows     []FlowRecord `json:"flows"`
	// Config holds the explicit options of the latest flow; the next flow
	// inherits them.
	Config     map[string]flowconfig.Value           `json:"config"`
	Namespaces map[string]map[string]json.RawMessage `json:"namespaces"`
}

// Flow returns the record for name.
func (s Snapshot) Flow(name string) (FlowRecord, bool) {
	for _, record := range s.Flows {
		if record.Name == name {
			return record, true
		}
	}
	return FlowRecord{}, false
}

// Completed reports whether flow name finished successfully.
func (s Snapshot) Completed(name string) bool {
	record, ok := s.Flow(name)
	return ok && record.Status == FlowCompleted
}

// Namespace returns a copy of the outputs stored for flow name.
func (s Snapshot) Namespace(name string) map[string]json.RawMessage {
	src := s.Namespaces[name]
	out := make(map[string]json.RawMessage, len(src))
	for key, value := range src {
		out[key] = append(json.RawMessage(nil), value...)
	}
	return out
}

// FlowNames lists flows in execution order.
func (s Snapshot) FlowNames() []string {
	names := make([]string, 0, len(s.Flows))
	for _, record := range s.Flows {
		names = append(names, record.Name)
	}
	return names
}
