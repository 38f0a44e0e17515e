package queue

// BuildGraphMsg asks the worker to build (or rebuild) the graph for a job
// from the extract stored under ExtractKey.
type BuildGraphMsg struct {
	JobID      string `json:"job_id"`
	ExtractKey string `json:"extract_key"`
	Operation  string `json:"operation"` // "build" or "rebuild"
}

// DeleteGraphMsg asks the worker to remove a job's graph, its stored files
// and finally the job record itself.
type DeleteGraphMsg struct {
	JobID string `json:"job_id"`
}

// JobStateEvent is published on the pubsub exchange whenever a job changes
// state.
type JobStateEvent struct {
	JobID string `json:"job_id"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}
