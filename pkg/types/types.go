package types

// InstanceStatus summarizes a loaded instance for /status.
type InstanceStatus struct {
	// ID of the model this instance serves.
	ModelID string `json:"model_id"`
	// Current lifecycle state of the instance (loading, ready, draining).
	// example: ready
	State string `json:"state" example:"ready"`
	// Last time this instance served a request (unix seconds).
	LastUsed int64 `json:"last_used_unix"`
	// Estimated memory usage in MB.
	EstMB int `json:"est_mb"`
	// Embedding dimension of the loaded model.
	// example: 768
	EmbeddingSize int `json:"embedding_size" example:"768"`
	// Size in bytes of the context state dump.
	StateSize int `json:"state_size"`
	// Engine that loaded the model (llama or mem).
	Engine string `json:"engine"`
	// Current queue length for incoming requests.
	QueueLen int `json:"queue_len"`
	// Number of in-flight requests currently being processed (0 or 1).
	Inflight int `json:"inflight"`
	// Maximum queued requests allowed before backpressure triggers.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Instances []InstanceStatus `json:"instances"`
	// Memory budget in MB across all instances (0 disables budgeting).
	BudgetMB int `json:"budget_mb"`
	// Estimated used memory in MB.
	UsedMB int `json:"used_est_mb"`
	// Reserved margin in MB.
	MarginMB int `json:"margin_mb"`
	// Last error observed by the manager (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	UptimeSeconds int64 `json:"uptime_seconds"`
	// Server time in unix seconds.
	ServerTimeUnix int64 `json:"server_time_unix"`
	// Total number of evictions performed to respect the budget.
	EvictionsTotal uint64 `json:"evictions_total"`
	// Total number of idle expirations.
	ExpirationsTotal uint64 `json:"expirations_total"`
	// Total number of model loads.
	LoadsTotal uint64 `json:"loads_total"`
	// Overall manager state (loading, ready, error).
	State string `json:"state"`
	// Number of instances currently loading.
	WarmupsInProgress int `json:"warmups_in_progress"`
	// Number of instances currently draining.
	DrainingCount int `json:"draining_count"`
}
