package types

// Model is a loadable model file discovered on disk or declared in config.
type Model struct {
	// Stable identifier for the model (file name for discovered models).
	// example: nomic-embed-text.Q8_0.gguf
	ID string `json:"id" example:"nomic-embed-text.Q8_0.gguf"`
	// Human-friendly name.
	Name string `json:"name"`
	// Absolute path to the model file on disk.
	// example: /models/nomic-embed-text.Q8_0.gguf
	Path string `json:"path" example:"/models/nomic-embed-text.Q8_0.gguf"`
	// Size of the model file in bytes (0 when unknown).
	SizeBytes int64 `json:"size_bytes,omitempty"`
}
