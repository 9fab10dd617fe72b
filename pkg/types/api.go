package types

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	Models []Model `json:"models"`
}

// EmbeddingsRequest is the body of POST /embeddings. Exactly one of Input and
// Tokens is expected; Input wins when both are set.
type EmbeddingsRequest struct {
	// Optional model identifier. If empty, the server default is used.
	Model string `json:"model,omitempty"`
	// Text to embed.
	// example: The quick brown fox
	Input string `json:"input,omitempty" example:"The quick brown fox"`
	// Token ids to embed instead of text.
	Tokens []int `json:"tokens,omitempty"`
	// Output length. 0 returns the model embedding size; smaller values
	// truncate, larger values pad with zeros.
	// example: 256
	Dimensions int `json:"dimensions,omitempty" example:"256"`
	// Thread override for this call; 0 uses the model configuration.
	Threads int `json:"threads,omitempty"`
}

// EmbeddingsResponse carries one L2-normalised embedding.
type EmbeddingsResponse struct {
	Model      string    `json:"model"`
	Embedding  []float32 `json:"embedding"`
	Dimensions int       `json:"dimensions"`
}

// StateRequest is the body of POST /state/save and POST /state/load.
type StateRequest struct {
	Model string `json:"model,omitempty"`
	// Path of the state file, relative to the server's state_dir.
	// example: sessions/chat.bin
	Path string `json:"path" example:"sessions/chat.bin"`
	// fopen(3) style mode; empty selects "wb" for save and "rb" for load.
	// example: wb
	Mode string `json:"mode,omitempty" example:"wb"`
}

// StateResponse reports a completed state transfer.
type StateResponse struct {
	Model string `json:"model"`
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

// PredictRequest is accepted by POST /predict, which is disabled.
type PredictRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
	// Binding error kind when the failure came from the binding layer.
	// example: state_size_mismatch
	Kind string `json:"kind,omitempty" example:"state_size_mismatch"`
}
