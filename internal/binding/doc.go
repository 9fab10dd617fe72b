// Package binding owns the lifecycle of a bound model (a loaded model, its
// inference context and adapters) and the raw state codec used to save and
// restore a context. It is structured into small files by concern:
//
//   - config.go: Config, default substitution and tensor split parsing.
//   - bound.go: Create / Close and the process-wide backend initialisation.
//   - state.go: CaptureState / RestoreState and their file variants.
//   - embeddings.go: Embeddings / TokenEmbeddings and L2 normalisation.
//   - disabled.go: generation entry points that always fail.
//   - errors.go: Kind taxonomy and predicates.
//
// A BoundModel is not safe for concurrent use; callers serialise access
// (internal/manager does this per instance).
package binding
