// Package manager provides lifecycle, admission, and embedding coordination
// for bound models. It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters, Close.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: internal state types (State, Instance, Snapshot).
//   - errors.go: error types and helpers (IsTooBusy, IsModelNotFound, ...).
//   - helpers.go: small utilities (model lookup, memory estimation).
//   - admission.go: per-instance queueing and single in-flight admission.
//   - ensure.go: EnsureInstance loading through the binding layer.
//   - evict.go: eviction logic to fit within the memory budget.
//   - idle.go: idle expiry of unused instances.
//   - unload.go: graceful drain and release of an instance.
//   - ops.go: embeddings, state save/load and the disabled predict entry point.
//   - status_report.go: Status/Snapshot reporting helpers.
//
// A BoundModel has no internal locking. Every call into one goes through the
// instance's single in-flight slot, so at most one operation touches it at a
// time and it is never released while an operation holds the slot.
package manager
