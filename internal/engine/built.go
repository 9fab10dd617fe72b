package engine

// NativeBuilt reports whether the native llama engine was compiled in.
func NativeBuilt() bool { return llamaBuilt }
