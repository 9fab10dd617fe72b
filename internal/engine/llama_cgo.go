//go:build llama

package engine

// cgo link directives for the go-llama.cpp engine.
// - rpath of $ORIGIN lets the runtime loader find libggml*.so next to the
//   built binary (./bin) when llama.cpp was built with shared backends.
/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN'
*/
import "C"
