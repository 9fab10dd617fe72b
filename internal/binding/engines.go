package binding

import (
	"fmt"
	"strings"

	"llamabind/internal/engine"
	"llamabind/internal/engine/memengine"
)

// EngineByName returns the engine registered under name: "llama" (or
// "native", or empty) for the compiled-in native engine and "mem" for the
// pure-Go reference engine.
func EngineByName(name string) (engine.Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "llama", "native":
		return engine.Native(), nil
	case "mem", "memory":
		return memengine.New(), nil
	default:
		return nil, newError(ConfigInvalid, "engine", fmt.Sprintf("unknown engine %q (want llama or mem)", name), nil)
	}
}
