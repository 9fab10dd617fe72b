package manager

import "llamabind/internal/engine/memengine"

func newEngine() *memengine.Engine { return memengine.New(memengine.WithEmbeddingSize(16)) }
