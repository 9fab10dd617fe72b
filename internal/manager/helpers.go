package manager

import (
	"os"

	"llamabind/internal/registry"
)

// Helper: find model in registry by id.
func (m *Manager) getModelByID(id string) (registry.Entry, bool) {
	for _, e := range m.registry {
		if e.ID == id {
			return e, true
		}
	}
	return registry.Entry{}, false
}

// Helper: estimate memory from the model file size (MB). Unknown sizes count
// as 1MB so they never bypass budget checks.
func estimateMB(e registry.Entry) int {
	size := e.SizeBytes
	if size <= 0 {
		fi, err := os.Stat(e.Config.Model)
		if err != nil {
			return 1
		}
		size = fi.Size()
	}
	mb := int(size / (1024 * 1024))
	if mb <= 0 {
		mb = 1
	}
	return mb
}

func (m *Manager) resolveID(id string) (string, error) {
	if id != "" {
		return id, nil
	}
	if m.defaultModel == "" {
		return "", modelNotFoundError{id: "(unspecified)"}
	}
	return m.defaultModel, nil
}
