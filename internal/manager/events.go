package manager

// Event represents a manager lifecycle event.
// Minimal and stable: name + model ID and optional fields via key/values.
type Event struct {
	Name    string
	ModelID string
	Fields  map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// emit logs an event and hands it to the publisher.
func (m *Manager) emit(name, modelID string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	m.log.Debug().Str("event", name).Str("model", modelID).Fields(fields).Msg("manager event")
	m.publisher.Publish(Event{Name: name, ModelID: modelID, Fields: fields})
}
