package layer

import (
	"sort"
	"sync"
)

// Manager holds the active layers and merges them on demand.
// Merging is always recomputed in full; no incremental state is kept.
type Manager struct {
	mu     sync.RWMutex
	layers []*Layer // sorted by priority (ascending)
}

// NewManager creates an empty layer manager.
func NewManager() *Manager {
	return &Manager{}
}

// Set adds a layer or replaces the layer with the same name.
func (m *Manager) Set(layer *Layer) {
	if layer == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.layers {
		if existing.Name == layer.Name {
			m.layers[i] = layer
			m.sortLayers()
			return
		}
	}
	m.layers = append(m.layers, layer)
	m.sortLayers()
}

// Remove removes a layer by name.
// Returns true if the layer was found and removed.
func (m *Manager) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, layer := range m.layers {
		if layer.Name == name {
			m.layers = append(m.layers[:i], m.layers[i+1:]...)
			return true
		}
	}
	return false
}

// Layer returns a layer by name, or nil.
func (m *Manager) Layer(name string) *Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, layer := range m.layers {
		if layer.Name == name {
			return layer
		}
	}
	return nil
}

// Layers returns the layers sorted by priority.
func (m *Manager) Layers() []*Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Layer, len(m.layers))
	copy(result, m.layers)
	return result
}

// Merge combines all layers, lowest priority first, into a fresh map.
func (m *Manager) Merge() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]any)
	for _, layer := range m.layers {
		result = DeepMerge(result, layer.Data)
	}
	return result
}

// WhichLayer returns the name of the highest layer that sets path.
func (m *Manager) WhichLayer(path string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.layers) - 1; i >= 0; i-- {
		if _, ok := GetByPath(m.layers[i].Data, path); ok {
			return m.layers[i].Name
		}
	}
	return ""
}

// sortLayers sorts layers by priority. Equal priorities keep insertion order.
func (m *Manager) sortLayers() {
	sort.SliceStable(m.layers, func(i, j int) bool {
		return m.layers[i].Priority < m.layers[j].Priority
	})
}
