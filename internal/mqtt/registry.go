package mqtt

import (
	"fmt"
	"sync"
)

// RegisteredPanel holds runtime information about a registered mirror
// panel.
type RegisteredPanel struct {
	PanelID        string
	Model          string
	Machines       []int
	EventTopic     string // panel publishes here
	TelemetryTopic string // panel listens here
	HeartbeatSec   int
}

// PanelRegistry maintains the mapping of panel IDs to their MQTT topics
// and mirrored machines.
type PanelRegistry struct {
	mu     sync.RWMutex
	panels map[string]*RegisteredPanel
}

// NewPanelRegistry creates a new empty panel registry.
func NewPanelRegistry() *PanelRegistry {
	return &PanelRegistry{
		panels: make(map[string]*RegisteredPanel),
	}
}

// Register adds or updates a panel in the registry.
func (r *PanelRegistry) Register(p *RegisteredPanel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panels[p.PanelID] = p
}

// RegisterFromPayload registers the panel described by a validated
// registration payload.
func (r *PanelRegistry) RegisterFromPayload(payload *RegistrationPayload) {
	r.Register(&RegisteredPanel{
		PanelID:        payload.Panel.ID,
		Model:          payload.Panel.Model,
		Machines:       append([]int{}, payload.Machines...),
		EventTopic:     payload.Topics.Publish,
		TelemetryTopic: payload.Topics.Subscribe,
		HeartbeatSec:   payload.Panel.HeartbeatSec,
	})
}

// Unregister removes a panel from the registry.
func (r *PanelRegistry) Unregister(panelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.panels, panelID)
}

// Get returns a copy of a panel by ID, or nil if not found.
func (r *PanelRegistry) Get(panelID string) *RegisteredPanel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.panels[panelID]; ok {
		cpy := *p
		cpy.Machines = append([]int{}, p.Machines...)
		return &cpy
	}
	return nil
}

// Exists returns true if the panel is registered.
func (r *PanelRegistry) Exists(panelID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.panels[panelID]
	return ok
}

// TelemetryTopic returns the telemetry topic for a panel, or an error if
// the panel is unknown or announced no topic.
func (r *PanelRegistry) TelemetryTopic(panelID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.panels[panelID]
	if !ok {
		return "", fmt.Errorf("panel not registered: %s", panelID)
	}
	if p.TelemetryTopic == "" {
		return "", fmt.Errorf("panel %s has no telemetry topic", panelID)
	}
	return p.TelemetryTopic, nil
}

// Mirroring returns the IDs of panels that mirror the given machine.
func (r *PanelRegistry) Mirroring(machineID int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, p := range r.panels {
		for _, m := range p.Machines {
			if m == machineID {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids
}

// All returns a copy of all registered panels.
func (r *PanelRegistry) All() []*RegisteredPanel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*RegisteredPanel, 0, len(r.panels))
	for _, p := range r.panels {
		cpy := *p
		cpy.Machines = append([]int{}, p.Machines...)
		result = append(result, &cpy)
	}
	return result
}

// Clear removes all panels from the registry.
func (r *PanelRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panels = make(map[string]*RegisteredPanel)
}
