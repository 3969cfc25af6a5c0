package mqtt

import (
	"sync"
	"time"

	"github.com/gridworks-sim/gridworks/internal/events"
)

// PanelState tracks a registered panel's health.
type PanelState struct {
	PanelID      string
	LastSeen     time.Time
	HeartbeatSec int
	Connected    bool
}

// Monitor tracks panel registration and heartbeat health.
type Monitor struct {
	mu        sync.RWMutex
	states    map[string]*PanelState
	registry  *PanelRegistry
	lookup    MachineLookup
	tolerance float64 // multiplier on the heartbeat interval
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewMonitor creates a new panel monitor. tolerance is the multiplier on
// the announced heartbeat interval before a panel counts as disconnected.
func NewMonitor(registry *PanelRegistry, lookup MachineLookup, tolerance float64) *Monitor {
	if tolerance <= 1.0 {
		tolerance = 2.0 // default: one missed heartbeat
	}
	return &Monitor{
		states:    make(map[string]*PanelState),
		registry:  registry,
		lookup:    lookup,
		tolerance: tolerance,
		stopCh:    make(chan struct{}),
	}
}

// HandleRegistration validates a registration payload, registers the
// panel on success, and emits the matching events.
func (m *Monitor) HandleRegistration(payload *RegistrationPayload) *ValidationResult {
	result := ValidateRegistration(payload, m.lookup)

	panelID := payload.Panel.ID
	if !result.Valid {
		events.Emit("error", "bus.error", "panel registration validation failed", map[string]interface{}{
			"panel_id": panelID,
			"errors":   result.Errors,
		})
		return result
	}

	m.registry.RegisterFromPayload(payload)

	m.mu.Lock()
	existing := m.states[panelID]
	isReconnect := existing != nil && !existing.Connected
	m.states[panelID] = &PanelState{
		PanelID:      panelID,
		LastSeen:     time.Now(),
		HeartbeatSec: payload.Panel.HeartbeatSec,
		Connected:    true,
	}
	m.mu.Unlock()

	events.Emit("info", "panel.registered", "", map[string]interface{}{
		"panel_id":  panelID,
		"model":     payload.Panel.Model,
		"machines":  len(payload.Machines),
		"reconnect": isReconnect,
	})
	events.Emit("info", "panel.connected", "", map[string]interface{}{
		"panel_id": panelID,
	})

	return result
}

// Heartbeat records sign-of-life from a panel.
func (m *Monitor) Heartbeat(panelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.states[panelID]
	if state == nil {
		return
	}
	if !state.Connected {
		state.Connected = true
		events.Emit("info", "panel.connected", "", map[string]interface{}{
			"panel_id": panelID,
		})
	}
	state.LastSeen = time.Now()
}

// Start begins the background health check loop.
func (m *Monitor) Start(checkInterval time.Duration) {
	m.wg.Add(1)
	go m.healthCheckLoop(checkInterval)
}

// Stop stops the background health check loop.
func (m *Monitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

func (m *Monitor) healthCheckLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.checkHealth()
		}
	}
}

func (m *Monitor) checkHealth() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	for panelID, state := range m.states {
		if !state.Connected || state.HeartbeatSec <= 0 {
			continue
		}

		timeout := time.Duration(float64(state.HeartbeatSec)*m.tolerance) * time.Second
		if now.Sub(state.LastSeen) > timeout {
			state.Connected = false
			events.Emit("warning", "panel.disconnected", "heartbeat timeout", map[string]interface{}{
				"panel_id":    panelID,
				"last_seen":   state.LastSeen.Format(time.RFC3339),
				"timeout_sec": timeout.Seconds(),
			})
		}
	}
}

// GetPanelState returns a copy of a panel's health state, or nil.
func (m *Monitor) GetPanelState(panelID string) *PanelState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if state, ok := m.states[panelID]; ok {
		cpy := *state
		return &cpy
	}
	return nil
}

// ConnectedPanels returns the IDs of currently connected panels.
func (m *Monitor) ConnectedPanels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, state := range m.states {
		if state.Connected {
			ids = append(ids, id)
		}
	}
	return ids
}
