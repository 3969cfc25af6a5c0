package mqtt

import (
	"encoding/json"
	"fmt"
)

// RegistrationPayload is a v1 panel registration message. Mirror panels
// are physical displays on a show floor that render a slice of the
// simulation; they announce themselves on the registration topic.
type RegistrationPayload struct {
	Version  int         `json:"version"`
	Panel    PanelInfo   `json:"panel"`
	Machines []int       `json:"machines"`
	Topics   PanelTopics `json:"topics"`
}

// PanelInfo contains panel metadata.
type PanelInfo struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	Firmware     string `json:"firmware"`
	UptimeMS     int64  `json:"uptime_ms"`
	HeartbeatSec int    `json:"heartbeat_sec"`
}

// PanelTopics defines the MQTT topics a panel communicates on: the panel
// publishes input/heartbeat messages on Publish and listens for telemetry
// on Subscribe.
type PanelTopics struct {
	Publish   string `json:"publish"`
	Subscribe string `json:"subscribe"`
}

// ParseRegistration parses a registration payload from JSON bytes.
func ParseRegistration(data []byte) (*RegistrationPayload, error) {
	var payload RegistrationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid registration JSON: %w", err)
	}

	if payload.Version != 1 {
		return nil, fmt.Errorf("unsupported registration version: %d", payload.Version)
	}

	if payload.Panel.ID == "" {
		return nil, fmt.Errorf("panel.id is required")
	}

	return &payload, nil
}

// MachineLookup answers whether a machine ID exists on the floor.
// Implemented by the engine.
type MachineLookup interface {
	HasMachine(id int) bool
}

// ValidationResult contains a registration validation outcome.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// ValidateRegistration checks a parsed registration for serviceability:
// topics must be present and every mirrored machine must exist on the
// floor. A panel mirroring nothing is valid but gets a warning.
func ValidateRegistration(payload *RegistrationPayload, lookup MachineLookup) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if payload.Topics.Publish == "" {
		result.Errors = append(result.Errors, "topics.publish is required")
		result.Valid = false
	}
	if payload.Topics.Subscribe == "" {
		result.Errors = append(result.Errors, "topics.subscribe is required")
		result.Valid = false
	}

	if len(payload.Machines) == 0 {
		result.Warnings = append(result.Warnings, "panel mirrors no machines")
	}

	if lookup != nil {
		for _, id := range payload.Machines {
			if !lookup.HasMachine(id) {
				result.Errors = append(result.Errors, fmt.Sprintf("unknown machine: %d", id))
				result.Valid = false
			}
		}
	}

	return result
}
