package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FloorConfig maps floor.yaml: identity, network ports and simulation
// tuning for one factory floor.
type FloorConfig struct {
	Version int `yaml:"version"`
	Floor   struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"floor"`
	Network struct {
		UIPort   int `yaml:"ui_port"`
		MQTTPort int `yaml:"mqtt_port"`
		DBPort   int `yaml:"db_port"`
	} `yaml:"network"`
	Sim struct {
		TickIntervalMS int     `yaml:"tick_interval_ms"`
		AutoTick       bool    `yaml:"auto_tick"`
		SnapThreshold  float64 `yaml:"snap_threshold"`
	} `yaml:"sim"`
}

// UIPort returns the configured UI port, defaulting to 8080 if not set.
func (c *FloorConfig) UIPort() int {
	if c.Network.UIPort == 0 {
		return 8080
	}
	return c.Network.UIPort
}

// TickIntervalMS returns the tick period, defaulting to 500ms.
func (c *FloorConfig) TickIntervalMS() int {
	if c.Sim.TickIntervalMS == 0 {
		return 500
	}
	return c.Sim.TickIntervalMS
}

// RecipeDef is one named recipe in recipes.yaml. Inputs and Outputs are
// multisets: repeat a kind to require (or produce) more than one unit.
type RecipeDef struct {
	Inputs     []string `yaml:"inputs"`
	Outputs    []string `yaml:"outputs"`
	Delay      int      `yaml:"delay"`
	Transforms bool     `yaml:"transforms"`
}

// RecipesConfig maps recipes.yaml.
type RecipesConfig struct {
	Version int                  `yaml:"version"`
	Recipes map[string]RecipeDef `yaml:"recipes"`
}

// LayoutMachine is one pre-placed machine in layout.yaml.
type LayoutMachine struct {
	Name   string `yaml:"name"`
	Recipe string `yaml:"recipe"`
	Pos    []int  `yaml:"pos"`
}

// LayoutConnection is one pre-wired edge in layout.yaml, referencing
// machines by name.
type LayoutConnection struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// LayoutConfig maps layout.yaml: the initial floor contents.
type LayoutConfig struct {
	Version     int                `yaml:"version"`
	Machines    []LayoutMachine    `yaml:"machines"`
	Connections []LayoutConnection `yaml:"connections"`
}

// LoadFloorConfig reads and validates floor.yaml.
func LoadFloorConfig(path string) (*FloorConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg FloorConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported floor.yaml version: %d", cfg.Version)
	}

	return &cfg, nil
}

// LoadRecipesConfig reads and validates recipes.yaml.
func LoadRecipesConfig(path string) (*RecipesConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg RecipesConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported recipes.yaml version: %d", cfg.Version)
	}

	return &cfg, nil
}

// LoadLayoutConfig reads and validates layout.yaml.
func LoadLayoutConfig(path string) (*LayoutConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg LayoutConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported layout.yaml version: %d", cfg.Version)
	}

	return &cfg, nil
}
