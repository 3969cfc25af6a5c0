package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/gridworks-sim/gridworks/internal/events"
)

// TickDriver advances the simulation by one global tick. Implemented by
// the engine; the bus never touches the floor directly.
type TickDriver interface {
	Step() error
}

// BusSubscriber wires the floor bus topics: panel registration, the
// external command topic, and each registered panel's event topic.
// Subscription handling is idempotent across reconnects.
type BusSubscriber struct {
	mu         sync.RWMutex
	client     *Client
	registry   *PanelRegistry
	monitor    *Monitor
	driver     TickDriver
	floorID    string
	subscribed map[string]bool // topic -> subscribed
}

// NewBusSubscriber creates a subscriber for the given floor.
func NewBusSubscriber(client *Client, registry *PanelRegistry, monitor *Monitor, driver TickDriver, floorID string) *BusSubscriber {
	return &BusSubscriber{
		client:     client,
		registry:   registry,
		monitor:    monitor,
		driver:     driver,
		floorID:    floorID,
		subscribed: make(map[string]bool),
	}
}

// RegistrationTopic returns the topic panels announce themselves on.
func (s *BusSubscriber) RegistrationTopic() string {
	return fmt.Sprintf("gridworks/%s/register", s.floorID)
}

// CommandTopic returns the external command topic for this floor.
func (s *BusSubscriber) CommandTopic() string {
	return fmt.Sprintf("gridworks/%s/command", s.floorID)
}

// Start subscribes to the registration and command topics, plus the
// event topic of every panel already in the registry. Calling it again
// after ClearSubscriptions restores all subscriptions on reconnect.
func (s *BusSubscriber) Start() error {
	if err := s.subscribeOnce(s.RegistrationTopic(), s.handleRegistration); err != nil {
		return err
	}
	if err := s.subscribeOnce(s.CommandTopic(), s.handleCommand); err != nil {
		return err
	}
	return s.SubscribeAll()
}

// SubscribePanel subscribes to a panel's event topic if not already
// subscribed. Safe to call repeatedly.
func (s *BusSubscriber) SubscribePanel(p *RegisteredPanel) error {
	if p.EventTopic == "" {
		return nil
	}
	return s.subscribeOnce(p.EventTopic, s.makePanelHandler(p.PanelID, p.EventTopic))
}

// SubscribeAll subscribes to every registered panel's event topic.
func (s *BusSubscriber) SubscribeAll() error {
	for _, p := range s.registry.All() {
		if err := s.SubscribePanel(p); err != nil {
			events.Emit("error", "bus.error", "failed to subscribe to panel events", map[string]interface{}{
				"panel_id": p.PanelID,
				"topic":    p.EventTopic,
				"error":    err.Error(),
			})
		}
	}
	return nil
}

func (s *BusSubscriber) subscribeOnce(topic string, handler paho.MessageHandler) error {
	s.mu.Lock()
	if s.subscribed[topic] {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.client.Subscribe(topic, handler); err != nil {
		return err
	}

	s.mu.Lock()
	s.subscribed[topic] = true
	s.mu.Unlock()
	return nil
}

// handleRegistration parses and validates a panel announcement, then
// subscribes to the new panel's event topic.
func (s *BusSubscriber) handleRegistration(client paho.Client, msg paho.Message) {
	payload, err := ParseRegistration(msg.Payload())
	if err != nil {
		events.Emit("error", "bus.error", "invalid panel registration", map[string]interface{}{
			"topic": msg.Topic(),
			"error": err.Error(),
		})
		return
	}

	result := s.monitor.HandleRegistration(payload)
	if !result.Valid {
		return
	}

	if p := s.registry.Get(payload.Panel.ID); p != nil {
		if err := s.SubscribePanel(p); err != nil {
			events.Emit("error", "bus.error", "failed to subscribe to panel events", map[string]interface{}{
				"panel_id": p.PanelID,
				"topic":    p.EventTopic,
				"error":    err.Error(),
			})
		}
	}
}

// busCommand is the command envelope accepted on the command topic.
type busCommand struct {
	Action string `json:"action"`
}

// handleCommand dispatches external commands. "tick" drives one global
// simulation step, which lets an external controller own tick timing.
func (s *BusSubscriber) handleCommand(client paho.Client, msg paho.Message) {
	var cmd busCommand
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		events.Emit("error", "bus.error", "invalid command JSON", map[string]interface{}{
			"topic": msg.Topic(),
			"error": err.Error(),
		})
		return
	}

	events.Emit("info", "bus.command", "", map[string]interface{}{
		"action": cmd.Action,
	})

	switch cmd.Action {
	case "tick":
		if s.driver == nil {
			return
		}
		if err := s.driver.Step(); err != nil {
			events.Emit("error", "bus.error", "tick failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	default:
		events.Emit("error", "bus.error", "unknown command action", map[string]interface{}{
			"action": cmd.Action,
		})
	}
}

// makePanelHandler builds the handler for one panel's event topic.
// Heartbeats refresh the monitor; everything else surfaces as bus.input.
func (s *BusSubscriber) makePanelHandler(panelID, topic string) paho.MessageHandler {
	return func(client paho.Client, msg paho.Message) {
		var payload map[string]interface{}
		if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
			events.Emit("info", "bus.input", "", map[string]interface{}{
				"panel_id": panelID,
				"topic":    topic,
				"payload":  string(msg.Payload()),
			})
			return
		}

		if t, ok := payload["type"].(string); ok && t == "heartbeat" {
			s.monitor.Heartbeat(panelID)
			return
		}

		s.monitor.Heartbeat(panelID)
		events.Emit("info", "bus.input", "", map[string]interface{}{
			"panel_id": panelID,
			"topic":    topic,
			"payload":  payload,
		})
	}
}

// IsSubscribed returns true if the topic is already subscribed.
func (s *BusSubscriber) IsSubscribed(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscribed[topic]
}

// SubscribedTopics returns all subscribed topics.
func (s *BusSubscriber) SubscribedTopics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	topics := make([]string, 0, len(s.subscribed))
	for topic := range s.subscribed {
		topics = append(topics, topic)
	}
	return topics
}

// ClearSubscriptions resets subscription tracking. Call on disconnect so
// topics are re-subscribed after a reconnect.
func (s *BusSubscriber) ClearSubscriptions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = make(map[string]bool)
}
