package mqtt

import (
	"encoding/json"
	"sync"

	"github.com/gridworks-sim/gridworks/internal/events"
)

// TelemetryPublisher forwards simulation events to registered mirror
// panels: machine.produced goes to panels mirroring that machine,
// tick.completed to every panel. The publisher consumes a broadcaster
// subscription, so a slow broker can never stall the engine.
type TelemetryPublisher struct {
	client   *Client
	registry *PanelRegistry

	mu     sync.Mutex
	sub    events.Subscriber
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewTelemetryPublisher creates a publisher over the given client and
// panel registry.
func NewTelemetryPublisher(client *Client, registry *PanelRegistry) *TelemetryPublisher {
	return &TelemetryPublisher{
		client:   client,
		registry: registry,
	}
}

// Start subscribes to the event stream and begins forwarding.
func (p *TelemetryPublisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopCh != nil {
		return
	}

	p.sub = events.Subscribe()
	p.stopCh = make(chan struct{})
	p.wg.Add(1)
	go p.forwardLoop(p.sub, p.stopCh)
}

// Stop halts forwarding and releases the event subscription.
func (p *TelemetryPublisher) Stop() {
	p.mu.Lock()
	stopCh := p.stopCh
	sub := p.sub
	p.stopCh = nil
	p.sub = nil
	p.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	p.wg.Wait()
	events.Unsubscribe(sub)
}

func (p *TelemetryPublisher) forwardLoop(sub events.Subscriber, stopCh chan struct{}) {
	defer p.wg.Done()

	for {
		select {
		case <-stopCh:
			return
		case e, ok := <-sub:
			if !ok {
				return
			}
			p.forward(e)
		}
	}
}

func (p *TelemetryPublisher) forward(e events.Event) {
	switch e.Name {
	case "machine.produced":
		machineID, ok := e.Fields["machine_id"].(int)
		if !ok {
			return
		}
		for _, panelID := range p.registry.Mirroring(machineID) {
			p.publishTo(panelID, e)
		}
	case "tick.completed":
		for _, panel := range p.registry.All() {
			p.publishTo(panel.PanelID, e)
		}
	}
}

func (p *TelemetryPublisher) publishTo(panelID string, e events.Event) {
	topic, err := p.registry.TelemetryTopic(panelID)
	if err != nil {
		return
	}

	data, err := json.Marshal(e)
	if err != nil {
		return
	}

	if !p.client.IsConnected() {
		return
	}
	if err := p.client.Publish(topic, data); err != nil {
		events.Emit("error", "bus.error", "telemetry publish failed", map[string]interface{}{
			"panel_id": panelID,
			"topic":    topic,
			"error":    err.Error(),
		})
	}
}
