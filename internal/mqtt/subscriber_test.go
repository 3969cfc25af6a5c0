package mqtt

import (
	"testing"
)

// fakeMessage implements paho.Message for handler tests.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// countingDriver records tick requests.
type countingDriver struct {
	steps int
}

func (d *countingDriver) Step() error {
	d.steps++
	return nil
}

func newTestSubscriber(driver TickDriver) (*BusSubscriber, *PanelRegistry, *Monitor) {
	registry := NewPanelRegistry()
	monitor := NewMonitor(registry, mapLookup{1: true, 2: true}, 2.0)
	sub := NewBusSubscriber(nil, registry, monitor, driver, "demo")
	return sub, registry, monitor
}

func TestBusTopicNames(t *testing.T) {
	sub, _, _ := newTestSubscriber(nil)

	if got := sub.RegistrationTopic(); got != "gridworks/demo/register" {
		t.Errorf("unexpected registration topic: %q", got)
	}
	if got := sub.CommandTopic(); got != "gridworks/demo/command" {
		t.Errorf("unexpected command topic: %q", got)
	}
}

func TestHandleCommandTickDrivesEngine(t *testing.T) {
	driver := &countingDriver{}
	sub, _, _ := newTestSubscriber(driver)

	msg := &fakeMessage{topic: sub.CommandTopic(), payload: []byte(`{"action": "tick"}`)}
	sub.handleCommand(nil, msg)

	if driver.steps != 1 {
		t.Errorf("expected one tick, got %d", driver.steps)
	}
}

func TestHandleCommandUnknownAction(t *testing.T) {
	driver := &countingDriver{}
	sub, _, _ := newTestSubscriber(driver)

	msg := &fakeMessage{topic: sub.CommandTopic(), payload: []byte(`{"action": "explode"}`)}
	sub.handleCommand(nil, msg)

	if driver.steps != 0 {
		t.Errorf("unknown action must not tick, got %d steps", driver.steps)
	}
}

func TestHandleCommandInvalidJSON(t *testing.T) {
	driver := &countingDriver{}
	sub, _, _ := newTestSubscriber(driver)

	msg := &fakeMessage{topic: sub.CommandTopic(), payload: []byte("garbage")}
	sub.handleCommand(nil, msg)

	if driver.steps != 0 {
		t.Errorf("invalid JSON must not tick, got %d steps", driver.steps)
	}
}

func TestHandleCommandTickWithoutDriver(t *testing.T) {
	sub, _, _ := newTestSubscriber(nil)

	msg := &fakeMessage{topic: sub.CommandTopic(), payload: []byte(`{"action": "tick"}`)}
	// Must not panic with no driver wired.
	sub.handleCommand(nil, msg)
}

func TestPanelHandlerHeartbeatRefreshesMonitor(t *testing.T) {
	sub, _, monitor := newTestSubscriber(nil)

	payload, err := ParseRegistration(validRegistrationJSON())
	if err != nil {
		t.Fatal(err)
	}
	monitor.HandleRegistration(payload)

	state := monitor.GetPanelState("panel-01")
	if state == nil || !state.Connected {
		t.Fatal("expected panel connected after registration")
	}
	before := state.LastSeen

	handler := sub.makePanelHandler("panel-01", "some/topic")
	handler(nil, &fakeMessage{topic: "some/topic", payload: []byte(`{"type": "heartbeat"}`)})

	after := monitor.GetPanelState("panel-01")
	if after.LastSeen.Before(before) {
		t.Error("heartbeat should refresh LastSeen")
	}
}

func TestPanelHandlerNonHeartbeatStillCountsAsLife(t *testing.T) {
	sub, _, monitor := newTestSubscriber(nil)

	payload, err := ParseRegistration(validRegistrationJSON())
	if err != nil {
		t.Fatal(err)
	}
	monitor.HandleRegistration(payload)

	handler := sub.makePanelHandler("panel-01", "some/topic")
	handler(nil, &fakeMessage{topic: "some/topic", payload: []byte(`{"type": "button", "pressed": true}`)})

	state := monitor.GetPanelState("panel-01")
	if state == nil || !state.Connected {
		t.Error("any panel traffic should keep it connected")
	}
}

func TestSubscriptionTracking(t *testing.T) {
	sub, _, _ := newTestSubscriber(nil)

	if sub.IsSubscribed("gridworks/demo/register") {
		t.Error("nothing subscribed yet")
	}

	sub.mu.Lock()
	sub.subscribed["gridworks/demo/register"] = true
	sub.mu.Unlock()

	if !sub.IsSubscribed("gridworks/demo/register") {
		t.Error("expected topic tracked as subscribed")
	}
	if got := len(sub.SubscribedTopics()); got != 1 {
		t.Errorf("expected 1 tracked topic, got %d", got)
	}

	sub.ClearSubscriptions()
	if sub.IsSubscribed("gridworks/demo/register") {
		t.Error("ClearSubscriptions should reset tracking")
	}
}
