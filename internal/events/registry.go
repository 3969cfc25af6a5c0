package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// machine
	"machine.placed":   {},
	"machine.removed":  {},
	"machine.produced": {},

	// port
	"port.connected": {},
	"port.detached":  {},
	"port.evicted":   {},

	// drag / chain
	"drag.started":    {},
	"drag.ended":      {},
	"chain.completed": {},
	"chain.discarded": {},

	// tick
	"tick.started":   {},
	"tick.completed": {},

	// floor
	"floor.loaded": {},

	// operator
	"operator.tick":    {},
	"operator.place":   {},
	"operator.connect": {},
	"operator.remove":  {},

	// bus (MQTT bridge)
	"bus.command": {},
	"bus.input":   {},
	"bus.error":   {},

	// panel
	"panel.registered":   {},
	"panel.connected":    {},
	"panel.disconnected": {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
