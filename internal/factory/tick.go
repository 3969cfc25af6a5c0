package factory

import (
	"fmt"

	"github.com/gridworks-sim/gridworks/internal/events"
)

// PrepareTick resets every machine's per-sweep visitation guard. It must
// run exactly once before each global tick; the order of the reset pass
// does not matter.
func (f *Floor) PrepareTick() {
	for _, m := range f.machines {
		m.ticked = false
	}
}

// Advance runs one production decision for the machine and then pulls
// its upstream ancestry, each machine at most once per sweep. Calling
// Advance again on an already-visited machine within the same sweep is
// a no-op, so diamond-shaped graphs behave the same as trees.
func (f *Floor) Advance(id MachineID) error {
	m := f.machines[id]
	if m == nil {
		return fmt.Errorf("%w: %d", ErrUnknownMachine, id)
	}
	if m.ticked {
		return nil
	}
	if m.Recipe == nil {
		return fmt.Errorf("%w: %s", ErrMisconfiguredMachine, m.Name)
	}
	m.ticked = true

	// Read-only gather of everything currently offered upstream.
	// A destroyed peer is skipped, never dereferenced.
	available := make([]*Resource, 0)
	for _, up := range m.upstream() {
		if peer := f.machines[up]; peer != nil {
			available = append(available, peer.Buffer...)
		}
	}

	if m.Recipe.CheckInputs(available) && m.TicksSinceProduced >= m.Recipe.Delay {
		f.produce(m)
		m.TicksSinceProduced = 0
	} else {
		m.TicksSinceProduced++
	}

	// Pull-chain: prime every ancestor even when this machine did not
	// produce, so buffering advances one hop per tick.
	for _, up := range m.upstream() {
		if f.machines[up] == nil {
			continue
		}
		if err := f.Advance(up); err != nil {
			return err
		}
	}
	return nil
}

// produce executes one production cycle.
func (f *Floor) produce(m *Machine) {
	consumed := 0
	if m.Recipe.Transforms {
		// Transform: the previous output is replaced, everything offered
		// upstream is pulled in and destroyed, and the recipe outputs are
		// instantiated fresh.
		m.Buffer = m.Buffer[:0]
		for _, up := range m.upstream() {
			peer := f.machines[up]
			if peer == nil {
				continue
			}
			consumed += len(peer.Buffer)
			peer.Buffer = peer.Buffer[:0]
		}
		for _, kind := range m.Recipe.Outputs {
			m.Buffer = append(m.Buffer, f.newResource(kind))
		}
	} else {
		// Pass-through: relay upstream resources unchanged, keeping any
		// that a stalled consumer has not yet pulled. Ownership transfers;
		// nothing is created or destroyed.
		for _, up := range m.upstream() {
			peer := f.machines[up]
			if peer == nil {
				continue
			}
			m.Buffer = append(m.Buffer, peer.Buffer...)
			peer.Buffer = peer.Buffer[:0]
		}
	}

	events.Emit("info", "machine.produced", "", map[string]interface{}{
		"machine_id": int(m.ID),
		"name":       m.Name,
		"recipe":     m.Recipe.Name,
		"consumed":   consumed,
		"output":     len(m.Buffer),
	})
}
