package factory

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gridworks-sim/gridworks/internal/events"
)

// Structural errors. Mutations that fail with one of these leave the
// graph unchanged.
var (
	ErrUnknownMachine       = errors.New("unknown machine")
	ErrSelfConnection       = errors.New("machine cannot connect to itself")
	ErrCapacityExceeded     = errors.New("port capacity exceeded")
	ErrMisconfiguredMachine = errors.New("machine has no recipe")
)

// Floor is the machine arena: every machine is referenced by a stable
// MachineID and ports are edge records stored on the machines themselves.
// The Floor is not safe for concurrent use; callers serialize access
// (see Engine).
type Floor struct {
	machines map[MachineID]*Machine

	nextMachine  MachineID
	nextResource ResourceID
}

// NewFloor creates an empty floor.
func NewFloor() *Floor {
	return &Floor{
		machines: make(map[MachineID]*Machine),
	}
}

// Machine returns the machine with the given ID, or nil.
func (f *Floor) Machine(id MachineID) *Machine {
	return f.machines[id]
}

// MachineCount returns the number of machines on the floor.
func (f *Floor) MachineCount() int {
	return len(f.machines)
}

// ResourceCount returns the total number of resources held in buffers.
func (f *Floor) ResourceCount() int {
	total := 0
	for _, m := range f.machines {
		total += len(m.Buffer)
	}
	return total
}

// MachineIDs returns all machine IDs in ascending order.
func (f *Floor) MachineIDs() []MachineID {
	ids := make([]MachineID, 0, len(f.machines))
	for id := range f.machines {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PlaceMachine constructs a generic machine at the given position.
// A nil recipe is rejected: a machine without a rule cannot make a
// production decision and must fail fast rather than default to
// zero-requirement behavior.
func (f *Floor) PlaceMachine(name string, recipe *Recipe, pos Cell) (*Machine, error) {
	if recipe == nil {
		return nil, fmt.Errorf("%w: %s", ErrMisconfiguredMachine, name)
	}
	return f.place(name, KindMachine, machineBehavior, recipe, pos), nil
}

// PlaceConveyor constructs a conveyor segment at the given position,
// oriented along dir. Conveyors share the pass-through recipe and carry
// single-port capacity with eviction on add.
func (f *Floor) PlaceConveyor(pos Cell, dir Cell) *Machine {
	name := fmt.Sprintf("conveyor@%d,%d", pos.X, pos.Y)
	m := f.place(name, KindConveyor, conveyorBehavior, conveyorRecipe, pos)
	m.Dir = dir
	return m
}

func (f *Floor) place(name string, kind MachineKind, behavior Behavior, recipe *Recipe, pos Cell) *Machine {
	f.nextMachine++
	m := &Machine{
		ID:       f.nextMachine,
		Name:     name,
		Kind:     kind,
		Recipe:   recipe,
		Pos:      pos,
		behavior: behavior,
	}
	f.machines[m.ID] = m

	events.Emit("info", "machine.placed", "", map[string]interface{}{
		"machine_id": int(m.ID),
		"name":       m.Name,
		"kind":       string(m.Kind),
		"x":          pos.X,
		"y":          pos.Y,
	})
	return m
}

// ConnectOutput wires from's output to to's input as a single atomic
// operation: both edge records are created together, never one without
// the other. If either endpoint is at capacity, its kind's behavior
// decides between last-writer-wins eviction (conveyors) and rejection.
func (f *Floor) ConnectOutput(from, to MachineID) error {
	src := f.machines[from]
	dst := f.machines[to]
	if src == nil {
		return fmt.Errorf("%w: %d", ErrUnknownMachine, from)
	}
	if dst == nil {
		return fmt.Errorf("%w: %d", ErrUnknownMachine, to)
	}
	if from == to {
		return fmt.Errorf("%w: %d", ErrSelfConnection, from)
	}

	// Validate capacity on both endpoints before mutating anything.
	srcFull := src.behavior.MaxOutputs > 0 && len(src.Outputs) >= src.behavior.MaxOutputs
	dstFull := dst.behavior.MaxInputs > 0 && len(dst.Inputs) >= dst.behavior.MaxInputs
	if srcFull && !src.behavior.EvictOnAdd {
		return fmt.Errorf("%w: machine %d outputs", ErrCapacityExceeded, from)
	}
	if dstFull && !dst.behavior.EvictOnAdd {
		return fmt.Errorf("%w: machine %d inputs", ErrCapacityExceeded, to)
	}

	if srcFull {
		f.evictEdge(src, DirOutput)
	}
	if dstFull {
		f.evictEdge(dst, DirInput)
	}

	src.Outputs = append(src.Outputs, Port{Direction: DirOutput, Owner: from, Peer: to})
	dst.Inputs = append(dst.Inputs, Port{Direction: DirInput, Owner: to, Peer: from})

	events.Emit("info", "port.connected", "", map[string]interface{}{
		"from": int(from),
		"to":   int(to),
	})
	return nil
}

// evictEdge removes the oldest port in the given direction on m, along
// with the matching record on the peer (no dangling peer is left behind).
func (f *Floor) evictEdge(m *Machine, dir PortDirection) {
	var old Port
	if dir == DirOutput {
		old = m.Outputs[0]
		m.Outputs = append([]Port{}, m.Outputs[1:]...)
		f.removePeerPort(old.Peer, DirInput, m.ID)
	} else {
		old = m.Inputs[0]
		m.Inputs = append([]Port{}, m.Inputs[1:]...)
		f.removePeerPort(old.Peer, DirOutput, m.ID)
	}

	events.Emit("info", "port.evicted", "", map[string]interface{}{
		"owner":     int(m.ID),
		"peer":      int(old.Peer),
		"direction": string(dir),
	})
}

// removePeerPort deletes the first port on machine id in direction dir
// whose peer is target. Missing machines are tolerated: eviction must
// succeed even if the peer was already destroyed.
func (f *Floor) removePeerPort(id MachineID, dir PortDirection, target MachineID) {
	m := f.machines[id]
	if m == nil {
		return
	}
	if dir == DirInput {
		m.Inputs = dropFirst(m.Inputs, target)
	} else {
		m.Outputs = dropFirst(m.Outputs, target)
	}
}

func dropFirst(ports []Port, peer MachineID) []Port {
	for i, p := range ports {
		if p.Peer == peer {
			return append(append([]Port{}, ports[:i]...), ports[i+1:]...)
		}
	}
	return ports
}

// Remove destroys a machine, detaching both ends of every port it owns.
// Detachment is guaranteed here so traversal never has to defend against
// dangling references.
func (f *Floor) Remove(id MachineID) error {
	m := f.machines[id]
	if m == nil {
		return fmt.Errorf("%w: %d", ErrUnknownMachine, id)
	}

	for _, p := range m.Inputs {
		f.removePeerPort(p.Peer, DirOutput, id)
	}
	for _, p := range m.Outputs {
		f.removePeerPort(p.Peer, DirInput, id)
	}
	m.Inputs = nil
	m.Outputs = nil
	delete(f.machines, id)

	events.Emit("info", "machine.removed", "", map[string]interface{}{
		"machine_id": int(id),
		"name":       m.Name,
	})
	return nil
}

func (f *Floor) newResource(kind ResourceKind) *Resource {
	f.nextResource++
	return &Resource{ID: f.nextResource, Kind: kind}
}
