package factory

import (
	"fmt"
	"sync"

	"github.com/gridworks-sim/gridworks/internal/events"
)

// Engine is the serving wrapper around a Floor. The simulation itself is
// single-threaded; the engine's mutex serializes tick sweeps against
// graph mutation and drag handling so no structural change can land
// mid-sweep.
type Engine struct {
	mu      sync.Mutex
	floor   *Floor
	planner *Planner
	book    RecipeBook
	ticks   uint64
	drags   map[string]*dragSession
}

// dragSession tracks one in-flight gesture per interaction client.
type dragSession struct {
	origin MachineID
	prior  Vec2
	cells  []BlueprintCell
}

// NewEngine wraps a floor with a planner and a recipe book.
func NewEngine(floor *Floor, book RecipeBook, snapThreshold float64) *Engine {
	return &Engine{
		floor:   floor,
		planner: NewPlanner(floor, snapThreshold),
		book:    book,
		drags:   make(map[string]*dragSession),
	}
}

// Step runs one global tick: reset every guard flag, then sweep from
// every sink (machines with no downstream consumers) and finally any
// machine the sink sweeps did not reach. Sorted-ID order keeps steps
// deterministic.
func (e *Engine) Step() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ticks++
	events.Emit("info", "tick.started", "", map[string]interface{}{
		"tick": e.ticks,
	})

	e.floor.PrepareTick()

	ids := e.floor.MachineIDs()
	for _, id := range ids {
		if m := e.floor.Machine(id); m != nil && len(m.Outputs) == 0 {
			if err := e.floor.Advance(id); err != nil {
				return err
			}
		}
	}
	// Cycles and machines only reachable from other roots: the guard
	// flag makes the second pass idempotent.
	for _, id := range ids {
		if m := e.floor.Machine(id); m != nil && !m.ticked {
			if err := e.floor.Advance(id); err != nil {
				return err
			}
		}
	}

	events.Emit("info", "tick.completed", "", map[string]interface{}{
		"tick":      e.ticks,
		"machines":  e.floor.MachineCount(),
		"resources": e.floor.ResourceCount(),
	})
	return nil
}

// Ticks returns the number of completed global ticks.
func (e *Engine) Ticks() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ticks
}

// Counts returns the current machine and buffered-resource totals.
func (e *Engine) Counts() (machines, resources int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.floor.MachineCount(), e.floor.ResourceCount()
}

// Place constructs a machine using a named recipe from the book.
func (e *Engine) Place(name, recipeName string, pos Cell) (MachineID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	recipe := e.book[recipeName]
	if recipe == nil {
		return 0, fmt.Errorf("%w: unknown recipe %q", ErrMisconfiguredMachine, recipeName)
	}
	m, err := e.floor.PlaceMachine(name, recipe, pos)
	if err != nil {
		return 0, err
	}
	return m.ID, nil
}

// Connect wires from's output to to's input.
func (e *Engine) Connect(from, to MachineID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.floor.ConnectOutput(from, to)
}

// Remove destroys a machine and detaches all its ports.
func (e *Engine) Remove(id MachineID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.floor.Remove(id)
}

// HasMachine reports whether the machine exists on the floor.
func (e *Engine) HasMachine(id MachineID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.floor.Machine(id) != nil
}

// DragStart opens a drag session for the given client, anchored at an
// existing machine.
func (e *Engine) DragStart(client string, origin MachineID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.floor.Machine(origin) == nil {
		return fmt.Errorf("%w: %d", ErrUnknownMachine, origin)
	}
	e.drags[client] = &dragSession{origin: origin}
	events.Emit("info", "drag.started", "", map[string]interface{}{
		"client": client,
		"origin": int(origin),
	})
	return nil
}

// DragUpdate replans the client's blueprint chain from the current total
// pointer delta. The previous provisional chain is discarded wholesale.
// Returns the number of provisional cells.
func (e *Engine) DragUpdate(client string, delta Vec2) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.drags[client]
	if s == nil {
		return 0, fmt.Errorf("no drag in progress for client %s", client)
	}
	origin := e.floor.Machine(s.origin)
	if origin == nil {
		delete(e.drags, client)
		return 0, fmt.Errorf("%w: %d", ErrUnknownMachine, s.origin)
	}

	s.cells, s.prior = e.planner.PlanDrag(origin, delta, s.prior)
	return len(s.cells), nil
}

// DragEnd completes the client's gesture. When hasTerminal is set the
// chain ends at that existing machine instead of a final conveyor. A
// session with an empty blueprint completes as a no-op. The session is
// always released.
func (e *Engine) DragEnd(client string, terminal MachineID, hasTerminal bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.drags[client]
	if s == nil {
		return fmt.Errorf("no drag in progress for client %s", client)
	}
	delete(e.drags, client)

	origin := e.floor.Machine(s.origin)
	if origin == nil {
		return fmt.Errorf("%w: %d", ErrUnknownMachine, s.origin)
	}

	var term *Machine
	if hasTerminal {
		term = e.floor.Machine(terminal)
		if term == nil {
			return fmt.Errorf("%w: %d", ErrUnknownMachine, terminal)
		}
	}

	_, err := e.planner.CompleteDrag(origin, s.cells, term)
	events.Emit("info", "drag.ended", "", map[string]interface{}{
		"client": client,
		"cells":  len(s.cells),
	})
	return err
}

// DragCancel discards the client's session and provisional chain.
func (e *Engine) DragCancel(client string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.drags[client]; ok {
		delete(e.drags, client)
		events.Emit("info", "chain.discarded", "", map[string]interface{}{
			"client": client,
		})
	}
}

// MachineState is the JSON view of one machine for /state.
type MachineState struct {
	ID       MachineID      `json:"id"`
	Name     string         `json:"name"`
	Kind     MachineKind    `json:"kind"`
	Recipe   string         `json:"recipe"`
	Pos      Cell           `json:"pos"`
	Buffer   []ResourceKind `json:"buffer"`
	Inputs   []MachineID    `json:"inputs"`
	Outputs  []MachineID    `json:"outputs"`
	Cooldown int            `json:"ticks_since_produced"`
}

// FloorState is the JSON view of the whole floor for /state.
type FloorState struct {
	Tick     uint64         `json:"tick"`
	Machines []MachineState `json:"machines"`
}

// Snapshot returns a copy of the floor suitable for serving.
func (e *Engine) Snapshot() FloorState {
	e.mu.Lock()
	defer e.mu.Unlock()

	state := FloorState{Tick: e.ticks}
	for _, id := range e.floor.MachineIDs() {
		m := e.floor.Machine(id)
		kinds := make([]ResourceKind, 0, len(m.Buffer))
		for _, r := range m.Buffer {
			kinds = append(kinds, r.Kind)
		}
		state.Machines = append(state.Machines, MachineState{
			ID:       m.ID,
			Name:     m.Name,
			Kind:     m.Kind,
			Recipe:   m.Recipe.Name,
			Pos:      m.Pos,
			Buffer:   kinds,
			Inputs:   m.upstream(),
			Outputs:  m.downstream(),
			Cooldown: m.TicksSinceProduced,
		})
	}
	return state
}
