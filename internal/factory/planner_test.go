package factory

import (
	"testing"
)

func newDragFixture(t *testing.T) (*Floor, *Planner, *Machine) {
	t.Helper()
	f := NewFloor()
	origin, err := f.PlaceMachine("origin", testRecipe, Cell{X: 0, Y: 0})
	if err != nil {
		t.Fatal(err)
	}
	return f, NewPlanner(f, 0), origin
}

func TestPlanDragBelowSnapThresholdYieldsNothing(t *testing.T) {
	_, p, origin := newDragFixture(t)

	cells, primary := p.PlanDrag(origin, Vec2{X: 0.2, Y: 0.1}, Vec2{})
	if len(cells) != 0 {
		t.Errorf("sub-threshold drag should plan no cells, got %d", len(cells))
	}
	if !primary.IsZero() {
		t.Errorf("sub-threshold drag should not lock a direction, got %+v", primary)
	}
}

func TestPlanDragLocksDominantAxisAtStart(t *testing.T) {
	_, p, origin := newDragFixture(t)

	cells, primary := p.PlanDrag(origin, Vec2{X: 2.1, Y: 0.8}, Vec2{})
	if primary != (Vec2{X: 1}) {
		t.Fatalf("expected +x lock, got %+v", primary)
	}
	if len(cells) == 0 || cells[0].Pos != (Cell{X: 1, Y: 0}) {
		t.Fatalf("first cell should sit one step along the lock, got %+v", cells)
	}

	_, primary = p.PlanDrag(origin, Vec2{X: 0.8, Y: -2.1}, Vec2{})
	if primary != (Vec2{Y: -1}) {
		t.Errorf("expected -y lock for downward drag, got %+v", primary)
	}
}

func TestPlanDragKeepsPriorLockAgainstJitter(t *testing.T) {
	_, p, origin := newDragFixture(t)

	// Both components are above the snap threshold, so the prior lock
	// holds even though y briefly dominates would-be re-evaluation.
	_, primary := p.PlanDrag(origin, Vec2{X: 1.2, Y: 1.4}, Vec2{X: 1})
	if primary != (Vec2{X: 1}) {
		t.Errorf("prior lock should survive jitter, got %+v", primary)
	}
}

func TestPlanDragRelocksWhenComponentCollapses(t *testing.T) {
	_, p, origin := newDragFixture(t)

	_, primary := p.PlanDrag(origin, Vec2{X: 0.1, Y: 3}, Vec2{X: 1})
	if primary != (Vec2{Y: 1}) {
		t.Errorf("collapsed x component should re-lock to +y, got %+v", primary)
	}
}

func TestPlanDragLShape(t *testing.T) {
	_, p, origin := newDragFixture(t)

	cells, primary := p.PlanDrag(origin, Vec2{X: 3, Y: 2}, Vec2{X: 1})
	if primary != (Vec2{X: 1}) {
		t.Fatalf("expected +x lock kept, got %+v", primary)
	}
	if len(cells) != 5 {
		t.Fatalf("expected 5 cells (3 along x, 2 along y), got %d", len(cells))
	}

	want := []Cell{{1, 0}, {2, 0}, {3, 0}, {3, 1}, {3, 2}}
	for i, c := range cells {
		if c.Pos != want[i] {
			t.Errorf("cell %d: want %+v, got %+v", i, want[i], c.Pos)
		}
	}

	// Directions: first leg along +x, second leg along +y, corner at the bend.
	for i := 0; i < 3; i++ {
		if cells[i].Dir != (Cell{X: 1}) {
			t.Errorf("cell %d: want dir +x, got %+v", i, cells[i].Dir)
		}
		if cells[i].Corner {
			t.Errorf("cell %d: leg one must not be a corner", i)
		}
	}
	for i := 3; i < 5; i++ {
		if cells[i].Dir != (Cell{Y: 1}) {
			t.Errorf("cell %d: want dir +y, got %+v", i, cells[i].Dir)
		}
	}
	if !cells[3].Corner || cells[4].Corner {
		t.Error("only the first cell of the second leg is the corner")
	}
}

func TestPlanDragStraightRunHasNoCorner(t *testing.T) {
	_, p, origin := newDragFixture(t)

	cells, _ := p.PlanDrag(origin, Vec2{X: 4, Y: 0.1}, Vec2{})
	if len(cells) != 4 {
		t.Fatalf("expected 4 cells, got %d", len(cells))
	}
	for i, c := range cells {
		if c.Corner {
			t.Errorf("cell %d: straight run must have no corner", i)
		}
	}
}

func TestPlanDragRegeneratesWholesale(t *testing.T) {
	_, p, origin := newDragFixture(t)

	long, prior := p.PlanDrag(origin, Vec2{X: 5}, Vec2{})
	if len(long) != 5 {
		t.Fatalf("expected 5 cells, got %d", len(long))
	}

	// Dragging back shortens the chain; stale cells do not linger.
	short, _ := p.PlanDrag(origin, Vec2{X: 2}, prior)
	if len(short) != 2 {
		t.Errorf("expected plan regenerated at 2 cells, got %d", len(short))
	}
}

func TestCompleteDragMaterializesConveyorChain(t *testing.T) {
	f, p, origin := newDragFixture(t)

	cells, _ := p.PlanDrag(origin, Vec2{X: 3}, Vec2{})
	chain, err := p.CompleteDrag(origin, cells, nil)
	if err != nil {
		t.Fatalf("CompleteDrag: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("expected 3 conveyors, got %d", len(chain))
	}

	// origin -> chain[0] -> chain[1] -> chain[2], every hop symmetric.
	prev := origin
	for i, node := range chain {
		if node.Kind != KindConveyor {
			t.Errorf("chain[%d]: expected conveyor, got %s", i, node.Kind)
		}
		if len(prev.Outputs) == 0 || prev.Outputs[len(prev.Outputs)-1].Peer != node.ID {
			t.Errorf("chain[%d]: missing forward edge from %d", i, prev.ID)
		}
		if len(node.Inputs) != 1 || node.Inputs[0].Peer != prev.ID {
			t.Errorf("chain[%d]: missing back edge to %d", i, prev.ID)
		}
		prev = node
	}

	if f.MachineCount() != 4 {
		t.Errorf("expected origin plus 3 conveyors on the floor, got %d", f.MachineCount())
	}
}

func TestCompleteDragWithTerminalSkipsLastCell(t *testing.T) {
	f, p, origin := newDragFixture(t)
	terminal, err := f.PlaceMachine("terminal", testRecipe, Cell{X: 3})
	if err != nil {
		t.Fatal(err)
	}

	cells, _ := p.PlanDrag(origin, Vec2{X: 3}, Vec2{})
	chain, err := p.CompleteDrag(origin, cells, terminal)
	if err != nil {
		t.Fatalf("CompleteDrag: %v", err)
	}

	// The terminal machine replaces the final conveyor.
	if len(chain) != 2 {
		t.Fatalf("expected 2 conveyors with a terminal, got %d", len(chain))
	}
	last := chain[len(chain)-1]
	if len(last.Outputs) != 1 || last.Outputs[0].Peer != terminal.ID {
		t.Error("last conveyor should feed the terminal machine")
	}
	if len(terminal.Inputs) != 1 || terminal.Inputs[0].Peer != last.ID {
		t.Error("terminal machine should hold the matching input port")
	}
}

func TestCompleteDragSingleCellWithTerminalConnectsDirectly(t *testing.T) {
	f, p, origin := newDragFixture(t)
	terminal, err := f.PlaceMachine("terminal", testRecipe, Cell{X: 1})
	if err != nil {
		t.Fatal(err)
	}

	cells, _ := p.PlanDrag(origin, Vec2{X: 1}, Vec2{})
	chain, err := p.CompleteDrag(origin, cells, terminal)
	if err != nil {
		t.Fatalf("CompleteDrag: %v", err)
	}
	if len(chain) != 0 {
		t.Fatalf("expected no conveyors, got %d", len(chain))
	}
	if len(origin.Outputs) != 1 || origin.Outputs[0].Peer != terminal.ID {
		t.Error("origin should connect straight to the terminal")
	}
}

func TestCompleteDragEmptyBlueprintIsNoOp(t *testing.T) {
	f, p, origin := newDragFixture(t)

	chain, err := p.CompleteDrag(origin, nil, nil)
	if err != nil || chain != nil {
		t.Errorf("empty blueprint should be a no-op, got chain=%v err=%v", chain, err)
	}
	if f.MachineCount() != 1 {
		t.Errorf("no machines should be added, floor has %d", f.MachineCount())
	}
}

func TestNewPlannerDefaultsSnapThreshold(t *testing.T) {
	f := NewFloor()
	p := NewPlanner(f, -1)
	if p.snap != DefaultSnapThreshold {
		t.Errorf("expected default snap threshold %v, got %v", DefaultSnapThreshold, p.snap)
	}

	p = NewPlanner(f, 0.5)
	if p.snap != 0.5 {
		t.Errorf("expected configured snap threshold, got %v", p.snap)
	}
}
