package factory

import (
	"math"

	"github.com/gridworks-sim/gridworks/internal/events"
)

// Vec2 is a continuous drag delta measured in grid-cell units.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// IsZero reports whether the vector is exactly zero.
func (v Vec2) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// BlueprintCell is one provisional conveyor placement in a drag chain.
// Cells are ordered from the dragged-from machine toward the pointer.
// The Corner tag marks the bend of an L-shaped chain; it only informs
// sprite selection downstream.
type BlueprintCell struct {
	Pos    Cell `json:"pos"`
	Dir    Cell `json:"dir"`
	Corner bool `json:"corner"`
}

// DefaultSnapThreshold is the direction-lock epsilon: a drag component
// below this magnitude (in cells) counts as zero for direction-change
// detection. Tunable via configuration.
const DefaultSnapThreshold = 0.35

// Planner converts drag gestures into ordered conveyor chains and wires
// them into the floor on completion. The floor acts as the placement
// service and is injected at construction.
type Planner struct {
	floor *Floor
	snap  float64
}

// NewPlanner creates a planner over the given floor. A snap threshold
// of zero or below falls back to DefaultSnapThreshold.
func NewPlanner(floor *Floor, snapThreshold float64) *Planner {
	if snapThreshold <= 0 {
		snapThreshold = DefaultSnapThreshold
	}
	return &Planner{floor: floor, snap: snapThreshold}
}

// PlanDrag converts the current total drag delta into an ordered
// blueprint chain starting next to the origin machine. prior is the
// direction locked by the previous update (zero at gesture start); the
// locked direction for the next update is returned alongside the cells.
//
// The blueprint is regenerated wholesale on every call; earlier
// provisional chains are discarded by the caller.
func (p *Planner) PlanDrag(origin *Machine, delta, prior Vec2) ([]BlueprintCell, Vec2) {
	primary := p.lockDirection(delta, prior)
	if primary.IsZero() {
		// Never moved past the snap threshold: empty chain, no error.
		return nil, Vec2{}
	}

	// Primary run length: project the full delta onto the locked axis.
	n1 := int(math.Round(math.Abs(delta.X*primary.X + delta.Y*primary.Y)))

	// Orthogonal residual becomes a second leg.
	ortho := Vec2{
		X: delta.X - float64(n1)*primary.X,
		Y: delta.Y - float64(n1)*primary.Y,
	}
	n2 := int(math.Round(math.Abs(ortho.X) + math.Abs(ortho.Y)))
	orthoDir := orthogonalStep(ortho, primary)
	if orthoDir == (Cell{}) {
		n2 = 0
	}

	primaryStep := Cell{X: int(primary.X), Y: int(primary.Y)}

	cells := make([]BlueprintCell, 0, n1+n2)
	pos := origin.Pos
	for i := 0; i < n1; i++ {
		pos.X += primaryStep.X
		pos.Y += primaryStep.Y
		cells = append(cells, BlueprintCell{Pos: pos, Dir: primaryStep})
	}
	for i := 0; i < n2; i++ {
		pos.X += orthoDir.X
		pos.Y += orthoDir.Y
		cells = append(cells, BlueprintCell{
			Pos:    pos,
			Dir:    orthoDir,
			Corner: i == 0 && n1 > 0,
		})
	}
	return cells, primary
}

// lockDirection applies the drag direction-lock rules:
//   - gesture start (zero prior): lock to the dominant axis of the delta;
//   - a delta component collapsing below the snap threshold signals a
//     direction change: re-lock to the current dominant axis;
//   - otherwise keep the prior lock, so mid-drag jitter cannot flip it.
func (p *Planner) lockDirection(delta, prior Vec2) Vec2 {
	if prior.IsZero() {
		return p.dominantAxis(delta)
	}
	if math.Abs(delta.X) < p.snap || math.Abs(delta.Y) < p.snap {
		if d := p.dominantAxis(delta); !d.IsZero() {
			return d
		}
	}
	return prior
}

// dominantAxis returns the signed unit vector along the larger axis of
// v, or zero if both components sit below the snap threshold.
func (p *Planner) dominantAxis(v Vec2) Vec2 {
	ax, ay := math.Abs(v.X), math.Abs(v.Y)
	if ax < p.snap && ay < p.snap {
		return Vec2{}
	}
	if ax >= ay {
		return Vec2{X: sign(v.X)}
	}
	return Vec2{Y: sign(v.Y)}
}

// orthogonalStep reduces the residual vector to a signed unit grid step
// on the axis orthogonal to the primary direction.
func orthogonalStep(ortho, primary Vec2) Cell {
	if primary.X != 0 {
		return Cell{Y: int(sign(ortho.Y))}
	}
	return Cell{X: int(sign(ortho.X))}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// CompleteDrag materializes a blueprint chain into real conveyors and
// wires them into the graph. Every cell becomes a conveyor except the
// last when the gesture ended on an existing machine, in which case that
// machine terminates the chain instead. An empty blueprint is a no-op.
//
// Each connect registers both edge records atomically; connecting into a
// conveyor that already has a connection evicts the old one (see
// ConnectOutput).
func (p *Planner) CompleteDrag(origin *Machine, cells []BlueprintCell, terminal *Machine) ([]*Machine, error) {
	if len(cells) == 0 {
		return nil, nil
	}

	materialize := cells
	if terminal != nil {
		materialize = cells[:len(cells)-1]
	}

	chain := make([]*Machine, 0, len(materialize))
	for _, c := range materialize {
		chain = append(chain, p.floor.PlaceConveyor(c.Pos, c.Dir))
	}

	prev := origin
	for _, node := range chain {
		if err := p.floor.ConnectOutput(prev.ID, node.ID); err != nil {
			return chain, err
		}
		prev = node
	}
	if terminal != nil {
		if err := p.floor.ConnectOutput(prev.ID, terminal.ID); err != nil {
			return chain, err
		}
	}

	fields := map[string]interface{}{
		"origin":    int(origin.ID),
		"cells":     len(cells),
		"conveyors": len(chain),
	}
	if terminal != nil {
		fields["terminal"] = int(terminal.ID)
	}
	events.Emit("info", "chain.completed", "", fields)

	return chain, nil
}
