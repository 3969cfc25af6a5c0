package factory

// MachineID is a stable arena index for a machine on the floor.
// IDs are never reused within a floor's lifetime.
type MachineID int

// PortDirection distinguishes the two endpoint roles of an edge.
type PortDirection string

const (
	DirInput  PortDirection = "input"
	DirOutput PortDirection = "output"
)

// Port is an edge record held by its owning machine. The peer machine
// holds a matching port of the opposite direction pointing back; the two
// records are always created and removed together.
type Port struct {
	Direction PortDirection `json:"direction"`
	Owner     MachineID     `json:"owner"`
	Peer      MachineID     `json:"peer"`
}

// MachineKind selects the connection behavior variant of a machine.
type MachineKind string

const (
	KindMachine  MachineKind = "machine"
	KindConveyor MachineKind = "conveyor"
)

// Behavior describes a kind's port capacity rules. A zero max means
// unbounded. EvictOnAdd selects last-writer-wins semantics when the
// capacity is already reached; without it the connect is rejected.
type Behavior struct {
	MaxInputs  int
	MaxOutputs int
	EvictOnAdd bool
}

var (
	machineBehavior  = Behavior{}
	conveyorBehavior = Behavior{MaxInputs: 1, MaxOutputs: 1, EvictOnAdd: true}
)

// Cell is a grid position on the floor.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Machine is the production unit: a node in the port graph with an
// output buffer of completed resources and per-tick bookkeeping.
type Machine struct {
	ID     MachineID
	Name   string
	Kind   MachineKind
	Recipe *Recipe
	Pos    Cell

	// Dir is the facing of a conveyor segment, zero for other kinds.
	// It only informs presentation; the graph carries the topology.
	Dir Cell

	Inputs  []Port
	Outputs []Port

	// Buffer holds this tick's completed output, ready to be pulled
	// downstream. It is cleared at the start of each production.
	Buffer []*Resource

	TicksSinceProduced int

	behavior Behavior
	ticked   bool
}

// upstream returns the peer IDs of all input ports, in port order.
func (m *Machine) upstream() []MachineID {
	ids := make([]MachineID, 0, len(m.Inputs))
	for _, p := range m.Inputs {
		ids = append(ids, p.Peer)
	}
	return ids
}

// downstream returns the peer IDs of all output ports, in port order.
func (m *Machine) downstream() []MachineID {
	ids := make([]MachineID, 0, len(m.Outputs))
	for _, p := range m.Outputs {
		ids = append(ids, p.Peer)
	}
	return ids
}
