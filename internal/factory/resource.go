package factory

// ResourceKind identifies a category of resource ("iron_ore", "gear", ...).
type ResourceKind string

// ResourceID is a floor-unique resource identity.
type ResourceID int64

// Resource is a discrete unit moving through machine buffers.
// A resource is owned by exactly one machine's output buffer at a time;
// ownership transfers atomically during a production step.
type Resource struct {
	ID   ResourceID   `json:"id"`
	Kind ResourceKind `json:"kind"`
}

// countKinds tallies resources by kind.
func countKinds(resources []*Resource) map[ResourceKind]int {
	counts := make(map[ResourceKind]int, len(resources))
	for _, r := range resources {
		counts[r.Kind]++
	}
	return counts
}
