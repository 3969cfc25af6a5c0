package factory

// Recipe is an immutable transformation rule shared by reference across
// machines. Inputs and Outputs are multisets expressed as kind lists:
// a kind appearing twice means two units are required (or produced).
type Recipe struct {
	Name       string
	Inputs     []ResourceKind
	Outputs    []ResourceKind
	Delay      int
	Transforms bool
}

// CheckInputs reports whether the available resources satisfy the recipe's
// input requirement. The check is multiset containment: for every required
// kind, the available count must be at least the required count. An empty
// requirement is vacuously satisfied (raw-material generators).
func (r *Recipe) CheckInputs(available []*Resource) bool {
	if len(r.Inputs) == 0 {
		return true
	}

	required := make(map[ResourceKind]int, len(r.Inputs))
	for _, k := range r.Inputs {
		required[k]++
	}

	have := countKinds(available)
	for kind, need := range required {
		if have[kind] < need {
			return false
		}
	}
	return true
}

// RecipeBook maps recipe names to shared recipe definitions.
type RecipeBook map[string]*Recipe

// conveyorRecipe is the shared pass-through rule for conveyor segments:
// no requirements, no outputs of its own, no cooldown. Everything a
// conveyor holds came from upstream and leaves unchanged.
var conveyorRecipe = &Recipe{
	Name:       "conveyor",
	Transforms: false,
}
