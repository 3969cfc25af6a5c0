package factory

import (
	"fmt"

	"github.com/gridworks-sim/gridworks/internal/config"
	"github.com/gridworks-sim/gridworks/internal/events"
)

// BuildRecipeBook converts a recipes.yaml config into shared Recipe
// definitions.
func BuildRecipeBook(cfg *config.RecipesConfig) RecipeBook {
	book := make(RecipeBook, len(cfg.Recipes))
	for name, def := range cfg.Recipes {
		book[name] = &Recipe{
			Name:       name,
			Inputs:     toKinds(def.Inputs),
			Outputs:    toKinds(def.Outputs),
			Delay:      def.Delay,
			Transforms: def.Transforms,
		}
	}
	return book
}

func toKinds(names []string) []ResourceKind {
	kinds := make([]ResourceKind, 0, len(names))
	for _, n := range names {
		kinds = append(kinds, ResourceKind(n))
	}
	return kinds
}

// BuildFloor constructs the initial floor from a layout.yaml config.
// Machines are placed in file order and connections wired by name;
// an unknown recipe or machine name fails the whole load.
func BuildFloor(layout *config.LayoutConfig, book RecipeBook) (*Floor, error) {
	floor := NewFloor()
	byName := make(map[string]MachineID, len(layout.Machines))

	for _, lm := range layout.Machines {
		recipe := book[lm.Recipe]
		if recipe == nil {
			return nil, fmt.Errorf("layout machine %q: unknown recipe %q", lm.Name, lm.Recipe)
		}
		if len(lm.Pos) < 2 {
			return nil, fmt.Errorf("layout machine %q: pos needs [x, y]", lm.Name)
		}
		if _, dup := byName[lm.Name]; dup {
			return nil, fmt.Errorf("layout machine %q: duplicate name", lm.Name)
		}

		m, err := floor.PlaceMachine(lm.Name, recipe, Cell{X: lm.Pos[0], Y: lm.Pos[1]})
		if err != nil {
			return nil, fmt.Errorf("layout machine %q: %w", lm.Name, err)
		}
		byName[lm.Name] = m.ID
	}

	for _, lc := range layout.Connections {
		from, ok := byName[lc.From]
		if !ok {
			return nil, fmt.Errorf("layout connection: unknown machine %q", lc.From)
		}
		to, ok := byName[lc.To]
		if !ok {
			return nil, fmt.Errorf("layout connection: unknown machine %q", lc.To)
		}
		if err := floor.ConnectOutput(from, to); err != nil {
			return nil, fmt.Errorf("layout connection %s -> %s: %w", lc.From, lc.To, err)
		}
	}

	events.Emit("info", "floor.loaded", "", map[string]interface{}{
		"machines":    len(layout.Machines),
		"connections": len(layout.Connections),
	})
	return floor, nil
}
