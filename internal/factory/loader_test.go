package factory

import (
	"testing"

	"github.com/gridworks-sim/gridworks/internal/config"
)

func testRecipesConfig() *config.RecipesConfig {
	return &config.RecipesConfig{
		Version: 1,
		Recipes: map[string]config.RecipeDef{
			"mine": {
				Outputs:    []string{"ore"},
				Delay:      1,
				Transforms: true,
			},
			"smelter": {
				Inputs:     []string{"ore", "coal"},
				Outputs:    []string{"plate"},
				Delay:      3,
				Transforms: true,
			},
		},
	}
}

func TestBuildRecipeBook(t *testing.T) {
	book := BuildRecipeBook(testRecipesConfig())

	smelter := book["smelter"]
	if smelter == nil {
		t.Fatal("expected smelter recipe in book")
	}
	if smelter.Name != "smelter" {
		t.Errorf("recipe name should come from the map key, got %q", smelter.Name)
	}
	if len(smelter.Inputs) != 2 || smelter.Inputs[0] != "ore" || smelter.Inputs[1] != "coal" {
		t.Errorf("unexpected inputs: %v", smelter.Inputs)
	}
	if smelter.Delay != 3 || !smelter.Transforms {
		t.Errorf("delay/transforms not carried over: %+v", smelter)
	}
}

func TestBuildFloorPlacesAndWires(t *testing.T) {
	book := BuildRecipeBook(testRecipesConfig())
	layout := &config.LayoutConfig{
		Version: 1,
		Machines: []config.LayoutMachine{
			{Name: "mine-1", Recipe: "mine", Pos: []int{0, 0}},
			{Name: "smelter-1", Recipe: "smelter", Pos: []int{4, 0}},
		},
		Connections: []config.LayoutConnection{
			{From: "mine-1", To: "smelter-1"},
		},
	}

	floor, err := BuildFloor(layout, book)
	if err != nil {
		t.Fatalf("BuildFloor: %v", err)
	}
	if floor.MachineCount() != 2 {
		t.Fatalf("expected 2 machines, got %d", floor.MachineCount())
	}

	ids := floor.MachineIDs()
	mine := floor.Machine(ids[0])
	smelter := floor.Machine(ids[1])
	if mine.Name != "mine-1" || mine.Pos != (Cell{X: 0, Y: 0}) {
		t.Errorf("unexpected first machine: %+v", mine)
	}
	if len(mine.Outputs) != 1 || mine.Outputs[0].Peer != smelter.ID {
		t.Error("layout connection should be wired")
	}
}

func TestBuildFloorUnknownRecipe(t *testing.T) {
	book := BuildRecipeBook(testRecipesConfig())
	layout := &config.LayoutConfig{
		Version:  1,
		Machines: []config.LayoutMachine{{Name: "x", Recipe: "unobtainium", Pos: []int{0, 0}}},
	}

	if _, err := BuildFloor(layout, book); err == nil {
		t.Error("expected error for unknown recipe")
	}
}

func TestBuildFloorDuplicateName(t *testing.T) {
	book := BuildRecipeBook(testRecipesConfig())
	layout := &config.LayoutConfig{
		Version: 1,
		Machines: []config.LayoutMachine{
			{Name: "m", Recipe: "mine", Pos: []int{0, 0}},
			{Name: "m", Recipe: "mine", Pos: []int{1, 0}},
		},
	}

	if _, err := BuildFloor(layout, book); err == nil {
		t.Error("expected error for duplicate machine name")
	}
}

func TestBuildFloorUnknownConnectionEndpoint(t *testing.T) {
	book := BuildRecipeBook(testRecipesConfig())
	layout := &config.LayoutConfig{
		Version:     1,
		Machines:    []config.LayoutMachine{{Name: "m", Recipe: "mine", Pos: []int{0, 0}}},
		Connections: []config.LayoutConnection{{From: "m", To: "ghost"}},
	}

	if _, err := BuildFloor(layout, book); err == nil {
		t.Error("expected error for connection to unknown machine")
	}
}

func TestBuildFloorMissingPos(t *testing.T) {
	book := BuildRecipeBook(testRecipesConfig())
	layout := &config.LayoutConfig{
		Version:  1,
		Machines: []config.LayoutMachine{{Name: "m", Recipe: "mine", Pos: []int{3}}},
	}

	if _, err := BuildFloor(layout, book); err == nil {
		t.Error("expected error for incomplete position")
	}
}
