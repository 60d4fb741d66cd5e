package pack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/empack/empack/pkg/components"
)

const loadComponentYAML = `
attributes:
  region:
    type: str
  amount:
    type: float
    description: Total demand
    unit: MWh
  bus:
    type: str
  profile:
    type: str
  type:
    type: str
  name:
    type: str
busses:
  - bus
sequences:
  - profile
`

const storageComponentYAML = `
attributes:
  region:
    type: str
  capacity:
    type: float
    unit: MWh
  efficiency:
    type: float
  bus:
    type: str
  type:
    type: str
  name:
    type: str
busses:
  - bus
`

// loadComponent loads a component definition through a throwaway registry so
// resource tests exercise the same path production code does.
func loadComponent(t *testing.T, name, definition string) *components.Component {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(definition), 0644); err != nil {
		t.Fatal(err)
	}
	reg, err := components.NewRegistry(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	c, err := reg.Load(name)
	if err != nil {
		t.Fatalf("loading component %q: %v", name, err)
	}
	return c
}

func mustAddInstance(t *testing.T, r *ElementResource, row Instance) {
	t.Helper()
	if err := r.AddInstance(row); err != nil {
		t.Fatalf("AddInstance(%v): %v", row, err)
	}
}
