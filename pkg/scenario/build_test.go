package scenario

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/empack/empack/pkg/components"
	"github.com/empack/empack/pkg/errdefs"
	"github.com/empack/empack/pkg/pack"
)

const loadDefinition = `
attributes:
  region:
    type: str
  amount:
    type: float
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

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "load.yaml"), []byte(loadDefinition), 0644); err != nil {
		t.Fatal(err)
	}
	reg, err := components.NewRegistry(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	return NewBuilder(reg, nil, nil, nil)
}

func loadTestBlueprint(t *testing.T, name, content string) *Blueprint {
	t.Helper()
	path := filepath.Join(t.TempDir(), name+".yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	bp, err := LoadBlueprint(path)
	if err != nil {
		t.Fatalf("LoadBlueprint failed: %v", err)
	}
	return bp
}

func readCSV(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestLoadBlueprintKeepsDeclarationOrder(t *testing.T) {
	bp := loadTestBlueprint(t, "ordered", `
regions: [BB, B]
elements:
  zeta_demand:
    component: load
  alpha_demand:
    component: load
sequences:
  custom_profile:
    columns: [a, b]
timeindex:
  start: 2026-01-01
  periods: 24
`)
	if bp.Name != "ordered" {
		t.Errorf("Name = %q", bp.Name)
	}
	var names []string
	for _, def := range bp.Elements {
		names = append(names, def.Name)
	}
	if !reflect.DeepEqual(names, []string{"zeta_demand", "alpha_demand"}) {
		t.Errorf("element order = %v", names)
	}
	if bp.Timeindex == nil || bp.Timeindex.Periods != 24 {
		t.Errorf("timeindex = %+v", bp.Timeindex)
	}
	if _, err := bp.Timeindex.StartTime(); err != nil {
		t.Errorf("StartTime failed: %v", err)
	}
}

func TestLoadBlueprintRejectsMissingComponent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	content := "elements:\n  demand:\n    attributes: [amount]\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadBlueprint(path)
	if !errdefs.IsSchemaViolation(err) {
		t.Errorf("err = %v, want SchemaViolation", err)
	}
}

func TestBuildRegionFanOut(t *testing.T) {
	b := newTestBuilder(t)
	bp := loadTestBlueprint(t, "regions", `
regions: [BB, B]
elements:
  electricity_demand:
    component: load
    attributes: [amount, bus, region]
    instances:
      - name: d1
        bus: electricity
`)
	target := filepath.Join(t.TempDir(), "regions")
	if _, err := b.Build(context.Background(), bp, target); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	lines := readCSV(t, filepath.Join(target, "data", "elements", "electricity_demand.csv"))
	want := []string{
		"amount;bus;region;type;name",
		";BB-electricity;BB;load;BB-d1",
		";B-electricity;B;load;B-d1",
	}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("element CSV = %v, want %v", lines, want)
	}

	// The synthesized bus table carries both region-qualified names.
	busLines := readCSV(t, filepath.Join(target, "data", "elements", "bus.csv"))
	joined := strings.Join(busLines, "\n")
	for _, name := range []string{"BB-electricity", "B-electricity"} {
		if !strings.Contains(joined, name) {
			t.Errorf("bus table missing %q:\n%s", name, joined)
		}
	}
}

func TestBuildFanOutCardinality(t *testing.T) {
	b := newTestBuilder(t)
	bp := loadTestBlueprint(t, "many", `
regions: [BB, B, HH]
elements:
  electricity_demand:
    component: load
    attributes: [amount, bus]
    instances:
      - name: d1
      - name: d2
`)
	target := filepath.Join(t.TempDir(), "many")
	if _, err := b.Build(context.Background(), bp, target); err != nil {
		t.Fatal(err)
	}

	lines := readCSV(t, filepath.Join(target, "data", "elements", "electricity_demand.csv"))
	if got := len(lines) - 1; got != 6 {
		t.Errorf("rows = %d, want 2 instances x 3 regions = 6", got)
	}
	for _, line := range lines[1:] {
		name := line[strings.LastIndex(line, ";")+1:]
		if !strings.Contains(name, "-d") {
			t.Errorf("row name %q not region-prefixed", name)
		}
	}
}

func TestBuildWithoutRegionsPassesInstancesThrough(t *testing.T) {
	b := newTestBuilder(t)
	bp := loadTestBlueprint(t, "plain", `
elements:
  electricity_demand:
    component: load
    attributes: [amount, bus]
    instances:
      - name: d1
        amount: 10
`)
	target := filepath.Join(t.TempDir(), "plain")
	if _, err := b.Build(context.Background(), bp, target); err != nil {
		t.Fatal(err)
	}

	lines := readCSV(t, filepath.Join(target, "data", "elements", "electricity_demand.csv"))
	want := []string{"amount;bus;type;name", "10;;load;d1"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("CSV = %v, want %v", lines, want)
	}
}

func TestBuildResourceRegionsOverrideGlobal(t *testing.T) {
	b := newTestBuilder(t)
	bp := loadTestBlueprint(t, "override", `
regions: [BB, B]
elements:
  electricity_demand:
    component: load
    attributes: [amount, bus]
    regions: [HH]
    instances:
      - name: d1
`)
	target := filepath.Join(t.TempDir(), "override")
	if _, err := b.Build(context.Background(), bp, target); err != nil {
		t.Fatal(err)
	}

	lines := readCSV(t, filepath.Join(target, "data", "elements", "electricity_demand.csv"))
	if len(lines) != 2 || !strings.Contains(lines[1], "HH-d1") {
		t.Errorf("CSV = %v, want single HH-d1 row", lines)
	}
}

func TestBuildValidatesKeysBeforeFanOut(t *testing.T) {
	b := newTestBuilder(t)
	bp := loadTestBlueprint(t, "invalid", `
regions: [BB, B]
elements:
  electricity_demand:
    component: load
    attributes: [amount, bus]
    instances:
      - name: d1
        voltage: 230
`)
	_, err := b.Build(context.Background(), bp, filepath.Join(t.TempDir(), "invalid"))
	if !errdefs.IsSchemaViolation(err) {
		t.Errorf("err = %v, want SchemaViolation", err)
	}
}

func TestBuildSynthesizesSequenceForeignKeys(t *testing.T) {
	b := newTestBuilder(t)
	bp := loadTestBlueprint(t, "profiles", `
regions: [BB, B]
elements:
  electricity_demand:
    component: load
    attributes: [amount, bus, profile]
    instances:
      - name: d1
        bus: electricity
timeindex:
  start: 2026-01-01
  periods: 3
`)
	target := filepath.Join(t.TempDir(), "profiles")
	if _, err := b.Build(context.Background(), bp, target); err != nil {
		t.Fatal(err)
	}

	lines := readCSV(t, filepath.Join(target, "data", "elements", "electricity_demand.csv"))
	if !strings.Contains(lines[1], "BB-d1-profile") || !strings.Contains(lines[2], "B-d1-profile") {
		t.Errorf("synthesized profile references missing:\n%v", lines)
	}

	// The companion resource exists with one zero-filled column per distinct
	// referenced value, sorted, over the configured index.
	profLines := readCSV(t, filepath.Join(target, "data", "sequences", "electricity_demand_profile.csv"))
	want := []string{
		"timeindex;B-d1-profile;BB-d1-profile",
		"2026-01-01 00:00:00;0;0",
		"2026-01-01 01:00:00;0;0",
		"2026-01-01 02:00:00;0;0",
	}
	if !reflect.DeepEqual(profLines, want) {
		t.Errorf("profile CSV = %v, want %v", profLines, want)
	}
}

func TestBuildWithoutTimeindexSkipsMaterialization(t *testing.T) {
	b := newTestBuilder(t)
	bp := loadTestBlueprint(t, "notime", `
elements:
  electricity_demand:
    component: load
    attributes: [amount, bus, profile]
    instances:
      - name: d1
`)
	target := filepath.Join(t.TempDir(), "notime")
	if _, err := b.Build(context.Background(), bp, target); err != nil {
		t.Fatal(err)
	}

	// The inferred companion renders header-only: no columns materialized.
	lines := readCSV(t, filepath.Join(target, "data", "sequences", "electricity_demand_profile.csv"))
	if !reflect.DeepEqual(lines, []string{"timeindex"}) {
		t.Errorf("profile CSV = %v, want header only", lines)
	}
}

func TestBuildExplicitSequencesZeroFilled(t *testing.T) {
	b := newTestBuilder(t)
	bp := loadTestBlueprint(t, "seqs", `
elements:
  electricity_demand:
    component: load
    attributes: [amount, bus]
    instances:
      - name: d1
sequences:
  custom_profile:
    columns: [x, y]
timeindex:
  start: 2026-01-01
  periods: 2
`)
	target := filepath.Join(t.TempDir(), "seqs")
	if _, err := b.Build(context.Background(), bp, target); err != nil {
		t.Fatal(err)
	}

	lines := readCSV(t, filepath.Join(target, "data", "sequences", "custom_profile.csv"))
	want := []string{
		"timeindex;x;y",
		"2026-01-01 00:00:00;0;0",
		"2026-01-01 01:00:00;0;0",
	}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("sequence CSV = %v, want %v", lines, want)
	}
}

func TestBuildRoundTrip(t *testing.T) {
	b := newTestBuilder(t)
	bp := loadTestBlueprint(t, "rt", `
elements:
  electricity_demand:
    component: load
    instances:
      - name: d1
        bus: electricity
timeindex:
  start: 2026-01-01
  periods: 2
`)
	target := filepath.Join(t.TempDir(), "rt")
	pkg, err := b.Build(context.Background(), bp, target)
	if err != nil {
		t.Fatal(err)
	}

	loaded, err := pack.LoadPackage(target)
	if err != nil {
		t.Fatal(err)
	}
	var loadedNames []string
	for _, r := range loaded.Resources {
		loadedNames = append(loadedNames, r.Name)
	}
	if !reflect.DeepEqual(loadedNames, pkg.ResourceNames()) {
		t.Errorf("loaded names %v != built names %v", loadedNames, pkg.ResourceNames())
	}
}
