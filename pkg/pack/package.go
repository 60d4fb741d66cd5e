package pack

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/empack/empack/pkg/components"
	"github.com/empack/empack/pkg/errdefs"
	"github.com/empack/empack/pkg/telemetry"
)

// DescriptorFile is the name of the package descriptor.
const DescriptorFile = "datapackage.json"

// Resource is a named table held by a package: an element or a sequence
// resource.
type Resource interface {
	Name() string
	Schema() *Schema
	IsSequence() bool
	Description() string
	WriteCSV(w io.Writer) error
}

// Package owns the ordered resource collection, runs the inference passes
// and renders everything to disk.
type Package struct {
	name      string
	resources *OrderedMap[Resource]
	log       *telemetry.Logger
	metrics   *telemetry.Metrics
}

// NewPackage creates an empty package. logger and metrics may be nil.
func NewPackage(name string, logger *telemetry.Logger, metrics *telemetry.Metrics) *Package {
	if logger == nil {
		logger = telemetry.Discard()
	}
	if metrics == nil {
		metrics, _ = telemetry.NewMetrics(telemetry.MetricsConfig{})
	}
	return &Package{
		name:      name,
		resources: NewOrderedMap[Resource](),
		log:       logger.NewComponentLogger("pack"),
		metrics:   metrics,
	}
}

// Name returns the package name.
func (p *Package) Name() string { return p.name }

// AddResource appends a resource. Resource names are unique within a
// package; duplicates fail with AlreadyExists.
func (p *Package) AddResource(r Resource) error {
	if p.resources.Has(r.Name()) {
		return errdefs.AlreadyExists("resource %q already in package %q", r.Name(), p.name)
	}
	p.resources.Set(r.Name(), r)
	return nil
}

// Resource looks up a resource by name.
func (p *Package) Resource(name string) (Resource, bool) {
	return p.resources.Get(name)
}

// ResourceNames returns the resource names in insertion order.
func (p *Package) ResourceNames() []string {
	return p.resources.Keys()
}

// ElementResources returns the element resources in insertion order.
func (p *Package) ElementResources() []*ElementResource {
	var out []*ElementResource
	_ = p.resources.Each(func(_ string, r Resource) error {
		if er, ok := r.(*ElementResource); ok {
			out = append(out, er)
		}
		return nil
	})
	return out
}

// InferSequences ensures a companion "<resource>_profile" sequence resource
// for every element resource with at least one sequence-link attribute
// present in its schema. Explicitly defined resources of that name always
// win over inferred ones. timeindex may be nil (canonical default).
// Idempotent.
func (p *Package) InferSequences(timeindex []time.Time) error {
	for _, er := range p.ElementResources() {
		if len(er.SequenceFieldsInSchema()) == 0 {
			continue
		}
		profile := er.Name() + "_profile"
		if p.resources.Has(profile) {
			continue
		}
		if err := p.AddResource(NewSequenceResource(profile, timeindex)); err != nil {
			return err
		}
		p.log.Debugf("inferred sequence resource %q", profile)
	}
	return nil
}

// InferBusses ensures a "bus" element resource exists, synthesizing a
// minimal one when absent, and appends one bus instance per bus-link value
// observed across all element instances (resource order, then instance
// order). Each name is added at most once. Idempotent.
func (p *Package) InferBusses() error {
	bus, err := p.ensureBusResource()
	if err != nil {
		return err
	}

	for _, er := range p.ElementResources() {
		if er == bus {
			continue
		}
		busAttrs := er.Component().Busses()
		if len(busAttrs) == 0 {
			continue
		}
		for _, inst := range er.Instances() {
			for _, attr := range busAttrs {
				v, ok := inst[attr]
				if !ok || v == nil {
					continue
				}
				name, ok := v.(string)
				if !ok || name == "" || bus.HasInstance(name) {
					continue
				}
				row := Instance{"name": name}
				if bus.Schema().HasField("balanced") {
					row["balanced"] = true
				}
				if err := bus.AddInstance(row); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// ensureBusResource returns the "bus" element resource, creating a minimal
// synthesized one when the package has none.
func (p *Package) ensureBusResource() (*ElementResource, error) {
	if r, ok := p.resources.Get("bus"); ok {
		er, ok := r.(*ElementResource)
		if !ok {
			return nil, errdefs.SchemaViolation("resource %q is not an element resource", "bus")
		}
		return er, nil
	}

	bus, err := NewElementResource(components.SyntheticBus(), "bus", nil, nil)
	if err != nil {
		return nil, err
	}
	if err := p.AddResource(bus); err != nil {
		return nil, err
	}
	p.log.Debug("synthesized bus resource")
	return bus, nil
}

// resourcePath returns the package-relative path of a resource file.
func resourcePath(r Resource) string {
	kind := "elements"
	if r.IsSequence() {
		kind = "sequences"
	}
	return filepath.Join("data", kind, r.Name()+".csv")
}

// Render materializes the package under dir: one delimited file per
// resource plus the descriptor. It refuses to merge into a directory that
// already holds a package (AlreadyExists). The descriptor is written last,
// after every resource file exists.
func (p *Package) Render(dir string) error {
	if _, err := os.Stat(filepath.Join(dir, DescriptorFile)); err == nil {
		return errdefs.AlreadyExists("target %s already holds a package", dir)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking render target: %w", err)
	}

	for _, sub := range []string{
		filepath.Join(dir, "data", "elements"),
		filepath.Join(dir, "data", "sequences"),
	} {
		if err := os.MkdirAll(sub, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	descriptor := packageDescriptor{Name: p.name}
	err := p.resources.Each(func(_ string, r Resource) error {
		rel := resourcePath(r)
		if err := writeResourceFile(filepath.Join(dir, rel), r); err != nil {
			return fmt.Errorf("rendering resource %q: %w", r.Name(), err)
		}

		kind := "element"
		if r.IsSequence() {
			kind = "sequence"
		}
		p.metrics.RecordResourceRendered(kind)

		descriptor.Resources = append(descriptor.Resources, resourceDescriptor{
			Path:        filepath.ToSlash(rel),
			Name:        r.Name(),
			Schema:      r.Schema().descriptor(),
			Description: r.Description(),
		})
		return nil
	})
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(descriptor, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding descriptor: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, DescriptorFile), data, 0644); err != nil {
		return fmt.Errorf("writing descriptor: %w", err)
	}

	p.log.Infof("rendered package %q with %d resources to %s", p.name, p.resources.Len(), dir)
	return nil
}

func writeResourceFile(path string, r Resource) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
