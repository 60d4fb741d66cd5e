// Package scenario turns declarative blueprint documents into rendered
// datapackages: it drives the element and sequence builders through region
// fan-out and default foreign-key synthesis, then runs the package inference
// passes and renders the result.
package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/empack/empack/pkg/errdefs"
)

var validate = validator.New()

// TimeindexSpec declares the global time index of a blueprint.
type TimeindexSpec struct {
	// Start is the first time step ("2026-01-01" or "2026-01-01 00:00:00").
	Start string `yaml:"start" validate:"required"`

	// Periods is the number of hourly steps.
	Periods int `yaml:"periods" validate:"required,gt=0"`
}

// startLayouts are the accepted spellings of TimeindexSpec.Start.
var startLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// StartTime parses the declared start into a UTC timestamp.
func (t *TimeindexSpec) StartTime() (time.Time, error) {
	for _, layout := range startLayouts {
		if ts, err := time.ParseInLocation(layout, t.Start, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errdefs.SchemaViolation("unparseable timeindex start %q", t.Start)
}

// ElementSpec declares one element resource of a blueprint.
type ElementSpec struct {
	// Component names the component type the resource derives from.
	Component string `yaml:"component" validate:"required"`

	// Attributes is the selected attribute subset; empty means all declared.
	Attributes []string `yaml:"attributes"`

	// Sequences extends the component's sequence-link attributes.
	Sequences []string `yaml:"sequences"`

	// Regions overrides the global region list for this resource. A nil
	// slice means "use the global list"; an explicitly empty one disables
	// fan-out entirely.
	Regions []string `yaml:"regions"`

	// Instances are the raw entity rows before fan-out.
	Instances []map[string]any `yaml:"instances"`
}

// SequenceSpec declares one explicitly materialized sequence resource.
type SequenceSpec struct {
	// Columns are placeholder column names, zero-filled when a global time
	// index is configured.
	Columns []string `yaml:"columns"`
}

// ElementDef pairs a resource name with its spec, in document order.
type ElementDef struct {
	Name string
	Spec ElementSpec
}

// SequenceDef pairs a sequence resource name with its spec, in document
// order.
type SequenceDef struct {
	Name string
	Spec SequenceSpec
}

// Blueprint is a parsed scenario document. Element and sequence declaration
// order is preserved; it is the resource insertion order of the package.
type Blueprint struct {
	Name      string
	Regions   []string
	Elements  []ElementDef
	Sequences []SequenceDef
	Timeindex *TimeindexSpec
}

// UnmarshalYAML decodes a blueprint document, keeping the declaration order
// of elements and sequences.
func (b *Blueprint) UnmarshalYAML(node *yaml.Node) error {
	var doc struct {
		Regions   []string       `yaml:"regions"`
		Elements  yaml.Node      `yaml:"elements"`
		Sequences yaml.Node      `yaml:"sequences"`
		Timeindex *TimeindexSpec `yaml:"timeindex"`
	}
	if err := node.Decode(&doc); err != nil {
		return err
	}
	b.Regions = doc.Regions
	b.Timeindex = doc.Timeindex

	if doc.Elements.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(doc.Elements.Content); i += 2 {
			var spec ElementSpec
			if err := doc.Elements.Content[i+1].Decode(&spec); err != nil {
				return fmt.Errorf("element %q: %w", doc.Elements.Content[i].Value, err)
			}
			b.Elements = append(b.Elements, ElementDef{Name: doc.Elements.Content[i].Value, Spec: spec})
		}
	}
	if doc.Sequences.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(doc.Sequences.Content); i += 2 {
			var spec SequenceSpec
			if err := doc.Sequences.Content[i+1].Decode(&spec); err != nil {
				return fmt.Errorf("sequence %q: %w", doc.Sequences.Content[i].Value, err)
			}
			b.Sequences = append(b.Sequences, SequenceDef{Name: doc.Sequences.Content[i].Value, Spec: spec})
		}
	}
	return nil
}

// Validate checks the blueprint against its structural constraints.
func (b *Blueprint) Validate() error {
	for _, def := range b.Elements {
		if err := validate.Struct(def.Spec); err != nil {
			return errdefs.Wrap(
				errdefs.SchemaViolation("invalid element %q", def.Name).WithResource(def.Name), err)
		}
	}
	if b.Timeindex != nil {
		if err := validate.Struct(b.Timeindex); err != nil {
			return errdefs.Wrap(errdefs.SchemaViolation("invalid timeindex"), err)
		}
		if _, err := b.Timeindex.StartTime(); err != nil {
			return err
		}
	}
	return nil
}

// LoadBlueprint reads and validates a blueprint file; the package name is
// the file stem.
func LoadBlueprint(path string) (*Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading blueprint: %w", err)
	}

	var bp Blueprint
	if err := yaml.Unmarshal(data, &bp); err != nil {
		return nil, errdefs.Wrap(errdefs.SchemaViolation("malformed blueprint %s", path), err)
	}
	bp.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	if err := bp.Validate(); err != nil {
		return nil, err
	}
	return &bp, nil
}
