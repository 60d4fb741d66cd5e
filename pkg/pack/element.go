package pack

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/empack/empack/pkg/components"
	"github.com/empack/empack/pkg/errdefs"
)

// Instance is one row of an element resource.
type Instance map[string]any

// ElementResource is a named table of entity instances derived from a
// component type. Rows are appended in order and never removed; every row
// carries "name" and "type", and "type" always equals the component name.
type ElementResource struct {
	name      string
	component *components.Component
	schema    *Schema
	sequences []string
	instances []Instance
	names     map[string]bool
}

// NewElementResource builds an element resource from a component type and a
// selected attribute subset. A nil or empty selection means all declared
// attributes. "type" and "name" are always included. extraSequences extends
// the component's sequence-link attributes for this resource.
func NewElementResource(component *components.Component, name string, selected []string, extraSequences []string) (*ElementResource, error) {
	if len(selected) == 0 {
		selected = component.AttributeNames()
	}

	r := &ElementResource{
		name:      name,
		component: component,
		schema:    NewSchema("name"),
		names:     make(map[string]bool),
	}

	// Ordered union of component sequence links and resource extras.
	seen := make(map[string]bool)
	for _, s := range component.Sequences() {
		if !seen[s] {
			seen[s] = true
			r.sequences = append(r.sequences, s)
		}
	}
	for _, s := range extraSequences {
		if !seen[s] {
			seen[s] = true
			r.sequences = append(r.sequences, s)
		}
	}

	for _, attrName := range selected {
		if err := r.addField(attrName); err != nil {
			return nil, err
		}
	}
	// "type" and "name" trail the selection when not explicitly selected.
	for _, required := range []string{"type", "name"} {
		if !r.schema.HasField(required) {
			r.schema.AddField(Field{Name: required, Type: "string"})
		}
	}

	r.deriveForeignKeys()
	return r, nil
}

// addField appends one selected attribute as a schema field.
func (r *ElementResource) addField(attrName string) error {
	attr, ok := r.component.Attribute(attrName)
	if !ok {
		// "type" and "name" are structural; they get defaults even when the
		// component does not declare them.
		if attrName == "type" || attrName == "name" {
			r.schema.AddField(Field{Name: attrName, Type: "string"})
			return nil
		}
		return errdefs.SchemaViolation(
			"attribute %q not found in component %q", attrName, r.component.Name(),
		).WithResource(r.name)
	}

	fieldType := DescriptorType(attr.Type)
	if r.isSequenceAttr(attrName) {
		// Sequence-link fields hold profile references, persisted as strings.
		fieldType = "string"
	}

	r.schema.AddField(Field{
		Name:        attrName,
		Type:        fieldType,
		Description: attr.Description,
		Unit:        attr.Unit,
	})
	return nil
}

// deriveForeignKeys records the informational foreign keys: every bus-link
// attribute points at the "bus" resource, every sequence-link attribute at
// this resource's companion profile.
func (r *ElementResource) deriveForeignKeys() {
	for _, bus := range r.component.Busses() {
		r.schema.ForeignKeys = append(r.schema.ForeignKeys, ForeignKey{
			Fields:    bus,
			Reference: ForeignKeyReference{Resource: "bus", Fields: "name"},
		})
	}
	for _, seq := range r.sequences {
		r.schema.ForeignKeys = append(r.schema.ForeignKeys, ForeignKey{
			Fields:    seq,
			Reference: ForeignKeyReference{Resource: r.name + "_profile"},
		})
	}
}

// Name returns the resource name.
func (r *ElementResource) Name() string { return r.name }

// Component returns the owning component type.
func (r *ElementResource) Component() *components.Component { return r.component }

// Schema returns the resource schema.
func (r *ElementResource) Schema() *Schema { return r.schema }

// IsSequence reports the resource kind; element resources return false.
func (r *ElementResource) IsSequence() bool { return false }

// Description returns the descriptor description for this resource.
func (r *ElementResource) Description() string {
	return fmt.Sprintf("Derived from component: %s", r.component.Name())
}

// Sequences returns the sequence-link attribute names for this resource.
func (r *ElementResource) Sequences() []string {
	out := make([]string, len(r.sequences))
	copy(out, r.sequences)
	return out
}

func (r *ElementResource) isSequenceAttr(name string) bool {
	for _, s := range r.sequences {
		if s == name {
			return true
		}
	}
	return false
}

// SequenceFieldsInSchema returns the sequence-link attributes that are
// actually present as schema fields.
func (r *ElementResource) SequenceFieldsInSchema() []string {
	var out []string
	for _, s := range r.sequences {
		if r.schema.HasField(s) {
			out = append(out, s)
		}
	}
	return out
}

// AddInstance appends one row. It fails with SchemaViolation when "name" is
// missing, when a present "type" does not equal the component name, or when
// the row carries an undeclared key. Duplicate names are accepted.
func (r *ElementResource) AddInstance(row Instance) error {
	name, ok := row["name"]
	if !ok || name == nil || name == "" {
		return errdefs.SchemaViolation("instance without a name").WithResource(r.name)
	}

	if typ, ok := row["type"]; ok {
		if typ != r.component.Name() {
			return errdefs.SchemaViolation(
				"instance %v has type %v, component is %q", name, typ, r.component.Name(),
			).WithResource(r.name)
		}
	}

	for key := range row {
		if !r.schema.HasField(key) {
			return errdefs.SchemaViolation(
				"instance %v has undeclared attribute %q", name, key,
			).WithResource(r.name)
		}
	}

	stored := make(Instance, len(row)+1)
	for k, v := range row {
		stored[k] = v
	}
	if _, ok := stored["type"]; !ok {
		stored["type"] = r.component.Name()
	}

	r.instances = append(r.instances, stored)
	if s, ok := stored["name"].(string); ok {
		r.names[s] = true
	}
	return nil
}

// Instances returns the rows in insertion order. The returned slice shares
// the stored rows; callers must not mutate them.
func (r *ElementResource) Instances() []Instance {
	return r.instances
}

// HasInstance reports whether a row with the given name exists.
func (r *ElementResource) HasInstance(name string) bool {
	return r.names[name]
}

// WriteCSV writes the header and one row per instance, schema-ordered,
// missing values empty, ';'-delimited.
func (r *ElementResource) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	header := r.schema.FieldNames()
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for _, inst := range r.instances {
		for i, field := range header {
			cell, err := formatValue(inst[field])
			if err != nil {
				return fmt.Errorf("resource %s: %w", r.name, err)
			}
			record[i] = cell
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
