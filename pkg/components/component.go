// Package components loads the immutable component-type definitions that
// element resources are derived from. Definitions are YAML documents in a
// directory, one per component type, validated against a built-in CUE schema
// before being decoded.
package components

import (
	"gopkg.in/yaml.v3"

	"github.com/empack/empack/pkg/errdefs"
)

// Attribute describes one declared attribute of a component type.
type Attribute struct {
	// Type is the semantic type (str, float, int, bool, dict, datetime).
	Type string `yaml:"type"`

	// Description is free-form documentation carried into the descriptor.
	Description string `yaml:"description"`

	// Unit is the physical unit carried into the descriptor.
	Unit string `yaml:"unit"`
}

// Component is an immutable component-type definition. Declaration order of
// attributes is preserved; it determines default schema order downstream.
type Component struct {
	name      string
	attrOrder []string
	attrs     map[string]Attribute
	busses    []string
	sequences []string
}

// Name returns the component-type name.
func (c *Component) Name() string { return c.name }

// AttributeNames returns the declared attribute names in declaration order.
func (c *Component) AttributeNames() []string {
	out := make([]string, len(c.attrOrder))
	copy(out, c.attrOrder)
	return out
}

// Attribute looks up a declared attribute by name.
func (c *Component) Attribute(name string) (Attribute, bool) {
	a, ok := c.attrs[name]
	return a, ok
}

// HasAttribute reports whether name is a declared attribute.
func (c *Component) HasAttribute(name string) bool {
	_, ok := c.attrs[name]
	return ok
}

// Busses returns the bus-link attribute names.
func (c *Component) Busses() []string {
	out := make([]string, len(c.busses))
	copy(out, c.busses)
	return out
}

// Sequences returns the sequence-link attribute names.
func (c *Component) Sequences() []string {
	out := make([]string, len(c.sequences))
	copy(out, c.sequences)
	return out
}

// decodeComponent decodes a validated definition document, keeping the
// attribute declaration order from the YAML source.
func decodeComponent(name string, data []byte) (*Component, error) {
	var doc struct {
		Attributes yaml.Node `yaml:"attributes"`
		Busses     []string  `yaml:"busses"`
		Sequences  []string  `yaml:"sequences"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errdefs.Wrap(errdefs.SchemaViolation("malformed component definition %q", name), err)
	}

	c := &Component{
		name:      name,
		attrs:     make(map[string]Attribute),
		busses:    doc.Busses,
		sequences: doc.Sequences,
	}

	switch doc.Attributes.Kind {
	case 0:
		return c, nil
	case yaml.MappingNode:
	default:
		if doc.Attributes.Tag == "!!null" {
			return c, nil
		}
		return nil, errdefs.SchemaViolation("component %q: attributes must be a mapping", name)
	}

	// Mapping node content alternates key, value.
	for i := 0; i+1 < len(doc.Attributes.Content); i += 2 {
		keyNode := doc.Attributes.Content[i]
		valNode := doc.Attributes.Content[i+1]

		var attr Attribute
		if err := valNode.Decode(&attr); err != nil {
			return nil, errdefs.Wrap(
				errdefs.SchemaViolation("component %q: attribute %q", name, keyNode.Value), err)
		}
		c.attrOrder = append(c.attrOrder, keyNode.Value)
		c.attrs[keyNode.Value] = attr
	}

	return c, nil
}

// SyntheticBus is the minimal built-in bus component used when a package
// needs a bus resource and no explicit definition provides one.
func SyntheticBus() *Component {
	return &Component{
		name:      "bus",
		attrOrder: []string{"name", "type", "region", "balanced"},
		attrs: map[string]Attribute{
			"name":     {Type: "str", Description: "Unique bus name"},
			"type":     {Type: "str", Description: "Component type"},
			"region":   {Type: "str", Description: "Region the bus balances"},
			"balanced": {Type: "bool", Description: "Whether in- and outflows must balance"},
		},
	}
}
