// Package pack implements the resource and package model of empack: element
// tables of named entity instances, sequence tables of time-indexed columns,
// and the package assembly that infers companion resources and renders
// everything to delimited files plus a datapackage.json descriptor.
package pack

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// descriptorTypes maps the semantic types used in component definitions to
// the field-type vocabulary of the persisted descriptor. Unknown spellings
// pass through unchanged.
var descriptorTypes = map[string]string{
	"str":      "string",
	"float":    "number",
	"int":      "integer",
	"dict":     "object",
	"bool":     "boolean",
	"datetime": "datetime",
}

// DescriptorType translates a semantic type into a descriptor field type.
func DescriptorType(semantic string) string {
	if t, ok := descriptorTypes[semantic]; ok {
		return t
	}
	if semantic == "" {
		return "string"
	}
	return semantic
}

// Field is one column of a resource schema.
type Field struct {
	Name        string
	Type        string
	Description string
	Unit        string
}

// ForeignKeyReference names the resource (and field) a foreign key points at.
type ForeignKeyReference struct {
	Resource string
	Fields   string
}

// ForeignKey links a source field to a target resource. Informational only;
// referential integrity is not enforced at write time.
type ForeignKey struct {
	Fields    string
	Reference ForeignKeyReference
}

// Schema is an ordered field collection with a primary key and foreign keys.
type Schema struct {
	fields      *OrderedMap[Field]
	PrimaryKey  string
	ForeignKeys []ForeignKey
}

// NewSchema creates an empty schema with the given primary key.
func NewSchema(primaryKey string) *Schema {
	return &Schema{fields: NewOrderedMap[Field](), PrimaryKey: primaryKey}
}

// AddField appends a field; re-adding a name keeps its original position.
func (s *Schema) AddField(f Field) {
	s.fields.Set(f.Name, f)
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	return s.fields.Get(name)
}

// HasField reports whether name is a declared field.
func (s *Schema) HasField(name string) bool {
	return s.fields.Has(name)
}

// FieldNames returns the field names in schema order.
func (s *Schema) FieldNames() []string {
	return s.fields.Keys()
}

// Descriptor JSON model (spec §6 layout).

type customDescriptor struct {
	Unit string `json:"unit"`
}

type fieldDescriptor struct {
	Name        string           `json:"name"`
	Type        string           `json:"type"`
	Description string           `json:"description"`
	Custom      customDescriptor `json:"custom"`
}

type fkReferenceDescriptor struct {
	Resource string `json:"resource"`
	Fields   string `json:"fields,omitempty"`
}

type foreignKeyDescriptor struct {
	Fields    string                `json:"fields"`
	Reference fkReferenceDescriptor `json:"reference"`
}

type schemaDescriptor struct {
	Fields      []fieldDescriptor      `json:"fields"`
	PrimaryKey  string                 `json:"primaryKey"`
	ForeignKeys []foreignKeyDescriptor `json:"foreignKeys,omitempty"`
}

type resourceDescriptor struct {
	Path        string           `json:"path"`
	Name        string           `json:"name"`
	Schema      schemaDescriptor `json:"schema"`
	Description string           `json:"description,omitempty"`
}

type packageDescriptor struct {
	Name      string               `json:"name"`
	Resources []resourceDescriptor `json:"resources"`
}

// descriptor renders the schema into its persisted JSON form.
func (s *Schema) descriptor() schemaDescriptor {
	d := schemaDescriptor{
		Fields:     make([]fieldDescriptor, 0, s.fields.Len()),
		PrimaryKey: s.PrimaryKey,
	}
	_ = s.fields.Each(func(_ string, f Field) error {
		d.Fields = append(d.Fields, fieldDescriptor{
			Name:        f.Name,
			Type:        f.Type,
			Description: f.Description,
			Custom:      customDescriptor{Unit: f.Unit},
		})
		return nil
	})
	for _, fk := range s.ForeignKeys {
		d.ForeignKeys = append(d.ForeignKeys, foreignKeyDescriptor{
			Fields: fk.Fields,
			Reference: fkReferenceDescriptor{
				Resource: fk.Reference.Resource,
				Fields:   fk.Reference.Fields,
			},
		})
	}
	return d
}

// formatValue renders an instance value into its CSV cell. Missing values
// (nil) render empty.
func formatValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32), nil
	case map[string]any, []any:
		// dict/object-typed attributes persist as JSON.
		data, err := json.Marshal(val)
		if err != nil {
			return "", fmt.Errorf("encoding object value: %w", err)
		}
		return string(data), nil
	default:
		return fmt.Sprintf("%v", val), nil
	}
}
