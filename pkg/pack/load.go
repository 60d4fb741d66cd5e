package pack

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/empack/empack/pkg/errdefs"
)

// LoadedResource is one resource as read back from a rendered descriptor.
type LoadedResource struct {
	// Name is the resource name.
	Name string

	// Path is the package-relative path of the delimited file.
	Path string

	// PrimaryKey is "name" for element resources, "timeindex" for sequences.
	PrimaryKey string

	// Fields are the field names in schema order.
	Fields []string

	// ForeignKeys are the declared foreign keys, informational only.
	ForeignKeys []ForeignKey
}

// IsSequence reports whether the resource is a sequence table.
func (r *LoadedResource) IsSequence() bool {
	return strings.Contains(filepath.ToSlash(r.Path), "sequences")
}

// FilePath returns the absolute path of the resource file under dir.
func (r *LoadedResource) FilePath(dir string) string {
	return filepath.Join(dir, filepath.FromSlash(r.Path))
}

// LoadedPackage is a rendered package read back from disk, as consumed by
// the override engine.
type LoadedPackage struct {
	// Dir is the package root directory.
	Dir string

	// Name is the package name from the descriptor.
	Name string

	// Resources are the declared resources in descriptor order.
	Resources []*LoadedResource
}

// Resource looks up a loaded resource by name.
func (p *LoadedPackage) Resource(name string) (*LoadedResource, bool) {
	for _, r := range p.Resources {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// ElementResources returns the element resources in descriptor order.
func (p *LoadedPackage) ElementResources() []*LoadedResource {
	var out []*LoadedResource
	for _, r := range p.Resources {
		if !r.IsSequence() {
			out = append(out, r)
		}
	}
	return out
}

// LoadPackage opens the descriptor of a rendered package.
func LoadPackage(dir string) (*LoadedPackage, error) {
	data, err := os.ReadFile(filepath.Join(dir, DescriptorFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errdefs.ResourceNotFound("no package descriptor in %s", dir)
		}
		return nil, fmt.Errorf("reading package descriptor: %w", err)
	}

	var desc packageDescriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, errdefs.Wrap(errdefs.SchemaViolation("malformed package descriptor in %s", dir), err)
	}

	pkg := &LoadedPackage{Dir: dir, Name: desc.Name}
	for _, rd := range desc.Resources {
		lr := &LoadedResource{
			Name:       rd.Name,
			Path:       rd.Path,
			PrimaryKey: rd.Schema.PrimaryKey,
		}
		for _, f := range rd.Schema.Fields {
			lr.Fields = append(lr.Fields, f.Name)
		}
		for _, fk := range rd.Schema.ForeignKeys {
			lr.ForeignKeys = append(lr.ForeignKeys, ForeignKey{
				Fields: fk.Fields,
				Reference: ForeignKeyReference{
					Resource: fk.Reference.Resource,
					Fields:   fk.Reference.Fields,
				},
			})
		}
		pkg.Resources = append(pkg.Resources, lr)
	}
	return pkg, nil
}
