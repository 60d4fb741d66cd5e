package components

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/empack/empack/pkg/errdefs"
	"github.com/empack/empack/pkg/telemetry"
)

// Registry loads component-type definitions by name from a directory of
// YAML files. Loading is pure and side-effect free; loaded components are
// cached and immutable.
type Registry struct {
	dir  string
	log  *telemetry.Logger
	gate *schemaGate

	mu    sync.RWMutex
	cache map[string]*Component
}

// NewRegistry creates a registry over the given definitions directory.
func NewRegistry(dir string, logger *telemetry.Logger) (*Registry, error) {
	if logger == nil {
		logger = telemetry.Discard()
	}
	gate, err := newSchemaGate()
	if err != nil {
		return nil, fmt.Errorf("compiling component schema: %w", err)
	}
	return &Registry{
		dir:   dir,
		log:   logger.NewComponentLogger("components"),
		gate:  gate,
		cache: make(map[string]*Component),
	}, nil
}

// Load returns the component type with the given name. It fails with
// DefinitionNotFound when no definition file exists and with SchemaViolation
// when the file content is malformed or out of schema.
func (r *Registry) Load(name string) (*Component, error) {
	r.mu.RLock()
	if c, ok := r.cache[name]; ok {
		r.mu.RUnlock()
		return c, nil
	}
	r.mu.RUnlock()

	path := filepath.Join(r.dir, name+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errdefs.DefinitionNotFound("no definition for component %q in %s", name, r.dir)
		}
		return nil, fmt.Errorf("reading component definition %q: %w", name, err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errdefs.Wrap(errdefs.SchemaViolation("malformed component definition %q", name), err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if err := r.gate.check(name, doc); err != nil {
		return nil, err
	}

	c, err := decodeComponent(name, data)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[name] = c
	r.mu.Unlock()

	r.log.Debugf("loaded component %q (%d attributes)", name, len(c.attrOrder))
	return c, nil
}

// List returns the names of all available component definitions, sorted.
func (r *Registry) List() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("listing components in %s: %w", r.dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names, nil
}
