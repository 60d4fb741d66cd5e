package components

import (
	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/empack/empack/pkg/errdefs"
)

// definitionSchema is the CUE schema every component definition document
// must satisfy. Attribute info fields are all optional; unknown keys are
// rejected at both levels.
const definitionSchema = `
close({
	attributes?: [string]: close({
		type?:        string
		description?: string
		unit?:        string
	})
	busses?: [...string]
	sequences?: [...string]
})
`

// schemaGate validates raw definition documents against definitionSchema.
type schemaGate struct {
	ctx    *cue.Context
	schema cue.Value
}

func newSchemaGate() (*schemaGate, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(definitionSchema)
	if err := schema.Err(); err != nil {
		return nil, err
	}
	return &schemaGate{ctx: ctx, schema: schema}, nil
}

// check validates a decoded definition document. The document must already
// be plain Go data (maps, slices, scalars) as produced by yaml.Unmarshal.
func (g *schemaGate) check(name string, doc any) error {
	val := g.ctx.Encode(doc)
	if err := val.Err(); err != nil {
		return errdefs.Wrap(errdefs.SchemaViolation("component %q: cannot encode definition", name), err)
	}

	unified := g.schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return errdefs.Wrap(errdefs.SchemaViolation("component %q: definition does not match schema", name), err)
	}
	return nil
}
