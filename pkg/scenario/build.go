package scenario

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/empack/empack/pkg/components"
	"github.com/empack/empack/pkg/errdefs"
	"github.com/empack/empack/pkg/pack"
	"github.com/empack/empack/pkg/telemetry"
)

// Builder instantiates blueprints into rendered datapackages.
type Builder struct {
	registry *components.Registry
	log      *telemetry.Logger
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
}

// NewBuilder creates a builder. logger, metrics and tracer may be nil.
func NewBuilder(registry *components.Registry, logger *telemetry.Logger, metrics *telemetry.Metrics, tracer *telemetry.Tracer) *Builder {
	if logger == nil {
		logger = telemetry.Discard()
	}
	if metrics == nil {
		metrics, _ = telemetry.NewMetrics(telemetry.MetricsConfig{})
	}
	if tracer == nil {
		tracer, _ = telemetry.NewTracer(telemetry.TracingConfig{}, "empack", "dev")
	}
	return &Builder{
		registry: registry,
		log:      logger.NewComponentLogger("scenario"),
		metrics:  metrics,
		tracer:   tracer,
	}
}

// Build instantiates the blueprint and renders the package under targetDir.
func (b *Builder) Build(ctx context.Context, bp *Blueprint, targetDir string) (*pack.Package, error) {
	runID := uuid.NewString()
	log := b.log.WithRunID(runID).WithField("package", bp.Name)

	ctx, span := b.tracer.Start(ctx, "scenario.build",
		attribute.String("package", bp.Name),
		attribute.String("run_id", runID),
	)
	defer span.End()

	started := time.Now()
	pkg, err := b.build(ctx, bp, targetDir, log)
	if err != nil {
		telemetry.RecordError(span, err)
		b.metrics.RecordPackageBuilt("error", time.Since(started).Seconds())
		return nil, err
	}
	b.metrics.RecordPackageBuilt("ok", time.Since(started).Seconds())
	log.Infof("built package %q in %s", bp.Name, time.Since(started))
	return pkg, nil
}

func (b *Builder) build(ctx context.Context, bp *Blueprint, targetDir string, log *telemetry.Logger) (*pack.Package, error) {
	var timeindex []time.Time
	if bp.Timeindex != nil {
		start, err := bp.Timeindex.StartTime()
		if err != nil {
			return nil, err
		}
		timeindex = pack.HourlyRange(start, bp.Timeindex.Periods)
	}

	pkg := pack.NewPackage(bp.Name, log, b.metrics)

	_, span := b.tracer.Start(ctx, "scenario.elements")
	err := b.createElements(pkg, bp)
	telemetry.RecordError(span, err)
	span.End()
	if err != nil {
		return nil, err
	}

	if err := pkg.InferSequences(timeindex); err != nil {
		return nil, err
	}

	_, span = b.tracer.Start(ctx, "scenario.sequences")
	err = b.createSequences(pkg, bp, timeindex)
	telemetry.RecordError(span, err)
	span.End()
	if err != nil {
		return nil, err
	}

	if err := pkg.InferBusses(); err != nil {
		return nil, err
	}

	_, span = b.tracer.Start(ctx, "scenario.render")
	err = pkg.Render(targetDir)
	telemetry.RecordError(span, err)
	span.End()
	if err != nil {
		return nil, err
	}

	return pkg, nil
}

// createElements adds one element resource per blueprint element, running
// region fan-out and default sequence foreign-key synthesis.
func (b *Builder) createElements(pkg *pack.Package, bp *Blueprint) error {
	for _, def := range bp.Elements {
		component, err := b.registry.Load(def.Spec.Component)
		if err != nil {
			return err
		}

		selected := def.Spec.Attributes
		if len(selected) == 0 {
			selected = component.AttributeNames()
		}

		// Resource-level region list wins over the global one; nil means
		// "no override", an explicitly empty list disables fan-out.
		regions := bp.Regions
		if def.Spec.Regions != nil {
			regions = def.Spec.Regions
		}
		if len(regions) > 0 && !contains(selected, "region") {
			selected = append(append([]string{}, selected...), "region")
		}

		resource, err := pack.NewElementResource(component, def.Name, selected, def.Spec.Sequences)
		if err != nil {
			return err
		}

		if err := b.addInstances(resource, def, selected, regions); err != nil {
			return err
		}
		if err := pkg.AddResource(resource); err != nil {
			return err
		}
	}
	return nil
}

// addInstances validates, fans out and appends the raw instances of one
// element definition.
func (b *Builder) addInstances(resource *pack.ElementResource, def ElementDef, selected, regions []string) error {
	busAttrs := resource.Component().Busses()

	for _, raw := range def.Spec.Instances {
		// Raw keys are checked against the pre-replication selection; the
		// fan-out may only introduce fields the selection already carries.
		if err := checkInstanceKeys(raw, selected, def.Name); err != nil {
			return err
		}
		if raw["name"] == nil || raw["name"] == "" {
			return errdefs.SchemaViolation("instance without a name").WithResource(def.Name)
		}

		if regions == nil {
			inst := copyInstance(raw)
			b.addSequenceDefaults(resource, inst)
			if err := resource.AddInstance(inst); err != nil {
				return err
			}
			continue
		}

		for _, region := range regions {
			inst := copyInstance(raw)
			inst["region"] = region
			inst["name"] = fmt.Sprintf("%s-%v", region, raw["name"])
			for _, busAttr := range busAttrs {
				if v, ok := inst[busAttr]; ok && v != nil {
					inst[busAttr] = fmt.Sprintf("%s-%v", region, v)
				}
			}
			b.addSequenceDefaults(resource, inst)
			if err := resource.AddInstance(inst); err != nil {
				return err
			}
		}
	}
	return nil
}

// addSequenceDefaults synthesizes "<name>-profile" for every sequence-link
// attribute present in the schema that the instance omits. Runs after region
// fan-out, so the synthesized value carries the region-qualified name.
func (b *Builder) addSequenceDefaults(resource *pack.ElementResource, inst pack.Instance) {
	for _, seqAttr := range resource.Sequences() {
		if !resource.Schema().HasField(seqAttr) {
			continue
		}
		if _, ok := inst[seqAttr]; ok {
			continue
		}
		inst[seqAttr] = fmt.Sprintf("%v-profile", inst["name"])
	}
}

// createSequences materializes explicit sequence resources, then creates
// companion profiles on demand for unresolved sequence foreign keys. The
// on-demand phase runs only when a global time index is configured.
func (b *Builder) createSequences(pkg *pack.Package, bp *Blueprint, timeindex []time.Time) error {
	for _, def := range bp.Sequences {
		resource := pack.NewSequenceResource(def.Name, timeindex)
		if timeindex != nil {
			for _, column := range def.Spec.Columns {
				if err := resource.AddZeroColumn(column); err != nil {
					return err
				}
			}
		}
		if err := pkg.AddResource(resource); err != nil {
			return err
		}
	}

	if timeindex == nil {
		return nil
	}
	return b.materializeProfiles(pkg, timeindex)
}

// materializeProfiles creates, per unresolved sequence foreign key, the
// referenced companion resource with one zero-filled column per distinct
// referenced value.
func (b *Builder) materializeProfiles(pkg *pack.Package, timeindex []time.Time) error {
	for _, er := range pkg.ElementResources() {
		for _, fk := range er.Schema().ForeignKeys {
			if fk.Reference.Resource == "bus" {
				continue
			}

			referenced := make(map[string]bool)
			for _, inst := range er.Instances() {
				if v, ok := inst[fk.Fields].(string); ok && v != "" {
					referenced[v] = true
				}
			}
			if len(referenced) == 0 {
				continue
			}

			values := make([]string, 0, len(referenced))
			for v := range referenced {
				values = append(values, v)
			}
			sort.Strings(values)

			target, ok := pkg.Resource(fk.Reference.Resource)
			if !ok {
				target = pack.NewSequenceResource(fk.Reference.Resource, timeindex)
				if err := pkg.AddResource(target); err != nil {
					return err
				}
			}
			seq, ok := target.(*pack.SequenceResource)
			if !ok {
				return errdefs.SchemaViolation(
					"foreign key %q of %q references non-sequence resource %q",
					fk.Fields, er.Name(), fk.Reference.Resource)
			}
			for _, v := range values {
				if seq.HasColumn(v) {
					continue
				}
				if err := seq.AddZeroColumn(v); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func checkInstanceKeys(raw map[string]any, selected []string, resourceName string) error {
	for key := range raw {
		// "name" and "type" are structural, always accepted.
		if key == "name" || key == "type" || contains(selected, key) {
			continue
		}
		return errdefs.SchemaViolation(
			"attribute %q not available", key).WithResource(resourceName)
	}
	return nil
}

func copyInstance(raw map[string]any) pack.Instance {
	inst := make(pack.Instance, len(raw)+2)
	for k, v := range raw {
		inst[k] = v
	}
	return inst
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
