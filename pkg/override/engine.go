package override

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/empack/empack/pkg/errdefs"
	"github.com/empack/empack/pkg/pack"
	"github.com/empack/empack/pkg/telemetry"
)

// Wildcard is the scenario-selector sentinel that matches every requested
// scenario key.
const Wildcard = "ALL"

// Options name the special columns of the override data.
type Options struct {
	// ScenarioColumn is the scenario-selector column. Rows are filtered by
	// it when it is present in the data.
	ScenarioColumn string

	// VarNameColumn and VarValueColumn mark LONG-format element data.
	VarNameColumn  string
	VarValueColumn string

	// SeriesColumn holds the list-valued series of ROWWISE sequence data.
	SeriesColumn string
}

func (o Options) withDefaults() Options {
	if o.ScenarioColumn == "" {
		o.ScenarioColumn = "scenario"
	}
	if o.VarNameColumn == "" {
		o.VarNameColumn = "var_name"
	}
	if o.VarValueColumn == "" {
		o.VarValueColumn = "var_value"
	}
	if o.SeriesColumn == "" {
		o.SeriesColumn = "series"
	}
	return o
}

// Engine merges external override data into rendered packages.
type Engine struct {
	log     *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
}

// NewEngine creates an override engine. logger, metrics and tracer may be
// nil.
func NewEngine(logger *telemetry.Logger, metrics *telemetry.Metrics, tracer *telemetry.Tracer) *Engine {
	if logger == nil {
		logger = telemetry.Discard()
	}
	if metrics == nil {
		metrics, _ = telemetry.NewMetrics(telemetry.MetricsConfig{})
	}
	if tracer == nil {
		tracer, _ = telemetry.NewTracer(telemetry.TracingConfig{}, "empack", "dev")
	}
	return &Engine{
		log:     logger.NewComponentLogger("override"),
		metrics: metrics,
		tracer:  tracer,
	}
}

// table is override or resource data in tabular form.
type table struct {
	header []string
	rows   [][]string
}

func (t table) index(col string) int {
	for i, h := range t.header {
		if h == col {
			return i
		}
	}
	return -1
}

func (t table) cell(row []string, col string) string {
	i := t.index(col)
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// filterScenarios keeps rows whose selector matches a requested scenario key
// or the wildcard. Data without the selector column passes through
// unfiltered.
func filterScenarios(t table, column string, scenarios []string) table {
	idx := t.index(column)
	if idx < 0 {
		return t
	}
	keep := make(map[string]bool, len(scenarios)+1)
	keep[Wildcard] = true
	for _, s := range scenarios {
		keep[s] = true
	}

	out := table{header: t.header}
	for _, row := range t.rows {
		if idx < len(row) && keep[row[idx]] {
			out.rows = append(out.rows, row)
		}
	}
	return out
}

// pivotLong turns var-name/var-value rows into a wide table with one row per
// identity key. Later duplicates of the same (identity, variable) pair win.
func pivotLong(t table, key string, opts Options) table {
	var names []string
	values := make(map[string]map[string]string)
	var vars []string
	seenVar := make(map[string]bool)

	for _, row := range t.rows {
		name := t.cell(row, key)
		variable := t.cell(row, opts.VarNameColumn)
		if name == "" || variable == "" {
			continue
		}
		if _, ok := values[name]; !ok {
			values[name] = make(map[string]string)
			names = append(names, name)
		}
		if !seenVar[variable] {
			seenVar[variable] = true
			vars = append(vars, variable)
		}
		values[name][variable] = t.cell(row, opts.VarValueColumn)
	}

	out := table{header: append([]string{key}, vars...)}
	for _, name := range names {
		row := make([]string, len(out.header))
		row[0] = name
		for i, v := range vars {
			row[i+1] = values[name][v]
		}
		out.rows = append(out.rows, row)
	}
	return out
}

// ApplyElements merges element override data into every element resource of
// the package at pkgDir. Rows are filtered by scenario key, the format is
// auto-detected (LONG when the var-name and var-value columns are present,
// WIDE otherwise), and matching is by "name".
func (e *Engine) ApplyElements(ctx context.Context, pkgDir, dataPath string, scenarios []string, opts Options) error {
	opts = opts.withDefaults()
	started := time.Now()
	runID := uuid.NewString()

	_, span := e.tracer.Start(ctx, "override.elements",
		attribute.String("package", pkgDir),
		attribute.String("data", dataPath),
		attribute.String("run_id", runID),
	)
	defer span.End()

	err := e.applyElements(pkgDir, dataPath, scenarios, opts)
	telemetry.RecordError(span, err)
	e.metrics.RecordOverrideRun("elements", statusOf(err), time.Since(started).Seconds())
	if err == nil {
		e.log.WithRunID(runID).Infof("applied element data %s to %s in %s", dataPath, pkgDir, time.Since(started))
	}
	return err
}

func (e *Engine) applyElements(pkgDir, dataPath string, scenarios []string, opts Options) error {
	pkg, err := pack.LoadPackage(pkgDir)
	if err != nil {
		return err
	}

	header, rows, err := readDelimited(dataPath)
	if err != nil {
		return err
	}
	data := filterScenarios(table{header: header, rows: rows}, opts.ScenarioColumn, scenarios)

	if data.index(opts.VarNameColumn) >= 0 && data.index(opts.VarValueColumn) >= 0 {
		data = pivotLong(data, "name", opts)
		e.log.Debugf("detected LONG format in %s", dataPath)
	}

	excluded := []string{"name", opts.ScenarioColumn, "id"}
	for _, res := range pkg.ElementResources() {
		if err := e.mergeResource(pkg, res, data, "name", excluded); err != nil {
			return err
		}
	}
	return nil
}

// ApplySequence merges WIDE sequence override data into the named sequence
// resource, matching rows on "timeindex".
func (e *Engine) ApplySequence(ctx context.Context, pkgDir, dataPath, resourceName string, scenarios []string, opts Options) error {
	opts = opts.withDefaults()
	started := time.Now()
	runID := uuid.NewString()

	_, span := e.tracer.Start(ctx, "override.sequence",
		attribute.String("package", pkgDir),
		attribute.String("resource", resourceName),
		attribute.String("run_id", runID),
	)
	defer span.End()

	err := e.applySequence(pkgDir, dataPath, resourceName, scenarios, opts)
	telemetry.RecordError(span, err)
	e.metrics.RecordOverrideRun("sequence", statusOf(err), time.Since(started).Seconds())
	if err == nil {
		e.log.WithRunID(runID).Infof("applied sequence data %s to %s/%s in %s", dataPath, pkgDir, resourceName, time.Since(started))
	}
	return err
}

func (e *Engine) applySequence(pkgDir, dataPath, resourceName string, scenarios []string, opts Options) error {
	pkg, err := pack.LoadPackage(pkgDir)
	if err != nil {
		return err
	}
	res, ok := pkg.Resource(resourceName)
	if !ok {
		return errdefs.ResourceNotFound("resource %q not found in package %q", resourceName, pkg.Name)
	}

	header, rows, err := readDelimited(dataPath)
	if err != nil {
		return err
	}
	data := filterScenarios(table{header: header, rows: rows}, opts.ScenarioColumn, scenarios)

	excluded := []string{"timeindex", opts.ScenarioColumn}
	return e.mergeResource(pkg, res, data, "timeindex", excluded)
}

// ApplySequenceRowwise merges ROWWISE sequence override data: one row per
// variable name paired with a list-valued series, applied positionally by
// index order, not by timestamp.
func (e *Engine) ApplySequenceRowwise(ctx context.Context, pkgDir, dataPath, resourceName string, scenarios []string, opts Options) error {
	opts = opts.withDefaults()
	started := time.Now()
	runID := uuid.NewString()

	_, span := e.tracer.Start(ctx, "override.sequence_rowwise",
		attribute.String("package", pkgDir),
		attribute.String("resource", resourceName),
		attribute.String("run_id", runID),
	)
	defer span.End()

	err := e.applySequenceRowwise(pkgDir, dataPath, resourceName, scenarios, opts)
	telemetry.RecordError(span, err)
	e.metrics.RecordOverrideRun("sequence_rowwise", statusOf(err), time.Since(started).Seconds())
	if err == nil {
		e.log.WithRunID(runID).Infof("applied rowwise data %s to %s/%s in %s", dataPath, pkgDir, resourceName, time.Since(started))
	}
	return err
}

func (e *Engine) applySequenceRowwise(pkgDir, dataPath, resourceName string, scenarios []string, opts Options) error {
	pkg, err := pack.LoadPackage(pkgDir)
	if err != nil {
		return err
	}
	res, ok := pkg.Resource(resourceName)
	if !ok {
		return errdefs.ResourceNotFound("resource %q not found in package %q", resourceName, pkg.Name)
	}

	header, rows, err := readDelimited(dataPath)
	if err != nil {
		return err
	}
	data := filterScenarios(table{header: header, rows: rows}, opts.ScenarioColumn, scenarios)
	if data.index(opts.VarNameColumn) < 0 || data.index(opts.SeriesColumn) < 0 {
		return errdefs.SchemaViolation(
			"rowwise data %s needs %q and %q columns", dataPath, opts.VarNameColumn, opts.SeriesColumn)
	}

	path := res.FilePath(pkg.Dir)
	resHeader, resRows, err := readDelimited(path)
	if err != nil {
		return err
	}
	target := table{header: resHeader, rows: resRows}

	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	if err := ws.importTable("resource_table", resHeader, resRows); err != nil {
		return err
	}

	applied := 0
	for _, row := range data.rows {
		variable := data.cell(row, opts.VarNameColumn)
		if variable == "timeindex" || target.index(variable) < 0 {
			continue
		}
		series, err := parseSeries(data.cell(row, opts.SeriesColumn))
		if err != nil {
			return err
		}
		if len(series) != len(resRows) {
			return errdefs.LengthMismatch(
				"series for %q has %d values, time index has %d", variable, len(series), len(resRows),
			).WithResource(resourceName)
		}
		if err := ws.applySeries("resource_table", variable, series); err != nil {
			return err
		}
		applied++
	}

	if applied == 0 {
		e.log.Debugf("no matching variables for %q, resource untouched", resourceName)
		return nil
	}

	e.metrics.RecordRowsMerged(resourceName, applied*len(resRows))
	return ws.export("resource_table", resHeader, path)
}

// mergeResource updates every column present in both the target schema and
// the override data, except identity and selector columns. Resources with no
// overlapping columns are left untouched and not rewritten; override rows
// without a matching target row never insert.
func (e *Engine) mergeResource(pkg *pack.LoadedPackage, res *pack.LoadedResource, data table, key string, excluded []string) error {
	if data.index(key) < 0 {
		return errdefs.SchemaViolation("override data has no %q column", key)
	}

	path := res.FilePath(pkg.Dir)
	resHeader, resRows, err := readDelimited(path)
	if err != nil {
		return err
	}

	isExcluded := make(map[string]bool, len(excluded))
	for _, col := range excluded {
		isExcluded[col] = true
	}
	inResource := make(map[string]bool, len(resHeader))
	for _, col := range resHeader {
		inResource[col] = true
	}

	var updateCols []string
	for _, col := range data.header {
		if inResource[col] && !isExcluded[col] {
			updateCols = append(updateCols, col)
		}
	}
	if len(updateCols) == 0 {
		e.log.Debugf("no overlapping columns for %q, resource untouched", res.Name)
		return nil
	}

	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	if err := ws.importTable("resource_table", resHeader, resRows); err != nil {
		return err
	}
	if err := ws.importTable("data_table", data.header, data.rows); err != nil {
		return err
	}

	n, err := ws.updateMatching("resource_table", "data_table", key, updateCols)
	if err != nil {
		return err
	}
	e.metrics.RecordRowsMerged(res.Name, n)
	e.log.Debugf("merged %d rows into %q (%d columns)", n, res.Name, len(updateCols))

	return ws.export("resource_table", resHeader, path)
}

// parseSeries decodes a JSON-style list ("[1, 2.5, 3]") into cell values.
func parseSeries(raw string) ([]string, error) {
	var list []any
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, errdefs.Wrap(errdefs.SchemaViolation("unparseable series %q", raw), err)
	}
	out := make([]string, len(list))
	for i, v := range list {
		switch val := v.(type) {
		case float64:
			out[i] = strconv.FormatFloat(val, 'g', -1, 64)
		case string:
			out[i] = val
		case bool:
			out[i] = strconv.FormatBool(val)
		case nil:
			out[i] = ""
		default:
			return nil, errdefs.SchemaViolation("unsupported series value %v", v)
		}
	}
	return out, nil
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
