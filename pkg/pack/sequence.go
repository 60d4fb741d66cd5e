package pack

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/empack/empack/pkg/errdefs"
)

// TimeLayout is the timestamp layout used in persisted sequence files and
// matched against by the override engine.
const TimeLayout = "2006-01-02 15:04:05"

// defaultPeriods is one non-leap year of hourly steps.
const defaultPeriods = 8760

// defaultEpoch anchors the canonical time index used when a resource is
// created without one.
var defaultEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// HourlyRange returns periods hourly timestamps starting at start.
func HourlyRange(start time.Time, periods int) []time.Time {
	out := make([]time.Time, periods)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return out
}

// DefaultTimeindex returns the canonical hourly index: 8760 points from the
// fixed epoch.
func DefaultTimeindex() []time.Time {
	return HourlyRange(defaultEpoch, defaultPeriods)
}

// SequenceResource is a named table of time-indexed numeric columns sharing
// one time index.
type SequenceResource struct {
	name      string
	timeindex []time.Time
	columns   *OrderedMap[[]float64]
}

// NewSequenceResource creates a sequence resource. A nil time index defaults
// to the canonical hourly index.
func NewSequenceResource(name string, timeindex []time.Time) *SequenceResource {
	if timeindex == nil {
		timeindex = DefaultTimeindex()
	}
	return &SequenceResource{
		name:      name,
		timeindex: timeindex,
		columns:   NewOrderedMap[[]float64](),
	}
}

// Name returns the resource name.
func (r *SequenceResource) Name() string { return r.name }

// IsSequence reports the resource kind; sequence resources return true.
func (r *SequenceResource) IsSequence() bool { return true }

// Description returns the descriptor description for this resource.
func (r *SequenceResource) Description() string {
	return "Time-indexed sequence columns"
}

// Timeindex returns the shared time index.
func (r *SequenceResource) Timeindex() []time.Time {
	return r.timeindex
}

// Len returns the time index length.
func (r *SequenceResource) Len() int {
	return len(r.timeindex)
}

// ColumnNames returns the data column names in insertion order.
func (r *SequenceResource) ColumnNames() []string {
	return r.columns.Keys()
}

// HasColumn reports whether a data column with the given name exists.
func (r *SequenceResource) HasColumn(name string) bool {
	return r.columns.Has(name)
}

// AddColumn appends a data column. It fails with LengthMismatch when the
// value count differs from the time index length and with AlreadyExists on a
// duplicate column name; nothing is mutated on failure.
func (r *SequenceResource) AddColumn(name string, values []float64) error {
	if len(values) != len(r.timeindex) {
		return errdefs.LengthMismatch(
			"column %q has %d values, time index has %d", name, len(values), len(r.timeindex),
		).WithResource(r.name)
	}
	if r.columns.Has(name) {
		return errdefs.AlreadyExists("column %q already exists", name).WithResource(r.name)
	}
	r.columns.Set(name, values)
	return nil
}

// AddZeroColumn appends a zero-filled data column.
func (r *SequenceResource) AddZeroColumn(name string) error {
	return r.AddColumn(name, make([]float64, len(r.timeindex)))
}

// Schema returns the schema derived from the current columns: "timeindex"
// first, then number columns in insertion order.
func (r *SequenceResource) Schema() *Schema {
	s := NewSchema("timeindex")
	s.AddField(Field{Name: "timeindex", Type: "datetime", Description: "Time step"})
	for _, name := range r.columns.Keys() {
		s.AddField(Field{Name: name, Type: "number"})
	}
	return s
}

// WriteCSV writes the time index and data columns. A resource with zero
// columns writes a header-only file: "timeindex" alone, no data rows.
func (r *SequenceResource) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	names := r.columns.Keys()
	header := append([]string{"timeindex"}, names...)
	if err := cw.Write(header); err != nil {
		return err
	}

	if len(names) > 0 {
		record := make([]string, len(header))
		for i, ts := range r.timeindex {
			record[0] = ts.Format(TimeLayout)
			for j, name := range names {
				col, _ := r.columns.Get(name)
				record[j+1] = strconv.FormatFloat(col[i], 'g', -1, 64)
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}
