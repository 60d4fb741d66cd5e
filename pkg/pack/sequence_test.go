package pack

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/empack/empack/pkg/errdefs"
)

func TestDefaultTimeindex(t *testing.T) {
	idx := DefaultTimeindex()
	if len(idx) != 8760 {
		t.Fatalf("len = %d, want 8760", len(idx))
	}
	if got := idx[0].Format(TimeLayout); got != "2025-01-01 00:00:00" {
		t.Errorf("first step = %s", got)
	}
	if idx[1].Sub(idx[0]) != time.Hour {
		t.Errorf("step = %v, want 1h", idx[1].Sub(idx[0]))
	}
}

func TestHourlyRange(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	idx := HourlyRange(start, 3)
	want := []string{"2026-01-01 00:00:00", "2026-01-01 01:00:00", "2026-01-01 02:00:00"}
	var got []string
	for _, ts := range idx {
		got = append(got, ts.Format(TimeLayout))
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("HourlyRange = %v", got)
	}
}

func TestAddColumnLengthMismatch(t *testing.T) {
	r := NewSequenceResource("profile", HourlyRange(time.Now().UTC(), 24))
	err := r.AddColumn("x", make([]float64, 23))
	if !errdefs.IsLengthMismatch(err) {
		t.Fatalf("err = %v, want LengthMismatch", err)
	}
	// Failed adds must not mutate.
	if len(r.ColumnNames()) != 0 {
		t.Error("failed AddColumn mutated the resource")
	}
}

func TestAddColumnDuplicate(t *testing.T) {
	r := NewSequenceResource("profile", HourlyRange(time.Now().UTC(), 2))
	if err := r.AddColumn("x", []float64{1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := r.AddColumn("x", []float64{3, 4}); !errdefs.IsAlreadyExists(err) {
		t.Errorf("err = %v, want AlreadyExists", err)
	}
}

func TestSequenceWriteCSV(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewSequenceResource("electricity_demand_profile", HourlyRange(start, 3))
	if err := r.AddColumn("BB-d1-profile", []float64{0, 1.5, 2}); err != nil {
		t.Fatal(err)
	}
	if err := r.AddZeroColumn("B-d1-profile"); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := r.WriteCSV(&buf); err != nil {
		t.Fatal(err)
	}

	want := strings.Join([]string{
		"timeindex;BB-d1-profile;B-d1-profile",
		"2026-01-01 00:00:00;0;0",
		"2026-01-01 01:00:00;1.5;0",
		"2026-01-01 02:00:00;2;0",
	}, "\n") + "\n"
	if buf.String() != want {
		t.Errorf("CSV =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestSequenceWriteCSVHeaderOnly(t *testing.T) {
	// Zero columns render the bare timeindex header, no data rows.
	r := NewSequenceResource("empty_profile", nil)
	var buf bytes.Buffer
	if err := r.WriteCSV(&buf); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "timeindex\n" {
		t.Errorf("CSV = %q, want header only", buf.String())
	}
}

func TestSequenceSchema(t *testing.T) {
	r := NewSequenceResource("profile", HourlyRange(time.Now().UTC(), 2))
	if err := r.AddColumn("x", []float64{1, 2}); err != nil {
		t.Fatal(err)
	}
	s := r.Schema()
	if s.PrimaryKey != "timeindex" {
		t.Errorf("PrimaryKey = %q", s.PrimaryKey)
	}
	if !reflect.DeepEqual(s.FieldNames(), []string{"timeindex", "x"}) {
		t.Errorf("FieldNames = %v", s.FieldNames())
	}
	ti, _ := s.Field("timeindex")
	if ti.Type != "datetime" {
		t.Errorf("timeindex type = %q", ti.Type)
	}
	x, _ := s.Field("x")
	if x.Type != "number" {
		t.Errorf("x type = %q", x.Type)
	}
}
