package pack

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/empack/empack/pkg/errdefs"
)

func TestNewElementResourceDefaultsToAllAttributes(t *testing.T) {
	c := loadComponent(t, "load", loadComponentYAML)
	r, err := NewElementResource(c, "electricity_demand", nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"region", "amount", "bus", "profile", "type", "name"}
	if got := r.Schema().FieldNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("FieldNames() = %v, want %v", got, want)
	}
	if r.Schema().PrimaryKey != "name" {
		t.Errorf("PrimaryKey = %q", r.Schema().PrimaryKey)
	}
}

func TestNewElementResourceSelectionAppendsTypeAndName(t *testing.T) {
	c := loadComponent(t, "load", loadComponentYAML)
	r, err := NewElementResource(c, "electricity_demand", []string{"amount", "bus"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"amount", "bus", "type", "name"}
	if got := r.Schema().FieldNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("FieldNames() = %v, want %v", got, want)
	}
}

func TestNewElementResourceRejectsUndeclaredAttribute(t *testing.T) {
	c := loadComponent(t, "load", loadComponentYAML)
	_, err := NewElementResource(c, "electricity_demand", []string{"amount", "voltage"}, nil)
	if !errdefs.IsSchemaViolation(err) {
		t.Errorf("err = %v, want SchemaViolation", err)
	}
}

func TestElementFieldTypes(t *testing.T) {
	c := loadComponent(t, "load", loadComponentYAML)
	r, err := NewElementResource(c, "electricity_demand", nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	amount, _ := r.Schema().Field("amount")
	if amount.Type != "number" || amount.Unit != "MWh" || amount.Description != "Total demand" {
		t.Errorf("amount field = %+v", amount)
	}
	// Sequence-link fields hold profile references and persist as strings.
	profile, _ := r.Schema().Field("profile")
	if profile.Type != "string" {
		t.Errorf("profile field type = %q, want string", profile.Type)
	}
}

func TestElementForeignKeys(t *testing.T) {
	c := loadComponent(t, "load", loadComponentYAML)
	r, err := NewElementResource(c, "electricity_demand", nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	want := []ForeignKey{
		{Fields: "bus", Reference: ForeignKeyReference{Resource: "bus", Fields: "name"}},
		{Fields: "profile", Reference: ForeignKeyReference{Resource: "electricity_demand_profile"}},
	}
	if got := r.Schema().ForeignKeys; !reflect.DeepEqual(got, want) {
		t.Errorf("ForeignKeys = %v, want %v", got, want)
	}
}

func TestExtraSequenceFields(t *testing.T) {
	c := loadComponent(t, "storage", storageComponentYAML)
	r, err := NewElementResource(c, "liion_storage", nil, []string{"efficiency"})
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(r.Sequences(), []string{"efficiency"}) {
		t.Errorf("Sequences() = %v", r.Sequences())
	}
	eff, _ := r.Schema().Field("efficiency")
	if eff.Type != "string" {
		t.Errorf("extra sequence field type = %q, want string", eff.Type)
	}
}

func TestAddInstance(t *testing.T) {
	c := loadComponent(t, "load", loadComponentYAML)

	newResource := func(t *testing.T) *ElementResource {
		r, err := NewElementResource(c, "electricity_demand", nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		return r
	}

	t.Run("fills type from component", func(t *testing.T) {
		r := newResource(t)
		mustAddInstance(t, r, Instance{"name": "d1", "bus": "electricity"})
		if got := r.Instances()[0]["type"]; got != "load" {
			t.Errorf("type = %v, want load", got)
		}
	})

	t.Run("rejects missing name", func(t *testing.T) {
		r := newResource(t)
		err := r.AddInstance(Instance{"bus": "electricity"})
		if !errdefs.IsSchemaViolation(err) {
			t.Errorf("err = %v, want SchemaViolation", err)
		}
	})

	t.Run("rejects mismatched type", func(t *testing.T) {
		r := newResource(t)
		err := r.AddInstance(Instance{"name": "d1", "type": "storage"})
		if !errdefs.IsSchemaViolation(err) {
			t.Errorf("err = %v, want SchemaViolation", err)
		}
	})

	t.Run("accepts matching type", func(t *testing.T) {
		r := newResource(t)
		mustAddInstance(t, r, Instance{"name": "d1", "type": "load"})
	})

	t.Run("rejects undeclared key", func(t *testing.T) {
		r := newResource(t)
		err := r.AddInstance(Instance{"name": "d1", "voltage": 230})
		if !errdefs.IsSchemaViolation(err) {
			t.Errorf("err = %v, want SchemaViolation", err)
		}
	})

	t.Run("duplicate names are accepted", func(t *testing.T) {
		// Permissive on purpose; see the package docs.
		r := newResource(t)
		mustAddInstance(t, r, Instance{"name": "d1"})
		mustAddInstance(t, r, Instance{"name": "d1"})
		if len(r.Instances()) != 2 {
			t.Errorf("len(Instances()) = %d, want 2", len(r.Instances()))
		}
	})

	t.Run("preserves insertion order", func(t *testing.T) {
		r := newResource(t)
		for _, name := range []string{"d3", "d1", "d2"} {
			mustAddInstance(t, r, Instance{"name": name})
		}
		var got []string
		for _, inst := range r.Instances() {
			got = append(got, inst["name"].(string))
		}
		if !reflect.DeepEqual(got, []string{"d3", "d1", "d2"}) {
			t.Errorf("instance order = %v", got)
		}
	})
}

func TestElementWriteCSV(t *testing.T) {
	c := loadComponent(t, "load", loadComponentYAML)
	r, err := NewElementResource(c, "electricity_demand", []string{"region", "amount", "bus"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	mustAddInstance(t, r, Instance{"name": "d1", "bus": "electricity", "amount": 10})
	mustAddInstance(t, r, Instance{"name": "d2", "region": "BB", "amount": 0.5})

	var buf bytes.Buffer
	if err := r.WriteCSV(&buf); err != nil {
		t.Fatal(err)
	}

	want := strings.Join([]string{
		"region;amount;bus;type;name",
		";10;electricity;load;d1",
		"BB;0.5;;load;d2",
	}, "\n") + "\n"
	if buf.String() != want {
		t.Errorf("CSV =\n%s\nwant\n%s", buf.String(), want)
	}
}
