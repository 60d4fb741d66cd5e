package errdefs

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := SchemaViolation("attribute %q not declared", "amount").WithResource("electricity_demand")
	got := err.Error()
	want := `[SCHEMA_VIOLATION] attribute "amount" not declared (resource=electricity_demand)`
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
		want bool
	}{
		{"schema violation matches", SchemaViolation("bad"), IsSchemaViolation, true},
		{"schema violation does not match not-found", SchemaViolation("bad"), IsResourceNotFound, false},
		{"definition not found", DefinitionNotFound("no such component"), IsDefinitionNotFound, true},
		{"length mismatch", LengthMismatch("24 != 8760"), IsLengthMismatch, true},
		{"already exists", AlreadyExists("bus"), IsAlreadyExists, true},
		{"plain error never matches", errors.New("boom"), IsSchemaViolation, false},
		{"nil never matches", nil, IsAlreadyExists, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pred(tt.err); got != tt.want {
				t.Errorf("predicate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrappedCauseSurvivesChain(t *testing.T) {
	cause := errors.New("yaml: line 3: mapping values are not allowed")
	err := Wrap(SchemaViolation("malformed definition"), cause)

	wrapped := fmt.Errorf("loading component: %w", err)
	if !IsSchemaViolation(wrapped) {
		t.Error("classification lost through fmt.Errorf wrapping")
	}
	if !errors.Is(wrapped, err) {
		t.Error("errors.Is failed on wrapped classified error")
	}
	var e *Error
	if !errors.As(wrapped, &e) || e.Err != cause {
		t.Error("cause not reachable via errors.As")
	}
}
