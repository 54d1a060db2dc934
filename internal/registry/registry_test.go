package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"geoetl/internal/dataset"
	"geoetl/internal/rule"
)

func passthrough(_ context.Context, in []*dataset.Dataset, _ rule.Params) ([]*dataset.Dataset, error) {
	return in, nil
}

func action(name string) Action {
	return Action{Name: name, Run: passthrough, NewParams: func() rule.Params { return &rule.DropNulls{} }}
}

func TestRegister_Lookup(t *testing.T) {
	r := New()
	for _, n := range []string{"rename_columns", "convert_crs", "dropnulls"} {
		if err := r.Register(action(n)); err != nil {
			t.Fatalf("Register(%s): %v", n, err)
		}
	}
	a, err := r.Lookup("convert_crs")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if a.Shape != Single {
		t.Errorf("default shape = %q", a.Shape)
	}
	if diff := cmp.Diff([]string{"convert_crs", "dropnulls", "rename_columns"}, r.Names()); diff != "" {
		t.Errorf("Names (-want +got):\n%s", diff)
	}
}

/*
A second registration under the same name fails and the first action stays
in place.
*/
func TestRegister_Duplicate(t *testing.T) {
	r := New()
	first := action("dropnulls")
	first.Summary = "first"
	r.MustRegister(first)

	second := action("dropnulls")
	second.Summary = "second"
	err := r.Register(second)
	var dup *DuplicateActionError
	if !errors.As(err, &dup) || dup.Name != "dropnulls" {
		t.Fatalf("expected DuplicateActionError, got %v", err)
	}
	a, _ := r.Lookup("dropnulls")
	if a.Summary != "first" || r.Len() != 1 {
		t.Fatalf("registry changed after failed registration: %+v", a)
	}
}

func TestRegister_Invalid(t *testing.T) {
	r := New()
	if err := r.Register(Action{Name: "x", NewParams: func() rule.Params { return &rule.DropNulls{} }}); err == nil {
		t.Error("nil Run accepted")
	}
	if err := r.Register(Action{Name: "x", Run: passthrough}); err == nil {
		t.Error("nil NewParams accepted")
	}
	if err := r.Register(Action{Run: passthrough}); err == nil {
		t.Error("empty name accepted")
	}
}

func TestLookup_UnknownSuggests(t *testing.T) {
	r := New()
	r.MustRegister(action("rename_columns"))
	_, err := r.Lookup("rename_column")
	var unk *UnknownActionError
	if !errors.As(err, &unk) {
		t.Fatalf("expected UnknownActionError, got %v", err)
	}
	if unk.Suggestion != "rename_columns" {
		t.Errorf("suggestion = %q", unk.Suggestion)
	}
	want := "'rename_column' is not registered (did you mean 'rename_columns'?)"
	if err.Error() != want {
		t.Errorf("message = %q", err.Error())
	}
}

func TestSuggest(t *testing.T) {
	names := []string{"convert_crs", "dropnulls", "drop_by_pairs", "rename_columns"}
	cases := map[string]string{
		"drop_nulls":      "dropnulls",
		"convert_crs":     "convert_crs",
		"rename_colums":   "rename_columns",
		"totally_unknown": "",
		"":                "",
	}
	for in, want := range cases {
		if got := Suggest(in, names); got != want {
			t.Errorf("Suggest(%q) = %q, want %q", in, got, want)
		}
	}
	// Equal similarity goes to the smaller name.
	if got := Suggest("abc", []string{"abd", "abb"}); got != "abb" {
		t.Errorf("tie broken to %q", got)
	}
}

func TestNewParams(t *testing.T) {
	r := New()
	r.MustRegister(action("dropnulls"))
	p, ok := r.NewParams("dropnulls")
	if !ok {
		t.Fatal("schema missing")
	}
	if _, ok := p.(*rule.DropNulls); !ok {
		t.Fatalf("params type %T", p)
	}
	if _, ok := r.NewParams("missing"); ok {
		t.Fatal("schema for unregistered name")
	}
}
