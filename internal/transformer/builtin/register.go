// Package builtin contains the transformation actions that pipeline rules
// refer to by name.
//
// Every action has the registry.Func signature: it receives the datasets
// bound to the rule's input aliases and its decoded parameters, and returns
// one dataset per output alias. Inputs are never modified. An action that
// has nothing to do returns its input dataset itself.
package builtin

import (
	"fmt"

	"geoetl/internal/dataset"
	"geoetl/internal/registry"
	"geoetl/internal/rule"
)

// Names of the built-in actions.
const (
	ConvertCRS       = "convert_crs"
	RenameColumns    = "rename_columns"
	StripWhitespace  = "strip_whitespace"
	TypoMapping      = "typo_mapping"
	ConvertDatetime  = "convert_datetime"
	DropNulls        = "dropnulls"
	DropByPairs      = "drop_by_pairs"
	ExplodeVillage   = "explode_village"
	SplitDuplicates  = "split_duplicates"
	DissolveVillages = "dissolve_villages"
	ConcatFinalize   = "concat_finalize"
)

// Actions returns the built-in action definitions.
func Actions() []registry.Action {
	return []registry.Action{
		{
			Name: ConvertCRS, Summary: "reproject geometries to another coordinate reference system",
			Run: convertCRS, NewParams: func() rule.Params { return &rule.ConvertCRS{} },
		},
		{
			Name: RenameColumns, Summary: "rename columns old -> new",
			Run: renameColumns, NewParams: func() rule.Params { return &rule.RenameColumns{} },
		},
		{
			Name: StripWhitespace, Summary: "trim whitespace and optionally newlines from string cells",
			Run: stripWhitespace, NewParams: func() rule.Params { return &rule.StripWhitespace{} },
		},
		{
			Name: TypoMapping, Summary: "replace known misspellings per column, exactly or by pattern",
			Run: typoMapping, NewParams: func() rule.Params { return &rule.TypoMapping{} },
		},
		{
			Name: ConvertDatetime, Summary: "parse date strings, shifting calendar years",
			Run: convertDatetime, NewParams: func() rule.Params { return &rule.ConvertDatetime{} },
		},
		{
			Name: DropNulls, Summary: "drop rows with missing values",
			Run: dropNulls, NewParams: func() rule.Params { return &rule.DropNulls{} },
		},
		{
			Name: DropByPairs, Summary: "drop rows matching excluded value combinations",
			Run: dropByPairs, NewParams: func() rule.Params { return &rule.DropByPairs{} },
		},
		{
			Name: ExplodeVillage, Summary: "split a delimited column into one row per part",
			Run: explodeVillage, NewParams: func() rule.Params { return &rule.ExplodeVillage{} },
		},
		{
			Name: SplitDuplicates, Summary: "separate rows with a repeated key from unique rows",
			Shape: registry.FanOut,
			Run:   splitDuplicates, NewParams: func() rule.Params { return &rule.SplitDuplicates{} },
		},
		{
			Name: DissolveVillages, Summary: "merge the geometries of grouped rows",
			Run: dissolveVillages, NewParams: func() rule.Params { return &rule.DissolveVillages{} },
		},
		{
			Name: ConcatFinalize, Summary: "concatenate several aliases into one",
			Shape: registry.FanIn,
			Run:   concatFinalize, NewParams: func() rule.Params { return &rule.ConcatFinalize{} },
		},
	}
}

// Register adds every built-in action to reg.
func Register(reg *registry.Registry) error {
	for _, a := range Actions() {
		if err := reg.Register(a); err != nil {
			return fmt.Errorf("builtin: %w", err)
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-in actions.
func NewRegistry() *registry.Registry {
	reg := registry.New()
	if err := Register(reg); err != nil {
		panic(err)
	}
	return reg
}

// paramsAs asserts the concrete parameter type an action expects.
func paramsAs[T rule.Params](action string, p rule.Params) (T, error) {
	t, ok := p.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s: unexpected parameters %T", action, p)
	}
	return t, nil
}

// single returns the one dataset an action reads.
func single(action string, in []*dataset.Dataset) (*dataset.Dataset, error) {
	if len(in) != 1 || in[0] == nil {
		return nil, fmt.Errorf("%s: expected one input dataset, got %d", action, len(in))
	}
	return in[0], nil
}

func one(d *dataset.Dataset) []*dataset.Dataset { return []*dataset.Dataset{d} }
