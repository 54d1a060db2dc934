// Package config loads pipeline files: YAML documents whose single root key
// names the pipeline and whose body lists the rules to run.
//
// Loading happens in three stages, each with its own error type:
//
//  1. Parse turns text into a YAML node tree and checks the root shape
//     (*ParseError).
//  2. Validate decodes the tree into a typed Pipeline. Every rule entry is
//     checked against the closed parameter schema its action registers;
//     all problems are collected into one *SchemaValidationError.
//  3. CrossCheck confirms that every action the pipeline uses is registered
//     (*CrossCheckError).
//
// Example:
//
//	precleaning_rules:
//	  description: Clean village boundaries
//	  rules:
//	    - task_name: Reproject
//	      description: to TWD97 TM2
//	      type: schema-level
//	      action: convert_crs
//	      parameters: { to_crs: "EPSG:3826" }
package config

import (
	"sort"

	"geoetl/internal/rule"
)

// Pipeline is a validated pipeline file.
type Pipeline struct {
	// Name is the root key of the document.
	Name        string
	Description string

	// Inputs are the seed aliases the caller must supply. They default to
	// [rule.DefaultAlias] and are reserved for the whole run.
	Inputs []string

	// Outputs are the aliases returned after the run. Empty means the
	// outputs of the last rule.
	Outputs []string

	Rules []rule.Rule

	// Warnings are non-fatal findings from Validate.
	Warnings []Issue
}

// Actions returns the distinct action names used by p, sorted.
func (p *Pipeline) Actions() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range p.Rules {
		if !seen[r.Action] {
			seen[r.Action] = true
			out = append(out, r.Action)
		}
	}
	sort.Strings(out)
	return out
}

// SchemaSource provides the parameter schema of each known action.
// *registry.Registry implements it.
type SchemaSource interface {
	NewParams(action string) (rule.Params, bool)
}

// ActionSet lists registered action names. *registry.Registry implements
// it.
type ActionSet interface {
	Names() []string
}

// Catalog is both a SchemaSource and an ActionSet.
type Catalog interface {
	SchemaSource
	ActionSet
}
