package engine

import (
	"errors"
	"fmt"
	"sort"

	"geoetl/internal/config"
	"geoetl/internal/registry"
)

// Plan checks the alias flow of p without touching data: every input is
// bound by a seed or an earlier rule, no rule binds the same alias twice,
// multi-dataset actions leave the seeds alone and the final outputs exist.
// All problems are returned joined; each is an *AliasResolutionError.
func (e *Engine) Plan(p *config.Pipeline, seeds []string) error {
	boundSet := map[string]bool{}
	reserved := map[string]bool{}
	for _, s := range seeds {
		boundSet[s] = true
		reserved[s] = true
	}

	var errs []error
	for _, in := range p.Inputs {
		if !boundSet[in] {
			errs = append(errs, &AliasResolutionError{Rule: -1, Alias: in, Reason: "no seed dataset supplied", Available: keys(boundSet)})
		}
	}

	for _, r := range p.Rules {
		ins, outs := r.Inputs(), r.Outputs()
		for _, in := range ins {
			if !boundSet[in] {
				errs = append(errs, &AliasResolutionError{Rule: r.Index, Task: r.TaskName, Alias: in, Reason: "input is not bound", Available: keys(boundSet)})
			}
		}

		shape := registry.Single
		if e.actions != nil {
			if a, err := e.actions.Lookup(r.Action); err == nil {
				shape = a.Shape
			}
		}
		seen := map[string]bool{}
		for _, out := range outs {
			if seen[out] {
				errs = append(errs, &AliasResolutionError{Rule: r.Index, Task: r.TaskName, Alias: out, Reason: "bound twice by the same rule"})
				continue
			}
			seen[out] = true
			if reserved[out] && multi(shape, ins, outs) {
				errs = append(errs, &AliasResolutionError{Rule: r.Index, Task: r.TaskName, Alias: out, Reason: fmt.Sprintf("%s action may not rebind seed alias", describeShape(shape, ins, outs))})
			}
		}
		for _, out := range outs {
			boundSet[out] = true
		}
	}

	for _, out := range finalAliases(p) {
		if !boundSet[out] {
			errs = append(errs, &AliasResolutionError{Rule: -1, Alias: out, Reason: "final output is never bound", Available: keys(boundSet)})
		}
	}
	return errors.Join(errs...)
}

func describeShape(shape registry.Shape, ins, outs []string) registry.Shape {
	switch {
	case shape != registry.Single:
		return shape
	case len(outs) > 1:
		return registry.FanOut
	case len(ins) > 1:
		return registry.FanIn
	}
	return shape
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
