package config

import (
	"sort"

	"geoetl/internal/registry"
)

// CrossCheck confirms that every action used by p is registered in actions.
// It returns nil or a *CrossCheckError with one *registry.UnknownActionError
// per missing name, sorted by name, each carrying a suggestion when a
// registered name is close enough.
func CrossCheck(p *Pipeline, actions ActionSet) error {
	names := actions.Names()
	registered := make(map[string]bool, len(names))
	for _, n := range names {
		registered[n] = true
	}

	used := map[string][]int{}
	for _, r := range p.Rules {
		if !registered[r.Action] {
			used[r.Action] = append(used[r.Action], r.Index)
		}
	}
	if len(used) == 0 {
		return nil
	}

	missing := make([]string, 0, len(used))
	for n := range used {
		missing = append(missing, n)
	}
	sort.Strings(missing)

	out := &CrossCheckError{}
	for _, n := range missing {
		out.Missing = append(out.Missing, &registry.UnknownActionError{
			Name:       n,
			Suggestion: registry.Suggest(n, names),
			Rules:      used[n],
		})
	}
	return out
}
