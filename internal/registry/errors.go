package registry

import "fmt"

// DuplicateActionError reports a second registration of the same name.
type DuplicateActionError struct {
	Name string
}

func (e *DuplicateActionError) Error() string {
	return fmt.Sprintf("action %q is already registered", e.Name)
}

// UnknownActionError reports a name with no registered action.
type UnknownActionError struct {
	Name       string
	Suggestion string
	// Rules holds the indices of the rules that use Name, when known.
	Rules []int
}

func (e *UnknownActionError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("'%s' is not registered (did you mean '%s'?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("'%s' is not registered", e.Name)
}
