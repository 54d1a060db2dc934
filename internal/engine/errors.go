package engine

import (
	"fmt"
	"strings"
)

// AliasResolutionError reports a rule that reads an alias nobody bound, or
// binds an alias it may not bind. Rule is -1 for pipeline-level problems
// such as a missing seed or an unknown final output.
type AliasResolutionError struct {
	Rule      int
	Task      string
	Alias     string
	Reason    string
	Available []string
}

func (e *AliasResolutionError) Error() string {
	var b strings.Builder
	if e.Rule >= 0 {
		fmt.Fprintf(&b, "rules[%d] %q: ", e.Rule, e.Task)
	} else {
		b.WriteString("pipeline: ")
	}
	fmt.Fprintf(&b, "alias %q: %s", e.Alias, e.Reason)
	if len(e.Available) > 0 {
		fmt.Fprintf(&b, " (bound: %s)", strings.Join(e.Available, ", "))
	}
	return b.String()
}

// TransformationError reports an action that failed or returned datasets
// that do not match the rule's outputs. It aborts the run.
type TransformationError struct {
	Rule   int
	Task   string
	Action string
	Err    error
}

func (e *TransformationError) Error() string {
	return fmt.Sprintf("rules[%d] %q (%s) failed: %v", e.Rule, e.Task, e.Action, e.Err)
}

func (e *TransformationError) Unwrap() error { return e.Err }
