package config

import (
	"fmt"
	"strings"

	"geoetl/internal/registry"
)

// ParseError reports text that is not a well-formed pipeline document.
type ParseError struct {
	Line, Column int
	Msg          string
	Err          error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("config: parse")
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d:%d)", e.Line, e.Column)
	}
	b.WriteString(": ")
	switch {
	case e.Msg != "" && e.Err != nil:
		fmt.Fprintf(&b, "%s: %v", e.Msg, e.Err)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(e.Msg)
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaValidationError aggregates every problem Validate found.
type SchemaValidationError struct {
	Issues []Issue
}

func (e *SchemaValidationError) Error() string {
	errs := Errors(e.Issues)
	var b strings.Builder
	fmt.Fprintf(&b, "config: %d validation error(s)", len(errs))
	for _, iss := range errs {
		b.WriteString("\n  - ")
		b.WriteString(iss.Error())
	}
	return b.String()
}

// CrossCheckError lists the actions a pipeline uses that are not
// registered.
type CrossCheckError struct {
	Missing []*registry.UnknownActionError
}

func (e *CrossCheckError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "config: %d action(s) used by the pipeline are not registered:", len(e.Missing))
	for _, m := range e.Missing {
		b.WriteString("\n  - ")
		b.WriteString(m.Error())
		if len(m.Rules) > 0 {
			idx := make([]string, len(m.Rules))
			for i, r := range m.Rules {
				idx[i] = fmt.Sprint(r)
			}
			fmt.Fprintf(&b, " [rules %s]", strings.Join(idx, ", "))
		}
	}
	b.WriteString("\nregister the action with registry.Register before loading the pipeline, or fix the action name")
	return b.String()
}

func (e *CrossCheckError) Unwrap() []error {
	out := make([]error, len(e.Missing))
	for i, m := range e.Missing {
		out[i] = m
	}
	return out
}
