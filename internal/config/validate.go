package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"geoetl/internal/rule"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced to users
	// but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the document (e.g. "rules[3].parameters.mappings").
// Line and Column locate the offending node; they are zero when unknown.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Line     int
	Column   int
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	if i.Line > 0 {
		return fmt.Sprintf("%s at %s (line %d:%d): %s", i.Severity, i.Path, i.Line, i.Column, i.Message)
	}
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Errors returns the error-severity issues.
func Errors(issues []Issue) []Issue {
	return filter(issues, SeverityError)
}

// Warnings returns the warning-severity issues.
func Warnings(issues []Issue) []Issue {
	return filter(issues, SeverityWarning)
}

func filter(issues []Issue, sev IssueSeverity) []Issue {
	var out []Issue
	for _, iss := range issues {
		if iss.Severity == sev {
			out = append(out, iss)
		}
	}
	return out
}

// document is the body under the root key.
type document struct {
	Description string      `yaml:"description"`
	Inputs      []string    `yaml:"inputs,omitempty"`
	Outputs     []string    `yaml:"outputs,omitempty"`
	Rules       []yaml.Node `yaml:"rules"`
}

// entry is one rule before its parameters are decoded.
type entry struct {
	TaskName    string        `yaml:"task_name"`
	Description string        `yaml:"description"`
	Type        rule.Category `yaml:"type"`
	Action      string        `yaml:"action"`
	Input       string        `yaml:"input,omitempty"`
	Output      string        `yaml:"output,omitempty"`
	Parameters  yaml.Node     `yaml:"parameters"`
}

// Validate decodes the root mapping returned by Parse into a Pipeline.
//
// Each rule's action selects its parameter schema from schemas. Actions
// without a schema keep their parameters as rule.Unchecked so that
// CrossCheck can report them. Validate never stops at the first problem:
// it returns either a Pipeline (possibly carrying warnings) or a
// *SchemaValidationError listing every error found.
func Validate(root *yaml.Node, schemas SchemaSource) (*Pipeline, error) {
	if root == nil || root.Kind != yaml.MappingNode || len(root.Content) != 2 {
		return nil, &ParseError{Msg: "root must be a mapping with exactly one key"}
	}
	v := &validator{schemas: schemas}
	p := v.pipeline(root)
	if len(Errors(v.issues)) > 0 {
		return nil, &SchemaValidationError{Issues: v.issues}
	}
	p.Warnings = Warnings(v.issues)
	return p, nil
}

type validator struct {
	schemas SchemaSource
	issues  []Issue
}

func (v *validator) errorf(n *yaml.Node, path, format string, args ...any) {
	v.add(SeverityError, n, path, fmt.Sprintf(format, args...))
}

func (v *validator) warnf(n *yaml.Node, path, format string, args ...any) {
	v.add(SeverityWarning, n, path, fmt.Sprintf(format, args...))
}

func (v *validator) add(sev IssueSeverity, n *yaml.Node, path, msg string) {
	iss := Issue{Severity: sev, Path: path, Message: msg}
	if n != nil {
		iss.Line, iss.Column = n.Line, n.Column
	}
	v.issues = append(v.issues, iss)
}

// fieldErrors converts decoder findings under prefix into issues. Findings
// without a position are located through base.
func (v *validator) fieldErrors(base *yaml.Node, prefix string, errs []rule.FieldError) {
	for _, fe := range errs {
		iss := Issue{Severity: SeverityError, Path: joinPath(prefix, fe.Path), Line: fe.Line, Column: fe.Column, Message: fe.Message}
		if iss.Line == 0 && base != nil {
			n := rule.Locate(base, fe.Path)
			iss.Line, iss.Column = n.Line, n.Column
		}
		v.issues = append(v.issues, iss)
	}
}

func (v *validator) pipeline(root *yaml.Node) *Pipeline {
	key, body := root.Content[0], root.Content[1]
	p := &Pipeline{Name: strings.TrimSpace(key.Value)}
	if key.Kind != yaml.ScalarNode || p.Name == "" {
		v.errorf(key, "<root>", "root key must be a non-empty string")
	}

	var doc document
	v.fieldErrors(body, "", rule.Decode(body, &doc))
	p.Description = strings.TrimSpace(doc.Description)

	p.Inputs = doc.Inputs
	if len(p.Inputs) == 0 {
		p.Inputs = []string{rule.DefaultAlias}
	}
	v.aliasList(body, "inputs", p.Inputs)
	p.Outputs = doc.Outputs
	v.aliasList(body, "outputs", p.Outputs)

	if body.Kind == yaml.MappingNode && len(doc.Rules) == 0 && rule.Locate(body, "rules") != body {
		v.warnf(rule.Locate(body, "rules"), "rules", "no rules; the pipeline returns its inputs unchanged")
	}

	tasks := map[string]int{}
	for i := range doc.Rules {
		n := &doc.Rules[i]
		r, ok := v.rule(n, i, fmt.Sprintf("rules[%d]", i))
		if !ok {
			continue
		}
		if prev, dup := tasks[r.TaskName]; dup && r.TaskName != "" {
			v.warnf(n, fmt.Sprintf("rules[%d].task_name", i), "task name %q also used by rules[%d]", r.TaskName, prev)
		} else {
			tasks[r.TaskName] = i
		}
		p.Rules = append(p.Rules, r)
	}
	return p
}

func (v *validator) aliasList(body *yaml.Node, field string, aliases []string) {
	seen := map[string]bool{}
	for i, a := range aliases {
		path := fmt.Sprintf("%s[%d]", field, i)
		switch {
		case strings.TrimSpace(a) == "":
			v.errorf(rule.Locate(body, path), path, "alias must not be empty")
		case seen[a]:
			v.errorf(rule.Locate(body, path), path, "alias %q listed twice", a)
		}
		seen[a] = true
	}
}

func (v *validator) rule(n *yaml.Node, index int, path string) (rule.Rule, bool) {
	before := len(Errors(v.issues))

	var e entry
	v.fieldErrors(n, path, rule.Decode(n, &e))
	r := rule.Rule{
		Index:       index,
		TaskName:    strings.TrimSpace(e.TaskName),
		Description: strings.TrimSpace(e.Description),
		Category:    e.Type,
		Action:      strings.TrimSpace(e.Action),
		Input:       strings.TrimSpace(e.Input),
		Output:      strings.TrimSpace(e.Output),
		Line:        n.Line,
	}
	if r.Action == "" {
		if rule.Locate(n, "action") != n {
			v.errorf(rule.Locate(n, "action"), joinPath(path, "action"), "action must not be empty")
		}
		return r, false
	}

	params := &e.Parameters
	if params.Kind == yaml.AliasNode && params.Alias != nil {
		params = params.Alias
	}
	ppath := joinPath(path, "parameters")
	if params.Kind == 0 {
		// Missing parameters were already reported by Decode.
		return r, false
	}
	if params.Kind != yaml.MappingNode {
		v.errorf(params, ppath, "expected a mapping, got %s", kind(params))
		return r, false
	}

	schema, ok := v.schemas.NewParams(r.Action)
	if !ok {
		r.Params = rule.Unchecked{Node: params}
		return r, len(Errors(v.issues)) == before
	}
	if errs := rule.Decode(params, schema); len(errs) > 0 {
		v.fieldErrors(params, ppath, errs)
	} else {
		v.fieldErrors(params, ppath, schema.Validate())
	}
	r.Params = schema

	if _, declares := schema.(rule.InputDeclarer); declares && r.Input != "" {
		v.errorf(rule.Locate(n, "input"), joinPath(path, "input"), "action %q names its inputs in parameters; remove the rule-level input", r.Action)
	}
	if _, declares := schema.(rule.OutputDeclarer); declares && r.Output != "" {
		v.errorf(rule.Locate(n, "output"), joinPath(path, "output"), "action %q names its outputs in parameters; remove the rule-level output", r.Action)
	}
	if rn, ok := schema.(*rule.RenameColumns); ok && len(rn.Mappings) == 0 {
		v.warnf(params, joinPath(ppath, "mappings"), "empty mapping; the rule leaves the dataset unchanged")
	}
	return r, len(Errors(v.issues)) == before
}

func kind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.SequenceNode:
		return "list"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		if n.ShortTag() == "!!null" {
			return "null"
		}
		return fmt.Sprintf("scalar %q", n.Value)
	}
	return "alias"
}

func joinPath(prefix, path string) string {
	switch {
	case prefix == "":
		return path
	case path == "":
		return prefix
	case strings.HasPrefix(path, "["):
		return prefix + path
	}
	return prefix + "." + path
}
