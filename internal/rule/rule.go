// Package rule defines a validated pipeline step and the closed parameter
// schemas of the built-in actions.
package rule

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultAlias is the dataset alias a rule reads when it names none.
const DefaultAlias = "input"

// Category classifies what a rule does. It is informational only.
type Category string

const (
	SchemaLevel      Category = "schema-level"
	RowLevel         Category = "row-level"
	ColumnLevel      Category = "column-level"
	DataTypeLevel    Category = "data-type-level"
	DomainSpecific   Category = "domain-specific-transformations"
	ValidationSanity Category = "validation-sanity-checks"
)

// Categories lists every accepted category.
var Categories = []Category{SchemaLevel, RowLevel, ColumnLevel, DataTypeLevel, DomainSpecific, ValidationSanity}

// UnmarshalYAML accepts one of Categories.
func (c *Category) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode || n.ShortTag() != "!!str" {
		return fmt.Errorf("expected a string, got %s", describe(n))
	}
	v := Category(strings.TrimSpace(n.Value))
	for _, known := range Categories {
		if v == known {
			*c = v
			return nil
		}
	}
	names := make([]string, len(Categories))
	for i, k := range Categories {
		names[i] = string(k)
	}
	return fmt.Errorf("unknown type %q (allowed: %s)", n.Value, strings.Join(names, ", "))
}

// Params is an action's decoded parameter record.
type Params interface {
	// Validate reports semantic problems the field types cannot express.
	Validate() []FieldError
}

// InputDeclarer is implemented by parameters that name the aliases the rule
// reads, overriding the rule-level input field.
type InputDeclarer interface {
	InputAliases() []string
}

// OutputDeclarer is implemented by parameters that name the aliases the rule
// writes, overriding the rule-level output field.
type OutputDeclarer interface {
	OutputAliases() []string
}

// Unchecked holds the raw parameters of an action without a known schema.
type Unchecked struct {
	Node *yaml.Node
}

func (Unchecked) Validate() []FieldError { return nil }

// Rule is one validated pipeline step.
type Rule struct {
	Index       int
	TaskName    string
	Description string
	Category    Category
	Action      string
	Input       string
	Output      string
	Params      Params
	Line        int
}

// Inputs returns the aliases r reads, in order.
func (r Rule) Inputs() []string {
	if d, ok := r.Params.(InputDeclarer); ok {
		return d.InputAliases()
	}
	if r.Input != "" {
		return []string{r.Input}
	}
	return []string{DefaultAlias}
}

// Outputs returns the aliases r binds, in the order the action returns its
// datasets.
func (r Rule) Outputs() []string {
	if d, ok := r.Params.(OutputDeclarer); ok {
		return d.OutputAliases()
	}
	if r.Output != "" {
		return []string{r.Output}
	}
	in := r.Inputs()
	if len(in) == 0 {
		return []string{DefaultAlias}
	}
	return in[:1]
}

// Label identifies r in logs and errors.
func (r Rule) Label() string {
	return fmt.Sprintf("rules[%d] %q (%s)", r.Index, r.TaskName, r.Action)
}
