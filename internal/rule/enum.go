package rule

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// enum decodes a string scalar that must be one of allowed.
func enum(n *yaml.Node, allowed ...string) (string, error) {
	if n.Kind != yaml.ScalarNode || n.ShortTag() != "!!str" {
		return "", fmt.Errorf("expected a string, got %s", describe(n))
	}
	for _, a := range allowed {
		if n.Value == a {
			return a, nil
		}
	}
	return "", fmt.Errorf("invalid value %q (allowed: %s)", n.Value, strings.Join(allowed, ", "))
}

// ErrorPolicy says what a parsing action does with a value it cannot parse.
type ErrorPolicy string

const (
	ErrorsRaise  ErrorPolicy = "raise"
	ErrorsCoerce ErrorPolicy = "coerce"
	ErrorsIgnore ErrorPolicy = "ignore"
)

func (e *ErrorPolicy) UnmarshalYAML(n *yaml.Node) error {
	v, err := enum(n, string(ErrorsRaise), string(ErrorsCoerce), string(ErrorsIgnore))
	*e = ErrorPolicy(v)
	return err
}

// CastTo is the value type convert_datetime produces.
type CastTo string

const (
	CastDatetime CastTo = "datetime"
	CastDate     CastTo = "date"
	CastString   CastTo = "string"
)

func (c *CastTo) UnmarshalYAML(n *yaml.Node) error {
	v, err := enum(n, string(CastDatetime), string(CastDate), string(CastString))
	*c = CastTo(v)
	return err
}

// DType selects which columns strip_whitespace touches.
type DType string

const (
	DTypeString DType = "string"
	DTypeStr    DType = "str"
	DTypeObject DType = "object"
)

func (d *DType) UnmarshalYAML(n *yaml.Node) error {
	v, err := enum(n, string(DTypeString), string(DTypeStr), string(DTypeObject))
	*d = DType(v)
	return err
}

// Mode is one replacement pass of typo_mapping.
type Mode string

const (
	ModeExact Mode = "exact"
	ModeRegex Mode = "regex"
)

func (m *Mode) UnmarshalYAML(n *yaml.Node) error {
	v, err := enum(n, string(ModeExact), string(ModeRegex))
	*m = Mode(v)
	return err
}

// NormalForm is a Unicode normalization form.
type NormalForm string

func (f *NormalForm) UnmarshalYAML(n *yaml.Node) error {
	v, err := enum(n, "NFC", "NFKC", "NFD", "NFKD")
	*f = NormalForm(v)
	return err
}

// Scalar is a configured cell value: an integer or a string.
type Scalar struct {
	Value any
}

func (s *Scalar) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		switch n.ShortTag() {
		case "!!int":
			var i int64
			if err := n.Decode(&i); err != nil {
				return err
			}
			s.Value = i
			return nil
		case "!!str":
			s.Value = n.Value
			return nil
		}
	}
	return fmt.Errorf("expected an integer or string, got %s", describe(n))
}

// Replacement maps one matched value (or pattern) to its replacement.
type Replacement struct {
	From string
	To   any
}

// Replacements keeps the order the replacements were written in.
type Replacements []Replacement

func (r *Replacements) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("expected a mapping, got %s", describe(n))
	}
	seen := make(map[string]bool, len(n.Content)/2)
	out := make(Replacements, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: keys must be scalars, got %s", k.Line, describe(k))
		}
		if seen[k.Value] {
			return fmt.Errorf("line %d: duplicate key %q", k.Line, k.Value)
		}
		seen[k.Value] = true
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: replacement for %q must be a scalar, got %s", v.Line, k.Value, describe(v))
		}
		var to any
		if err := v.Decode(&to); err != nil {
			return err
		}
		out = append(out, Replacement{From: k.Value, To: to})
	}
	*r = out
	return nil
}

// Aggregation reduces the values of one column within a dissolve group.
// It is written either as a function name ("sum") or as a mapping
// ({func: join, sep: "、"}).
type Aggregation struct {
	Func string
	Sep  string
}

// AggregationFuncs lists the accepted function names.
var AggregationFuncs = []string{"first", "last", "sum", "min", "max", "mean", "count", "join"}

func (a *Aggregation) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		f, err := enum(n, AggregationFuncs...)
		if err != nil {
			return err
		}
		*a = Aggregation{Func: f, Sep: ","}
		return nil
	case yaml.MappingNode:
		out := Aggregation{Sep: ","}
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			switch k.Value {
			case "func":
				f, err := enum(v, AggregationFuncs...)
				if err != nil {
					return fmt.Errorf("func: %w", err)
				}
				out.Func = f
			case "sep":
				if v.Kind != yaml.ScalarNode || v.ShortTag() != "!!str" {
					return fmt.Errorf("sep: expected a string, got %s", describe(v))
				}
				out.Sep = v.Value
			default:
				return fmt.Errorf("unknown field %q (allowed: func, sep)", k.Value)
			}
		}
		if out.Func == "" {
			return fmt.Errorf("missing required field \"func\"")
		}
		*a = out
		return nil
	}
	return fmt.Errorf("expected a function name or mapping, got %s", describe(n))
}
