package rule

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/ncruces/go-strftime"

	"geoetl/internal/geom"
)

// ConvertCRS reprojects a geospatial dataset.
type ConvertCRS struct {
	ToCRS string `yaml:"to_crs"`
}

func (p *ConvertCRS) Validate() []FieldError {
	if _, err := geom.Lookup(p.ToCRS); err != nil {
		return []FieldError{{Path: "to_crs", Message: err.Error()}}
	}
	return nil
}

// RenameColumns renames columns old -> new.
type RenameColumns struct {
	Mappings map[string]string `yaml:"mappings"`
}

func (p *RenameColumns) Validate() []FieldError {
	var errs []FieldError
	targets := make(map[string]string, len(p.Mappings))
	for _, from := range sortedKeys(p.Mappings) {
		to := p.Mappings[from]
		if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
			errs = append(errs, FieldError{Path: join("mappings", from), Message: "column names must not be empty"})
			continue
		}
		if prev, dup := targets[to]; dup {
			errs = append(errs, FieldError{
				Path:    join("mappings", from),
				Message: fmt.Sprintf("%q and %q are both renamed to %q", prev, from, to),
			})
			continue
		}
		targets[to] = from
	}
	return errs
}

// StripWhitespace trims string cells.
type StripWhitespace struct {
	DType          DType      `yaml:"dtype"`
	RemoveNewlines bool       `yaml:"remove_newlines"`
	Columns        []string   `yaml:"columns,omitempty"`
	Normalize      NormalForm `yaml:"normalize,omitempty"`
}

func (p *StripWhitespace) Validate() []FieldError {
	return nonEmpty("columns", p.Columns)
}

// TypoMapping replaces known misspellings per column.
type TypoMapping struct {
	Mode    []Mode                  `yaml:"mode"`
	Columns map[string]Replacements `yaml:"columns"`
}

func (p *TypoMapping) Validate() []FieldError {
	var errs []FieldError
	if len(p.Mode) == 0 {
		errs = append(errs, FieldError{Path: "mode", Message: "at least one mode is required"})
	}
	regex := false
	seen := map[Mode]bool{}
	for i, m := range p.Mode {
		if seen[m] {
			errs = append(errs, FieldError{Path: fmt.Sprintf("mode[%d]", i), Message: fmt.Sprintf("mode %q listed twice", m)})
		}
		seen[m] = true
		regex = regex || m == ModeRegex
	}
	if !regex {
		return errs
	}
	for _, col := range sortedKeys(p.Columns) {
		for _, r := range p.Columns[col] {
			path := join(join("columns", col), r.From)
			if _, err := regexp.Compile(r.From); err != nil {
				errs = append(errs, FieldError{Path: path, Message: fmt.Sprintf("invalid pattern: %v", err)})
			}
			if _, ok := r.To.(string); !ok && r.To != nil {
				errs = append(errs, FieldError{Path: path, Message: "regex replacement must be a string"})
			}
		}
	}
	return errs
}

// ConvertDatetime parses date strings.
type ConvertDatetime struct {
	Columns []string    `yaml:"columns"`
	Regex   string      `yaml:"regex"`
	Shift   int         `yaml:"shift"`
	Format  string      `yaml:"format"`
	CastTo  CastTo      `yaml:"cast_to"`
	Errors  ErrorPolicy `yaml:"errors"`
}

func (p *ConvertDatetime) Validate() []FieldError {
	errs := nonEmpty("columns", p.Columns)
	if len(p.Columns) == 0 {
		errs = append(errs, FieldError{Path: "columns", Message: "at least one column is required"})
	}
	if p.Regex != "" {
		re, err := regexp.Compile(p.Regex)
		switch {
		case err != nil:
			errs = append(errs, FieldError{Path: "regex", Message: fmt.Sprintf("invalid pattern: %v", err)})
		case !DateGroups(re).ok():
			errs = append(errs, FieldError{Path: "regex", Message: "pattern must capture year, month and day (named groups or the first three groups)"})
		}
	}
	if p.Format != "" {
		if _, err := strftime.Layout(p.Format); err != nil {
			errs = append(errs, FieldError{Path: "format", Message: err.Error()})
		}
	}
	if p.Regex == "" && p.Format == "" {
		errs = append(errs, FieldError{Path: "format", Message: "format is required when regex is empty"})
	}
	if p.CastTo == CastString && p.Format == "" {
		errs = append(errs, FieldError{Path: "format", Message: "format is required when cast_to is string"})
	}
	return errs
}

// Groups holds the submatch positions of the year, month and day captures.
type Groups struct {
	Year, Month, Day int
}

func (g Groups) ok() bool { return g.Year > 0 && g.Month > 0 && g.Day > 0 }

// DateGroups finds the year, month and day captures of re. Named groups
// win; otherwise the first three groups are used in that order.
func DateGroups(re *regexp.Regexp) Groups {
	var g Groups
	for i, name := range re.SubexpNames() {
		switch name {
		case "year":
			g.Year = i
		case "month":
			g.Month = i
		case "day":
			g.Day = i
		}
	}
	if g.ok() {
		return g
	}
	if re.NumSubexp() >= 3 {
		return Groups{Year: 1, Month: 2, Day: 3}
	}
	return Groups{}
}

// DropNulls drops rows with missing values.
type DropNulls struct {
	Index []int `yaml:"index"`
}

func (p *DropNulls) Validate() []FieldError { return nil }

// DropByPairs drops rows matching excluded value combinations.
type DropByPairs struct {
	IndexName    string     `yaml:"index_name"`
	Columns      []string   `yaml:"columns"`
	ExcludePairs [][]Scalar `yaml:"exclude_pairs"`
}

func (p *DropByPairs) Validate() []FieldError {
	errs := nonEmpty("columns", p.Columns)
	if len(p.Columns) == 0 {
		errs = append(errs, FieldError{Path: "columns", Message: "at least one column is required"})
	}
	for i, pair := range p.ExcludePairs {
		if len(pair) != len(p.Columns) {
			errs = append(errs, FieldError{
				Path:    fmt.Sprintf("exclude_pairs[%d]", i),
				Message: fmt.Sprintf("has %d values, want %d (one per column)", len(pair), len(p.Columns)),
			})
		}
	}
	return errs
}

// ExplodeVillage splits a delimited column into one row per part.
type ExplodeVillage struct {
	SourceColumn   string `yaml:"source_column"`
	Delimiter      string `yaml:"delimiter"`
	KeepOriginalAs string `yaml:"keep_original_as"`
	SortBy         string `yaml:"sort_by"`
	ResetIndex     bool   `yaml:"reset_index"`
	NewIndex       string `yaml:"new_index"`
}

func (p *ExplodeVillage) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(p.SourceColumn) == "" {
		errs = append(errs, FieldError{Path: "source_column", Message: "must not be empty"})
	}
	if p.Delimiter == "" {
		errs = append(errs, FieldError{Path: "delimiter", Message: "must not be empty"})
	}
	if p.KeepOriginalAs != "" && p.KeepOriginalAs == p.SourceColumn {
		errs = append(errs, FieldError{Path: "keep_original_as", Message: "must differ from source_column"})
	}
	return errs
}

// SplitAliases names the two outputs of split_duplicates.
type SplitAliases struct {
	Duplicates string `yaml:"duplicates"`
	Unique     string `yaml:"unique"`
}

// SplitDuplicates separates rows with a repeated key from the rest.
type SplitDuplicates struct {
	Subset           []string     `yaml:"subset"`
	Aliases          SplitAliases `yaml:"output_aliases"`
	SortDuplicatesBy string       `yaml:"sort_duplicates_by"`
}

func (p *SplitDuplicates) Validate() []FieldError {
	errs := nonEmpty("subset", p.Subset)
	if len(p.Subset) == 0 {
		errs = append(errs, FieldError{Path: "subset", Message: "at least one column is required"})
	}
	errs = append(errs, alias("output_aliases.duplicates", p.Aliases.Duplicates)...)
	errs = append(errs, alias("output_aliases.unique", p.Aliases.Unique)...)
	if p.Aliases.Duplicates != "" && p.Aliases.Duplicates == p.Aliases.Unique {
		errs = append(errs, FieldError{Path: "output_aliases", Message: "duplicates and unique must be different aliases"})
	}
	return errs
}

func (p *SplitDuplicates) OutputAliases() []string {
	return []string{p.Aliases.Duplicates, p.Aliases.Unique}
}

// DissolveVillages merges the geometries of grouped rows.
type DissolveVillages struct {
	Input            string                 `yaml:"input"`
	Where            string                 `yaml:"where"`
	By               string                 `yaml:"by"`
	AggregationRules map[string]Aggregation `yaml:"aggregation_rules"`

	once    sync.Once
	program *vm.Program
	err     error
}

func (p *DissolveVillages) Validate() []FieldError {
	errs := alias("input", p.Input)
	if strings.TrimSpace(p.By) == "" {
		errs = append(errs, FieldError{Path: "by", Message: "must not be empty"})
	}
	if _, err := p.Predicate(); err != nil {
		errs = append(errs, FieldError{Path: "where", Message: err.Error()})
	}
	return errs
}

func (p *DissolveVillages) InputAliases() []string { return []string{p.Input} }

// Predicate compiles Where once. A nil program means every row matches.
func (p *DissolveVillages) Predicate() (*vm.Program, error) {
	p.once.Do(func() {
		if strings.TrimSpace(p.Where) == "" {
			return
		}
		p.program, p.err = expr.Compile(p.Where, expr.AllowUndefinedVariables(), expr.AsBool())
	})
	return p.program, p.err
}

// ConcatFinalize concatenates several aliases into one.
type ConcatFinalize struct {
	Input       []string `yaml:"input"`
	IgnoreIndex bool     `yaml:"ignore_index"`
	SortBy      string   `yaml:"sort_by"`
	ResetIndex  bool     `yaml:"reset_index"`
	IndexName   string   `yaml:"index_name"`
	OutputAlias string   `yaml:"output_alias"`
}

func (p *ConcatFinalize) Validate() []FieldError {
	var errs []FieldError
	if len(p.Input) == 0 {
		errs = append(errs, FieldError{Path: "input", Message: "at least one alias is required"})
	}
	for i, a := range p.Input {
		errs = append(errs, alias(fmt.Sprintf("input[%d]", i), a)...)
	}
	return append(errs, alias("output_alias", p.OutputAlias)...)
}

func (p *ConcatFinalize) InputAliases() []string  { return append([]string(nil), p.Input...) }
func (p *ConcatFinalize) OutputAliases() []string { return []string{p.OutputAlias} }

func nonEmpty(path string, names []string) []FieldError {
	var errs []FieldError
	for i, n := range names {
		if strings.TrimSpace(n) == "" {
			errs = append(errs, FieldError{Path: fmt.Sprintf("%s[%d]", path, i), Message: "column name must not be empty"})
		}
	}
	return errs
}

func alias(path, name string) []FieldError {
	if strings.TrimSpace(name) == "" {
		return []FieldError{{Path: path, Message: "alias must not be empty"}}
	}
	return nil
}
