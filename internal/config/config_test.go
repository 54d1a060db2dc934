package config

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"geoetl/internal/registry"
	"geoetl/internal/rule"
)

// schemaMap is a Catalog backed by plain factories.
type schemaMap map[string]func() rule.Params

func (m schemaMap) NewParams(name string) (rule.Params, bool) {
	f, ok := m[name]
	if !ok {
		return nil, false
	}
	return f(), true
}

func (m schemaMap) Names() []string {
	out := make([]string, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

var testSchemas = schemaMap{
	"convert_crs":       func() rule.Params { return &rule.ConvertCRS{} },
	"rename_columns":    func() rule.Params { return &rule.RenameColumns{} },
	"dropnulls":         func() rule.Params { return &rule.DropNulls{} },
	"split_duplicates":  func() rule.Params { return &rule.SplitDuplicates{} },
	"dissolve_villages": func() rule.Params { return &rule.DissolveVillages{} },
	"concat_finalize":   func() rule.Params { return &rule.ConcatFinalize{} },
}

const fullPipeline = `
precleaning_rules:
  description: " Clean village boundaries "
  rules:
    - task_name: Reproject
      description: to TWD97 TM2
      type: schema-level
      action: convert_crs
      parameters: { to_crs: "EPSG:3826" }
    - task_name: Rename
      description: english names
      type: column-level
      action: rename_columns
      parameters:
        mappings: { VILLNAME: village, TOWNNAME: town }
    - task_name: Split
      description: find duplicated villages
      type: validation-sanity-checks
      action: split_duplicates
      parameters:
        subset: [town, village]
        output_aliases: { duplicates: dups, unique: uniq }
        sort_duplicates_by: village
    - task_name: Dissolve
      description: merge duplicated parts
      type: domain-specific-transformations
      action: dissolve_villages
      output: dissolved
      parameters:
        input: dups
        where: ""
        by: village
        aggregation_rules: { town: first }
    - task_name: Concat
      description: final table
      type: row-level
      action: concat_finalize
      parameters:
        input: [uniq, dissolved]
        ignore_index: true
        sort_by: village
        reset_index: true
        index_name: id
        output_alias: final
`

func TestLoadBytes_Full(t *testing.T) {
	p, err := LoadBytes([]byte(fullPipeline), testSchemas)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if p.Name != "precleaning_rules" || p.Description != "Clean village boundaries" {
		t.Errorf("name/description = %q / %q", p.Name, p.Description)
	}
	if diff := cmp.Diff([]string{"input"}, p.Inputs); diff != "" {
		t.Errorf("inputs (-want +got):\n%s", diff)
	}
	if len(p.Rules) != 5 {
		t.Fatalf("rules = %d", len(p.Rules))
	}
	r := p.Rules[3]
	if r.Index != 3 || r.Category != rule.DomainSpecific || r.Output != "dissolved" {
		t.Errorf("rule 3 = %+v", r)
	}
	if diff := cmp.Diff([]string{"dups"}, r.Inputs()); diff != "" {
		t.Errorf("dissolve inputs (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"dups", "uniq"}, p.Rules[2].Outputs()); diff != "" {
		t.Errorf("split outputs (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"concat_finalize", "convert_crs", "dissolve_villages", "rename_columns", "split_duplicates"}, p.Actions()); diff != "" {
		t.Errorf("actions (-want +got):\n%s", diff)
	}
	if len(p.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", p.Warnings)
	}
	if err := CrossCheck(p, testSchemas); err != nil {
		t.Errorf("CrossCheck: %v", err)
	}
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"empty":          "   \n",
		"malformed":      "a: [1, 2\n",
		"scalar root":    "just text",
		"two root keys":  "a: {}\nb: {}\n",
		"list root":      "- a\n- b\n",
		"two documents":  "a: {}\n---\nb: {}\n",
		"no keys at all": "{}",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src))
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ParseError, got %v", err)
			}
		})
	}
}

func hasIssue(issues []Issue, path, msgSubstr string) bool {
	for _, iss := range issues {
		if iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

/*
All schema problems in the document are reported together, each with the
path and position of the offending node.
*/
func TestValidate_AggregatesIssues(t *testing.T) {
	src := `
p:
  description: broken
  rules:
    - task_name: a
      description: d
      type: schema-level
      action: rename_columns
      parameters:
        mapping: { A: B }
    - task_name: b
      description: d
      type: sideways
      action: dropnulls
      parameters: { index: [1, "x"] }
    - task_name: c
      description: d
      type: row-level
      action: convert_crs
`
	_, err := LoadBytes([]byte(src), testSchemas)
	var sve *SchemaValidationError
	if !errors.As(err, &sve) {
		t.Fatalf("expected SchemaValidationError, got %v", err)
	}
	for _, want := range []struct{ path, msg string }{
		{"rules[0].parameters.mapping", "unknown field"},
		{"rules[0].parameters.mappings", "missing required"},
		{"rules[1].type", "unknown type"},
		{"rules[1].parameters.index[1]", "expected an integer"},
		{"rules[2].parameters", "missing required"},
	} {
		if !hasIssue(sve.Issues, want.path, want.msg) {
			t.Errorf("missing issue %s %q in:\n%v", want.path, want.msg, sve)
		}
	}
	for _, iss := range sve.Issues {
		if iss.Line == 0 {
			t.Errorf("issue without line: %v", iss)
		}
	}
	// index[1] sits on line 15 of the source.
	for _, iss := range sve.Issues {
		if iss.Path == "rules[1].parameters.index[1]" && iss.Line != 15 {
			t.Errorf("index[1] reported on line %d", iss.Line)
		}
	}
}

func TestValidate_SemanticChecksLocated(t *testing.T) {
	src := `
p:
  description: d
  rules:
    - task_name: a
      description: d
      type: schema-level
      action: convert_crs
      parameters: { to_crs: "EPSG:9999" }
`
	_, err := LoadBytes([]byte(src), testSchemas)
	var sve *SchemaValidationError
	if !errors.As(err, &sve) {
		t.Fatalf("expected SchemaValidationError, got %v", err)
	}
	if !hasIssue(sve.Issues, "rules[0].parameters.to_crs", "unsupported CRS") {
		t.Fatalf("issues: %v", sve.Issues)
	}
	if sve.Issues[0].Line != 9 {
		t.Errorf("line = %d", sve.Issues[0].Line)
	}
}

func TestValidate_Warnings(t *testing.T) {
	src := `
p:
  description: d
  rules:
    - task_name: a
      description: d
      type: column-level
      action: rename_columns
      parameters: { mappings: {} }
`
	p, err := LoadBytes([]byte(src), testSchemas)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if !hasIssue(p.Warnings, "rules[0].parameters.mappings", "empty mapping") {
		t.Fatalf("warnings: %v", p.Warnings)
	}

	empty, err := LoadBytes([]byte("p:\n  description: d\n  rules: []\n"), testSchemas)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if len(empty.Rules) != 0 || !hasIssue(empty.Warnings, "rules", "no rules") {
		t.Fatalf("empty pipeline: %+v", empty)
	}
}

func TestValidate_DeclaredAliasConflict(t *testing.T) {
	src := `
p:
  description: d
  rules:
    - task_name: c
      description: d
      type: row-level
      action: concat_finalize
      input: other
      parameters:
        input: [a, b]
        ignore_index: true
        sort_by: ""
        reset_index: false
        index_name: ""
        output_alias: final
`
	_, err := LoadBytes([]byte(src), testSchemas)
	var sve *SchemaValidationError
	if !errors.As(err, &sve) || !hasIssue(sve.Issues, "rules[0].input", "remove the rule-level input") {
		t.Fatalf("got %v", err)
	}
}

/*
An action missing from the registry passes schema validation with unchecked
parameters and is then reported by the cross-check with a suggestion.
*/
func TestCrossCheck_UnknownAction(t *testing.T) {
	src := `
p:
  description: d
  rules:
    - task_name: a
      description: d
      type: row-level
      action: drop_nulls
      parameters: { anything: [1, 2] }
    - task_name: b
      description: d
      type: row-level
      action: explode
      parameters: {}
    - task_name: c
      description: d
      type: row-level
      action: drop_nulls
      parameters: {}
`
	p, err := LoadBytes([]byte(src), testSchemas)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if _, ok := p.Rules[0].Params.(rule.Unchecked); !ok {
		t.Fatalf("params = %T", p.Rules[0].Params)
	}
	err = CrossCheck(p, testSchemas)
	var cce *CrossCheckError
	if !errors.As(err, &cce) {
		t.Fatalf("expected CrossCheckError, got %v", err)
	}
	if len(cce.Missing) != 2 {
		t.Fatalf("missing = %v", cce.Missing)
	}
	first := cce.Missing[0]
	if first.Name != "drop_nulls" || first.Suggestion != "dropnulls" {
		t.Errorf("first = %+v", first)
	}
	if diff := cmp.Diff([]int{0, 2}, first.Rules); diff != "" {
		t.Errorf("rules (-want +got):\n%s", diff)
	}
	if cce.Missing[1].Name != "explode" || cce.Missing[1].Suggestion != "" {
		t.Errorf("second = %+v", cce.Missing[1])
	}
	if !strings.Contains(err.Error(), "'drop_nulls' is not registered (did you mean 'dropnulls'?)") {
		t.Errorf("message = %s", err)
	}
	var unk *registry.UnknownActionError
	if !errors.As(err, &unk) {
		t.Errorf("errors.As UnknownActionError failed")
	}
}

func TestLoadAndValidate_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte(fullPipeline), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadAndValidate(path, testSchemas)
	if err != nil {
		t.Fatalf("LoadAndValidate: %v", err)
	}
	if len(p.Rules) != 5 {
		t.Fatalf("rules = %d", len(p.Rules))
	}
	if _, err := LoadAndValidate(filepath.Join(t.TempDir(), "missing.yaml"), testSchemas); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestOptions(t *testing.T) {
	o, err := ParseOptions([]string{"delimiter=;", "header=false", "skip=2", `tab=\t`})
	if err != nil {
		t.Fatal(err)
	}
	if o.Rune("delimiter", ',') != ';' || o.Bool("header", true) || o.Int("skip", 0) != 2 || o.Rune("tab", ',') != '\t' {
		t.Fatalf("options = %v", o)
	}
	if o.String("missing", "def") != "def" {
		t.Fatal("default not returned")
	}
	if _, err := ParseOptions([]string{"novalue"}); err == nil {
		t.Fatal("expected error")
	}
}
