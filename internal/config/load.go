package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse reads one YAML document and returns its root mapping. The root must
// have exactly one key; its value is the pipeline body.
func Parse(text []byte) (*yaml.Node, error) {
	if len(bytes.TrimSpace(text)) == 0 {
		return nil, &ParseError{Msg: "empty document"}
	}
	dec := yaml.NewDecoder(bytes.NewReader(text))
	var doc yaml.Node
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Msg: "empty document"}
		}
		return nil, &ParseError{Msg: "invalid YAML", Err: err}
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, &ParseError{Msg: "invalid YAML", Err: err}
		}
		return nil, &ParseError{Line: extra.Line, Column: extra.Column, Msg: "expected a single document, found several"}
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, &ParseError{Msg: "empty document"}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &ParseError{Line: root.Line, Column: root.Column, Msg: "root must be a mapping with exactly one key"}
	}
	if n := len(root.Content) / 2; n != 1 {
		return nil, &ParseError{Line: root.Line, Column: root.Column, Msg: fmt.Sprintf("root must have exactly one key, found %d", n)}
	}
	return root, nil
}

// Load reads, parses and validates the pipeline file at path.
func Load(path string, schemas SchemaSource) (*Pipeline, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return LoadBytes(text, schemas)
}

// LoadBytes parses and validates text.
func LoadBytes(text []byte, schemas SchemaSource) (*Pipeline, error) {
	root, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return Validate(root, schemas)
}

// LoadAndValidate runs the three loading stages on the file at path:
// parse, schema validation and the registry cross-check.
func LoadAndValidate(path string, catalog Catalog) (*Pipeline, error) {
	p, err := Load(path, catalog)
	if err != nil {
		return nil, err
	}
	if err := CrossCheck(p, catalog); err != nil {
		return nil, err
	}
	return p, nil
}
