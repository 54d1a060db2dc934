package rule

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FieldError is one problem found while decoding or validating parameters.
// Path is relative to the decoded value ("mappings", "mode[1]"). Line and
// Column are zero when the problem is not tied to a node.
type FieldError struct {
	Path    string
	Line    int
	Column  int
	Message string
}

func (e FieldError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

var (
	unmarshalerType = reflect.TypeOf((*yaml.Unmarshaler)(nil)).Elem()
	nodeType        = reflect.TypeOf(yaml.Node{})
)

// Decode fills the struct pointed to by out from node. Decoding is closed:
// unknown keys, duplicate keys, missing required fields (those without
// omitempty) and scalars of the wrong YAML type are all reported. Decode
// keeps going after a problem so that every problem is returned at once.
func Decode(node *yaml.Node, out any) []FieldError {
	v := reflect.ValueOf(out)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return []FieldError{{Message: fmt.Sprintf("rule: Decode needs a non-nil pointer, got %T", out)}}
	}
	var d decoder
	d.value(node, v.Elem(), "")
	return d.errs
}

type decoder struct {
	errs []FieldError
}

func (d *decoder) fail(n *yaml.Node, path, format string, args ...any) {
	e := FieldError{Path: path, Message: fmt.Sprintf(format, args...)}
	if n != nil {
		e.Line, e.Column = n.Line, n.Column
	}
	d.errs = append(d.errs, e)
}

func (d *decoder) value(n *yaml.Node, v reflect.Value, path string) {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	if v.Type() == nodeType {
		v.Set(reflect.ValueOf(*n))
		return
	}
	if v.CanAddr() && v.Addr().Type().Implements(unmarshalerType) {
		if err := n.Decode(v.Addr().Interface()); err != nil {
			d.fail(n, path, "%s", strings.TrimPrefix(err.Error(), "yaml: "))
		}
		return
	}

	switch v.Kind() {
	case reflect.String:
		if !d.scalar(n, path, "a string", "!!str") {
			return
		}
		v.SetString(n.Value)
	case reflect.Bool:
		if !d.scalar(n, path, "a boolean", "!!bool") {
			return
		}
		b, _ := strconv.ParseBool(strings.ToLower(n.Value))
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if !d.scalar(n, path, "an integer", "!!int") {
			return
		}
		var i int64
		if err := n.Decode(&i); err != nil {
			d.fail(n, path, "invalid integer %q", n.Value)
			return
		}
		if v.OverflowInt(i) {
			d.fail(n, path, "integer %d out of range", i)
			return
		}
		v.SetInt(i)
	case reflect.Float32, reflect.Float64:
		if !d.scalar(n, path, "a number", "!!float", "!!int") {
			return
		}
		var f float64
		if err := n.Decode(&f); err != nil {
			d.fail(n, path, "invalid number %q", n.Value)
			return
		}
		v.SetFloat(f)
	case reflect.Slice:
		if n.Kind != yaml.SequenceNode {
			d.fail(n, path, "expected a list, got %s", describe(n))
			return
		}
		s := reflect.MakeSlice(v.Type(), len(n.Content), len(n.Content))
		for i, item := range n.Content {
			d.value(item, s.Index(i), fmt.Sprintf("%s[%d]", path, i))
		}
		v.Set(s)
	case reflect.Map:
		d.mapping(n, v, path)
	case reflect.Struct:
		d.object(n, v, path)
	case reflect.Interface:
		var x any
		if err := n.Decode(&x); err != nil {
			d.fail(n, path, "%s", strings.TrimPrefix(err.Error(), "yaml: "))
			return
		}
		if x == nil {
			v.Set(reflect.Zero(v.Type()))
			return
		}
		v.Set(reflect.ValueOf(x))
	case reflect.Pointer:
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		d.value(n, v.Elem(), path)
	default:
		d.fail(n, path, "rule: cannot decode into %s", v.Type())
	}
}

func (d *decoder) scalar(n *yaml.Node, path, want string, tags ...string) bool {
	if n.Kind == yaml.ScalarNode {
		tag := n.ShortTag()
		for _, t := range tags {
			if tag == t {
				return true
			}
		}
	}
	d.fail(n, path, "expected %s, got %s", want, describe(n))
	return false
}

func (d *decoder) mapping(n *yaml.Node, v reflect.Value, path string) {
	if n.Kind != yaml.MappingNode {
		d.fail(n, path, "expected a mapping, got %s", describe(n))
		return
	}
	if v.Type().Key().Kind() != reflect.String {
		d.fail(n, path, "rule: map key type %s not supported", v.Type().Key())
		return
	}
	m := reflect.MakeMapWithSize(v.Type(), len(n.Content)/2)
	seen := make(map[string]bool, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, val := n.Content[i], n.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			d.fail(k, path, "mapping keys must be scalars, got %s", describe(k))
			continue
		}
		sub := join(path, k.Value)
		if seen[k.Value] {
			d.fail(k, sub, "duplicate key %q", k.Value)
			continue
		}
		seen[k.Value] = true
		elem := reflect.New(v.Type().Elem()).Elem()
		d.value(val, elem, sub)
		key := reflect.New(v.Type().Key()).Elem()
		key.SetString(k.Value)
		m.SetMapIndex(key, elem)
	}
	v.Set(m)
}

func (d *decoder) object(n *yaml.Node, v reflect.Value, path string) {
	if n.Kind != yaml.MappingNode {
		d.fail(n, path, "expected a mapping, got %s", describe(n))
		return
	}
	fields := fieldsOf(v.Type())
	byName := make(map[string]field, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	seen := make(map[string]bool, len(fields))
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, val := n.Content[i], n.Content[i+1]
		sub := join(path, k.Value)
		f, ok := byName[k.Value]
		if !ok {
			d.fail(k, sub, "unknown field %q (allowed: %s)", k.Value, strings.Join(names(fields), ", "))
			continue
		}
		if seen[f.Name] {
			d.fail(k, sub, "duplicate field %q", k.Value)
			continue
		}
		seen[f.Name] = true
		d.value(val, v.Field(f.index), sub)
	}
	for _, f := range fields {
		if !f.Optional && !seen[f.Name] {
			d.fail(n, join(path, f.Name), "missing required field %q", f.Name)
		}
	}
}

// Field describes one parameter of a schema.
type Field struct {
	Name     string
	Type     string
	Optional bool
	index    int
}

type field = Field

// Fields lists the parameters of the struct behind p in declaration order.
func Fields(p any) []Field {
	t := reflect.TypeOf(p)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	return fieldsOf(t)
}

func fieldsOf(t reflect.Type) []Field {
	var out []Field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get("yaml")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = strings.ToLower(sf.Name)
		}
		out = append(out, Field{
			Name:     name,
			Type:     typeName(sf.Type),
			Optional: strings.Contains(opts, "omitempty"),
			index:    i,
		})
	}
	return out
}

func typeName(t reflect.Type) string {
	if t.Implements(unmarshalerType) || reflect.PointerTo(t).Implements(unmarshalerType) {
		return strings.ToLower(t.Name())
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "bool"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "int"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice:
		return "list of " + typeName(t.Elem())
	case reflect.Map:
		return "map of " + typeName(t.Elem())
	case reflect.Interface:
		return "any"
	case reflect.Struct:
		fs := fieldsOf(t)
		return "{" + strings.Join(names(fs), ", ") + "}"
	}
	return t.String()
}

func names(fs []Field) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Name
	}
	return out
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// describe names the YAML type of n for error messages.
func describe(n *yaml.Node) string {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "list"
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			return "null"
		case "!!str":
			return fmt.Sprintf("string %q", n.Value)
		default:
			return strings.TrimPrefix(n.ShortTag(), "!!") + " " + n.Value
		}
	}
	return "document"
}

// Locate follows a FieldError path ("columns[2]", "aggregation_rules.area")
// from n and returns the node it names, or n when the path cannot be
// followed.
func Locate(n *yaml.Node, path string) *yaml.Node {
	cur := n
	for _, seg := range segments(path) {
		if cur.Kind == yaml.AliasNode && cur.Alias != nil {
			cur = cur.Alias
		}
		next := child(cur, seg)
		if next == nil {
			return cur
		}
		cur = next
	}
	return cur
}

func child(n *yaml.Node, seg string) *yaml.Node {
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Value == seg {
				return n.Content[i+1]
			}
		}
	case yaml.SequenceNode:
		idx, err := strconv.Atoi(seg)
		if err == nil && idx >= 0 && idx < len(n.Content) {
			return n.Content[idx]
		}
	}
	return nil
}

func segments(path string) []string {
	var out []string
	for _, part := range strings.Split(path, ".") {
		for part != "" {
			open := strings.IndexByte(part, '[')
			if open < 0 {
				out = append(out, part)
				break
			}
			if open > 0 {
				out = append(out, part[:open])
			}
			end := strings.IndexByte(part[open:], ']')
			if end < 0 {
				out = append(out, part[open:])
				break
			}
			out = append(out, part[open+1:open+end])
			part = part[open+end+1:]
		}
	}
	return out
}

// sortedKeys returns the keys of m in sorted order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
