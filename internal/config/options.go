package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Options is a small helper to fetch typed values from the free-form
// key=value settings passed to sources, parsers and sinks on the command
// line. It performs only minimal coercion and returns the provided default
// when a key is absent or cannot be converted.
type Options map[string]string

// ParseOptions builds Options from "key=value" pairs.
func ParseOptions(pairs []string) (Options, error) {
	o := Options{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("config: option %q must look like key=value", p)
		}
		o[k] = v
	}
	return o, nil
}

// String returns the value for key or def if key is missing.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		return v
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or invalid.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// Rune returns the first rune of the value for key, or def if key is
// missing or empty. Useful for single-character settings such as a CSV
// delimiter; "\t" is accepted for tab.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok && len(v) > 0 {
		if v == `\t` {
			return '\t'
		}
		return []rune(v)[0]
	}
	return def
}

// With returns a copy of o with key set to value.
func (o Options) With(key, value string) Options {
	out := make(Options, len(o)+1)
	for k, v := range o {
		out[k] = v
	}
	out[key] = value
	return out
}
