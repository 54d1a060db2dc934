// Package json loads JSON records into a plain dataset.
//
// Accepted shapes:
//
//   - newline-delimited JSON objects (NDJSON):
//     {"id":1,"name":"a"}
//     {"id":2,"name":"b"}
//   - a single top-level array of objects, when Options.AllowArrays is set.
//
// Top-level values that are not objects are skipped in NDJSON streams.
// Columns appear in first-seen key order. Numbers become int64 when they
// are integers and float64 otherwise; nested objects and arrays are kept
// as compact JSON text.
package json

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode"

	"geoetl/internal/ctxlog"
	"geoetl/internal/dataset"
	"geoetl/pkg/records"
)

// Options configures Load and Decoder.
type Options struct {
	// AllowArrays accepts a top-level JSON array of objects.
	AllowArrays bool
}

// Decoder reads one object at a time from an NDJSON stream.
type Decoder struct {
	dec *json.Decoder
	opt Options
}

// NewDecoder constructs a Decoder from an io.Reader and JSON Options.
func NewDecoder(r io.Reader, opt Options) *Decoder {
	return &Decoder{dec: json.NewDecoder(r), opt: opt}
}

// Next returns the next object's keys in document order and its record.
// Non-object values are skipped. io.EOF is returned when the stream is
// exhausted.
func (d *Decoder) Next() ([]string, records.Record, error) {
	for {
		var raw json.RawMessage
		if err := d.dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil, io.EOF
			}
			return nil, nil, fmt.Errorf("json parser: decode: %w", err)
		}
		if !isObject(raw) {
			continue
		}
		return decodeObject(raw)
	}
}

// Load reads every record from r into a dataset.
func Load(ctx context.Context, r io.Reader, opt Options) (*dataset.Dataset, error) {
	br := bufio.NewReader(r)
	first, err := firstNonSpace(br)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("json parser: read: %w", err)
	}

	var b builder
	if first == '[' {
		if !opt.AllowArrays {
			return nil, fmt.Errorf("json parser: top-level array encountered but allow_arrays=false")
		}
		var elems []json.RawMessage
		if err := json.NewDecoder(br).Decode(&elems); err != nil {
			return nil, fmt.Errorf("json parser: decode array: %w", err)
		}
		for i, e := range elems {
			if !isObject(e) {
				return nil, fmt.Errorf("json parser: element %d in array is not an object", i)
			}
			keys, rec, err := decodeObject(e)
			if err != nil {
				return nil, fmt.Errorf("json parser: element %d: %w", i, err)
			}
			b.add(keys, rec)
		}
	} else {
		dec := NewDecoder(br, opt)
		for {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			keys, rec, err := dec.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, err
			}
			b.add(keys, rec)
		}
	}

	ctxlog.FromContext(ctx).Debug("json parser: loaded", "records", len(b.rows), "columns", len(b.columns))
	return dataset.New(b.columns, b.rows), nil
}

type builder struct {
	columns []string
	seen    map[string]bool
	rows    []records.Record
}

func (b *builder) add(keys []string, rec records.Record) {
	if b.seen == nil {
		b.seen = map[string]bool{}
	}
	for _, k := range keys {
		if !b.seen[k] {
			b.seen[k] = true
			b.columns = append(b.columns, k)
		}
	}
	b.rows = append(b.rows, rec)
}

// ObjectKeys returns the keys of a JSON object in document order.
func ObjectKeys(obj []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(obj))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, fmt.Errorf("not an object")
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		keys = append(keys, tok.(string))
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func decodeObject(raw json.RawMessage) ([]string, records.Record, error) {
	keys, err := ObjectKeys(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("json parser: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, nil, fmt.Errorf("json parser: decode object: %w", err)
	}
	rec := make(records.Record, len(fields))
	for k, v := range fields {
		val, err := scalar(v)
		if err != nil {
			return nil, nil, fmt.Errorf("json parser: field %q: %w", k, err)
		}
		rec[k] = val
	}
	return keys, rec, nil
}

// scalar converts one JSON value to a cell value.
func scalar(raw json.RawMessage) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	switch raw[0] {
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, err
		}
		return buf.String(), nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		return n.Float64()
	}
	return v, nil
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimLeftFunc(raw, unicode.IsSpace)
	return len(raw) > 0 && raw[0] == '{'
}

// firstNonSpace peeks the first non-space byte of br without consuming it.
func firstNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if b != ' ' && b != '\t' && b != '\n' && b != '\r' {
			return b, br.UnreadByte()
		}
	}
}
