package file

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Binding maps a seed alias to an input location (path or URL).
type Binding struct {
	Alias    string
	Location string
}

// ParseBinding splits "alias=location".
func ParseBinding(s string) (Binding, error) {
	alias, loc, ok := strings.Cut(s, "=")
	alias, loc = strings.TrimSpace(alias), strings.TrimSpace(loc)
	if !ok || alias == "" || loc == "" {
		return Binding{}, fmt.Errorf("input %q: want alias=path|url", s)
	}
	return Binding{Alias: alias, Location: loc}, nil
}

// ReadList reads a text file line by line and returns its non-empty,
// non-comment lines in order. Lines are trimmed; lines starting with '#'
// are skipped.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadBindings reads an input list file of "alias=location" lines.
func ReadBindings(path string) ([]Binding, error) {
	lines, err := ReadList(path)
	if err != nil {
		return nil, fmt.Errorf("read input list: %w", err)
	}
	out := make([]Binding, 0, len(lines))
	for i, l := range lines {
		b, err := ParseBinding(l)
		if err != nil {
			return nil, fmt.Errorf("%s: entry %d: %w", path, i+1, err)
		}
		out = append(out, b)
	}
	return out, nil
}
