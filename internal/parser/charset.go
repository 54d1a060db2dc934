package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

// sniffSize is how much input auto-detection inspects.
const sniffSize = 64 * 1024

// FallbackEncoding is assumed when auto-detection finds invalid UTF-8.
// Taiwanese government open data is mostly Big5/CP950 when not UTF-8.
const FallbackEncoding = "big5"

// aliases covers common names that the WHATWG label index lacks.
var aliases = map[string]encoding.Encoding{
	"cp950":  traditionalchinese.Big5,
	"ms950":  traditionalchinese.Big5,
	"big5hk": traditionalchinese.Big5,
}

// LookupEncoding returns the encoding called name ("utf-8", "big5", "cp950",
// "windows-1252", ...).
func LookupEncoding(name string) (encoding.Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if enc, ok := aliases[key]; ok {
		return enc, nil
	}
	enc, err := htmlindex.Get(key)
	if err != nil {
		return nil, fmt.Errorf("parser: unknown encoding %q: %w", name, err)
	}
	return enc, nil
}

// Decode wraps r so that it yields UTF-8 without a byte order mark. An empty
// name or "auto" sniffs the start of the input: valid UTF-8 is passed
// through and anything else is decoded as FallbackEncoding. It returns the
// name of the encoding in effect.
func Decode(r io.Reader, name string) (io.Reader, string, error) {
	br := bufio.NewReaderSize(r, sniffSize)
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || key == "auto" {
		head, err := br.Peek(sniffSize)
		if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
			return nil, "", fmt.Errorf("parser: sniff encoding: %w", err)
		}
		key = "utf-8"
		if !validUTF8Prefix(head, err == io.EOF) {
			key = FallbackEncoding
		}
	}

	enc, err := LookupEncoding(key)
	if err != nil {
		return nil, "", err
	}
	label, err := htmlindex.Name(enc)
	if err != nil {
		label = key
	}
	if label == "utf-8" {
		if err := skipBOM(br); err != nil {
			return nil, "", err
		}
		return br, label, nil
	}
	return transform.NewReader(br, enc.NewDecoder()), label, nil
}

func skipBOM(br *bufio.Reader) error {
	head, err := br.Peek(3)
	if err != nil && err != io.EOF {
		return fmt.Errorf("parser: read: %w", err)
	}
	if bytes.HasPrefix(head, []byte("\xEF\xBB\xBF")) {
		_, err := br.Discard(3)
		return err
	}
	return nil
}

// validUTF8Prefix reports whether b is valid UTF-8, ignoring a rune cut off
// at the end of a sample that is not the whole input.
func validUTF8Prefix(b []byte, complete bool) bool {
	if !complete {
		for i := 1; i <= utf8.UTFMax && i <= len(b); i++ {
			if utf8.RuneStart(b[len(b)-i]) {
				if !utf8.FullRune(b[len(b)-i:]) {
					b = b[:len(b)-i]
				}
				break
			}
		}
	}
	return utf8.Valid(b)
}
