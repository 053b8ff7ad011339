package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
	"unicode/utf16"
	"unicode/utf8"
)

// FileSuffix follows the date prefix of every saved output file.
const FileSuffix = "_Output.json"

// FileName returns the dated file name for a save at t.
func FileName(t time.Time) string {
	return t.Format("2006-01-02") + FileSuffix
}

// Save writes m into dir as YYYY-MM-DD_Output.json, indented with four
// spaces and keyed in natural order. It returns the written path.
func Save(m *Map, dir string, now time.Time) (string, error) {
	data, err := Marshal(m)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, FileName(now))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write output %s: %w", path, err)
	}
	return path, nil
}

// Marshal encodes m as indented JSON with keys in natural order.
func Marshal(m *Map) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, id := range m.Keys() {
		vals, _ := m.Get(id)
		if vals == nil {
			vals = []int{}
		}
		key, err := encodeKey(id)
		if err != nil {
			return nil, err
		}
		body, err := json.MarshalIndent(vals, "    ", "    ")
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n    ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(body)
	}
	if m.Len() > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}")
	return buf.Bytes(), nil
}

// encodeKey quotes an image ID the way earlier output files wrote them:
// HTML characters left alone, everything outside ASCII as \uXXXX escapes.
func encodeKey(id string) ([]byte, error) {
	var raw bytes.Buffer
	enc := json.NewEncoder(&raw)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(id); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	for _, r := range string(bytes.TrimRight(raw.Bytes(), "\n")) {
		switch {
		case r < utf8.RuneSelf:
			out.WriteRune(r)
		case r > 0xFFFF:
			hi, lo := utf16.EncodeRune(r)
			fmt.Fprintf(&out, `\u%04x\u%04x`, hi, lo)
		default:
			fmt.Fprintf(&out, `\u%04x`, r)
		}
	}
	return out.Bytes(), nil
}

// Load reads a saved output file.
func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	var entries map[string][]int
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse output %s: %w", path, err)
	}
	return FromEntries(entries), nil
}

// Latest returns the newest dated output file in dir, or "" when there is
// none. Date prefixes sort lexically.
func Latest(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+FileSuffix))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}
