package region

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/regions.yaml
var embeddedTable []byte

// Entry is one row of the precomputed region table.
type Entry struct {
	Code       string   `yaml:"code"                 json:"code"`
	Name       string   `yaml:"name"                 json:"name"`
	Aliases    []string `yaml:"aliases,omitempty"    json:"aliases,omitempty"`
	Keyphrases []string `yaml:"keyphrases,omitempty" json:"keyphrases,omitempty"`
}

// Embedded returns the region table compiled into the binary.
func Embedded() ([]Entry, error) {
	return parseTable(embeddedTable, "yaml")
}

// LoadFile reads a region table from a YAML or JSON file, chosen by extension.
func LoadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read region table: %w", err)
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	entries, err := parseTable(data, format)
	if err != nil {
		return nil, fmt.Errorf("parse region table %s: %w", path, err)
	}
	return entries, nil
}

// Load returns the table at path, or the embedded table if path is empty.
func Load(path string) ([]Entry, error) {
	if path == "" {
		return Embedded()
	}
	return LoadFile(path)
}

// WriteFile writes entries as YAML or JSON, chosen by extension. Entries are
// sorted by code so regenerated tables diff cleanly.
func WriteFile(path string, entries []Entry) error {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(sorted, "", "  ")
	} else {
		data, err = yaml.Marshal(sorted)
	}
	if err != nil {
		return fmt.Errorf("encode region table: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Merge adds the keyphrases of extra to the matching entries of base and
// appends entries for codes base does not know.
func Merge(base, extra []Entry) []Entry {
	out := make([]Entry, len(base))
	copy(out, base)
	pos := make(map[string]int, len(out))
	for i, e := range out {
		pos[e.Code] = i
	}
	for _, e := range extra {
		i, ok := pos[e.Code]
		if !ok {
			pos[e.Code] = len(out)
			out = append(out, e)
			continue
		}
		merged := append([]string(nil), out[i].Keyphrases...)
		out[i].Keyphrases = appendUnique(merged, e.Keyphrases...)
	}
	return out
}

func appendUnique(dst []string, values ...string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}

func parseTable(data []byte, format string) ([]Entry, error) {
	var entries []Entry
	var err error
	if format == "json" {
		err = json.Unmarshal(data, &entries)
	} else {
		err = yaml.Unmarshal(data, &entries)
	}
	if err != nil {
		return nil, err
	}
	for i, e := range entries {
		if strings.TrimSpace(e.Code) == "" {
			return nil, fmt.Errorf("entry %d (%q) has no code", i, e.Name)
		}
	}
	return entries, nil
}
