package region

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/IshaanNene/newsgoat/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testIndex() *Index {
	return NewBuilder(testLogger()).
		Add("UA", "Ukraine", "Kyiv").
		Add("RU", "Russia", "Moscow").
		Add("FR", "France", "Paris").
		Add("XX").
		Add("YY", "", "  ").
		Build()
}

func TestBuilderDropsEmptyRegions(t *testing.T) {
	idx := testIndex()
	if idx.Len() != 3 {
		t.Fatalf("expected 3 regions, got %d: %v", idx.Len(), idx.Regions())
	}
	if idx.Keyphrases("XX") != nil || idx.Keyphrases("YY") != nil {
		t.Error("regions without keyphrases must be dropped")
	}
	want := []string{"FR", "RU", "UA"}
	if got := idx.Regions(); !reflect.DeepEqual(got, want) {
		t.Errorf("Regions() = %v, want %v", got, want)
	}
}

func TestBuilderMergesDuplicates(t *testing.T) {
	idx := NewBuilder(testLogger()).
		Add("UA", "Kyiv").
		Add("UA", "Kyiv", "Ukraine").
		Build()
	if got := idx.Keyphrases("UA"); !reflect.DeepEqual(got, []string{"Kyiv", "Ukraine"}) {
		t.Errorf("unexpected keyphrases: %v", got)
	}
}

func TestTag(t *testing.T) {
	tagger := NewTagger(testIndex(), TaggerOptions{})

	tests := []struct {
		name      string
		fragments []string
		want      []string
	}{
		{"single", []string{"Shelling reported in Kyiv"}, []string{"UA"}},
		{"multiple", []string{"Moscow and Kyiv trade blame"}, []string{"RU", "UA"}},
		{"across fragments", []string{"Talks in Paris", "Russia responds"}, []string{"FR", "RU"}},
		{"no match kept empty", []string{"Local weather"}, []string{}},
		{"case sensitive", []string{"paris fashion week"}, []string{}},
		{"none", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tagger.Tag(tt.fragments...)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tag(%q) = %v, want %v", tt.fragments, got, tt.want)
			}
		})
	}
}

func TestTagFoldCase(t *testing.T) {
	tagger := NewTagger(testIndex(), TaggerOptions{FoldCase: true})
	got := tagger.Tag("PARIS talks", "kyiv")
	if !reflect.DeepEqual(got, []string{"FR", "UA"}) {
		t.Errorf("fold case tag = %v", got)
	}
}

func TestTagMonotonic(t *testing.T) {
	tagger := NewTagger(testIndex(), TaggerOptions{})
	pairs := [][2]string{
		{"Kyiv", "Moscow responds"},
		{"", "France"},
		{"Nothing here", ""},
		{"Paris", "Paris"},
	}
	for _, p := range pairs {
		titleOnly := tagger.Tag(p[0])
		both := tagger.Tag(p[0], p[1])
		set := make(map[string]bool, len(both))
		for _, c := range both {
			set[c] = true
		}
		for _, c := range titleOnly {
			if !set[c] {
				t.Errorf("Tag(%q, %q) = %v lost %s from title-only %v", p[0], p[1], both, c, titleOnly)
			}
		}
	}
}

func TestEmbeddedTable(t *testing.T) {
	entries, err := Embedded()
	if err != nil {
		t.Fatalf("embedded table: %v", err)
	}
	if len(entries) < 50 {
		t.Fatalf("expected a full table, got %d entries", len(entries))
	}
	idx := NewBuilder(testLogger()).AddEntries(entries).Build()
	tagger := NewTagger(idx, TaggerOptions{})
	got := tagger.Tag("Drone strikes hit Kyiv overnight")
	if !reflect.DeepEqual(got, []string{"UA"}) {
		t.Errorf("expected UA, got %v", got)
	}
}

func TestLookup(t *testing.T) {
	entries, err := Embedded()
	if err != nil {
		t.Fatal(err)
	}
	l := NewLookup(entries)

	tests := map[string]string{
		"United States":  "US",
		"united states":  "US",
		"  Hong   Kong ": "HK",
		"Czech Republic": "CZ",
		"Norway":         "NO",
		"UK":             "GB",
		"de":             "DE",
	}
	for in, want := range tests {
		got, err := l.Code(in)
		if err != nil {
			t.Errorf("Code(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("Code(%q) = %q, want %q", in, got, want)
		}
	}

	_, err = l.Code("Unknownland")
	var le *types.LookupError
	if !errors.As(err, &le) {
		t.Fatalf("expected LookupError, got %v", err)
	}
	if !errors.Is(err, types.ErrUnknownRegion) {
		t.Error("expected ErrUnknownRegion")
	}
	if _, err := l.Code(""); err == nil {
		t.Error("empty name should not resolve")
	}
	if l.Name("FR") != "France" {
		t.Errorf("Name(FR) = %q", l.Name("FR"))
	}
}

func TestWriteAndLoadFile(t *testing.T) {
	dir := t.TempDir()
	entries := []Entry{
		{Code: "UA", Name: "Ukraine", Keyphrases: []string{"Kyiv"}},
		{Code: "FR", Name: "France", Aliases: []string{"French Republic"}, Keyphrases: []string{"Paris"}},
	}

	for _, name := range []string{"table.yaml", "table.json"} {
		path := filepath.Join(dir, name)
		if err := WriteFile(path, entries); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		got, err := LoadFile(path)
		if err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
		if len(got) != 2 || got[0].Code != "FR" || got[1].Keyphrases[0] != "Kyiv" {
			t.Errorf("%s: unexpected entries %+v", name, got)
		}
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMerge(t *testing.T) {
	base := []Entry{{Code: "US", Keyphrases: []string{"Washington"}}}
	extra := []Entry{
		{Code: "US", Keyphrases: []string{"Washington", "Elon Musk"}},
		{Code: "FR", Keyphrases: []string{"Bernard Arnault"}},
	}
	got := Merge(base, extra)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if !reflect.DeepEqual(got[0].Keyphrases, []string{"Washington", "Elon Musk"}) {
		t.Errorf("unexpected merge: %v", got[0].Keyphrases)
	}
	if len(base[0].Keyphrases) != 1 {
		t.Error("Merge must not mutate base")
	}
}
