package region

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/IshaanNene/newsgoat/internal/types"
)

// Lookup resolves free-text region names to codes. Matching ignores case and
// surrounding whitespace; codes, names and aliases all resolve.
type Lookup struct {
	codes map[string]string
	names map[string]string
}

// NewLookup builds a Lookup from a region table.
func NewLookup(entries []Entry) *Lookup {
	l := &Lookup{
		codes: make(map[string]string, len(entries)*3),
		names: make(map[string]string, len(entries)),
	}
	for _, e := range entries {
		l.codes[foldKey(e.Code)] = e.Code
		if e.Name != "" {
			l.codes[foldKey(e.Name)] = e.Code
			l.names[e.Code] = e.Name
		}
		for _, a := range e.Aliases {
			l.codes[foldKey(a)] = e.Code
		}
	}
	return l
}

// Code returns the region code for name. Unknown names yield a
// *types.LookupError wrapping types.ErrUnknownRegion.
func (l *Lookup) Code(name string) (string, error) {
	key := foldKey(name)
	if key == "" {
		return "", &types.LookupError{Value: name, Err: types.ErrUnknownRegion}
	}
	code, ok := l.codes[key]
	if !ok {
		return "", &types.LookupError{Value: name, Err: types.ErrUnknownRegion}
	}
	return code, nil
}

// Name returns the display name of code, or code itself if it has none.
func (l *Lookup) Name(code string) string {
	if n, ok := l.names[code]; ok {
		return n
	}
	return code
}

func foldKey(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return cases.Fold().String(s)
}
