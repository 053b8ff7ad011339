package output

import (
	"sort"

	"shelfscan/internal/params"

	"github.com/maruel/natural"
)

// ParamSource is the part of the configuration store needed to tell whether
// defaults are in effect.
type ParamSource interface {
	Default() params.Set
	Params(id string) params.Set
}

// Generate builds the map to save. Every ID in either input is visited in
// natural order; a manual edit wins over the computed value.
func Generate(edits, computed *Map) *Map {
	ids := make(map[string]struct{})
	for _, m := range []*Map{edits, computed} {
		if m == nil {
			continue
		}
		for _, id := range m.Keys() {
			ids[id] = struct{}{}
		}
	}

	keys := make([]string, 0, len(ids))
	for id := range ids {
		keys = append(keys, id)
	}
	sort.Sort(natural.StringSlice(keys))

	out := New()
	for _, id := range keys {
		if edits != nil {
			if vals, ok := edits.Get(id); ok {
				out.entries[id] = vals
				continue
			}
		}
		if computed != nil {
			vals, _ := computed.Get(id)
			out.entries[id] = vals
		}
	}
	return out
}

// DefaultsInEffect reports whether every image in ids resolves to the
// default parameter set.
func DefaultsInEffect(src ParamSource, ids []string) bool {
	def := src.Default()
	for _, id := range ids {
		if src.Params(id) != def {
			return false
		}
	}
	return true
}
