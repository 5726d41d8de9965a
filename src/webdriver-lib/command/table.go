package command

import (
	"sort"

	"github.com/uber/webdriver-bridge/src/webdriver-lib/errors"
)

// Table resolves command names to specs per protocol variant.
// A Table is never modified after construction and is safe for concurrent use.
type Table struct {
	specs map[Variant]map[Name]Spec
}

// NewTable merges base underneath each variant's overrides.
// A command present only in one override map is available only for that variant.
func NewTable(base map[Name]Spec, overrides map[Variant]map[Name]Spec) *Table {
	t := &Table{specs: make(map[Variant]map[Name]Spec, 2)}
	for _, v := range []Variant{W3C, Legacy} {
		merged := make(map[Name]Spec, len(base)+len(overrides[v]))
		for name, spec := range base {
			merged[name] = spec
		}
		for name, spec := range overrides[v] {
			merged[name] = spec
		}
		t.specs[v] = merged
	}
	return t
}

var _default = NewTable(_base, map[Variant]map[Name]Spec{
	W3C:    _w3c,
	Legacy: _legacy,
})

// Default returns the built-in table for the common W3C and JSON Wire Protocol commands.
func Default() *Table {
	return _default
}

// Lookup returns the spec for name under the given variant.
func (t *Table) Lookup(name Name, v Variant) (Spec, error) {
	spec, ok := t.specs[resolve(v)][name]
	if !ok {
		return Spec{}, &errors.CommandNotFoundError{Name: string(name), Variant: string(v)}
	}
	return spec, nil
}

// With returns a copy of the table with extra entries applied to the variant.
// Extra entries for Auto apply to both variants.
func (t *Table) With(v Variant, extra map[Name]Spec) *Table {
	next := &Table{specs: make(map[Variant]map[Name]Spec, len(t.specs))}
	for variant, specs := range t.specs {
		merged := make(map[Name]Spec, len(specs)+len(extra))
		for name, spec := range specs {
			merged[name] = spec
		}
		if v == Auto || resolve(v) == variant {
			for name, spec := range extra {
				merged[name] = spec
			}
		}
		next.specs[variant] = merged
	}
	return next
}

// Names returns the sorted command names known for the variant.
func (t *Table) Names(v Variant) []Name {
	specs := t.specs[resolve(v)]
	names := make([]Name, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func resolve(v Variant) Variant {
	if v == Legacy {
		return Legacy
	}
	return W3C
}
