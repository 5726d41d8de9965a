package command

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Overrides holds extra command entries per variant, as loaded from a YAML document:
//
//	w3c:
//	  getDownloadableFiles:
//	    method: GET
//	    path: /session/:session_id/se/files
//	auto:
//	  dummyCommand:
//	    method: POST
//	    path: /session/:session_id/echo
type Overrides map[Variant]map[Name]Spec

// LoadOverrides decodes and validates an overrides document.
func LoadOverrides(r io.Reader) (Overrides, error) {
	var raw map[string]map[Name]Spec
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return Overrides{}, nil
		}
		return nil, fmt.Errorf("decoding command overrides: %w", err)
	}

	result := make(Overrides, len(raw))
	for key, specs := range raw {
		v, err := ParseVariant(key)
		if err != nil {
			return nil, err
		}
		if result[v] == nil {
			result[v] = make(map[Name]Spec, len(specs))
		}
		for name, spec := range specs {
			spec.Method = strings.ToUpper(spec.Method)
			if err := spec.Validate(); err != nil {
				return nil, fmt.Errorf("command %q: %w", name, err)
			}
			result[v][name] = spec
		}
	}
	return result, nil
}

// Apply returns t extended with every variant in o.
func (o Overrides) Apply(t *Table) *Table {
	for _, v := range []Variant{Auto, W3C, Legacy} {
		if extra, ok := o[v]; ok {
			t = t.With(v, extra)
		}
	}
	return t
}
