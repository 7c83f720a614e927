package permission

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var ErrMalformedMap = errors.New("malformed permission map")

// Map is the permission claim: module name -> feature name -> action names.
type Map map[string]map[string][]string

// Triple is one granted (module, feature, action).
type Triple struct {
	Module  string
	Feature string
	Action  string
}

func (t Triple) String() string {
	return t.Module + "." + t.Feature + "." + t.Action
}

// Add records action under module/feature once.
func (m Map) Add(module, feature, action string) {
	features, ok := m[module]
	if !ok {
		features = make(map[string][]string)
		m[module] = features
	}
	for _, existing := range features[feature] {
		if existing == action {
			return
		}
	}
	features[feature] = append(features[feature], action)
}

func (m Map) Has(module, feature, action string) bool {
	if m == nil {
		return false
	}
	for _, a := range m[module][feature] {
		if a == action {
			return true
		}
	}
	return false
}

// Sort orders every action list. rank gives the primary key (bit position
// when known); ties and unknown actions fall back to the name.
func (m Map) Sort(rank func(action string) int) {
	for _, features := range m {
		for feature, actions := range features {
			sort.SliceStable(actions, func(i, j int) bool {
				ri, rj := rank(actions[i]), rank(actions[j])
				if ri != rj {
					return ri < rj
				}
				return actions[i] < actions[j]
			})
			features[feature] = actions
		}
	}
}

// Triples flattens the map in module, feature, action-list order.
func (m Map) Triples() []Triple {
	modules := make([]string, 0, len(m))
	for module := range m {
		modules = append(modules, module)
	}
	sort.Strings(modules)

	var out []Triple
	for _, module := range modules {
		features := make([]string, 0, len(m[module]))
		for feature := range m[module] {
			features = append(features, feature)
		}
		sort.Strings(features)
		for _, feature := range features {
			for _, action := range m[module][feature] {
				out = append(out, Triple{Module: module, Feature: feature, Action: action})
			}
		}
	}
	return out
}

// MarshalJSON relies on encoding/json sorting map keys; action order is
// whatever Sort left, so two maps built from the same grants encode equal.
func (m Map) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]map[string][]string(m))
}

// ParseMap decodes a permission claim strictly. The value must be an object
// of objects of string arrays; anything else (null, numbers, nested objects,
// trailing data) is rejected so callers can fail closed.
func ParseMap(raw []byte) (Map, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty claim", ErrMalformedMap)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMap, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedMap)
	}

	modules, ok := root.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top level is not an object", ErrMalformedMap)
	}

	out := make(Map, len(modules))
	for module, rawFeatures := range modules {
		features, ok := rawFeatures.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: module %q is not an object", ErrMalformedMap, module)
		}
		out[module] = make(map[string][]string, len(features))
		for feature, rawActions := range features {
			actions, ok := rawActions.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s is not an array", ErrMalformedMap, module, feature)
			}
			names := make([]string, 0, len(actions))
			for _, a := range actions {
				name, ok := a.(string)
				if !ok {
					return nil, fmt.Errorf("%w: %s.%s holds a non string action", ErrMalformedMap, module, feature)
				}
				names = append(names, name)
			}
			out[module][feature] = names
		}
	}
	return out, nil
}
