// Package codec implements the Codec Pipeline (C5): encode, decode, and
// cast between in-memory documents and the flat rows the adapter persists.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/docbase/internal/domain"
	"github.com/kailas-cloud/docbase/internal/filter"
)

// internalAttributes is the fixed list of system fields that Decode keeps
// alongside the selected attributes when a selection is given. Encode and
// Decode run filter chains over the collection's own attributes only, so
// these fields pass through unchanged.
var internalAttributes = []string{
	domain.FieldID, domain.FieldCollection, domain.FieldCreatedAt, domain.FieldUpdatedAt,
}

// Codec runs the three-phase pipeline against a Filter Registry.
type Codec struct {
	filters *filter.Registry
}

// New builds a Codec against registry.
func New(registry *filter.Registry) *Codec {
	return &Codec{filters: registry}
}

// Encode applies each attribute's filter chain in forward order,
// element-wise, substituting the declared default when the value is null
// and a default is present, and wrapping/unwrapping array-typed attributes
// around the element-wise application.
func (c *Codec) Encode(collection domain.Collection, doc domain.Document) (domain.Document, error) {
	out := doc
	for _, attr := range collection.Attributes {
		v, ok := out.Get(attr.ID)
		if !ok || v == nil {
			if attr.Default != nil {
				v = attr.Default
			} else {
				continue
			}
		}
		encoded, err := c.applyChain(attr, v, doc, attr.Filters, false)
		if err != nil {
			return domain.Document{}, err
		}
		out = out.Set(attr.ID, encoded)
	}
	// Internal fields (domain.FieldID etc.) carry no declared filter chain
	// and pass through unmodified; they are already present on out.
	return out, nil
}

// Decode mirrors Encode with each attribute's filter chain reversed. When
// selections is non-empty, only those keys are written back onto the
// returned document — but every attribute is still decoded first, since a
// filter may have side effects other filters rely on.
func (c *Codec) Decode(collection domain.Collection, doc domain.Document, selections []string) (domain.Document, error) {
	decoded := doc
	for _, attr := range collection.Attributes {
		v, ok := decoded.Get(attr.ID)
		if !ok {
			continue
		}
		reversed := reverseStrings(attr.Filters)
		out, err := c.applyChain(attr, v, doc, reversed, true)
		if err != nil {
			return domain.Document{}, err
		}
		decoded = decoded.Set(attr.ID, out)
	}

	if len(selections) == 0 {
		return decoded, nil
	}

	selected := domain.NewDocument()
	for _, name := range internalAttributes {
		if v, ok := decoded.Get(name); ok {
			selected = selected.Set(name, v)
		}
	}
	for _, name := range selections {
		if v, ok := decoded.Get(name); ok {
			selected = selected.Set(name, v)
		}
	}
	return selected, nil
}

// applyChain runs names (already ordered for the requested direction)
// element-wise over value, unwrapping a single-element wrap when attr is
// not an array.
func (c *Codec) applyChain(attr domain.Attribute, value any, doc domain.Document, names []string, decode bool) (any, error) {
	elements := toElements(value, attr.Array)

	for _, name := range names {
		f, err := c.filters.Lookup(name)
		if err != nil {
			return nil, err
		}
		transform := f.Encode
		if decode {
			transform = f.Decode
		}
		for i, el := range elements {
			if el == nil {
				continue
			}
			elements[i] = transform(el, doc, c)
		}
	}

	if !attr.Array {
		if len(elements) == 0 {
			return nil, nil
		}
		return elements[0], nil
	}
	return elements, nil
}

func toElements(value any, isArray bool) []any {
	if !isArray {
		return []any{value}
	}
	if arr, ok := value.([]any); ok {
		return append([]any(nil), arr...)
	}
	return []any{value}
}

func reverseStrings(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

// Cast coerces each non-null attribute value to its declared primitive
// type, for adapters that report GetSupportForCasting() == false.
// String-encoded arrays are JSON-parsed before per-element coercion.
func (c *Codec) Cast(collection domain.Collection, doc domain.Document) (domain.Document, error) {
	out := doc
	for _, attr := range collection.Attributes {
		v, ok := out.Get(attr.ID)
		if !ok || v == nil {
			continue
		}
		if attr.Array {
			if s, isStr := v.(string); isStr {
				var arr []any
				if err := json.Unmarshal([]byte(s), &arr); err == nil {
					v = arr
				}
			}
		}
		casted, err := castValue(attr, v)
		if err != nil {
			return domain.Document{}, err
		}
		out = out.Set(attr.ID, casted)
	}
	return out, nil
}

func castValue(attr domain.Attribute, v any) (any, error) {
	if arr, ok := v.([]any); ok {
		out := make([]any, len(arr))
		for i, el := range arr {
			casted, err := castScalar(attr, el)
			if err != nil {
				return nil, err
			}
			out[i] = casted
		}
		return out, nil
	}
	return castScalar(attr, v)
}

func castScalar(attr domain.Attribute, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch attr.Type {
	case domain.TypeBoolean:
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			return t == "true" || t == "1", nil
		}
	case domain.TypeInteger:
		switch t := v.(type) {
		case int, int64:
			return t, nil
		case float64:
			return int64(t), nil
		case string:
			var n int64
			if _, err := fmt.Sscanf(t, "%d", &n); err == nil {
				return n, nil
			}
		}
	case domain.TypeDouble:
		switch t := v.(type) {
		case float64:
			return t, nil
		case string:
			var f float64
			if _, err := fmt.Sscanf(t, "%g", &f); err == nil {
				return f, nil
			}
		}
	}
	return v, nil
}
