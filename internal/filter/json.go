package filter

import (
	"encoding/json"

	"github.com/kailas-cloud/docbase/internal/domain"
)

// jsonFilter builds the mandatory "json" filter: encode serializes a
// mapping/structured value to a canonical JSON string (primitives pass
// through unchanged); decode parses JSON back, wrapping the result into a
// Document when it carries $id, or inspecting each entry otherwise.
func jsonFilter() Filter {
	return Filter{
		Encode: func(value any, _ domain.Document, _ any) any {
			switch v := value.(type) {
			case domain.Document:
				b, err := json.Marshal(v.ToMap())
				if err != nil {
					return value
				}
				return string(b)
			case string, int, int64, float64, bool, nil:
				return value
			default:
				b, err := json.Marshal(v)
				if err != nil {
					return value
				}
				return string(b)
			}
		},
		Decode: func(value any, _ domain.Document, _ any) any {
			s, ok := value.(string)
			if !ok {
				return value
			}
			var raw any
			if err := json.Unmarshal([]byte(s), &raw); err != nil {
				return value
			}
			return wrapDecoded(raw)
		},
	}
}

// wrapDecoded inspects a decoded JSON value: a map containing $id becomes a
// Document; a map without it is inspected shallowly and any nested
// document-shaped entries are wrapped too; other shapes pass through.
func wrapDecoded(raw any) any {
	m, ok := raw.(map[string]any)
	if !ok {
		return raw
	}
	if _, hasID := m[domain.FieldID]; hasID {
		return domain.DocumentFromMap(m)
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			if _, hasID := nested[domain.FieldID]; hasID {
				out[k] = domain.DocumentFromMap(nested)
				continue
			}
		}
		out[k] = v
	}
	return out
}
