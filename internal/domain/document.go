package domain

// Document is an ordered mapping of attribute-name to value, plus the
// system fields every document carries ($id, $collection, $createdAt,
// $updatedAt, $permissions). Documents are value-typed: every mutator
// returns a new Document rather than mutating in place, so the cache can
// hold a snapshot safely.
type Document struct {
	order  []string
	values map[string]any
}

// NewDocument builds an empty document.
func NewDocument() Document {
	return Document{values: make(map[string]any)}
}

// DocumentFromMap builds a document from an unordered map. Callers that care
// about attribute order should build incrementally with Set instead.
func DocumentFromMap(m map[string]any) Document {
	d := NewDocument()
	for k, v := range m {
		d = d.Set(k, v)
	}
	return d
}

// IsEmpty reports whether the document carries no attributes at all,
// including no $id — the sentinel the engine returns for a denied read.
func (d Document) IsEmpty() bool {
	return len(d.order) == 0
}

// Get returns the value of attribute name and whether it was present.
func (d Document) Get(name string) (any, bool) {
	v, ok := d.values[name]
	return v, ok
}

// GetID returns the $id system field, or "" if unset.
func (d Document) GetID() string {
	v, _ := d.Get(FieldID)
	s, _ := v.(string)
	return s
}

// GetCollection returns the $collection system field.
func (d Document) GetCollection() string {
	v, _ := d.Get(FieldCollection)
	s, _ := v.(string)
	return s
}

// Set assigns name = value, returning the updated document. Re-setting an
// existing key preserves its original position in iteration order.
func (d Document) Set(name string, value any) Document {
	nd := d.clone()
	if _, exists := nd.values[name]; !exists {
		nd.order = append(nd.order, name)
	}
	nd.values[name] = value
	return nd
}

// Remove drops an attribute, returning the updated document.
func (d Document) Remove(name string) Document {
	if _, ok := d.values[name]; !ok {
		return d
	}
	nd := d.clone()
	delete(nd.values, name)
	for i, k := range nd.order {
		if k == name {
			nd.order = append(nd.order[:i], nd.order[i+1:]...)
			break
		}
	}
	return nd
}

// Keys returns attribute names in insertion order.
func (d Document) Keys() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// ToMap returns a shallow copy of the underlying mapping — used by the json
// filter to serialize a nested document.
func (d Document) ToMap() map[string]any {
	out := make(map[string]any, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

func (d Document) clone() Document {
	nd := Document{
		order:  make([]string, len(d.order)),
		values: make(map[string]any, len(d.values)),
	}
	copy(nd.order, d.order)
	for k, v := range d.values {
		nd.values[k] = v
	}
	return nd
}

// Permissions returns the four action-keyed permission sets carried by the
// document's $permissions field. Missing or malformed data yields empty
// sets — permission evaluation treats "no entry" as "nobody is granted
// this action". Accepts both the map[string][]string shape set directly by
// a caller and the map[string]any/[]any shape a value takes after a JSON
// round-trip through the cache.
func (d Document) Permissions() Permissions {
	v, ok := d.Get(FieldPermissions)
	if !ok {
		return Permissions{}
	}
	switch raw := v.(type) {
	case map[string][]string:
		return Permissions{Read: raw["read"], Create: raw["create"], Update: raw["update"], Delete: raw["delete"]}
	case map[string]any:
		return Permissions{
			Read:   stringSlice(raw["read"]),
			Create: stringSlice(raw["create"]),
			Update: stringSlice(raw["update"]),
			Delete: stringSlice(raw["delete"]),
		}
	default:
		return Permissions{}
	}
}

func stringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, el := range s {
			if str, ok := el.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
