package metadata

import (
	"encoding/json"

	"github.com/kailas-cloud/docbase/internal/domain"
)

// EncodeCollectionDoc renders a Collection as the document stored under its
// name in _metadata: attributes and indexes as JSON strings (the json
// filter handles the wire encoding on the way through the engine), name,
// and the permission set. Shared by the Schema Manager (which writes it)
// and the Document Engine (which reads it back to discover collection
// shape).
func EncodeCollectionDoc(col domain.Collection) domain.Document {
	attrsJSON, _ := json.Marshal(col.Attributes)
	idxJSON, _ := json.Marshal(col.Indexes)

	doc := domain.NewDocument()
	doc = doc.Set(domain.FieldID, col.Name)
	doc = doc.Set("name", col.Name)
	doc = doc.Set("attributes", string(attrsJSON))
	doc = doc.Set("indexes", string(idxJSON))
	doc = doc.Set(domain.FieldPermissions, map[string][]string{
		"read": col.Permissions.Read, "create": col.Permissions.Create,
		"update": col.Permissions.Update, "delete": col.Permissions.Delete,
	})
	return doc
}

// DecodeCollectionDoc is EncodeCollectionDoc's inverse. It accepts
// attributes and indexes both as the stored JSON strings and in the form the
// engine's json filter decodes them to on GetDocument/Find.
func DecodeCollectionDoc(doc domain.Document) domain.Collection {
	col := domain.Collection{}
	if v, ok := doc.Get("name"); ok {
		col.Name, _ = v.(string)
	}
	unmarshal := func(v any, out any) {
		s, ok := v.(string)
		if !ok {
			b, err := json.Marshal(v)
			if err != nil {
				return
			}
			s = string(b)
		}
		_ = json.Unmarshal([]byte(s), out)
	}
	if v, ok := doc.Get("attributes"); ok {
		unmarshal(v, &col.Attributes)
	}
	if v, ok := doc.Get("indexes"); ok {
		unmarshal(v, &col.Indexes)
	}
	col.Permissions = doc.Permissions()
	return col
}
