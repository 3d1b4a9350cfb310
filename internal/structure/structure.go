// Package structure implements the default domain.Structure validator:
// required fields present, declared formats honored, primitive types
// matching a collection's attribute descriptors. Grounded on the same
// per-attribute rule set internal/schemamgr enforces at schema-mutation
// time (internal/schemamgr/schemamgr.go's knownFormats table and
// validateNewAttribute), applied here to an assembled document instead of
// an attribute descriptor.
package structure

import (
	"fmt"
	"net"
	"net/mail"
	"net/url"

	"github.com/google/uuid"

	"github.com/kailas-cloud/docbase/internal/domain"
)

// AttributeStructure validates a document against one collection's
// attribute descriptors. IsValid records the first violation it finds so a
// following GetDescription call can report it — the two methods are always
// invoked as a pair, mirroring the teacher's single-shot validator usage.
type AttributeStructure struct {
	collection      domain.Collection
	lastDescription string
}

// New builds the default Structure for col. Returns a pointer since IsValid
// must mutate state GetDescription later reads.
func New(col domain.Collection) *AttributeStructure {
	return &AttributeStructure{collection: col}
}

// IsValid reports whether doc satisfies every attribute's required/format/
// type rule. Relationship attributes are only checked for required-ness —
// their value shape (id, nested document, or a list of either) is the
// Relationship Resolver's concern, not Structure's.
func (s *AttributeStructure) IsValid(doc domain.Document) bool {
	return s.firstViolation(doc) == ""
}

// GetDescription names the attribute that failed the most recent IsValid
// call, or "" if it passed.
func (s *AttributeStructure) GetDescription() string {
	return s.lastDescription
}

// firstViolation walks the collection's attributes in order and returns a
// human-readable reason for the first one that fails, or "" if all pass.
// As a side effect it records the message GetDescription later returns —
// Structure's two methods are always called as a pair (IsValid then
// GetDescription on failure), so this avoids validating twice.
func (s *AttributeStructure) firstViolation(doc domain.Document) string {
	for _, attr := range s.collection.Attributes {
		v, ok := doc.Get(attr.ID)
		missing := !ok || v == nil
		if attr.Required && missing {
			s.lastDescription = fmt.Sprintf("attribute %q is required", attr.ID)
			return s.lastDescription
		}
		if missing {
			continue
		}
		if attr.Type == domain.TypeRelationship {
			continue
		}
		for _, el := range elements(v, attr.Array) {
			if el == nil {
				continue
			}
			if !typeMatches(attr.Type, el) {
				s.lastDescription = fmt.Sprintf("attribute %q: value does not match type %q", attr.ID, attr.Type)
				return s.lastDescription
			}
			if attr.Format != "" && !formatMatches(attr.Format, el) {
				s.lastDescription = fmt.Sprintf("attribute %q: value does not match format %q", attr.ID, attr.Format)
				return s.lastDescription
			}
		}
	}
	s.lastDescription = ""
	return ""
}

func elements(v any, isArray bool) []any {
	if !isArray {
		return []any{v}
	}
	if arr, ok := v.([]any); ok {
		return arr
	}
	return []any{v}
}

func typeMatches(attrType string, v any) bool {
	switch attrType {
	case domain.TypeString, domain.TypeDatetime:
		_, ok := v.(string)
		return ok
	case domain.TypeInteger:
		switch v.(type) {
		case int, int64, float64:
			return true
		}
		return false
	case domain.TypeDouble:
		switch v.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case domain.TypeBoolean:
		_, ok := v.(bool)
		return ok
	default:
		return true
	}
}

func formatMatches(format string, v any) bool {
	s, ok := v.(string)
	if !ok {
		return true
	}
	switch format {
	case "email":
		_, err := mail.ParseAddress(s)
		return err == nil
	case "url":
		u, err := url.ParseRequestURI(s)
		return err == nil && u.Scheme != ""
	case "uuid":
		_, err := uuid.Parse(s)
		return err == nil
	case "ip":
		return net.ParseIP(s) != nil
	default:
		return true
	}
}
