package domain

import (
	"time"

	"github.com/google/uuid"
)

// Structure validates an assembled document against a collection's
// attribute descriptors (required fields present, formats honored, types
// matching) before it reaches the adapter.
type Structure interface {
	IsValid(doc Document) bool
	GetDescription() string
}

// IndexValidator validates an index descriptor's shape (attribute list
// length matches lengths/orders, type is supported) before a schema
// mutation is sent to the adapter.
type IndexValidator interface {
	IsValid(idx Index) bool
	GetDescription() string
}

// IDGenerator produces unique document/collection identifiers when the
// caller omits one.
type IDGenerator interface {
	Generate() string
}

// UUIDGenerator backs IDGenerator with google/uuid, the same dependency the
// rest of this stack's request/resource identifiers use.
type UUIDGenerator struct{}

// Generate returns a new random UUID's canonical string form.
func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}

// Clock normalizes timestamps to the process-wide default zone and to UTC,
// backing the datetime filter and the Query Normalizer.
type Clock interface {
	Now() time.Time
	// Canonicalize parses s as an RFC3339 timestamp, which carries its own
	// offset, and re-emits it converted to the default zone in the engine's
	// canonical ISO-8601 form. A string without an offset does not parse;
	// any parse failure returns s unchanged.
	Canonicalize(s string) string
	// ToUTC converts a canonical-form timestamp string to its UTC-tagged
	// RFC3339 representation.
	ToUTC(s string) string
}

// SystemClock is the default Clock, using time.Now and RFC3339Nano.
type SystemClock struct {
	// Location is the process-wide default zone filter encode() uses. A nil
	// Location defaults to time.Local, matching a typical deployment's
	// configured TZ.
	Location *time.Location
}

const canonicalLayout = time.RFC3339Nano

func (c SystemClock) loc() *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return time.Local
}

func (c SystemClock) Now() time.Time { return time.Now().In(c.loc()) }

func (c SystemClock) Canonicalize(s string) string {
	if s == "" {
		return s
	}
	t, err := time.Parse(canonicalLayout, s)
	if err != nil {
		return s
	}
	return t.In(c.loc()).Format(canonicalLayout)
}

func (c SystemClock) ToUTC(s string) string {
	t, err := time.Parse(canonicalLayout, s)
	if err != nil {
		return s
	}
	return t.UTC().Format(canonicalLayout)
}
