package domain

import "errors"

// Error kind sentinels. Every raised error wraps exactly one of these with
// fmt.Errorf("...: %w", ...) so callers can branch with errors.Is.
var (
	// ErrAuthorization — the gate denied update/delete. A denied read never
	// reaches this sentinel; it returns an empty document instead.
	ErrAuthorization = errors.New("authorization denied")

	// ErrDuplicate — an attribute/index id collides case-insensitively, a
	// rename target already exists, or a collection already exists.
	ErrDuplicate = errors.New("duplicate identifier")

	// ErrLimit — a schema mutation would exceed an adapter-reported limit.
	ErrLimit = errors.New("limit exceeded")

	// ErrStructure — the Structure validator rejected a document.
	ErrStructure = errors.New("structure validation failed")

	// ErrGeneric — a fatal configuration or usage error: unknown type,
	// unknown format, missing collection/attribute, filter not found,
	// unsupported index type, malformed relationship value, cursor from the
	// wrong collection, unknown selection, bound violation, non-positive
	// increase/decrease value.
	ErrGeneric = errors.New("generic engine error")
)

// Narrower leaves used by individual components; all wrap one of the kinds
// above via fmt.Errorf so errors.Is(err, ErrLimit) etc. still succeeds.
var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrAttributeNotFound  = errors.New("attribute not found")
	ErrFilterNotFound     = errors.New("filter not found")
	ErrUnknownType        = errors.New("unknown attribute type")
	ErrUnknownFormat      = errors.New("unknown format")
	ErrUnknownSelection   = errors.New("selection references unknown attribute")
	ErrCursorCollection   = errors.New("cursor belongs to a different collection")
	ErrBoundViolation     = errors.New("numeric bound violated")
	ErrNonPositiveDelta   = errors.New("increase/decrease value must be positive")
	ErrRelationshipShape  = errors.New("relationship value has unrecognized shape")
)
