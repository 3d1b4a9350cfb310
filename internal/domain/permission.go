package domain

// Permissions holds the four action-keyed sets of role tokens carried by
// each document: who may read, create (as a related document), update, or
// delete it. There is no "write" aggregate: neither ForKind nor the Gate
// recognizes a "write" kind.
type Permissions struct {
	Read   []string
	Create []string
	Update []string
	Delete []string
}

// ForKind returns the role-token set for one of "read", "create", "update",
// "delete", or the empty slice for an unrecognized kind.
func (p Permissions) ForKind(kind string) []string {
	switch kind {
	case "read":
		return p.Read
	case "create":
		return p.Create
	case "update":
		return p.Update
	case "delete":
		return p.Delete
	default:
		return nil
	}
}

// Identity is the ambient caller identity the Gate evaluates permission
// sets against. Roles are role tokens such as "users:alice", "team:eng", or
// "any" — the engine treats role-token matching as the adapter/identity
// oracle's concern, not its own.
type Identity interface {
	Roles() []string
}

// IdentityOracle resolves the ambient identity for the lifetime of an
// operation. The core consumes it; it never authenticates anyone itself.
type IdentityOracle interface {
	Current() Identity
}

// StaticIdentity is the simplest IdentityOracle: a fixed set of roles,
// useful for tests and for single-tenant embeddings of the engine.
type StaticIdentity struct {
	roles []string
}

// NewStaticIdentity builds an Identity/IdentityOracle from a fixed role list.
func NewStaticIdentity(roles ...string) StaticIdentity {
	return StaticIdentity{roles: roles}
}

func (s StaticIdentity) Roles() []string    { return s.roles }
func (s StaticIdentity) Current() Identity  { return s }

// RoleAny is the wildcard role token matching every identity.
const RoleAny = "any"

// Grants reports whether any of identity's roles appears in allowed, or
// allowed contains the wildcard RoleAny.
func Grants(identity Identity, allowed []string) bool {
	if identity == nil {
		return false
	}
	for _, a := range allowed {
		if a == RoleAny {
			return true
		}
	}
	for _, r := range identity.Roles() {
		for _, a := range allowed {
			if r == a {
				return true
			}
		}
	}
	return false
}
