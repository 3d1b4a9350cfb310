package chi

import (
	"context"

	"github.com/kailas-cloud/docbase/internal/domain"
)

type rolesKey struct{}

func contextWithRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, rolesKey{}, roles)
}

// rolesFromContext returns the roles BearerAuthMiddleware resolved for this
// request, or domain.RoleAny when auth is disabled and nothing was stashed.
func rolesFromContext(ctx context.Context) []string {
	if roles, ok := ctx.Value(rolesKey{}).([]string); ok {
		return roles
	}
	return []string{domain.RoleAny}
}

// RequestIdentity is a domain.IdentityOracle whose Current() reflects the
// caller of the in-flight request. The Document Engine models itself as a
// single logical actor issuing operations sequentially (internal/engine's
// concurrency note), so Server serializes every engine/schemamgr call
// behind callMu and updates roles immediately before each call — there is
// never a concurrent reader of roles while it is being swapped. The same
// *RequestIdentity value must be passed to both engine.New and NewServer.
type RequestIdentity struct {
	roles []string
}

// NewRequestIdentity builds a RequestIdentity with no roles set; the first
// request fills it in before any engine call runs.
func NewRequestIdentity() *RequestIdentity { return &RequestIdentity{} }

func (r *RequestIdentity) Set(roles []string)       { r.roles = roles }
func (r *RequestIdentity) Current() domain.Identity { return domain.NewStaticIdentity(r.roles...) }
