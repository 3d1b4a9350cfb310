// Package gate implements the Permission Gate (C3): evaluates read/create/
// update/delete permission sets against the ambient identity oracle, with
// scoped skip/disable primitives used by internal engine machinery.
package gate

import (
	"sync"

	"github.com/kailas-cloud/docbase/internal/domain"
)

// Gate evaluates permission sets against an IdentityOracle. skip and
// disable are scoped counters held by each Gate (one per Engine), not shared
// across the process: they nest and restore on every exit path, including
// error paths, via defer in Skip/Disable.
type Gate struct {
	identity domain.IdentityOracle

	mu      sync.Mutex
	skip    int
	disable int
}

// New builds a Gate against identity.
func New(identity domain.IdentityOracle) *Gate {
	return &Gate{identity: identity}
}

// Check evaluates whether the current identity is granted kind ("read",
// "create", "update", "delete") against allowed. Always true while disabled
// or skipped.
func (g *Gate) Check(kind string, allowed []string) bool {
	g.mu.Lock()
	bypass := g.skip > 0 || g.disable > 0
	g.mu.Unlock()
	if bypass {
		return true
	}
	return domain.Grants(g.identity.Current(), allowed)
}

// Skip forces every Check to succeed for the dynamic extent of f — used to
// fetch the prior document in update/delete so authorization is evaluated
// against the document's own stored permissions, not the caller's read
// rights.
func (g *Gate) Skip(f func() error) error {
	g.mu.Lock()
	g.skip++
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.skip--
		g.mu.Unlock()
	}()
	return f()
}

// Disable forces every Check to succeed for the dynamic extent of f. No
// code in this module calls it; administrative listings such as
// schemamgr.ListCollections read _metadata, which the engine exempts from
// permission checks.
func (g *Gate) Disable(f func() error) error {
	g.mu.Lock()
	g.disable++
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.disable--
		g.mu.Unlock()
	}()
	return f()
}
