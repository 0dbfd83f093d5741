package router

import (
	"strings"

	"github.com/svcgw/apigateway/internal/config"
)

// gatewayOwnedPrefixes are paths served by the gateway itself. They are
// checked before backend routing and never forwarded.
var gatewayOwnedPrefixes = []string{"/health", "/api/gateway"}

// Table holds the ordered list of configured routes. The underlying
// slice is never mutated after construction, so a Table is safe for
// unlimited concurrent callers.
type Table struct {
	routes []config.ServiceRoute
}

// NewTable creates a route table over the given routes. Matching order
// is the slice order.
func NewTable(routes []config.ServiceRoute) *Table {
	return &Table{routes: routes}
}

// Match returns the first route whose prefix is a literal string prefix
// of path, or nil if no route matches. The comparison is not
// path-segment-aware: /api/service10 matches a route with prefix
// /api/service1. First match wins even when a later route's prefix is
// more specific.
func (t *Table) Match(path string) *config.ServiceRoute {
	for i := range t.routes {
		if strings.HasPrefix(path, t.routes[i].Prefix) {
			return &t.routes[i]
		}
	}
	return nil
}

// Routes returns the configured routes in matching order.
func (t *Table) Routes() []config.ServiceRoute {
	return t.routes
}

// IsGatewayOwned reports whether the path is handled directly by the
// gateway (health and status endpoints) rather than forwarded.
func IsGatewayOwned(path string) bool {
	for _, prefix := range gatewayOwnedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
