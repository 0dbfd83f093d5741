package router

import (
	"strings"

	"github.com/svcgw/apigateway/internal/config"
)

// backendRoot is the canonical path root every backend exposes its
// endpoints under, regardless of which external prefix routed to it.
const backendRoot = "/api"

// RewritePath transforms the request path into the backend path. When
// the route strips its prefix, the matched prefix is replaced with the
// canonical /api root: /api/service1/orders becomes /api/orders, and a
// path exactly equal to the prefix becomes /api (never /api/ or "").
// Routes without prefix stripping pass the path through unchanged.
func RewritePath(path string, route *config.ServiceRoute) string {
	if !route.StripPrefix || !strings.HasPrefix(path, route.Prefix) {
		return path
	}

	remaining := path[len(route.Prefix):]
	if remaining == "" {
		return backendRoot
	}
	return backendRoot + remaining
}
