package proxy

import "net/http"

// hopByHopHeaders are meaningful only for a single transport leg and
// must not be relayed across the proxy in either direction (RFC 7230).
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Transfer-Encoding",
	"Te",
	"Trailer",
	"Upgrade",
	"Proxy-Authorization",
	"Proxy-Authenticate",
}

// Forwarding header names.
const (
	HeaderXForwardedFor   = "X-Forwarded-For"
	HeaderXForwardedProto = "X-Forwarded-Proto"
	HeaderXForwardedHost  = "X-Forwarded-Host"
	HeaderXRequestID      = "X-Request-ID"
)

// FilterOutbound prepares inbound request headers for forwarding to a
// backend: hop-by-hop headers are stripped (case-insensitively) and the
// X-Forwarded-* headers are injected. The input is not modified.
func FilterOutbound(headers http.Header, clientIP, originalHost string) http.Header {
	filtered := stripHopByHop(headers)

	filtered.Set(HeaderXForwardedFor, clientIP)
	filtered.Set(HeaderXForwardedProto, "http")
	filtered.Set(HeaderXForwardedHost, originalHost)

	return filtered
}

// FilterInbound strips hop-by-hop headers from a backend response before
// it is relayed to the original caller. Uses the same stoplist as
// FilterOutbound so protocol-layer headers never cross the proxy
// boundary in either direction.
func FilterInbound(headers http.Header) http.Header {
	return stripHopByHop(headers)
}

// stripHopByHop returns a copy of headers without the hop-by-hop set.
// http.Header.Del canonicalizes names, which makes the removal
// case-insensitive.
func stripHopByHop(headers http.Header) http.Header {
	filtered := headers.Clone()
	if filtered == nil {
		filtered = make(http.Header)
	}
	for _, h := range hopByHopHeaders {
		filtered.Del(h)
	}
	return filtered
}
