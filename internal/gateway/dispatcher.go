package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/svcgw/apigateway/internal/middleware"
	"github.com/svcgw/apigateway/internal/observability"
	"github.com/svcgw/apigateway/internal/proxy"
	"github.com/svcgw/apigateway/internal/router"
)

// targetGateway is the target_service value for requests the gateway
// resolves itself.
const targetGateway = "gateway"

// RequestContext is the ephemeral per-request record. It is owned
// exclusively by the goroutine handling the request.
type RequestContext struct {
	RequestID     string
	Method        string
	Path          string
	ClientIP      string
	TargetService string
	StartTime     time.Time
}

// Dispatcher is the entry point for all requests that are not
// gateway-owned: it matches the route, rewrites the path, hands off to
// the forwarder, and maps failures to the error envelope.
type Dispatcher struct {
	table     *router.Table
	forwarder *proxy.Forwarder
	logger    observability.Logger
}

// NewDispatcher creates a dispatcher over an immutable route table.
func NewDispatcher(table *router.Table, forwarder *proxy.Forwarder, logger observability.Logger) *Dispatcher {
	return &Dispatcher{
		table:     table,
		forwarder: forwarder,
		logger:    logger,
	}
}

// Handle dispatches a request. Matching failures resolve locally to the
// 404 envelope without invoking the forwarder; forwarding failures are
// caught here and mapped, never propagated to the transport layer.
func (d *Dispatcher) Handle(c *gin.Context) {
	rctx := RequestContext{
		RequestID:     middleware.GetRequestID(c),
		Method:        c.Request.Method,
		Path:          c.Request.URL.Path,
		ClientIP:      c.ClientIP(),
		TargetService: targetGateway,
		StartTime:     time.Now(),
	}

	// Gateway-owned paths that reach the dispatcher have no registered
	// handler; they terminate here and are never forwarded.
	if router.IsGatewayOwned(rctx.Path) {
		c.JSON(http.StatusNotFound, notFoundError(rctx.Path))
		return
	}

	route := d.table.Match(rctx.Path)
	if route == nil {
		c.JSON(http.StatusNotFound, notFoundError(rctx.Path))
		return
	}
	rctx.TargetService = route.Name

	backendPath := router.RewritePath(rctx.Path, route)

	ferr := d.forwarder.Forward(c.Writer, c.Request, route, backendPath, rctx.RequestID, rctx.ClientIP)
	if ferr == nil {
		return
	}

	d.logger.Error("forwarding failed",
		observability.String("request_id", rctx.RequestID),
		observability.String("method", rctx.Method),
		observability.String("path", rctx.Path),
		observability.String("target_service", rctx.TargetService),
		observability.String("kind", ferr.Kind.String()),
		observability.Int64("duration_ms", time.Since(rctx.StartTime).Milliseconds()),
		observability.String("client_ip", rctx.ClientIP),
		observability.Error(ferr),
	)

	envelope := mapForwardError(ferr, rctx.Path)
	c.JSON(envelope.StatusCode, envelope)
}
