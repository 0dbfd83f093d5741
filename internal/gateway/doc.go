// Package gateway wires the HTTP surface of the API Gateway: the
// request dispatcher, the gateway-owned endpoints, and the uniform
// error envelope.
package gateway
