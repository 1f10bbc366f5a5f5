// Package httpserver runs the gateway's http.Server with sane timeouts and
// graceful shutdown on context cancellation or SIGINT/SIGTERM. Configuration
// comes from the environment; the handler is supplied by pkg/gateway.
package httpserver
