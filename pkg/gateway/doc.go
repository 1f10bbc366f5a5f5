// Package gateway exposes the webhook delivery endpoint over HTTP.
//
// The gateway is a thin shell around the processor: it authenticates the
// delivery (HMAC-SHA256 signature bound to a timestamp), parses the body,
// and translates the processing result into the JSON acknowledgement
// contract. Only signature and parse failures produce a 400; everything
// after a successful parse is acknowledged with 200 so the provider does
// not redeliver events whose failure is already recorded.
package gateway
