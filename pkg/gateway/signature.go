package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the HTTP header carrying the delivery signature.
// Value format: "t=<unix>,v1=<hex hmac>", the scheme most billing providers
// use. Multiple v1 entries are accepted to support secret rotation.
const SignatureHeader = "X-Billing-Signature"

// Verifier authenticates webhook payloads. The signature binds the payload
// to a timestamp, and deliveries outside the tolerance window are rejected
// to prevent replay.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier creates a Verifier. A non-positive tolerance disables the
// replay window check.
func NewVerifier(secret string, tolerance time.Duration) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: signing secret is required", ErrInvalidConfiguration)
	}
	return &Verifier{
		secret:    []byte(secret),
		tolerance: tolerance,
		now:       time.Now,
	}, nil
}

// Verify checks the signature header against the raw payload. Always
// compares in constant time; returns ErrInvalidSignature on any failure so
// callers cannot leak which check rejected the delivery.
func (v *Verifier) Verify(payload []byte, header string) error {
	timestamp, candidates, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	if v.tolerance > 0 {
		age := v.now().Sub(time.Unix(timestamp, 0))
		if age > v.tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance window", ErrInvalidSignature)
		}
		if age < -1*time.Minute {
			return fmt.Errorf("%w: timestamp is in the future", ErrInvalidSignature)
		}
	}

	expected := v.sign(timestamp, payload)
	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			return nil
		}
	}
	return fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
}

// Sign produces a header value for the payload at the given time. Used by
// tests and by outbound delivery tooling.
func (v *Verifier) Sign(at time.Time, payload []byte) string {
	ts := at.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, v.sign(ts, payload))
}

func (v *Verifier) sign(timestamp int64, payload []byte) string {
	h := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(h, "%d.", timestamp)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// parseSignatureHeader splits "t=<unix>,v1=<hex>[,v1=<hex>...]" into its
// timestamp and candidate signatures. Unknown schemes are ignored for
// forward compatibility.
func parseSignatureHeader(header string) (int64, []string, error) {
	if header == "" {
		return 0, nil, fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}

	var (
		timestamp  int64
		candidates []string
	)
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: malformed timestamp", ErrInvalidSignature)
			}
			timestamp = ts
		case "v1":
			candidates = append(candidates, value)
		}
	}

	if timestamp == 0 || len(candidates) == 0 {
		return 0, nil, fmt.Errorf("%w: incomplete signature header", ErrInvalidSignature)
	}
	return timestamp, candidates, nil
}
