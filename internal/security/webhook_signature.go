package security

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
)

var ErrBadSignature = errors.New("webhook signature mismatch")

// WebhookVerifier validates gateway callback authenticity before any
// payload field is trusted.
type WebhookVerifier interface {
	// Verify checks the hex signature against the raw request body.
	Verify(body []byte, signature string) error
	// Sign computes the expected signature for a body, used by tests and
	// the simulator.
	Sign(body []byte) string
}

type hmacVerifier struct {
	secret []byte
}

// NewWebhookVerifier builds an HMAC-SHA512 verifier keyed with the
// gateway secret. Paystack signs the exact raw body, so callers must
// pass the bytes as received, before any decoding.
func NewWebhookVerifier(secret string) (WebhookVerifier, error) {
	if secret == "" {
		return nil, errors.New("webhook secret required")
	}
	return &hmacVerifier{secret: []byte(secret)}, nil
}

func (v *hmacVerifier) Sign(body []byte) string {
	mac := hmac.New(sha512.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (v *hmacVerifier) Verify(body []byte, signature string) error {
	if signature == "" {
		return ErrBadSignature
	}
	want, err := hex.DecodeString(signature)
	if err != nil {
		return ErrBadSignature
	}
	mac := hmac.New(sha512.New, v.secret)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), want) {
		return ErrBadSignature
	}
	return nil
}
