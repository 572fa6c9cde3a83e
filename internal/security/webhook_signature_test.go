package security

import (
	"errors"
	"testing"
)

func TestVerifyAcceptsOwnSignature(t *testing.T) {
	v, err := NewWebhookVerifier("sk_test_secret")
	if err != nil {
		t.Fatalf("NewWebhookVerifier: %v", err)
	}
	body := []byte(`{"event":"charge.success","data":{"reference":"ps_ref_1"}}`)
	if err := v.Verify(body, v.Sign(body)); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	v, _ := NewWebhookVerifier("sk_test_secret")
	body := []byte(`{"event":"charge.success"}`)
	sig := v.Sign(body)

	tampered := []byte(`{"event":"charge.failed"}`)
	if err := v.Verify(tampered, sig); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("want ErrBadSignature, got %v", err)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	a, _ := NewWebhookVerifier("sk_live_real")
	b, _ := NewWebhookVerifier("sk_live_other")
	body := []byte(`{"event":"charge.success"}`)
	if err := a.Verify(body, b.Sign(body)); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("want ErrBadSignature, got %v", err)
	}
}

func TestVerifyRejectsGarbageSignature(t *testing.T) {
	v, _ := NewWebhookVerifier("sk_test_secret")
	for _, sig := range []string{"", "not-hex-at-all!", "deadbeef"} {
		if err := v.Verify([]byte("{}"), sig); !errors.Is(err, ErrBadSignature) {
			t.Errorf("signature %q: want ErrBadSignature, got %v", sig, err)
		}
	}
}

func TestNewWebhookVerifierRequiresSecret(t *testing.T) {
	if _, err := NewWebhookVerifier(""); err == nil {
		t.Fatal("want error for empty secret")
	}
}
