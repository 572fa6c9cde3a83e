package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ondegooltd/fortisel-api/internal/usecase"
)

func TestInitializeChargeSendsMinorUnits(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/initialize" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk_test_key" {
			t.Errorf("authorization = %q", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{
			"status": true, "message": "Authorization URL created",
			"data": {"authorization_url": "https://checkout.paystack.com/x1y2",
			         "access_code": "x1y2", "reference": "ps_ref_42"}}`))
	}))
	defer srv.Close()

	c := NewPaystackClient("sk_test_key", srv.URL)
	auth, err := c.InitializeCharge(context.Background(), usecase.ChargeRequest{
		Email: "ama@example.com", Amount: 250.50, Reference: "PAY-1",
	})
	if err != nil {
		t.Fatalf("InitializeCharge: %v", err)
	}
	if auth.Reference != "ps_ref_42" {
		t.Errorf("reference = %q", auth.Reference)
	}
	if amt, _ := got["amount"].(float64); amt != 25050 {
		t.Errorf("wire amount = %v, want 25050 minor units", got["amount"])
	}
}

func TestInitializeChargeSurfacesGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status": false, "message": "Invalid key"}`))
	}))
	defer srv.Close()

	c := NewPaystackClient("bad_key", srv.URL)
	if _, err := c.InitializeCharge(context.Background(), usecase.ChargeRequest{
		Email: "ama@example.com", Amount: 100, Reference: "PAY-2",
	}); err == nil {
		t.Fatal("want error from 401 response")
	}
}

func TestVerifyChargeConvertsToMajorUnits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/ps_ref_42" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"status": true, "message": "Verification successful",
			"data": {"id": 99001, "reference": "ps_ref_42", "status": "success",
			         "amount": 25050, "currency": "GHS",
			         "gateway_response": "Successful", "paid_at": "2025-06-10T12:00:00.000Z"}}`))
	}))
	defer srv.Close()

	c := NewPaystackClient("sk_test_key", srv.URL)
	rec, err := c.VerifyCharge(context.Background(), "ps_ref_42")
	if err != nil {
		t.Fatalf("VerifyCharge: %v", err)
	}
	if rec.Amount != 250.50 {
		t.Errorf("amount = %v, want 250.50", rec.Amount)
	}
	if rec.Status != "success" {
		t.Errorf("status = %q", rec.Status)
	}
	if rec.TransactionID != "99001" {
		t.Errorf("transaction id = %q", rec.TransactionID)
	}
}
