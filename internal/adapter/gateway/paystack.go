// Package gateway holds payment-gateway clients.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/ondegooltd/fortisel-api/internal/logging"
	"github.com/ondegooltd/fortisel-api/internal/usecase"
)

const defaultBaseURL = "https://api.paystack.co"

// PaystackClient talks to the Paystack REST API. Amounts cross the wire
// in minor units (pesewas/kobo).
type PaystackClient struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

func NewPaystackClient(secretKey, baseURL string) *PaystackClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &PaystackClient{
		baseURL:   baseURL,
		secretKey: secretKey,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	ID              int64   `json:"id"`
	Reference       string  `json:"reference"`
	Status          string  `json:"status"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	GatewayResponse string  `json:"gateway_response"`
	PaidAt          string  `json:"paid_at"`
}

func (c *PaystackClient) InitializeCharge(ctx context.Context, req usecase.ChargeRequest) (*usecase.ChargeAuthorization, error) {
	body := map[string]any{
		"email":     req.Email,
		"amount":    int64(math.Round(req.Amount * 100)),
		"reference": req.Reference,
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}

	var data initializeData
	if err := c.post(ctx, "/transaction/initialize", body, &data); err != nil {
		return nil, err
	}

	logging.FromCtx(ctx).Info("paystack charge initialized",
		"reference", data.Reference, "type", "gateway_call")
	return &usecase.ChargeAuthorization{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

func (c *PaystackClient) VerifyCharge(ctx context.Context, reference string) (*usecase.GatewayRecord, error) {
	var data verifyData
	if err := c.get(ctx, "/transaction/verify/"+reference, &data); err != nil {
		return nil, err
	}
	return &usecase.GatewayRecord{
		Reference:       data.Reference,
		Status:          data.Status,
		Amount:          data.Amount / 100,
		Currency:        data.Currency,
		GatewayResponse: data.GatewayResponse,
		TransactionID:   fmt.Sprintf("%d", data.ID),
		PaidAt:          data.PaidAt,
	}, nil
}

func (c *PaystackClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *PaystackClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *PaystackClient) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	var env paystackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("paystack: decode response (%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 || !env.Status {
		return fmt.Errorf("paystack: %s (%d)", env.Message, resp.StatusCode)
	}
	return json.Unmarshal(env.Data, out)
}

var _ usecase.GatewayClient = (*PaystackClient)(nil)
