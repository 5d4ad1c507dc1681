package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"phonehub/internal/pkg/config"
)

// PaystackGateway 调用 Paystack REST 接口
type PaystackGateway struct {
	baseURL     string
	secretKey   string
	callbackURL string
	client      *http.Client
}

func NewPaystackGateway(cfg config.PaystackConfig) (*PaystackGateway, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("paystack config missing")
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.paystack.co"
	}
	return &PaystackGateway{
		baseURL:     base,
		secretKey:   cfg.SecretKey,
		callbackURL: cfg.CallbackURL,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackInitData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type paystackVerifyData struct {
	Status          string `json:"status"`
	Reference       string `json:"reference"`
	Amount          int64  `json:"amount"`
	GatewayResponse string `json:"gateway_response"`
}

func (g *PaystackGateway) Initialize(ctx context.Context, req InitRequest) (*Session, error) {
	body := map[string]interface{}{
		"email":     req.Email,
		"amount":    req.AmountMinor,
		"reference": req.Reference,
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}
	if g.callbackURL != "" {
		body["callback_url"] = g.callbackURL
	}

	env, err := g.do(ctx, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}
	var data paystackInitData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("paystack: decode initialize data: %w", err)
	}
	if data.Reference == "" {
		data.Reference = req.Reference
	}
	return &Session{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

func (g *PaystackGateway) Verify(ctx context.Context, reference string) (*Verification, error) {
	env, err := g.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}
	var data paystackVerifyData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("paystack: decode verify data: %w", err)
	}
	return &Verification{
		Success:     data.Status == "success",
		Status:      data.Status,
		AmountMinor: data.Amount,
		Raw:         env.Data,
	}, nil
}

func (g *PaystackGateway) do(ctx context.Context, method, path string, payload interface{}) (*paystackEnvelope, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paystack: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("paystack: read response: %w", err)
	}

	var env paystackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("paystack: unexpected response (http %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 || !env.Status {
		return nil, fmt.Errorf("paystack: http %d: %s", resp.StatusCode, env.Message)
	}
	return &env, nil
}

var _ Gateway = (*PaystackGateway)(nil)
