package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"phonehub/internal/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPaystack(t *testing.T, h http.HandlerFunc) *PaystackGateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	g, err := NewPaystackGateway(config.PaystackConfig{SecretKey: "sk_test_x", BaseURL: srv.URL + "/", Timeout: 2})
	require.NoError(t, err)
	return g
}

func TestPaystack_Initialize(t *testing.T) {
	g := newTestPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_x", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.com", body["email"])
		assert.EqualValues(t, 21000, body["amount"])
		assert.Equal(t, "ORD-1-abcdef12", body["reference"])
		assert.Equal(t, map[string]interface{}{"orderId": "o1"}, body["metadata"])

		_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/x","access_code":"ac_1","reference":"ORD-1-abcdef12"}}`))
	})

	s, err := g.Initialize(context.Background(), InitRequest{
		Email:       "a@b.com",
		AmountMinor: 21000,
		Reference:   "ORD-1-abcdef12",
		Metadata:    map[string]string{"orderId": "o1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/x", s.AuthorizationURL)
	assert.Equal(t, "ac_1", s.AccessCode)
	assert.Equal(t, "ORD-1-abcdef12", s.Reference)
}

func TestPaystack_InitializeRejected(t *testing.T) {
	g := newTestPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":false,"message":"Invalid key"}`))
	})

	_, err := g.Initialize(context.Background(), InitRequest{Email: "a@b.com", AmountMinor: 100, Reference: "r"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid key")
}

func TestPaystack_Verify(t *testing.T) {
	cases := []struct {
		name    string
		status  string
		success bool
	}{
		{"success", "success", true},
		{"abandoned", "abandoned", false},
		{"failed", "failed", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := newTestPaystack(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/transaction/verify/ORD-1-abcdef12", r.URL.Path)
				_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"status":"` + tc.status + `","reference":"ORD-1-abcdef12","amount":21000}}`))
			})

			v, err := g.Verify(context.Background(), "ORD-1-abcdef12")
			require.NoError(t, err)
			assert.Equal(t, tc.success, v.Success)
			assert.Equal(t, tc.status, v.Status)
			assert.EqualValues(t, 21000, v.AmountMinor)
			assert.Contains(t, string(v.Raw), `"amount":21000`)
		})
	}
}

func TestPaystack_VerifyReportsPaidAmount(t *testing.T) {
	g := newTestPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"status":"success","reference":"ORD-1-abcdef12","amount":1}}`))
	})

	v, err := g.Verify(context.Background(), "ORD-1-abcdef12")
	require.NoError(t, err)
	assert.True(t, v.Success)
	assert.EqualValues(t, 1, v.AmountMinor)
}

func TestPaystack_VerifyGarbage(t *testing.T) {
	g := newTestPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	})

	_, err := g.Verify(context.Background(), "ref")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 502")
}

func TestNewPaystackGateway_RequiresKey(t *testing.T) {
	_, err := NewPaystackGateway(config.PaystackConfig{})
	assert.Error(t, err)
}
