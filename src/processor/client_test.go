package processor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rentfold/tenancy/src/services"
)

func TestCreateCheckoutSessionSendsMinorUnits(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]string{
			"id":  "cs_1",
			"url": "https://checkout.example/cs_1",
		})
	}))
	defer srv.Close()

	client := New(srv.URL, "sk_test", zap.NewNop())
	session, err := client.CreateCheckoutSession(context.Background(), services.CheckoutSessionParams{
		PaymentID:          uuid.New(),
		Amount:             decimal.NewFromFloat(5000.00),
		Currency:           "USD",
		ConnectedAccountID: "acct_1",
		ApplicationFee:     decimal.NewFromFloat(125.00),
	})
	require.NoError(t, err)

	assert.Equal(t, "cs_1", session.ID)
	assert.Equal(t, "https://checkout.example/cs_1", session.URL)
	assert.Equal(t, float64(500000), got["amount"])
	assert.Equal(t, float64(12500), got["application_fee"])
	assert.Equal(t, "acct_1", got["connected_account_id"])
}

func TestGetConnectedAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/acct_1", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":               "acct_1",
			"transfers_active": true,
		})
	}))
	defer srv.Close()

	client := New(srv.URL, "sk_test", zap.NewNop())
	account, err := client.GetConnectedAccount(context.Background(), "acct_1")
	require.NoError(t, err)

	assert.True(t, account.TransfersActive)
}

func TestNon2xxIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(srv.URL, "sk_test", zap.NewNop())
	_, err := client.GetConnectedAccount(context.Background(), "acct_1")
	assert.Error(t, err)
}
