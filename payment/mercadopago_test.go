package payment

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viralship/viralship/config"
)

func setupConfig() {
	config.MockConfig(&config.Configuration{
		MercadoPago: config.MercadoPagoConfig{
			APIURL:      "https://api.mercadopago.test",
			AccessToken: "test-token",
		},
	})
}

func TestGetPaymentStatus(t *testing.T) {
	setupConfig()
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "https://api.mercadopago.test/v1/payments/12345",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer test-token", req.Header.Get("Authorization"))
			return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
				"id":     12345,
				"status": "approved",
			})
		})

	client := NewMercadoPagoClient()
	status, err := client.GetPaymentStatus(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, StateApproved, status)
}

func TestGetPaymentStatusNotFound(t *testing.T) {
	setupConfig()
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "https://api.mercadopago.test/v1/payments/ghost",
		httpmock.NewJsonResponderOrPanic(http.StatusNotFound, map[string]string{"message": "not found"}))

	client := NewMercadoPagoClient()
	_, err := client.GetPaymentStatus(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
