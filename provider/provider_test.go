package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viralship/viralship/model"
)

func TestSubmitOrder(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "https://panel.example.com/api/v2",
		func(req *http.Request) (*http.Response, error) {
			var payload map[string]interface{}
			require.NoError(t, json.NewDecoder(req.Body).Decode(&payload))
			assert.Equal(t, "add", payload["action"])
			assert.Equal(t, "secret-key", payload["key"])
			assert.Equal(t, "2001", payload["service"])
			assert.Equal(t, "https://instagram.com/p/abc123/", payload["link"])
			assert.Equal(t, float64(500), payload["quantity"])
			return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{"order": 98231})
		})

	client := NewClient()
	orderID, err := client.SubmitOrder(context.Background(), model.SubmitOrderRequest{
		APIURL:            "https://panel.example.com/api/v2",
		APIKey:            "secret-key",
		ServiceExternalID: "2001",
		TargetURL:         "https://instagram.com/p/abc123/",
		Quantity:          500,
	})
	require.NoError(t, err)
	assert.Equal(t, "98231", orderID)
}

func TestSubmitOrderPanelRejection(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "https://panel.example.com/api/v2",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]string{"error": "not enough funds"}))

	client := NewClient()
	_, err := client.SubmitOrder(context.Background(), model.SubmitOrderRequest{
		APIURL:            "https://panel.example.com/api/v2",
		APIKey:            "secret-key",
		ServiceExternalID: "2001",
		TargetURL:         "https://instagram.com/p/abc123/",
		Quantity:          500,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not enough funds")
	// A rejection is permanent: exactly one call, no retries.
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestSubmitOrderRetriesServerErrors(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	calls := 0
	httpmock.RegisterResponder(http.MethodPost, "https://panel.example.com/api/v2",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return httpmock.NewJsonResponse(http.StatusInternalServerError, map[string]string{})
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{"order": 7})
		})

	client := NewClient()
	orderID, err := client.SubmitOrder(context.Background(), model.SubmitOrderRequest{
		APIURL:            "https://panel.example.com/api/v2",
		APIKey:            "secret-key",
		ServiceExternalID: "2001",
		TargetURL:         "https://instagram.com/p/abc123/",
		Quantity:          100,
	})
	require.NoError(t, err)
	assert.Equal(t, "7", orderID)
	assert.GreaterOrEqual(t, calls, 2)
}

func TestGetOrderStatus(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "https://panel.example.com/api/v2",
		func(req *http.Request) (*http.Response, error) {
			var payload map[string]interface{}
			require.NoError(t, json.NewDecoder(req.Body).Decode(&payload))
			assert.Equal(t, "status", payload["action"])
			assert.Equal(t, "98231", payload["order"])
			return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
				"status":      "In progress",
				"remains":     120,
				"start_count": 4400,
			})
		})

	client := NewClient()
	status, err := client.GetOrderStatus(context.Background(), model.OrderStatusRequest{
		APIURL:          "https://panel.example.com/api/v2",
		APIKey:          "secret-key",
		ProviderOrderID: "98231",
	})
	require.NoError(t, err)
	assert.Equal(t, "In progress", status.Status)
	assert.Equal(t, int64(120), status.Remains)
	assert.Equal(t, int64(4400), status.StartCount)
}
