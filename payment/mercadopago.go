/*
Copyright 2024 Viralship Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package payment talks to the Mercado Pago API, the PIX acquirer behind the
// storefront. Only the read side lives here; charges are created by the
// checkout frontend.
package payment

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/viralship/viralship/config"
	"github.com/viralship/viralship/internal/request"
)

// Mercado Pago payment states, as documented by the acquirer.
const (
	StateApproved    = "approved"
	StatePending     = "pending"
	StateInProcess   = "in_process"
	StateRejected    = "rejected"
	StateCancelled   = "cancelled"
	StateRefunded    = "refunded"
	StateChargedBack = "charged_back"
)

type paymentResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// MercadoPagoClient polls payment states. The access token comes from the
// loaded configuration on every call so a rotated credential takes effect
// without a restart.
type MercadoPagoClient struct{}

func NewMercadoPagoClient() *MercadoPagoClient {
	return &MercadoPagoClient{}
}

func (c *MercadoPagoClient) GetPaymentStatus(ctx context.Context, paymentID string) (string, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1/payments/%s", cfg.MercadoPago.APIURL, paymentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+cfg.MercadoPago.AccessToken)

	var resp paymentResponse
	httpResp, err := request.Call(req, &resp)
	if err != nil {
		return "", errors.Wrap(err, "payment status lookup failed")
	}
	if httpResp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("payment %s not found", paymentID)
	}
	if httpResp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("payment api returned %d", httpResp.StatusCode)
	}

	return resp.Status, nil
}
