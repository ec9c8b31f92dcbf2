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

// Package provider speaks the SMM panel wire protocol. Every panel in the
// catalog exposes the same single-endpoint JSON API: an "add" action that
// accepts an order and a "status" action that reports on one.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/viralship/viralship/internal/request"
	"github.com/viralship/viralship/model"
)

type addPayload struct {
	Key      string `json:"key"`
	Action   string `json:"action"`
	Service  string `json:"service"`
	Link     string `json:"link"`
	Quantity int64  `json:"quantity"`
}

type statusPayload struct {
	Key    string `json:"key"`
	Action string `json:"action"`
	Order  string `json:"order"`
}

type addResponse struct {
	Order json.Number `json:"order"`
	Error string      `json:"error"`
}

type statusResponse struct {
	Status     string      `json:"status"`
	Remains    json.Number `json:"remains"`
	StartCount json.Number `json:"start_count"`
	Error      string      `json:"error"`
}

// Client is the default panel client. Submissions retry transient transport
// failures with exponential backoff; panel-level rejections (an "error" field
// in a 200 response) are permanent and never retried.
type Client struct {
	maxElapsed time.Duration
}

func NewClient() *Client {
	return &Client{maxElapsed: 30 * time.Second}
}

func (c *Client) SubmitOrder(ctx context.Context, req model.SubmitOrderRequest) (string, error) {
	payload := addPayload{
		Key:      req.APIKey,
		Action:   "add",
		Service:  req.ServiceExternalID,
		Link:     req.TargetURL,
		Quantity: req.Quantity,
	}

	var providerOrderID string
	operation := func() error {
		body, err := request.ToJsonReq(payload)
		if err != nil {
			return backoff.Permanent(err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.APIURL, body)
		if err != nil {
			return backoff.Permanent(err)
		}

		var resp addResponse
		httpResp, err := request.Call(httpReq, &resp)
		if err != nil {
			return err
		}
		if httpResp.StatusCode >= http.StatusInternalServerError {
			return errors.Errorf("provider returned %d", httpResp.StatusCode)
		}
		if httpResp.StatusCode != http.StatusOK {
			return backoff.Permanent(errors.Errorf("provider returned %d", httpResp.StatusCode))
		}
		if resp.Error != "" {
			return backoff.Permanent(errors.Errorf("provider rejected order: %s", resp.Error))
		}
		if resp.Order == "" {
			return backoff.Permanent(errors.New("provider response missing order id"))
		}

		providerOrderID = resp.Order.String()
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return "", errors.Wrap(err, "order submission failed")
	}

	return providerOrderID, nil
}

func (c *Client) GetOrderStatus(ctx context.Context, req model.OrderStatusRequest) (*model.ProviderOrderStatus, error) {
	payload := statusPayload{
		Key:    req.APIKey,
		Action: "status",
		Order:  req.ProviderOrderID,
	}

	body, err := request.ToJsonReq(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.APIURL, body)
	if err != nil {
		return nil, err
	}

	var resp statusResponse
	httpResp, err := request.Call(httpReq, &resp)
	if err != nil {
		return nil, errors.Wrap(err, "status poll failed")
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned %d", httpResp.StatusCode)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("provider rejected status poll: %s", resp.Error)
	}

	remains, _ := resp.Remains.Int64()
	startCount, _ := resp.StartCount.Int64()

	return &model.ProviderOrderStatus{
		Status:     resp.Status,
		Remains:    remains,
		StartCount: startCount,
	}, nil
}
