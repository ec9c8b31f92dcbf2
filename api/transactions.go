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
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	model2 "github.com/viralship/viralship/api/model"
	"github.com/viralship/viralship/internal/apierror"
)

// statusFromError maps structured storage errors onto HTTP status codes.
func statusFromError(err error) int {
	var apiErr apierror.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case apierror.ErrNotFound:
			return http.StatusNotFound
		case apierror.ErrConflict:
			return http.StatusConflict
		case apierror.ErrBadRequest, apierror.ErrInvalidInput:
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// CreateTransaction records a transaction for a paid checkout. Duplicate
// submissions replay the original result with a 200 instead of a 201.
func (a Api) CreateTransaction(c *gin.Context) {
	var newTransaction model2.CreateTransaction
	if err := c.ShouldBindJSON(&newTransaction); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := newTransaction.ValidateCreateTransaction(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, replayed, err := a.coordinator.CreateTransaction(c.Request.Context(), newTransaction.ToTransactionRequest())
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	if replayed {
		c.JSON(http.StatusOK, resp)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetTransaction(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.coordinator.GetTransaction(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetTransactionOrders(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.coordinator.GetTransactionOrders(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetProcessingLogs(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.coordinator.GetProcessingLogs(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// PaymentWebhook receives Mercado Pago notifications and folds the payment
// state into the transaction. Replays are harmless: ingestion is
// short-circuited for terminal transactions and processing is locked.
func (a Api) PaymentWebhook(c *gin.Context) {
	var notification model2.PaymentNotification
	if err := c.ShouldBindJSON(&notification); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := notification.ValidatePaymentNotification(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	txn, err := a.coordinator.IngestPaymentStatus(c.Request.Context(), notification.Data.ID)
	if err != nil {
		// Always 200 on lookup misses; the acquirer retries anything else
		// and an unmatched payment will never match later.
		logrus.Warnf("payment webhook for %s: %v", notification.Data.ID, err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "transaction_id": txn.TransactionID, "status": txn.Status})
}
