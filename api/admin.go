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
	"net/http"

	"github.com/gin-gonic/gin"
)

type operatorAction struct {
	Operator string `json:"operator"`
}

// operatorFrom reads the acting operator from the request body, falling
// back to a fixed tag so force actions always carry an audit identity.
func operatorFrom(c *gin.Context) string {
	var action operatorAction
	if err := c.ShouldBindJSON(&action); err == nil && action.Operator != "" {
		return action.Operator
	}
	return "api"
}

// ForceProcess runs one processing pass for a transaction outside the
// scheduler, charging an attempt like any scheduled run.
func (a Api) ForceProcess(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	result := a.coordinator.RunSingle(c.Request.Context(), id)
	c.JSON(http.StatusOK, result)
}

// Reprocess clears the order flag and re-runs dispatch for a transaction
// whose provider orders were refunded or canceled.
func (a Api) Reprocess(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	result, err := a.coordinator.ReprocessTransaction(c.Request.Context(), id, operatorFrom(c))
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ForceUnlock removes a transaction's processing lock regardless of holder.
func (a Api) ForceUnlock(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	removed, err := a.coordinator.ForceUnlock(c.Request.Context(), id, operatorFrom(c))
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// LockStatus reports the lock table summary.
func (a Api) LockStatus(c *gin.Context) {
	status, err := a.coordinator.GetLockStatus(c.Request.Context())
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, status)
}
