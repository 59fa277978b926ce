/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"crowdfund-ledger-go/internal/store"

	"go.uber.org/zap"
)

type successResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type errorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error     errorPayload `json:"error"`
	RequestId string       `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("Failed to write response body", zap.Error(err))
	}
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, successResponse{Status: "success", Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, kind, message, requestID string) {
	writeJSON(w, status, errorResponse{
		Error:     errorPayload{Kind: kind, Message: message},
		RequestId: requestID,
	})
}

// mapDomainError translates ledger errors to an HTTP status and a
// machine-readable kind.
func mapDomainError(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusBadRequest, "invalid_state"
	case errors.Is(err, store.ErrInsufficientClaimable):
		return http.StatusBadRequest, "insufficient_claimable"
	case errors.Is(err, store.ErrInsufficientBalance):
		return http.StatusPaymentRequired, "insufficient_balance"
	case errors.Is(err, store.ErrKycRequired):
		return http.StatusForbidden, "kyc_required"
	case errors.Is(err, store.ErrUnauthorized):
		return http.StatusForbidden, "authorization_error"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, store.ErrDuplicateTransaction):
		return http.StatusConflict, "duplicate_transaction"
	case errors.Is(err, store.ErrConcurrentModification):
		return http.StatusConflict, "concurrent_modification"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := mapDomainError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeError(w, status, kind, message, requestIDFromContext(r))
}
