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
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"crowdfund-ledger-go/internal/api"
	"crowdfund-ledger-go/internal/models"
	"crowdfund-ledger-go/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type Handler struct{ service *api.LedgerService }

func NewHandler(service *api.LedgerService) *Handler { return &Handler{service: service} }

type createCampaignRequest struct {
	Title         string          `json:"title"`
	MinimumAmount decimal.Decimal `json:"minimum_amount"`
}

type fundingRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Message string          `json:"message"`
}

type claimRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Source string           `json:"source"`
}

type closeRequest struct {
	Reason string `json:"reason"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type depositRequest struct {
	UserId     string          `json:"user_id"`
	Amount     decimal.Decimal `json:"amount"`
	ExternalId string          `json:"external_id"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type conversionRequest struct {
	From   string          `json:"from"`
	Amount decimal.Decimal `json:"amount"`
}

type roleRequest struct {
	Role   string `json:"role"`
	Reason string `json:"reason"`
}

type kycRequest struct {
	Verified bool `json:"verified"`
}

// decode reads a JSON body. An empty body leaves dst untouched so optional
// payloads can be omitted.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid json body", requestIDFromContext(r))
		return false
	}
	return true
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	if err := h.service.HealthCheck(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_ready", err.Error(), requestIDFromContext(r))
		return
	}
	writeSuccess(w, http.StatusOK, "ready", nil)
}

func (h *Handler) createCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if !decode(w, r, &req) {
		return
	}
	view, err := h.service.CreateCampaign(r.Context(), actorFromContext(r), req.Title, req.MinimumAmount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "campaign created", view)
}

func (h *Handler) getCampaign(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetCampaign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "campaign", view)
}

func (h *Handler) campaignTransactions(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.GetCampaignTransactions(r.Context(), actorFromContext(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "campaign transactions", records)
}

func (h *Handler) contribute(w http.ResponseWriter, r *http.Request) {
	var req fundingRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.service.Contribute(r.Context(), actorFromContext(r), chi.URLParam(r, "id"), req.Amount, req.Message)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "contribution received", result)
}

func (h *Handler) tip(w http.ResponseWriter, r *http.Request) {
	var req fundingRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.service.Tip(r.Context(), actorFromContext(r), chi.URLParam(r, "id"), req.Amount, req.Message)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "tip received", result)
}

func (h *Handler) claim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !decode(w, r, &req) {
		return
	}

	var source models.FundingKind
	switch strings.ToLower(strings.TrimSpace(req.Source)) {
	case "", "contributions", "contribution":
		source = models.FundingContribution
	case "tips", "tip":
		source = models.FundingTip
	default:
		writeDomainError(w, r, fmt.Errorf("%w: source must be contributions or tips", store.ErrValidation))
		return
	}

	result, err := h.service.Claim(r.Context(), actorFromContext(r), chi.URLParam(r, "id"), source, req.Amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "funds claimed", result)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.service.Close(r.Context(), actorFromContext(r), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "campaign closed", result)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	status, err := models.ParseCampaignStatus(req.Status)
	if err != nil {
		writeDomainError(w, r, fmt.Errorf("%w: %v", store.ErrValidation, err))
		return
	}
	view, err := h.service.ChangeStatus(r.Context(), actorFromContext(r), chi.URLParam(r, "id"), status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "campaign updated", view)
}

func (h *Handler) wallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.service.GetWallet(r.Context(), actorFromContext(r), r.URL.Query().Get("user_id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "wallet", wallet)
}

func (h *Handler) transactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	records, err := h.service.GetTransactionHistory(r.Context(), actorFromContext(r), query.Get("user_id"), limit, offset)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "transactions", records)
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.service.Deposit(r.Context(), actorFromContext(r), req.UserId, req.Amount, req.ExternalId)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "deposit processed", result)
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.service.Withdraw(r.Context(), actorFromContext(r), req.Amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusAccepted, "withdrawal pending", result)
}

func (h *Handler) settleWithdrawal(status models.TransactionStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := h.service.SettleWithdrawal(r.Context(), actorFromContext(r), chi.URLParam(r, "txId"), status)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeSuccess(w, http.StatusOK, "withdrawal "+string(status), result)
	}
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request) {
	var req conversionRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.service.Convert(r.Context(), actorFromContext(r), models.Wallet(req.From), req.Amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "conversion processed", result)
}

func (h *Handler) setRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !decode(w, r, &req) {
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		writeDomainError(w, r, fmt.Errorf("%w: %v", store.ErrValidation, err))
		return
	}
	user, err := h.service.SetRole(r.Context(), actorFromContext(r), chi.URLParam(r, "id"), role, req.Reason)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "role updated", user)
}

func (h *Handler) setKyc(w http.ResponseWriter, r *http.Request) {
	var req kycRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := h.service.SetKyc(r.Context(), actorFromContext(r), chi.URLParam(r, "id"), req.Verified)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "kyc updated", user)
}

func (h *Handler) auditLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.GetAuditLog(r.Context(), actorFromContext(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "audit log", entries)
}
