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
	"context"
	"net/http"

	"crowdfund-ledger-go/internal/api"
	"crowdfund-ledger-go/internal/metrics"
	"crowdfund-ledger-go/internal/models"

	"github.com/go-chi/chi/v5"
)

// UserDirectory resolves the authenticated subject to a ledger user.
type UserDirectory interface {
	GetUserById(ctx context.Context, userId string) (*models.User, error)
}

func NewRouter(service *api.LedgerService, users UserDirectory, limiter *RateLimiter) http.Handler {
	h := NewHandler(service)

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(metrics.InstrumentHandler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ok", nil) })
	r.Get("/readyz", h.ready)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(users))
		if limiter != nil {
			r.Use(limiter.Handler)
		}

		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", h.createCampaign)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getCampaign)
				r.Get("/transactions", h.campaignTransactions)
				r.Post("/contribute", h.contribute)
				r.Post("/tip", h.tip)
				r.Post("/claim", h.claim)
				r.Post("/close", h.close)
				r.Patch("/status", h.changeStatus)
			})
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", h.wallet)
			r.Get("/transactions", h.transactions)
			r.Post("/deposits", h.deposit)
			r.Post("/withdrawals", h.withdraw)
			r.Post("/withdrawals/{txId}/confirm", h.settleWithdrawal(models.TxStatusCompleted))
			r.Post("/withdrawals/{txId}/fail", h.settleWithdrawal(models.TxStatusFailed))
			r.Post("/conversions", h.convert)
		})

		r.Route("/admin/users/{id}", func(r chi.Router) {
			r.Patch("/role", h.setRole)
			r.Patch("/kyc", h.setKyc)
			r.Get("/audit", h.auditLog)
		})
	})
	return r
}
