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
	"errors"
	"net/http"
	"strings"

	"crowdfund-ledger-go/internal/models"
	"crowdfund-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-Id"

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := models.WithActor(r.Context(), models.Actor{RequestId: requestID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authMiddleware trusts the bearer token as the user id issued by the
// upstream identity provider and resolves the role from the user directory.
func authMiddleware(users UserDirectory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := requestIDFromContext(r)

			auth := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "missing bearer token", requestID)
				return
			}
			subject := strings.TrimSpace(auth[7:])
			if subject == "" {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "empty bearer token", requestID)
				return
			}

			user, err := users.GetUserById(r.Context(), subject)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeError(w, http.StatusUnauthorized, "unauthenticated", "unknown user", requestID)
					return
				}
				zap.L().Error("User lookup failed during authentication",
					zap.String("user_id", subject),
					zap.String("request_id", requestID),
					zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal_error", "authentication unavailable", requestID)
				return
			}

			actor := models.Actor{UserId: user.Id, Role: user.Role, RequestId: requestID}
			next.ServeHTTP(w, r.WithContext(models.WithActor(r.Context(), actor)))
		})
	}
}

func actorFromContext(r *http.Request) models.Actor {
	actor, _ := models.GetActor(r.Context())
	return actor
}

func requestIDFromContext(r *http.Request) string {
	return actorFromContext(r).RequestId
}
