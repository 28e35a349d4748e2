// Copyright 2025 The Bindu Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/getbindu/bindu/pkg/protocol"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// GetClaims returns the verified claims attached by Middleware, or nil on an
// unauthenticated request.
func GetClaims(r *http.Request) *Claims {
	if claims, ok := r.Context().Value(claimsContextKey).(*Claims); ok {
		return claims
	}
	return nil
}

// Middleware gates the RPC endpoint on a valid bearer token. Failures answer
// with a 401 carrying the InvalidToken JSON-RPC error so A2A clients always
// see protocol-shaped errors.
func Middleware(validator *JWTValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if validator == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if authHeader == "" || tokenString == authHeader {
				writeInvalidToken(w, "missing or malformed Authorization header")
				return
			}

			claims, err := validator.ValidateToken(r.Context(), tokenString)
			if err != nil {
				writeInvalidToken(w, err.Error())
				return
			}

			// Exposed for per-subject rate limiting.
			r.Header.Set("X-Auth-Subject", claims.Subject)
			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeInvalidToken(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	resp := protocol.NewErrorResponse(nil, protocol.ErrInvalidToken.WithData(detail))
	_ = json.NewEncoder(w).Encode(resp)
}
