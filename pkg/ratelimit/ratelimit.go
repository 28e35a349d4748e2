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

// Package ratelimit enforces fixed-window request limits per client, keyed by
// remote address or an authenticated subject header.
package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Limiter counts requests per identifier in fixed one-minute windows.
type Limiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	count     int
	windowEnd time.Time
}

// NewLimiter allows limit requests per minute per identifier. limit <= 0
// disables limiting.
func NewLimiter(limit int) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  time.Minute,
		buckets: make(map[string]*bucket),
	}
}

// Allow records one request and reports whether it is within the limit. The
// second return is the wait until the window resets when denied.
func (l *Limiter) Allow(identifier string) (bool, time.Duration) {
	if l == nil || l.limit <= 0 {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[identifier]
	if !ok || b.windowEnd.Before(now) {
		b = &bucket{windowEnd: now.Add(l.window)}
		l.buckets[identifier] = b
	}
	b.count++
	if b.count > l.limit {
		return false, time.Until(b.windowEnd)
	}
	return true, 0
}

// identify keys the limiter by authenticated subject when present, client IP
// otherwise.
func identify(r *http.Request) string {
	if sub := r.Header.Get("X-Auth-Subject"); sub != "" {
		return sub
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects over-limit requests with 429 and a Retry-After header.
func Middleware(limiter *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || limiter.limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter := limiter.Allow(identify(r))
			if !allowed {
				seconds := int(retryAfter.Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
