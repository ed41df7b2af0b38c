package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

// principalMiddleware extracts the authenticated principal from the bearer
// token's subject claim and stores it in the request context. Session
// lifecycle, refresh and revocation live in the auth service; this layer
// only verifies the signature and reads the identity.
func (a *API) principalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil, a.logger)
			return
		}
		tokenText := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(tokenText, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(a.jwtSecret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "Invalid token", err, a.logger)
			return
		}

		subject, err := token.Claims.GetSubject()
		if err != nil || subject == "" {
			writeError(w, http.StatusUnauthorized, "Token has no subject", err, a.logger)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyPrincipalID, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimiterEntry holds a principal's limiter with its last-seen time for
// cleanup.
type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiters struct {
	mu      sync.Mutex
	entries map[string]*rateLimiterEntry
	rps     rate.Limit
	burst   int
}

func newRateLimiters(rps float64, burst int) *rateLimiters {
	return &rateLimiters{
		entries: make(map[string]*rateLimiterEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

func (rl *rateLimiters) allow(principalID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.entries[principalID]
	if !ok {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.entries[principalID] = entry
	}
	entry.lastSeen = time.Now()

	// Opportunistic cleanup of idle principals
	if len(rl.entries) > 1000 {
		cutoff := time.Now().Add(-10 * time.Minute)
		for id, e := range rl.entries {
			if e.lastSeen.Before(cutoff) {
				delete(rl.entries, id)
			}
		}
	}

	return entry.limiter.Allow()
}

// rateLimitMiddleware throttles hunt requests per principal. Backend
// execution is the expensive part of every request, so the limit protects
// the incident store rather than the HTTP layer.
func (a *API) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principalID, ok := GetPrincipalID(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Missing principal", nil, a.logger)
			return
		}
		if !a.limiters.allow(principalID) {
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded", nil, a.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}
