package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/cassiomorais/bluecode/internal/repository/postgres"
	"github.com/rs/zerolog/log"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "X-Idempotency-Replayed"

	maxIdempotencyBodySize = 1 << 20
)

// IdempotencyStore keeps responses of mutating requests by key.
type IdempotencyStore interface {
	// Get returns nil and no error when key is unknown or expired.
	Get(ctx context.Context, key string) (*postgres.IdempotencyEntry, error)
	Set(ctx context.Context, entry *postgres.IdempotencyEntry) error
}

// Idempotency replays the stored response for a repeated Idempotency-Key.
// Keys are scoped to method and path so one key cannot replay another
// order's refund. Reusing a key with a different body is rejected with 409.
// Server errors are not recorded, so the request can be retried.
func Idempotency(store IdempotencyStore, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(IdempotencyHeader)
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Method + " " + r.URL.Path + " " + header

			body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotencyBodySize+1))
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "unreadable request body", "invalid_request")
				return
			}
			if len(body) > maxIdempotencyBodySize {
				writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large", "invalid_request")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			hash := fingerprint(body)

			entry, err := store.Get(r.Context(), key)
			if err != nil {
				log.Warn().Err(err).Str("path", r.URL.Path).Msg("idempotency lookup failed")
			}
			if err == nil && entry != nil {
				if entry.RequestHash != hash {
					writeJSONError(w, http.StatusConflict, "idempotency key reused with a different request", "duplicate_request")
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(ReplayedHeader, "true")
				w.WriteHeader(entry.ResponseStatus)
				w.Write([]byte(entry.ResponseBody))
				return
			}

			rec := &responseRecorder{ResponseWriter: w, body: &bytes.Buffer{}, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.statusCode >= 200 && rec.statusCode < 500 && !rec.bodyTruncated {
				now := time.Now()
				err := store.Set(r.Context(), &postgres.IdempotencyEntry{
					Key:            key,
					RequestHash:    hash,
					ResponseBody:   rec.body.String(),
					ResponseStatus: rec.statusCode,
					CreatedAt:      now,
					ExpiresAt:      now.Add(ttl),
				})
				if err != nil {
					log.Warn().Err(err).Str("path", r.URL.Path).Msg("idempotency store failed")
				}
			}
		})
	}
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode    int
	body          *bytes.Buffer
	bodyTruncated bool
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.bodyTruncated {
		if r.body.Len()+len(b) > maxIdempotencyBodySize {
			r.bodyTruncated = true
		} else {
			r.body.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}
