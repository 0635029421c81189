package http

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError emits the error contract shared by all endpoints.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// cacheKey derives the response cache key from the endpoint scope and the
// raw request body.
func cacheKey(scope string, body []byte) string {
	sum := sha256.Sum256(body)
	return scope + ":" + hex.EncodeToString(sum[:])
}

// serveCached writes a previously computed response for an identical body,
// if one is cached.
func (s *Server) serveCached(w http.ResponseWriter, r *http.Request, scope string, body []byte) bool {
	cached, found := s.responseCache.Get(cacheKey(scope, body))
	if !found {
		atomic.AddInt64(&s.appMetrics.cacheMisses, 1)
		return false
	}
	atomic.AddInt64(&s.appMetrics.cacheHits, 1)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(cached)
	return true
}

// writeJSONCached writes the response and stores its encoding for future
// identical requests.
func (s *Server) writeJSONCached(w http.ResponseWriter, scope string, body []byte, v any) {
	encoded, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	encoded = append(encoded, '\n')
	s.responseCache.Set(cacheKey(scope, body), encoded)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(encoded)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
