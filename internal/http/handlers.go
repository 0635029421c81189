package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"roundup/internal/engine"
	"roundup/internal/log"
)

// maxBodySize bounds request bodies; the largest documented workloads are
// around a million transactions, well under this.
const maxBodySize = 64 << 20

// transactionPayload is one wire transaction. Pointer fields distinguish
// absent from zero, which the engine needs for its validation messages.
type transactionPayload struct {
	Date      string   `json:"date,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	Amount    *float64 `json:"amount"`
	Ceiling   *float64 `json:"ceiling"`
	Remanent  *float64 `json:"remanent"`
}

func (p transactionPayload) toRaw() engine.RawTransaction {
	return engine.RawTransaction{
		Date:      p.Date,
		Timestamp: p.Timestamp,
		Amount:    p.Amount,
		Ceiling:   p.Ceiling,
		Remanent:  p.Remanent,
	}
}

func toRawTransactions(payloads []transactionPayload) []engine.RawTransaction {
	raws := make([]engine.RawTransaction, len(payloads))
	for i, p := range payloads {
		raws[i] = p.toRaw()
	}
	return raws
}

// Override periods carry their amount under "fixed", extras under "extra".
type qPeriodPayload struct {
	Fixed *float64 `json:"fixed"`
	Start string   `json:"start"`
	End   string   `json:"end"`
}

type pPeriodPayload struct {
	Extra *float64 `json:"extra"`
	Start string   `json:"start"`
	End   string   `json:"end"`
}

type kPeriodPayload struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type rulePayload struct {
	Q []qPeriodPayload `json:"q"`
	P []pPeriodPayload `json:"p"`
	K []kPeriodPayload `json:"k"`
}

func (rp rulePayload) toRuleSet() (engine.RuleSet, error) {
	q := make([]engine.RawPeriod, len(rp.Q))
	for i, p := range rp.Q {
		q[i] = engine.RawPeriod{Start: p.Start, End: p.End, Value: p.Fixed}
	}
	p := make([]engine.RawPeriod, len(rp.P))
	for i, pp := range rp.P {
		p[i] = engine.RawPeriod{Start: pp.Start, End: pp.End, Value: pp.Extra}
	}
	k := make([]engine.RawPeriod, len(rp.K))
	for i, kp := range rp.K {
		k[i] = engine.RawPeriod{Start: kp.Start, End: kp.End}
	}
	return engine.BuildRuleSet(q, p, k)
}

// transactionOutput is the canonical wire form of a built transaction.
type transactionOutput struct {
	Date     string  `json:"date"`
	Amount   float64 `json:"amount"`
	Ceiling  float64 `json:"ceiling"`
	Remanent float64 `json:"remanent"`
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	return body, true
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

// handleParse derives ceilings and remanents for a batch of expenses. The
// payload is either a bare list of records or {"expenses": [...]}.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	var payloads []transactionPayload
	if isJSONArray(body) {
		if err := json.Unmarshal(body, &payloads); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	} else {
		var wrapper struct {
			Expenses []transactionPayload `json:"expenses"`
		}
		if err := json.Unmarshal(body, &wrapper); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		payloads = wrapper.Expenses
	}

	result, err := s.service.Parse(r.Context(), toRawTransactions(payloads))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	atomic.AddInt64(&s.appMetrics.totalEvaluations, 1)

	out := make([]transactionOutput, len(result.Transactions))
	for i, tx := range result.Transactions {
		out[i] = transactionOutput{
			Date:     tx.Timestamp.String(),
			Amount:   tx.Amount,
			Ceiling:  tx.Ceiling,
			Remanent: tx.Remanent,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleValidate partitions transactions into valid/invalid/duplicate
// buckets under the wage-derived cumulative investment limit.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	var payload struct {
		Wage          *float64             `json:"wage"`
		MaxInvestment *float64             `json:"maxInvestment"`
		Transactions  []transactionPayload `json:"transactions"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if payload.Wage == nil {
		writeError(w, http.StatusBadRequest, "field 'wage' is required")
		return
	}

	buckets, err := s.service.Validate(r.Context(), *payload.Wage, payload.MaxInvestment, toRawTransactions(payload.Transactions))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	atomic.AddInt64(&s.appMetrics.totalEvaluations, 1)

	valid := make([]transactionOutput, len(buckets.Valid))
	for i, tx := range buckets.Valid {
		valid[i] = transactionOutput{
			Date:     tx.Timestamp.String(),
			Amount:   tx.Amount,
			Ceiling:  tx.Ceiling,
			Remanent: tx.Remanent,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":      valid,
		"invalid":    buckets.Invalid,
		"duplicates": buckets.Duplicates,
	})
}

// handleFilter applies q/p/k rules and returns the in-window survivors.
// The computation is pure, so identical bodies are served from cache.
func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	if s.serveCached(w, r, "filter", body) {
		return
	}

	var payload struct {
		rulePayload
		Transactions []transactionPayload `json:"transactions"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rules, err := payload.toRuleSet()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := s.service.Filter(r.Context(), toRawTransactions(payload.Transactions), rules)
	atomic.AddInt64(&s.appMetrics.totalEvaluations, 1)
	s.writeJSONCached(w, "filter", body, result)
}

func (s *Server) handleReturnsPension(w http.ResponseWriter, r *http.Request) {
	s.handleReturns(w, r, engine.SchemePension)
}

func (s *Server) handleReturnsIndex(w http.ResponseWriter, r *http.Request) {
	s.handleReturns(w, r, engine.SchemeIndex)
}

// handleReturns projects per-window savings under the given scheme.
func (s *Server) handleReturns(w http.ResponseWriter, r *http.Request, scheme engine.Scheme) {
	if !requirePost(w, r) {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	cacheScope := "returns:" + string(scheme)
	if s.serveCached(w, r, cacheScope, body) {
		return
	}

	var payload struct {
		rulePayload
		Age          *int                 `json:"age"`
		Wage         *float64             `json:"wage"`
		Inflation    *float64             `json:"inflation"`
		Transactions []transactionPayload `json:"transactions"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if payload.Age == nil || payload.Wage == nil || payload.Inflation == nil {
		writeError(w, http.StatusBadRequest, "fields 'age', 'wage' and 'inflation' are required")
		return
	}

	rules, err := payload.toRuleSet()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.service.Returns(r.Context(), engine.ReturnsInput{
		Scheme:       scheme,
		Age:          *payload.Age,
		Wage:         *payload.Wage,
		Inflation:    *payload.Inflation,
		Transactions: toRawTransactions(payload.Transactions),
		Rules:        rules,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	atomic.AddInt64(&s.appMetrics.totalEvaluations, 1)
	kept := len(payload.Transactions) - result.InvalidCount - result.DuplicateCount
	s.structured.LogEvaluation(r.Context(), log.OpReturns, kept, result.InvalidCount, result.DuplicateCount, result.TotalAmount)
	s.writeJSONCached(w, cacheScope, body, result)
}

// handlePerformance reports timing and process stats of the last request.
func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	lastUs := atomic.LoadInt64(&s.appMetrics.lastDurationUs)
	writeJSON(w, http.StatusOK, map[string]any{
		"time":    fmt.Sprintf("%.3f ms", float64(lastUs)/1000.0),
		"memory":  fmt.Sprintf("%.2f MB", float64(mem.Sys)/(1024*1024)),
		"threads": runtime.NumGoroutine(),
	})
}

// handleHealth performs a basic liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady performs a readiness check over the server's dependencies.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.service == nil {
		checks["evaluation_service"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["evaluation_service"] = "ok"
	}

	checks["cache"] = map[string]any{
		"entries": s.responseCache.Size(),
		"status":  "ok",
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics exposes counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	totalRequests := atomic.LoadInt64(&s.appMetrics.totalRequests)
	totalEvaluations := atomic.LoadInt64(&s.appMetrics.totalEvaluations)
	cacheHits := atomic.LoadInt64(&s.appMetrics.cacheHits)
	cacheMisses := atomic.LoadInt64(&s.appMetrics.cacheMisses)
	rateLimitHits := atomic.LoadInt64(&s.securityMetrics.rateLimitHits)
	suspicious := atomic.LoadInt64(&s.securityMetrics.suspiciousRequests)
	uptime := time.Since(s.appMetrics.uptime)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", totalRequests)

	fmt.Fprintf(w, "# HELP evaluations_total Total number of evaluations computed\n")
	fmt.Fprintf(w, "# TYPE evaluations_total counter\n")
	fmt.Fprintf(w, "evaluations_total %d\n\n", totalEvaluations)

	fmt.Fprintf(w, "# HELP cache_hits_total Total response cache hits\n")
	fmt.Fprintf(w, "# TYPE cache_hits_total counter\n")
	fmt.Fprintf(w, "cache_hits_total %d\n\n", cacheHits)

	fmt.Fprintf(w, "# HELP cache_misses_total Total response cache misses\n")
	fmt.Fprintf(w, "# TYPE cache_misses_total counter\n")
	fmt.Fprintf(w, "cache_misses_total %d\n\n", cacheMisses)

	fmt.Fprintf(w, "# HELP cache_entries Current response cache entries\n")
	fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
	fmt.Fprintf(w, "cache_entries %d\n\n", s.responseCache.Size())

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitHits)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", suspicious)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", s.rateLimiter.ActiveClients())

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", uptime.Seconds())
}

// isJSONArray reports whether the body's first token opens an array.
func isJSONArray(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}
