package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/researchflow/phi-sentinel/internal/batch"
	"github.com/researchflow/phi-sentinel/internal/phi"
	"github.com/researchflow/phi-sentinel/internal/websocket"
	"go.uber.org/zap"
)

// ScanRequest is the body for /v1/scan, /v1/haspii and /v1/redact.
type ScanRequest struct {
	Text        string `json:"text"`
	Tier        string `json:"tier,omitempty"`
	UseEntities bool   `json:"use_entities,omitempty"`
}

// ScanResponse is the body returned by /v1/scan.
type ScanResponse struct {
	Findings       []phi.Finding `json:"findings"`
	Truncated      bool          `json:"truncated"`
	ScannedLength  int           `json:"scanned_length"`
	LibraryVersion string        `json:"library_version"`
	CacheHit       bool          `json:"cache_hit,omitempty"`
}

// HasPhiResponse is the body returned by /v1/haspii.
type HasPhiResponse struct {
	HasPhi bool `json:"has_phi"`
}

// RedactResponse is the body returned by /v1/redact.
type RedactResponse struct {
	RedactedText string `json:"redacted_text"`
	FindingCount int    `json:"finding_count"`
	Truncated    bool   `json:"truncated"`
}

// BatchRequest is the body for /v1/batch and /v1/report.
type BatchRequest struct {
	Snippets    []batch.SnippetInput `json:"snippets"`
	Tier        string               `json:"tier,omitempty"`
	Redact      bool                 `json:"redact,omitempty"`
	UseEntities bool                 `json:"use_entities,omitempty"`
	TopN        int                  `json:"top_n,omitempty"`
}

// ScrubRequest is the body for /v1/scrub.
type ScrubRequest struct {
	Value interface{} `json:"value"`
}

// ScrubResponse is the body returned by /v1/scrub.
type ScrubResponse struct {
	Value interface{} `json:"value"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":            "phi-sentinel",
		"version":         "0.1.0",
		"active_patterns": s.library.PatternCount(),
		"library_version": s.library.Version(),
		"max_text_length": s.scanner.MaxTextLength(),
		"ner_enabled":     s.config.NER.Enabled,
		"cache_enabled":   s.config.Cache.Enabled,
		"audit_enabled":   s.config.Audit.Enabled,
		"total_scans":     s.totalScans.Load(),
		"uptime":          time.Since(s.startedAt).String(),
	}
	if s.scanCache != nil {
		if stats, err := s.scanCache.GetStats(r.Context()); err == nil {
			info["cache"] = stats
		} else {
			s.logger.Warn("Failed to collect cache stats", zap.Error(err))
		}
	}
	s.writeJSON(w, http.StatusOK, info)
}

// handleCacheClear flushes every cached verdict, e.g. ahead of a planned
// pattern rollback where stale verdicts must not linger for their TTL.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if s.scanCache == nil {
		http.Error(w, "scan cache disabled", http.StatusServiceUnavailable)
		return
	}
	if err := s.scanCache.Clear(r.Context()); err != nil {
		s.logger.Error("Failed to clear scan cache", zap.Error(err))
		http.Error(w, "failed to clear cache", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// handleAuditOutcomes returns the most recent ledger outcomes, newest first.
func (s *Server) handleAuditOutcomes(w http.ResponseWriter, r *http.Request) {
	if s.auditStore == nil {
		http.Error(w, "audit sink disabled", http.StatusServiceUnavailable)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	outcomes, err := s.auditStore.RecentOutcomes(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to query audit outcomes", zap.Error(err))
		http.Error(w, "failed to query outcomes", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"outcomes": outcomes})
}

// handleScan scans a single text and returns the findings.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	tier, err := parseTier(req.Tier)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	s.totalScans.Add(1)

	result, cacheHit := s.scanWithCache(r, req.Text, tier)

	// The elevator can synthesize findings from entities alone, so the NER
	// call is not conditional on the pattern scan having found anything.
	if req.UseEntities && s.nerClient != nil {
		entities := s.nerClient.Extract(r.Context(), req.Text)
		result.Findings = s.elevator.Elevate(result.Findings, entities)
	}

	if len(result.Findings) > 0 {
		s.totalDetections.Add(1)
		s.broadcastDetection(r, tier, result, time.Since(start))
	}

	s.writeJSON(w, http.StatusOK, ScanResponse{
		Findings:       result.Findings,
		Truncated:      result.Truncated,
		ScannedLength:  result.ScannedLength,
		LibraryVersion: s.library.Version(),
		CacheHit:       cacheHit,
	})
}

// handleHasPhi answers the boolean question only; it stops at the first
// matching pattern and returns no finding detail.
func (s *Server) handleHasPhi(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	tier, err := parseTier(req.Tier)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.totalScans.Add(1)
	s.writeJSON(w, http.StatusOK, HasPhiResponse{
		HasPhi: s.scanner.HasPhi(req.Text, tier),
	})
}

// handleRedact scans and redacts a single text.
func (s *Server) handleRedact(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	tier, err := parseTier(req.Tier)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	s.totalScans.Add(1)

	redacted, result := s.scanner.RedactText(req.Text, tier)
	if len(result.Findings) > 0 {
		s.totalDetections.Add(1)
		s.broadcastDetection(r, tier, result, time.Since(start))
	}

	s.writeJSON(w, http.StatusOK, RedactResponse{
		RedactedText: redacted,
		FindingCount: len(result.Findings),
		Truncated:    result.Truncated,
	})
}

// handleBatch scans a batch of snippets and returns the aggregate result.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	result, ok := s.runBatch(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleReport scans a batch of snippets and renders the Markdown risk
// report instead of the raw result.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	result, ok := s.runBatchRequest(w, r, req)
	if !ok {
		return
	}

	topN := req.TopN
	if topN <= 0 {
		topN = s.config.Batch.ReportTopN
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, batch.RenderReport(result, topN))
}

// handleScrub recursively redacts every string in an arbitrary JSON value.
func (s *Server) handleScrub(w http.ResponseWriter, r *http.Request) {
	var req ScrubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.totalScans.Add(1)
	s.writeJSON(w, http.StatusOK, ScrubResponse{
		Value: s.scrubber.Value(req.Value),
	})
}

func (s *Server) runBatch(w http.ResponseWriter, r *http.Request) (batch.BatchScanResult, bool) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return batch.BatchScanResult{}, false
	}
	return s.runBatchRequest(w, r, req)
}

func (s *Server) runBatchRequest(w http.ResponseWriter, r *http.Request, req BatchRequest) (batch.BatchScanResult, bool) {
	tier, err := parseTier(req.Tier)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return batch.BatchScanResult{}, false
	}
	if len(req.Snippets) == 0 {
		http.Error(w, "snippets must not be empty", http.StatusBadRequest)
		return batch.BatchScanResult{}, false
	}

	requestID := getRequestID(r.Context())
	s.totalScans.Add(int64(len(req.Snippets)))

	result := s.aggregator.ScanBatch(r.Context(), req.Snippets, batch.ScanOptions{
		Tier:        tier,
		Redact:      req.Redact,
		UseEntities: req.UseEntities,
	})
	if result.SnippetsWithPhi > 0 {
		s.totalDetections.Add(int64(result.SnippetsWithPhi))
	}

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeBatchSummary,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: websocket.BatchSummaryEvent{
			RequestID:       requestID,
			TotalSnippets:   result.TotalSnippets,
			SnippetsWithPhi: result.SnippetsWithPhi,
			TotalFindings:   result.TotalFindings,
			OverallRisk:     string(result.OverallRisk),
			DurationMS:      result.ProcessingDurationMs,
		},
	})

	if s.auditStore != nil {
		if err := s.auditStore.RecordBatch(r.Context(), result, s.library.Version()); err != nil {
			s.logger.WithRequestID(requestID).Warn("Failed to record batch outcome", zap.Error(err))
		}
	}

	return result, true
}

// scanWithCache consults the verdict cache before scanning. Any cache
// failure degrades to a fresh scan.
func (s *Server) scanWithCache(r *http.Request, text string, tier phi.Tier) (phi.ScanResult, bool) {
	if s.scanCache == nil {
		return s.scanner.Scan(text, tier), false
	}

	version := s.library.Version()
	if lookup, err := s.scanCache.Lookup(r.Context(), text, tier, version); err == nil && lookup.CacheHit {
		return lookup.Scan.Result, true
	}

	result := s.scanner.Scan(text, tier)
	if err := s.scanCache.Store(r.Context(), text, tier, version, result); err != nil {
		s.logger.Debug("Failed to store scan result in cache", zap.Error(err))
	}
	return result, false
}

func (s *Server) broadcastDetection(r *http.Request, tier phi.Tier, result phi.ScanResult, elapsed time.Duration) {
	requestID := getRequestID(r.Context())

	seen := make(map[phi.EntityType]bool)
	types := make([]string, 0, len(result.Findings))
	for _, f := range result.Findings {
		if !seen[f.EntityType] {
			seen[f.EntityType] = true
			types = append(types, string(f.EntityType))
		}
	}

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeDetection,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: websocket.DetectionEvent{
			RequestID:     requestID,
			Path:          r.URL.Path,
			Tier:          string(tier),
			TotalFindings: len(result.Findings),
			EntityTypes:   types,
			Truncated:     result.Truncated,
			ProcessingMS:  float64(elapsed.Nanoseconds()) / 1e6,
		},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func parseTier(raw string) (phi.Tier, error) {
	switch phi.Tier(raw) {
	case "":
		return phi.TierOutputGuard, nil
	case phi.TierHighConfidence, phi.TierOutputGuard:
		return phi.Tier(raw), nil
	default:
		return "", fmt.Errorf("unknown tier %q", raw)
	}
}
