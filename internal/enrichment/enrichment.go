// Package enrichment generates compliance narratives for revocation events.
// The generator prefers a recent cached narrative, then an external analysis
// call bounded by timeout and retries, and finally a deterministic templated
// fallback. The fallback path never fails, so every durably recorded
// revocation eventually gets a completed audit entry.
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"consentry/internal/enrichment/cache"
	"consentry/internal/platform/metrics"
)

// Source records how a narrative payload was produced.
type Source string

const (
	SourceExternal Source = "external"
	SourceFallback Source = "fallback"
	SourceCache    Source = "cache"
)

const placeholderSignature = "PLACEHOLDER_FOR_HMAC"

// FieldList is a []string that also accepts a single JSON string, coercing it
// to a one-element list.
type FieldList []string

func (f *FieldList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("fields must be a string or list of strings")
	}
	*f = FieldList{single}
	return nil
}

// Event is the revocation data handed to the generator.
type Event struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	UserName    string    `json:"userName,omitempty"`
	OrgID       string    `json:"orgId"`
	Purpose     string    `json:"purpose"`
	Fields      FieldList `json:"fields"`
	RequestedAt time.Time `json:"requestedAt"`
}

// Fingerprint derives the cache key for an event. Events sharing subject,
// counterparty, and purpose dedupe onto the same narrative.
func Fingerprint(ev Event) string {
	return ev.UserID + "-" + ev.OrgID + "-" + ev.Purpose
}

// Payload is a generated compliance narrative.
type Payload struct {
	ID              string    `json:"id"`
	RevocationID    string    `json:"revocationId"`
	OrgID           string    `json:"orgId"`
	UserID          string    `json:"userId"`
	AuditText       string    `json:"auditText"`
	Recommendation  []string  `json:"recommendation"`
	LegalReferences []string  `json:"legalReferences"`
	Status          string    `json:"status"`
	GeneratedAt     time.Time `json:"generatedAt"`
	Signature       string    `json:"signature"`
	Source          Source    `json:"source"`
	Attempt         int       `json:"attempt"`
}

// Options bounds a single generation run.
type Options struct {
	Timeout    time.Duration
	MaxRetries int
	UseCache   bool
}

// Analyzer performs one external analysis call, returning the raw response
// text. Implementations must respect context cancellation so an attempt can
// be abandoned when its timeout fires.
type Analyzer interface {
	Analyze(ctx context.Context, ev Event) (string, error)
}

// Generator produces narrative payloads. Safe for concurrent use.
type Generator struct {
	analyzer Analyzer
	cache    cache.Cache
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() string
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithMetrics attaches the metrics collector.
func WithMetrics(m *metrics.Metrics) GeneratorOption {
	return func(g *Generator) { g.metrics = m }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

// NewGenerator builds a Generator over the given analyzer and cache.
func NewGenerator(analyzer Analyzer, c cache.Cache, logger *slog.Logger, opts ...GeneratorOption) *Generator {
	g := &Generator{
		analyzer: analyzer,
		cache:    c,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces a narrative for ev. It never returns an error: when the
// external call is exhausted the deterministic fallback is the terminal
// branch.
func (g *Generator) Generate(ctx context.Context, ev Event, opts Options) Payload {
	fingerprint := Fingerprint(ev)

	if opts.UseCache {
		if payload, ok := g.lookup(ctx, fingerprint); ok {
			g.logger.DebugContext(ctx, "enrichment cache hit", "fingerprint", fingerprint)
			if g.metrics != nil {
				g.metrics.CacheHits.Inc()
				g.metrics.EnrichmentResults.WithLabelValues(string(SourceCache)).Inc()
			}
			payload.Source = SourceCache
			return payload
		}
	}

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if g.metrics != nil {
			g.metrics.EnrichmentAttempts.Inc()
		}

		result, err := g.analyzeOnce(ctx, ev, opts.Timeout)
		if err != nil {
			g.logger.WarnContext(ctx, "analysis attempt failed",
				"revocation_id", ev.ID,
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		payload := Payload{
			ID:              g.newID(),
			RevocationID:    ev.ID,
			OrgID:           ev.OrgID,
			UserID:          ev.UserID,
			AuditText:       result.AuditText,
			Recommendation:  result.Recommendation,
			LegalReferences: result.LegalReferences,
			Status:          "completed",
			GeneratedAt:     g.now().UTC(),
			Signature:       placeholderSignature,
			Source:          SourceExternal,
			Attempt:         attempt + 1,
		}
		if g.metrics != nil {
			g.metrics.EnrichmentResults.WithLabelValues(string(SourceExternal)).Inc()
		}
		g.store(ctx, fingerprint, payload)
		return payload
	}

	payload := g.fallback(ctx, ev, opts.MaxRetries+1)
	if g.metrics != nil {
		g.metrics.EnrichmentResults.WithLabelValues(string(SourceFallback)).Inc()
	}
	g.store(ctx, fingerprint, payload)
	return payload
}

// analysisResult is the structured shape the external analyzer must return.
type analysisResult struct {
	AuditText       string   `json:"auditText"`
	Recommendation  []string `json:"recommendation"`
	LegalReferences []string `json:"legalReferences"`
}

// analyzeOnce races a single analysis call against the attempt timeout. When
// the timeout fires the derived context cancels the in-flight call; its
// eventual result is discarded.
func (g *Generator) analyzeOnce(ctx context.Context, ev Event, timeout time.Duration) (*analysisResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := g.analyzer.Analyze(callCtx, ev)
	if err != nil {
		return nil, err
	}
	return parseAnalysis(text)
}

// parseAnalysis strips code-fence markup and validates the structured result.
func parseAnalysis(text string) (*analysisResult, error) {
	clean := strings.ReplaceAll(text, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	clean = strings.TrimSpace(clean)

	var result analysisResult
	if err := json.Unmarshal([]byte(clean), &result); err != nil {
		return nil, fmt.Errorf("parse analysis response: %w", err)
	}
	if result.AuditText == "" {
		return nil, fmt.Errorf("analysis response missing auditText")
	}
	if result.Recommendation == nil || result.LegalReferences == nil {
		return nil, fmt.Errorf("analysis response missing recommendation or legalReferences")
	}
	return &result, nil
}

func (g *Generator) fallback(ctx context.Context, ev Event, attempts int) Payload {
	text, recommendation, legalRefs, err := renderFallback(ev)
	if err != nil {
		// Template rendering over static templates cannot realistically fail,
		// but the fallback path must not: degrade to the raw template data.
		g.logger.ErrorContext(ctx, "fallback render failed", "error", err)
		text = fmt.Sprintf("User %s revoked consent for %s processing on %s.",
			ev.UserID, ev.Purpose, ev.RequestedAt.UTC().Format(time.RFC3339))
		recommendation = []string{"Review data processing activities for " + ev.Purpose}
		legalRefs = []string{"NDPR - Data Subject Rights"}
	}

	return Payload{
		ID:              g.newID(),
		RevocationID:    ev.ID,
		OrgID:           ev.OrgID,
		UserID:          ev.UserID,
		AuditText:       text,
		Recommendation:  recommendation,
		LegalReferences: legalRefs,
		Status:          "completed",
		GeneratedAt:     g.now().UTC(),
		Signature:       placeholderSignature,
		Source:          SourceFallback,
		Attempt:         attempts,
	}
}

func (g *Generator) lookup(ctx context.Context, fingerprint string) (Payload, bool) {
	raw, ok := g.cache.Get(ctx, fingerprint)
	if !ok {
		return Payload{}, false
	}
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		g.logger.WarnContext(ctx, "corrupt cache entry dropped", "fingerprint", fingerprint, "error", err)
		return Payload{}, false
	}
	return payload, true
}

func (g *Generator) store(ctx context.Context, fingerprint string, payload Payload) {
	raw, err := json.Marshal(payload)
	if err != nil {
		g.logger.WarnContext(ctx, "cache payload marshal failed", "error", err)
		return
	}
	g.cache.Put(ctx, fingerprint, raw)
}
