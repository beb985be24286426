// Package gemini calls the Google Generative Language API to draft NDPR
// compliance narratives. The client is deliberately thin: one prompt, one
// completion, raw text back. Retries, timeouts, and response validation
// belong to the enrichment generator.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"consentry/internal/enrichment"
)

// Client implements enrichment.Analyzer against the Gemini REST API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Gemini client. Per-attempt deadlines come from the request
// context, so the embedded HTTP client carries only a generous safety cap.
func New(baseURL, apiKey, model string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Analyze sends one generation request and returns the raw response text.
// Cancelling ctx abandons the in-flight call.
func (c *Client) Analyze(ctx context.Context, ev enrichment.Event) (string, error) {
	prompt, err := buildPrompt(ev)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal analysis request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build analysis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("analysis call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read analysis response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("analysis call returned status %d", resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode analysis response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("analysis response has no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// buildPrompt asks for strict JSON so the generator can validate the shape.
func buildPrompt(ev enrichment.Event) (string, error) {
	details, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal event for prompt: %w", err)
	}
	return fmt.Sprintf(`You are a compliance assistant specialized in the Nigerian Data Protection Regulation (NDPR). Given a revocation event, produce a short NDPR-compliant audit entry and an actionable next steps list. Output must be valid JSON only (no additional text).

Revocation Event:
%s

Task:
1) Produce an "auditText" (80-140 words) documenting the event and referencing NDPR obligations
2) Produce "recommendation" array of practical next steps the org should take
3) Include "legalReferences" array with relevant NDPR sections
4) Output ONLY JSON in this exact format:
{
  "auditText": "string_detailed_description_of_audit_event",
  "recommendation": ["step 1", "step 2", "step 3"],
  "legalReferences": ["reference 1", "reference 2"]
}`, details), nil
}
