// Package events fans pipeline events out to live subscribers. Delivery is
// best effort and at most once: slow or dead subscribers are skipped, and a
// subscriber connecting after a broadcast never sees it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
)

// Type labels an event frame.
type Type string

const (
	TypeRevocationCreated Type = "revocation_created"
	TypeAnalysisCompleted Type = "ai_analysis_completed"
)

// Event is a pipeline event. Payload fields are flattened next to "type" in
// the wire frame.
type Event struct {
	Type    Type
	Payload any
}

// MarshalJSON merges the payload's fields with the type discriminator.
func (e Event) MarshalJSON() ([]byte, error) {
	flat := map[string]any{"type": string(e.Type)}
	if e.Payload != nil {
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal event payload: %w", err)
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("event payload must marshal to an object: %w", err)
		}
		for k, v := range fields {
			if k != "type" {
				flat[k] = v
			}
		}
	}
	return json.Marshal(flat)
}

// Publisher delivers events somewhere. Implementations must not block the
// caller and must swallow delivery failures.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// MultiPublisher fans one publish out to several publishers.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, event Event) {
	for _, p := range m {
		p.Publish(ctx, event)
	}
}
