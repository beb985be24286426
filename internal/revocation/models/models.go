// Package models holds the revocation domain types. JSON tags follow the
// public API field names (camelCase).
package models

import (
	"time"
)

// RevocationStatus is the lifecycle state of a revocation request.
type RevocationStatus string

const (
	RevocationPending   RevocationStatus = "pending"
	RevocationProcessed RevocationStatus = "processed"
	RevocationFailed    RevocationStatus = "failed"
)

// AuditStatus is the lifecycle state of an audit log entry.
type AuditStatus string

const (
	AuditPending   AuditStatus = "pending"
	AuditCompleted AuditStatus = "completed"
)

// PlaceholderNarrative is the narrative written with the initial pending
// audit entry, before enrichment completes.
const PlaceholderNarrative = "Revocation created. Awaiting AI analysis."

// PlaceholderSignature marks an entry whose tamper-evidence signature has not
// been computed. Real signing needs a key-management story first.
const PlaceholderSignature = "PLACEHOLDER_FOR_HMAC"

// BaselineLegalReference is recorded with every pending entry so the audit
// trail is never without a legal basis.
const BaselineLegalReference = "NDPR - Data Subject Rights"

// Revocation is a user's request to withdraw previously granted consent.
// Rows are never deleted; only Status changes after creation.
type Revocation struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	OrgID       string           `json:"orgId"`
	Purpose     string           `json:"purpose"`
	Fields      []string         `json:"fields"`
	RequestedAt time.Time        `json:"requestedAt"`
	Status      RevocationStatus `json:"status"`
}

// AuditLogEntry is the compliance record paired 1:1 with a revocation.
// RevocationID is set at creation and never changes; the entry is mutated at
// most once, by the enrichment completion.
type AuditLogEntry struct {
	ID              string      `json:"id"`
	RevocationID    string      `json:"revocationId"`
	OrgID           string      `json:"orgId"`
	UserID          string      `json:"userId"`
	AuditText       string      `json:"auditText"`
	Recommendation  []string    `json:"recommendation"`
	LegalReferences []string    `json:"legalReferences"`
	Status          AuditStatus `json:"status"`
	GeneratedAt     time.Time   `json:"generatedAt"`
	Signature       string      `json:"signature"`
	Source          string      `json:"source,omitempty"`
	Attempt         int         `json:"attempt,omitempty"`
}

// SubmitRequest is the POST /revocations body.
type SubmitRequest struct {
	UserID  string   `json:"userId"`
	OrgID   string   `json:"orgId"`
	Purpose string   `json:"purpose"`
	Fields  []string `json:"fields"`
}

// SubmitResponse acknowledges a durably recorded revocation. It is returned
// before enrichment runs.
type SubmitResponse struct {
	RevocationID string `json:"revocationId"`
	AuditID      string `json:"auditId"`
}

// CompleteAuditParams carries the single completing mutation for an entry.
type CompleteAuditParams struct {
	AuditID         string
	AuditText       string
	Recommendation  []string
	LegalReferences []string
	Signature       string
	Source          string
	Attempt         int
	GeneratedAt     time.Time
}
