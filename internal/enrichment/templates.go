package enrichment

import (
	"fmt"
	"strings"
	"time"

	"github.com/cbroglie/mustache"
)

// fallbackTemplate is a purpose-specific canned narrative. Templates use
// triple braces because narratives are plain text, not HTML.
type fallbackTemplate struct {
	AuditText       string
	Recommendation  []string
	LegalReferences []string
}

var fallbackTemplates = map[string]fallbackTemplate{
	"marketing": {
		AuditText: "User {{{userName}}} ({{{userId}}}) requested revocation of marketing consent for fields {{{fields}}} on {{{timestamp}}}. Revocation logged and acknowledged. No further marketing communications should be sent pending deletion or anonymization in accordance with NDPR principles.",
		Recommendation: []string{
			"Mark contact as 'marketing_opted_out' in CRM system",
			"Queue deletion of marketing-only PII after retention policy review",
			"Log confirmation to user within 7 days as per internal policy",
		},
		LegalReferences: []string{"NDPR - Consent and withdrawal (Article: Consent)"},
	},
	"biometric": {
		AuditText: "User {{{userName}}} ({{{userId}}}) revoked consent for biometric data processing on {{{timestamp}}}. All biometric identifiers including {{{fields}}} must be securely erased from active systems and backups following NDPR requirements for sensitive data.",
		Recommendation: []string{
			"Immediately disable biometric authentication for user",
			"Schedule secure deletion of biometric templates from all databases",
			"Notify security team and DPO of biometric data removal",
		},
		LegalReferences: []string{"NDPR - Processing of Special Categories of Data"},
	},
	"customer_service": {
		AuditText: "User {{{userName}}} ({{{userId}}}) modified consent for customer service data processing on {{{timestamp}}}. Core service data retention permitted under legitimate interest basis, but restricted from secondary uses as per NDPR Article 6.",
		Recommendation: []string{
			"Maintain data in restricted service-only database",
			"Review and update data access permissions",
			"Ensure data not used for analytics or marketing purposes",
		},
		LegalReferences: []string{"NDPR - Lawful Basis for Processing (Legitimate Interest)"},
	},
}

// defaultTemplate covers any purpose without a specific template.
var defaultTemplate = fallbackTemplate{
	AuditText: "User {{{userName}}} ({{{userId}}}) revoked consent for {{{purpose}}} processing involving fields {{{fields}}} on {{{timestamp}}}. Organization must comply with data subject rights under NDPR and update processing activities accordingly.",
	Recommendation: []string{
		"Review specific data processing activities for {{{purpose}}}",
		"Update consent records and processing logs",
		"Confirm compliance with data protection officer",
	},
	LegalReferences: []string{"NDPR - Data Subject Rights"},
}

// renderFallback interpolates the event into the template for its purpose.
// Rendering is deterministic: identical inputs produce identical text.
func renderFallback(ev Event) (text string, recommendation []string, legalRefs []string, err error) {
	tmpl, ok := fallbackTemplates[ev.Purpose]
	if !ok {
		tmpl = defaultTemplate
	}

	userName := ev.UserName
	if userName == "" {
		userName = ev.UserID
	}
	data := map[string]string{
		"userName":  userName,
		"userId":    ev.UserID,
		"fields":    strings.Join(ev.Fields, ", "),
		"purpose":   ev.Purpose,
		"timestamp": ev.RequestedAt.UTC().Format(time.RFC3339),
	}

	text, err = mustache.Render(tmpl.AuditText, data)
	if err != nil {
		return "", nil, nil, fmt.Errorf("render fallback narrative: %w", err)
	}

	recommendation = make([]string, len(tmpl.Recommendation))
	for i, rec := range tmpl.Recommendation {
		recommendation[i], err = mustache.Render(rec, data)
		if err != nil {
			return "", nil, nil, fmt.Errorf("render fallback recommendation: %w", err)
		}
	}

	legalRefs = append([]string(nil), tmpl.LegalReferences...)
	return text, recommendation, legalRefs, nil
}
