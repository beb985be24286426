// Package models holds the consent read-side types.
package models

import "time"

// ConsentRecord is a user's standing consent with an organization. The
// revocation pipeline appends revocations rather than mutating these rows;
// this surface exists so users can see what they have granted.
type ConsentRecord struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	OrgID        string     `json:"orgId"`
	OrgName      string     `json:"orgName,omitempty"`
	Purpose      string     `json:"purpose"`
	Fields       []string   `json:"fields"`
	ConsentGiven bool       `json:"consentGiven"`
	GivenAt      *time.Time `json:"givenAt,omitempty"`
	RevokedAt    *time.Time `json:"revokedAt,omitempty"`
}
