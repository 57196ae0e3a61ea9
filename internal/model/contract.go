package model

import (
	"slices"
	"time"
)

// Status represents the lifecycle state of a contract.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusPendingReview    Status = "pending_review"
	StatusSentForSignature Status = "sent_for_signature"
	StatusPartiallySigned  Status = "partially_signed"
	StatusFullyExecuted    Status = "fully_executed"
	StatusActive           Status = "active"
	StatusCompleted        Status = "completed"
	StatusCancelled        Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusDraft, StatusPendingReview, StatusSentForSignature, StatusPartiallySigned,
	StatusFullyExecuted, StatusActive, StatusCompleted, StatusCancelled,
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s Status) IsValid() bool {
	return slices.Contains(Statuses, s)
}

// IsSignable reports whether signatures may be captured in this status.
func (s Status) IsSignable() bool {
	return s == StatusSentForSignature || s == StatusPartiallySigned
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsExecuted reports whether every required signature has been captured at
// some point, i.e. the contract reached fully_executed or a later state.
func (s Status) IsExecuted() bool {
	return s == StatusFullyExecuted || s == StatusActive || s == StatusCompleted
}

// Contract is a generated legal document bound to a deal and tracked through
// its signature lifecycle.
type Contract struct {
	ID                  string     `json:"id"`
	Number              string     `json:"contract_number"`
	Title               string     `json:"title"`
	Type                string     `json:"type,omitempty"`
	DealID              string     `json:"deal_id,omitempty"`
	TemplateID          string     `json:"template_id"`
	TemplateVersion     int        `json:"template_version"`
	ClientName          string     `json:"client_name"`
	ClientCompany       string     `json:"client_company,omitempty"`
	ClientEmail         string     `json:"client_email,omitempty"`
	SpeakerName         string     `json:"speaker_name,omitempty"`
	SpeakerEmail        string     `json:"speaker_email,omitempty"`
	EventTitle          string     `json:"event_title,omitempty"`
	EventDate           *time.Time `json:"event_date,omitempty"`
	EventLocation       string     `json:"event_location,omitempty"`
	TotalAmount         float64    `json:"total_amount"`
	Currency            string     `json:"currency"`
	DocumentBody        string     `json:"document_body"`
	RequiresCountersign bool       `json:"requires_countersign"`
	Status              Status     `json:"status"`
	CreatedAt           time.Time  `json:"created_at"`
	CreatedBy           string     `json:"created_by,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`
	SentAt              *time.Time `json:"sent_at,omitempty"`
	ViewedAt            *time.Time `json:"viewed_at,omitempty"`
	ExecutionAt         *time.Time `json:"execution_at,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
	CancelReason        string     `json:"cancel_reason,omitempty"`
}

// RequiredRoles returns the signer roles whose signatures are needed for the
// contract to be fully executed. The client always signs; the speaker signs
// when a speaker is attached; the admin counter-signs on request.
func (c *Contract) RequiredRoles() []SignerRole {
	roles := []SignerRole{RoleClient}
	if c.SpeakerName != "" {
		roles = append(roles, RoleSpeaker)
	}
	if c.RequiresCountersign {
		roles = append(roles, RoleAdmin)
	}
	return roles
}

// RequiresRole reports whether role is in the contract's required signer set.
func (c *Contract) RequiresRole(role SignerRole) bool {
	for _, r := range c.RequiredRoles() {
		if r == role {
			return true
		}
	}
	return false
}

// ContractFilter narrows ListContracts results.
type ContractFilter struct {
	Status []Status
	DealID string
	Search string
	Limit  int
	Offset int
}
