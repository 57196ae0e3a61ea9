package events

import (
	"context"

	"github.com/alfredjeanlab/podium/internal/model"
)

// Event topic constants
const (
	TopicContractCreated         = "podium.contract.created"
	TopicContractReviewRequested = "podium.contract.review_requested"
	TopicContractSent            = "podium.contract.sent"
	TopicContractViewed          = "podium.contract.viewed"
	TopicContractSigned          = "podium.contract.signed"
	TopicContractFullyExecuted   = "podium.contract.fully_executed"
	TopicContractCancelled       = "podium.contract.cancelled"
	TopicContractActivated       = "podium.contract.activated"
	TopicContractCompleted       = "podium.contract.completed"

	TopicTemplateCreated = "podium.template.created"

	// TopicAll matches every podium subject.
	TopicAll = "podium.>"
)

// Event types

type ContractCreated struct {
	Contract *model.Contract `json:"contract"`
}

// SignerLink is one signer's access URL, delivered by the mailer.
type SignerLink struct {
	Role  model.SignerRole `json:"signer_type"`
	Name  string           `json:"name,omitempty"`
	Email string           `json:"email,omitempty"`
	URL   string           `json:"url"`
}

type ContractSent struct {
	ContractID     string       `json:"contract_id"`
	ContractNumber string       `json:"contract_number"`
	Title          string       `json:"title"`
	Links          []SignerLink `json:"links"`
}

type ContractViewed struct {
	ContractID string           `json:"contract_id"`
	SignerType model.SignerRole `json:"signer_type"`
}

type ContractSigned struct {
	ContractID string           `json:"contract_id"`
	SignerType model.SignerRole `json:"signer_type"`
	SignerName string           `json:"signer_name"`
	Status     model.Status     `json:"status"`
}

// StatusChanged covers admin-driven transitions: review, cancel, activate
// and complete.
type StatusChanged struct {
	ContractID string       `json:"contract_id"`
	From       model.Status `json:"from"`
	To         model.Status `json:"to"`
	Reason     string       `json:"reason,omitempty"`
}

type TemplateCreated struct {
	TemplateID string `json:"template_id"`
	Version    int    `json:"version"`
	Name       string `json:"name"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
