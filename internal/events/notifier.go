package events

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/podium/internal/binder"
	"github.com/alfredjeanlab/podium/internal/model"
)

// CompletionSummary is published once when a contract becomes fully executed.
type CompletionSummary struct {
	ContractID     string     `json:"contract_id"`
	ContractNumber string     `json:"contract_number"`
	Title          string     `json:"title"`
	ClientName     string     `json:"client_name"`
	ClientCompany  string     `json:"client_company,omitempty"`
	SpeakerName    string     `json:"speaker_name,omitempty"`
	EventTitle     string     `json:"event_title,omitempty"`
	EventDate      string     `json:"event_date,omitempty"`
	EventLocation  string     `json:"event_location,omitempty"`
	TotalAmount    string     `json:"total_amount"`
	ExecutedAt     *time.Time `json:"executed_at,omitempty"`
}

// Notifier delivers the completion notification.
type Notifier interface {
	NotifyContractFullyExecuted(ctx context.Context, c *model.Contract) error
}

// PublishNotifier sends completion summaries over a Publisher.
type PublishNotifier struct {
	pub Publisher
}

// NewNotifier returns a Notifier that publishes to TopicContractFullyExecuted.
func NewNotifier(pub Publisher) *PublishNotifier {
	return &PublishNotifier{pub: pub}
}

func (n *PublishNotifier) NotifyContractFullyExecuted(ctx context.Context, c *model.Contract) error {
	if err := n.pub.Publish(ctx, TopicContractFullyExecuted, Summarize(c)); err != nil {
		return fmt.Errorf("notify fully executed %s: %w", c.ID, err)
	}
	return nil
}

// Summarize builds the completion summary for c.
func Summarize(c *model.Contract) CompletionSummary {
	s := CompletionSummary{
		ContractID:     c.ID,
		ContractNumber: c.Number,
		Title:          c.Title,
		ClientName:     c.ClientName,
		ClientCompany:  c.ClientCompany,
		SpeakerName:    c.SpeakerName,
		EventTitle:     c.EventTitle,
		EventLocation:  c.EventLocation,
		TotalAmount:    binder.FormatCurrency(c.TotalAmount, c.Currency),
		ExecutedAt:     c.ExecutionAt,
	}
	if c.EventDate != nil {
		s.EventDate = binder.FormatDate(*c.EventDate)
	}
	return s
}
