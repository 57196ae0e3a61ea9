// Package workflow implements the contract lifecycle: generation from a
// template and a deal, dispatch to signers, signature capture and
// completion detection. Transports call into Service; Service owns every
// business rule and talks to the store, the event bus and the notifier.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/alfredjeanlab/podium/internal/events"
	"github.com/alfredjeanlab/podium/internal/idgen"
	"github.com/alfredjeanlab/podium/internal/model"
	"github.com/alfredjeanlab/podium/internal/store"
)

// Service is the contract workflow.
type Service struct {
	store     store.Store
	deals     store.DealSource
	publisher events.Publisher
	notifier  events.Notifier
	logger    *slog.Logger
	now       func() time.Time
	newNumber func(time.Time) (string, error)
	publicURL string
}

// Option configures a Service.
type Option func(*Service)

// WithDeals sets the CRM deal source used when a create request names a deal id.
func WithDeals(d store.DealSource) Option { return func(s *Service) { s.deals = d } }

// WithPublisher sets the event publisher. Defaults to a no-op publisher.
func WithPublisher(p events.Publisher) Option { return func(s *Service) { s.publisher = p } }

// WithNotifier sets the completion notifier. Defaults to one built on the publisher.
func WithNotifier(n events.Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithPublicURL sets the base URL used to build signer links.
func WithPublicURL(u string) Option {
	return func(s *Service) { s.publicURL = strings.TrimRight(u, "/") }
}

// New creates a Service backed by st.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:     st,
		publisher: &events.NoopPublisher{},
		logger:    slog.Default(),
		now:       time.Now,
		newNumber: idgen.ContractNumber,
		publicURL: "http://localhost:8080",
	}
	for _, o := range opts {
		o(s)
	}
	if s.deals == nil {
		if ds, ok := st.(store.DealSource); ok {
			s.deals = ds
		}
	}
	if s.notifier == nil {
		s.notifier = events.NewNotifier(s.publisher)
	}
	return s
}

func (s *Service) clock() time.Time { return s.now().UTC() }

// SignURL returns the public signing link for token.
func (s *Service) SignURL(token string) string {
	return s.publicURL + "/v1/sign/" + token
}

// record persists an audit event. Best-effort: failures are logged.
func (s *Service) record(ctx context.Context, topic, contractID, actor string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to marshal event", "topic", topic, "contract_id", contractID, "error", err)
		return
	}
	if err := s.store.RecordEvent(ctx, &model.Event{
		Topic:      topic,
		ContractID: contractID,
		Actor:      actor,
		Payload:    payload,
		CreatedAt:  s.clock(),
	}); err != nil {
		s.logger.Warn("failed to record event", "topic", topic, "contract_id", contractID, "error", err)
	}
}

// recordAndPublish persists an event to the store and publishes it.
// Both operations are best-effort; failures are logged but do not block the caller.
func (s *Service) recordAndPublish(ctx context.Context, topic, contractID, actor string, event any) {
	s.record(ctx, topic, contractID, actor, event)
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "contract_id", contractID, "error", err)
	}
}

// persistErr wraps unexpected store failures in a *model.PersistenceError.
// Errors already in the domain taxonomy pass through unchanged.
func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		model.ErrNotFound,
		model.ErrTokenNotFound,
		model.ErrNotSignable,
		model.ErrInvalidTransition,
		model.ErrValidation,
		model.ErrTemplateInvalid,
		model.ErrMissingRequiredField,
		model.ErrPersistence,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &model.PersistenceError{Op: op, Err: err}
}

func fieldError(field, message string) *model.ValidationError {
	return &model.ValidationError{Errors: []model.FieldError{{Field: field, Message: message}}}
}
