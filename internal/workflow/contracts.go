package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/podium/internal/binder"
	"github.com/alfredjeanlab/podium/internal/events"
	"github.com/alfredjeanlab/podium/internal/idgen"
	"github.com/alfredjeanlab/podium/internal/model"
	"github.com/alfredjeanlab/podium/internal/store"
	"github.com/alfredjeanlab/podium/internal/template"
)

// CreateRequest holds the parameters for generating a contract.
type CreateRequest struct {
	TemplateID      string            `json:"template_id"`
	TemplateVersion int               `json:"template_version,omitempty"`
	DealID          string            `json:"deal_id,omitempty"`
	Deal            *model.Deal       `json:"deal,omitempty"`
	Values          map[string]string `json:"values,omitempty"`
	SectionEdits    map[string]string `json:"section_edits,omitempty"`
	Title           string            `json:"title,omitempty"`
	Type            string            `json:"type,omitempty"`
	// RequiresCountersign adds the admin to the required signer set.
	RequiresCountersign bool   `json:"requires_countersign,omitempty"`
	CreatedBy           string `json:"-"`
}

// Preview is a rendered document that was not persisted.
type Preview struct {
	TemplateID      string            `json:"template_id"`
	TemplateVersion int               `json:"template_version"`
	Values          map[string]string `json:"values"`
	DocumentBody    string            `json:"document_body"`
	DocumentHTML    string            `json:"document_html"`
}

// ContractDetail is a contract together with its signer state.
type ContractDetail struct {
	Contract   *model.Contract      `json:"contract"`
	Signatures []*model.Signature   `json:"signatures"`
	Tokens     []*model.SignerToken `json:"tokens"`
	Links      []events.SignerLink  `json:"links,omitempty"`
}

// SendResult is returned by Send and Approve.
type SendResult struct {
	Contract *model.Contract      `json:"contract"`
	Tokens   []*model.SignerToken `json:"tokens"`
	Links    []events.SignerLink  `json:"links"`
}

type bound struct {
	tpl    *model.ContractTemplate
	deal   *model.Deal
	values map[string]string
	body   string
}

// bind resolves the template and the deal, then binds and renders.
func (s *Service) bind(ctx context.Context, req CreateRequest) (*bound, error) {
	if strings.TrimSpace(req.TemplateID) == "" {
		return nil, fieldError("template_id", "is required")
	}
	tpl, err := s.GetTemplate(ctx, req.TemplateID, req.TemplateVersion)
	if err != nil {
		return nil, err
	}

	deal := req.Deal
	if req.DealID != "" && deal == nil {
		if s.deals == nil {
			return nil, fieldError("deal_id", "no deal source is configured")
		}
		deal, err = s.deals.GetDeal(ctx, req.DealID)
		if err != nil {
			return nil, persistErr("get deal", err)
		}
	}

	values, err := binder.Bind(deal, req.Values, tpl.Variables, binder.Options{
		Now:    s.clock,
		Logger: s.logger,
	})
	if err != nil {
		return nil, err
	}
	body, err := template.RenderWithEdits(tpl, values, req.SectionEdits)
	if err != nil {
		return nil, err
	}
	return &bound{tpl: tpl, deal: deal, values: values, body: body}, nil
}

// Preview binds and renders without persisting anything.
func (s *Service) Preview(ctx context.Context, req CreateRequest) (*Preview, error) {
	b, err := s.bind(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Preview{
		TemplateID:      b.tpl.ID,
		TemplateVersion: b.tpl.Version,
		Values:          b.values,
		DocumentBody:    b.body,
		DocumentHTML:    template.ToHTML(b.body),
	}, nil
}

// maxNumberAttempts bounds how many contract numbers CreateContract tries
// before giving up on a run of collisions.
const maxNumberAttempts = 5

// CreateContract generates a draft contract from a template and a deal.
func (s *Service) CreateContract(ctx context.Context, req CreateRequest) (*model.Contract, error) {
	b, err := s.bind(ctx, req)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	id, err := idgen.ContractID()
	if err != nil {
		return nil, fmt.Errorf("generate contract id: %w", err)
	}

	c := snapshot(b.deal, req.Values)
	c.ID = id
	c.TemplateID = b.tpl.ID
	c.TemplateVersion = b.tpl.Version
	c.Type = req.Type
	if c.Type == "" {
		c.Type = b.tpl.Type
	}
	c.Title = strings.TrimSpace(req.Title)
	if c.Title == "" {
		c.Title = defaultTitle(b.tpl, c)
	}
	if req.DealID != "" {
		c.DealID = req.DealID
	}
	c.DocumentBody = b.body
	c.RequiresCountersign = req.RequiresCountersign
	c.Status = model.StatusDraft
	c.CreatedAt = now
	c.UpdatedAt = now
	c.CreatedBy = req.CreatedBy

	if err := model.ValidateContract(c); err != nil {
		return nil, err
	}
	for attempt := 1; ; attempt++ {
		if c.Number, err = s.newNumber(now); err != nil {
			return nil, fmt.Errorf("generate contract number: %w", err)
		}
		err = s.store.CreateContract(ctx, c)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrDuplicateNumber) || attempt == maxNumberAttempts {
			return nil, persistErr("create contract", err)
		}
		s.logger.Warn("contract number collision, retrying", "number", c.Number, "attempt", attempt)
	}

	s.recordAndPublish(ctx, events.TopicContractCreated, c.ID, req.CreatedBy, events.ContractCreated{Contract: c})
	return c, nil
}

// snapshot copies the party, event and financial terms into a new contract.
// Non-empty values win over the deal, as in binding.
func snapshot(deal *model.Deal, values map[string]string) *model.Contract {
	raw := binder.DealValues(deal)
	for k, v := range values {
		if strings.TrimSpace(v) != "" {
			raw[k] = strings.TrimSpace(v)
		}
	}

	c := &model.Contract{
		ClientName:    raw["client_name"],
		ClientCompany: raw["client_company"],
		ClientEmail:   raw["client_email"],
		SpeakerName:   raw["speaker_name"],
		SpeakerEmail:  raw["speaker_email"],
		EventTitle:    raw["event_title"],
		EventLocation: raw["event_location"],
		Currency:      strings.ToUpper(raw["currency"]),
	}
	if deal != nil {
		c.DealID = deal.ID
	}
	if c.Currency == "" {
		c.Currency = "USD"
	}
	if v := raw["total_amount"]; v != "" {
		if n, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64); err == nil {
			c.TotalAmount = n
		}
	}
	if v := raw["event_date"]; v != "" {
		if d, err := time.Parse(binder.DateLayout, v); err == nil {
			c.EventDate = &d
		}
	}
	return c
}

func defaultTitle(tpl *model.ContractTemplate, c *model.Contract) string {
	party := c.ClientCompany
	if party == "" {
		party = c.ClientName
	}
	if party == "" {
		return tpl.Name
	}
	return tpl.Name + " - " + party
}

// GetContract returns a contract with its signatures and tokens.
func (s *Service) GetContract(ctx context.Context, id string) (*ContractDetail, error) {
	c, err := s.store.GetContract(ctx, id)
	if err != nil {
		return nil, persistErr("get contract", err)
	}
	sigs, err := s.store.ListSignatures(ctx, id)
	if err != nil {
		return nil, persistErr("list signatures", err)
	}
	toks, err := s.store.ListTokens(ctx, id)
	if err != nil {
		return nil, persistErr("list tokens", err)
	}
	return &ContractDetail{Contract: c, Signatures: sigs, Tokens: toks, Links: s.links(c, toks)}, nil
}

// ListContracts returns the contracts matching filter and the total count.
func (s *Service) ListContracts(ctx context.Context, filter model.ContractFilter) ([]*model.Contract, int, error) {
	for _, st := range filter.Status {
		if !st.IsValid() {
			return nil, 0, fieldError("status", fmt.Sprintf("invalid value %q", st))
		}
	}
	out, total, err := s.store.ListContracts(ctx, filter)
	if err != nil {
		return nil, 0, persistErr("list contracts", err)
	}
	return out, total, nil
}

// Events returns the audit trail for a contract, oldest first.
func (s *Service) Events(ctx context.Context, id string) ([]*model.Event, error) {
	if _, err := s.store.GetContract(ctx, id); err != nil {
		return nil, persistErr("get contract", err)
	}
	out, err := s.store.GetEvents(ctx, id)
	if err != nil {
		return nil, persistErr("get events", err)
	}
	return out, nil
}

// Document returns the contract body as plain text, or as HTML when html is set.
func (s *Service) Document(ctx context.Context, id string, html bool) (string, error) {
	c, err := s.store.GetContract(ctx, id)
	if err != nil {
		return "", persistErr("get contract", err)
	}
	if html {
		return template.ToHTML(c.DocumentBody), nil
	}
	return c.DocumentBody, nil
}

// Send issues one signer token per required role and moves a draft to
// sent_for_signature. Token creation and the status change commit together.
func (s *Service) Send(ctx context.Context, id, actor string) (*SendResult, error) {
	return s.send(ctx, id, model.StatusDraft, actor)
}

// Approve sends a contract that is pending review.
func (s *Service) Approve(ctx context.Context, id, actor string) (*SendResult, error) {
	return s.send(ctx, id, model.StatusPendingReview, actor)
}

func (s *Service) send(ctx context.Context, id string, from model.Status, actor string) (*SendResult, error) {
	now := s.clock()
	var (
		c    *model.Contract
		toks []*model.SignerToken
	)
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		c, err = tx.GetContractForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if c.Status != from {
			return &model.TransitionError{From: c.Status, To: model.StatusSentForSignature}
		}
		if err := model.CheckTransition(c.Status, model.StatusSentForSignature); err != nil {
			return err
		}
		toks = toks[:0]
		for _, role := range c.RequiredRoles() {
			value, err := idgen.Token()
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			tok := &model.SignerToken{Token: value, ContractID: c.ID, SignerType: role, CreatedAt: now}
			if err := tx.CreateToken(ctx, tok); err != nil {
				return err
			}
			toks = append(toks, tok)
		}
		if err := s.updateStatus(ctx, tx, c, store.StatusUpdate{
			ID: c.ID, From: from, To: model.StatusSentForSignature, At: now, SentAt: &now,
		}); err != nil {
			return err
		}
		c.SentAt = &now
		return nil
	})
	if err != nil {
		return nil, persistErr("send contract", err)
	}

	links := s.links(c, toks)
	s.recordAndPublish(ctx, events.TopicContractSent, c.ID, actor, events.ContractSent{
		ContractID:     c.ID,
		ContractNumber: c.Number,
		Title:          c.Title,
		Links:          links,
	})
	return &SendResult{Contract: c, Tokens: toks, Links: links}, nil
}

// updateStatus performs the conditional write and mirrors it onto c.
// A lost race surfaces as a *model.TransitionError from the current status.
func (s *Service) updateStatus(ctx context.Context, tx store.Store, c *model.Contract, u store.StatusUpdate) error {
	if err := tx.UpdateContractStatus(ctx, u); err != nil {
		if errors.Is(err, store.ErrStaleStatus) {
			current := u.From
			if fresh, gerr := tx.GetContract(ctx, u.ID); gerr == nil {
				current = fresh.Status
			}
			return &model.TransitionError{From: current, To: u.To}
		}
		return err
	}
	c.Status = u.To
	c.UpdatedAt = u.At
	return nil
}

func (s *Service) links(c *model.Contract, toks []*model.SignerToken) []events.SignerLink {
	out := make([]events.SignerLink, 0, len(toks))
	for _, t := range toks {
		l := events.SignerLink{Role: t.SignerType, URL: s.SignURL(t.Token)}
		switch t.SignerType {
		case model.RoleClient:
			l.Name, l.Email = c.ClientName, c.ClientEmail
		case model.RoleSpeaker:
			l.Name, l.Email = c.SpeakerName, c.SpeakerEmail
		}
		out = append(out, l)
	}
	return out
}

// RequestReview moves a draft to pending_review.
func (s *Service) RequestReview(ctx context.Context, id, actor string) (*model.Contract, error) {
	return s.transition(ctx, id, model.StatusPendingReview, actor, "", events.TopicContractReviewRequested)
}

// Cancel moves a contract that has not been executed to cancelled.
func (s *Service) Cancel(ctx context.Context, id, actor, reason string) (*model.Contract, error) {
	return s.transition(ctx, id, model.StatusCancelled, actor, strings.TrimSpace(reason), events.TopicContractCancelled)
}

// Activate marks an executed contract as active.
func (s *Service) Activate(ctx context.Context, id, actor string) (*model.Contract, error) {
	return s.transition(ctx, id, model.StatusActive, actor, "", events.TopicContractActivated)
}

// Complete closes an active contract once the engagement has been delivered.
func (s *Service) Complete(ctx context.Context, id, actor string) (*model.Contract, error) {
	return s.transition(ctx, id, model.StatusCompleted, actor, "", events.TopicContractCompleted)
}

func (s *Service) transition(ctx context.Context, id string, to model.Status, actor, reason, topic string) (*model.Contract, error) {
	now := s.clock()
	var (
		c    *model.Contract
		from model.Status
	)
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		c, err = tx.GetContractForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from = c.Status
		if err := model.CheckTransition(from, to); err != nil {
			return err
		}
		u := store.StatusUpdate{ID: id, From: from, To: to, At: now}
		if to == model.StatusCancelled {
			u.CancelledAt = &now
			u.CancelReason = reason
			c.CancelledAt = &now
			c.CancelReason = reason
		}
		return s.updateStatus(ctx, tx, c, u)
	})
	if err != nil {
		return nil, persistErr("update contract status", err)
	}

	s.recordAndPublish(ctx, topic, c.ID, actor, events.StatusChanged{
		ContractID: c.ID, From: from, To: to, Reason: reason,
	})
	return c, nil
}
