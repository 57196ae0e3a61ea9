package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/alfredjeanlab/podium/internal/events"
	"github.com/alfredjeanlab/podium/internal/idgen"
	"github.com/alfredjeanlab/podium/internal/ink"
	"github.com/alfredjeanlab/podium/internal/model"
	"github.com/alfredjeanlab/podium/internal/store"
)

// SignerStatus is the per-role signature state shown to every signer.
type SignerStatus struct {
	Role       model.SignerRole `json:"signer_type"`
	Signed     bool             `json:"signed"`
	SignedAt   *time.Time       `json:"signed_at,omitempty"`
	SignerName string           `json:"signer_name,omitempty"`
}

// Projection is the view of a contract a signer may see. It carries no
// email addresses and no tokens.
type Projection struct {
	Number        string         `json:"contract_number"`
	Title         string         `json:"title"`
	Status        model.Status   `json:"status"`
	ClientName    string         `json:"client_name"`
	ClientCompany string         `json:"client_company,omitempty"`
	SpeakerName   string         `json:"speaker_name,omitempty"`
	EventTitle    string         `json:"event_title,omitempty"`
	EventDate     *time.Time     `json:"event_date,omitempty"`
	EventLocation string         `json:"event_location,omitempty"`
	TotalAmount   float64        `json:"total_amount"`
	Currency      string         `json:"currency"`
	DocumentBody  string         `json:"document_body"`
	Signers       []SignerStatus `json:"signers"`
}

// SigningView is what a token resolves to.
type SigningView struct {
	SignerType model.SignerRole        `json:"signer_type"`
	CanSign    bool                    `json:"can_sign"`
	Reason     model.NotSignableReason `json:"reason,omitempty"`
	Contract   Projection              `json:"contract"`
}

// SubmitResult is the contract after a signature was captured.
type SubmitResult struct {
	Contract   *model.Contract    `json:"contract"`
	Signatures []*model.Signature `json:"signatures"`
}

func project(c *model.Contract, sigs []*model.Signature) Projection {
	byRole := make(map[model.SignerRole]*model.Signature, len(sigs))
	for _, sig := range sigs {
		byRole[sig.SignerType] = sig
	}
	p := Projection{
		Number:        c.Number,
		Title:         c.Title,
		Status:        c.Status,
		ClientName:    c.ClientName,
		ClientCompany: c.ClientCompany,
		SpeakerName:   c.SpeakerName,
		EventTitle:    c.EventTitle,
		EventDate:     c.EventDate,
		EventLocation: c.EventLocation,
		TotalAmount:   c.TotalAmount,
		Currency:      c.Currency,
		DocumentBody:  c.DocumentBody,
	}
	for _, role := range c.RequiredRoles() {
		st := SignerStatus{Role: role}
		if sig, ok := byRole[role]; ok {
			at := sig.SignedAt
			st.Signed = true
			st.SignedAt = &at
			st.SignerName = sig.SignerName
		}
		p.Signers = append(p.Signers, st)
	}
	return p
}

// signability reports why role cannot sign c, or "" when it can.
func signability(c *model.Contract, role model.SignerRole, sigs []*model.Signature) model.NotSignableReason {
	if !c.Status.IsSignable() || !c.RequiresRole(role) {
		return model.ReasonContractNotSignable
	}
	for _, sig := range sigs {
		if sig.SignerType == role {
			return model.ReasonAlreadySigned
		}
	}
	return ""
}

func (s *Service) lookupToken(ctx context.Context, st store.Store, token string) (*model.SignerToken, error) {
	if strings.TrimSpace(token) == "" {
		return nil, model.ErrTokenNotFound
	}
	tok, err := st.GetToken(ctx, token)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// Resolve returns the signer's view of the contract behind token. The first
// access records viewed_at on the token and the contract; status never changes.
func (s *Service) Resolve(ctx context.Context, token string) (*SigningView, error) {
	now := s.clock()
	var (
		view  *SigningView
		first bool
		tok   *model.SignerToken
	)
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		tok, err = s.lookupToken(ctx, tx, token)
		if err != nil {
			return err
		}
		c, err := tx.GetContract(ctx, tok.ContractID)
		if err != nil {
			return err
		}
		sigs, err := tx.ListSignatures(ctx, c.ID)
		if err != nil {
			return err
		}
		first, err = tx.MarkTokenViewed(ctx, tok.Token, now)
		if err != nil {
			return err
		}
		if first && c.ViewedAt == nil {
			if err := tx.MarkContractViewed(ctx, c.ID, now); err != nil {
				return err
			}
		}
		reason := signability(c, tok.SignerType, sigs)
		view = &SigningView{
			SignerType: tok.SignerType,
			CanSign:    reason == "",
			Reason:     reason,
			Contract:   project(c, sigs),
		}
		return nil
	})
	if err != nil {
		return nil, persistErr("resolve token", err)
	}

	if first {
		s.recordAndPublish(ctx, events.TopicContractViewed, tok.ContractID, string(tok.SignerType), events.ContractViewed{
			ContractID: tok.ContractID, SignerType: tok.SignerType,
		})
	}
	return view, nil
}

// SubmitSignature captures the signature for the role bound to token and
// advances the contract. The contract row is locked for the whole write, and
// the unique (contract, role) constraint decides any race between duplicate
// submissions. The completion notification fires once, after commit, for the
// submission that executes the contract.
func (s *Service) SubmitSignature(ctx context.Context, token string, in model.SignatureInput) (*SubmitResult, error) {
	tok, err := s.lookupToken(ctx, s.store, token)
	if err != nil {
		return nil, persistErr("get token", err)
	}

	// A stale link reports 409 before any field errors.
	c, err := s.store.GetContract(ctx, tok.ContractID)
	if err != nil {
		return nil, persistErr("get contract", err)
	}
	sigs, err := s.store.ListSignatures(ctx, c.ID)
	if err != nil {
		return nil, persistErr("list signatures", err)
	}
	if reason := signability(c, tok.SignerType, sigs); reason != "" {
		return nil, &model.NotSignableError{Reason: reason, Status: c.Status}
	}

	if err := checkSignature(&in); err != nil {
		return nil, err
	}

	now := s.clock()
	var prev model.Status
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		c, err = tx.GetContractForUpdate(ctx, tok.ContractID)
		if err != nil {
			return err
		}
		prev = c.Status
		if !c.Status.IsSignable() || !c.RequiresRole(tok.SignerType) {
			return &model.NotSignableError{Reason: model.ReasonContractNotSignable, Status: c.Status}
		}

		inserted, err := tx.InsertSignature(ctx, &model.Signature{
			ID:          idgen.SignatureID(),
			ContractID:  c.ID,
			SignerType:  tok.SignerType,
			SignerName:  strings.TrimSpace(in.Name),
			SignerEmail: strings.TrimSpace(in.Email),
			SignerTitle: strings.TrimSpace(in.Title),
			ImageData:   in.ImageData,
			SignedAt:    now,
			IPAddress:   in.IPAddress,
			UserAgent:   in.UserAgent,
		})
		if err != nil {
			return err
		}
		if !inserted {
			return &model.NotSignableError{Reason: model.ReasonAlreadySigned, Status: c.Status}
		}
		if err := tx.MarkTokenUsed(ctx, tok.Token, now); err != nil {
			return err
		}

		sigs, err = tx.ListSignatures(ctx, c.ID)
		if err != nil {
			return err
		}
		next := model.SignedStatus(c.Status, c.RequiredRoles(), model.SignedRoles(sigs))
		if next == c.Status {
			return nil
		}
		if err := model.CheckTransition(c.Status, next); err != nil {
			return err
		}
		u := store.StatusUpdate{ID: c.ID, From: c.Status, To: next, At: now}
		if next == model.StatusFullyExecuted {
			u.ExecutionAt = &now
			c.ExecutionAt = &now
		}
		return s.updateStatus(ctx, tx, c, u)
	})
	if err != nil {
		return nil, persistErr("submit signature", err)
	}

	s.recordAndPublish(ctx, events.TopicContractSigned, c.ID, string(tok.SignerType), events.ContractSigned{
		ContractID: c.ID,
		SignerType: tok.SignerType,
		SignerName: strings.TrimSpace(in.Name),
		Status:     c.Status,
	})
	if c.Status == model.StatusFullyExecuted && prev != model.StatusFullyExecuted {
		s.record(ctx, events.TopicContractFullyExecuted, c.ID, "", events.Summarize(c))
		if err := s.notifier.NotifyContractFullyExecuted(ctx, c); err != nil {
			s.logger.Warn("completion notification failed", "contract_id", c.ID, "error", err)
		}
	}
	return &SubmitResult{Contract: c, Signatures: sigs}, nil
}

// checkSignature validates the signer fields and the ink image.
func checkSignature(in *model.SignatureInput) error {
	ve := model.ValidateSignatureInput(in)
	if strings.TrimSpace(in.ImageData) != "" {
		switch err := ink.Check(in.ImageData); {
		case err == nil:
		case errors.Is(err, ink.ErrBlank):
			ve.Add("signature_image", "signature is blank")
		case errors.Is(err, ink.ErrTooLarge):
			ve.Add("signature_image", "image exceeds 2 MiB or 4096x4096 pixels")
		default:
			ve.Add("signature_image", "image could not be decoded")
		}
	}
	if ve.HasErrors() {
		return ve
	}
	return nil
}
