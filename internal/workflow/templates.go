package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/podium/internal/events"
	"github.com/alfredjeanlab/podium/internal/idgen"
	"github.com/alfredjeanlab/podium/internal/model"
	"github.com/alfredjeanlab/podium/internal/store"
	"github.com/alfredjeanlab/podium/internal/template"
)

// CreateTemplate stores t as a new template, or as the next version of an
// existing one when t.ID is already known. Stored versions are never changed.
func (s *Service) CreateTemplate(ctx context.Context, t *model.ContractTemplate, actor string) (*model.ContractTemplate, error) {
	if err := template.Validate(t); err != nil {
		return nil, err
	}
	if t.Name == "" {
		return nil, fieldError("name", "is required")
	}

	cp := *t
	cp.CreatedAt = s.clock()
	cp.CreatedBy = actor
	if cp.ID == "" {
		id, err := idgen.TemplateID()
		if err != nil {
			return nil, err
		}
		cp.ID = id
	}

	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		latest, err := tx.GetTemplate(ctx, cp.ID)
		switch {
		case err == nil:
			cp.Version = latest.Version + 1
		case errors.Is(err, model.ErrNotFound):
			cp.Version = 1
		default:
			return err
		}
		return tx.CreateTemplate(ctx, &cp)
	})
	if err != nil {
		return nil, persistErr("create template", err)
	}

	if err := s.publisher.Publish(ctx, events.TopicTemplateCreated, events.TemplateCreated{
		TemplateID: cp.ID, Version: cp.Version, Name: cp.Name,
	}); err != nil {
		s.logger.Warn("failed to publish event", "topic", events.TopicTemplateCreated, "template_id", cp.ID, "error", err)
	}
	return &cp, nil
}

// SeedTemplates stores each template whose id is not yet known. Templates
// already present are left untouched.
func (s *Service) SeedTemplates(ctx context.Context, tpls []*model.ContractTemplate, actor string) (int, error) {
	created := 0
	for _, t := range tpls {
		if t.ID != "" {
			_, err := s.store.GetTemplate(ctx, t.ID)
			if err == nil {
				continue
			}
			if !errors.Is(err, model.ErrNotFound) {
				return created, persistErr("seed templates", err)
			}
		}
		if _, err := s.CreateTemplate(ctx, t, actor); err != nil {
			return created, fmt.Errorf("seed template %q: %w", t.Name, err)
		}
		created++
	}
	return created, nil
}

// GetTemplate returns the latest version of a template, or a specific
// version when version > 0.
func (s *Service) GetTemplate(ctx context.Context, id string, version int) (*model.ContractTemplate, error) {
	var (
		t   *model.ContractTemplate
		err error
	)
	if version > 0 {
		t, err = s.store.GetTemplateVersion(ctx, id, version)
	} else {
		t, err = s.store.GetTemplate(ctx, id)
	}
	if err != nil {
		return nil, persistErr("get template", err)
	}
	return t, nil
}

// ListTemplates returns the latest version of every template.
func (s *Service) ListTemplates(ctx context.Context) ([]*model.ContractTemplate, error) {
	out, err := s.store.ListTemplates(ctx)
	if err != nil {
		return nil, persistErr("list templates", err)
	}
	return out, nil
}
