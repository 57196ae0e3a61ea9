// Package memory implements store.Store in process memory. It is used by
// `podium serve` when PODIUM_STORE=memory and by tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/podium/internal/model"
	"github.com/alfredjeanlab/podium/internal/store"
)

type sigKey struct {
	contractID string
	role       model.SignerRole
}

type data struct {
	templates  map[string][]*model.ContractTemplate // by id, ascending version
	contracts  map[string]*model.Contract
	numbers    map[string]bool
	tokens     map[string]*model.SignerToken
	signatures map[sigKey]*model.Signature
	events     []*model.Event
	deals      map[string]*model.Deal
	nextEvent  int64
}

func newData() *data {
	return &data{
		templates:  map[string][]*model.ContractTemplate{},
		contracts:  map[string]*model.Contract{},
		numbers:    map[string]bool{},
		tokens:     map[string]*model.SignerToken{},
		signatures: map[sigKey]*model.Signature{},
		deals:      map[string]*model.Deal{},
	}
}

// clone copies the maps so a failed transaction can be discarded. Stored
// values are never mutated in place, so sharing the pointers is safe.
func (d *data) clone() *data {
	c := &data{
		templates:  make(map[string][]*model.ContractTemplate, len(d.templates)),
		contracts:  make(map[string]*model.Contract, len(d.contracts)),
		numbers:    make(map[string]bool, len(d.numbers)),
		tokens:     make(map[string]*model.SignerToken, len(d.tokens)),
		signatures: make(map[sigKey]*model.Signature, len(d.signatures)),
		events:     append([]*model.Event(nil), d.events...),
		deals:      d.deals,
		nextEvent:  d.nextEvent,
	}
	for k, v := range d.templates {
		c.templates[k] = append([]*model.ContractTemplate(nil), v...)
	}
	for k, v := range d.contracts {
		c.contracts[k] = v
	}
	for k, v := range d.numbers {
		c.numbers[k] = v
	}
	for k, v := range d.tokens {
		c.tokens[k] = v
	}
	for k, v := range d.signatures {
		c.signatures[k] = v
	}
	return c
}

// MemoryStore is a mutex-guarded store.Store. Transactions hold the lock
// for their whole duration, so they are fully serialized.
type MemoryStore struct {
	mu   sync.Mutex
	data *data
}

// Compile-time checks.
var (
	_ store.Store      = (*MemoryStore)(nil)
	_ store.DealSource = (*MemoryStore)(nil)
)

// New returns an empty MemoryStore.
func New() *MemoryStore {
	return &MemoryStore{data: newData()}
}

// PutDeal registers a deal for GetDeal. Deals are owned by the CRM; this is
// the in-memory stand-in for the CRM sync.
func (s *MemoryStore) PutDeal(d *model.Deal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.data.deals[d.ID] = &cp
}

func (s *MemoryStore) GetDeal(ctx context.Context, id string) (*model.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data.deals[id]
	if !ok {
		return nil, fmt.Errorf("deal %s: %w", id, model.ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

// RunInTransaction runs fn against a private copy of the data and publishes
// it only if fn succeeds.
func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &txStore{d: s.data.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	s.data = tx.d
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// do runs one non-transactional operation under the lock.
func (s *MemoryStore) do(fn func(tx *txStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&txStore{d: s.data})
}

func (s *MemoryStore) CreateTemplate(ctx context.Context, t *model.ContractTemplate) error {
	return s.do(func(tx *txStore) error { return tx.CreateTemplate(ctx, t) })
}

func (s *MemoryStore) GetTemplate(ctx context.Context, id string) (out *model.ContractTemplate, err error) {
	err = s.do(func(tx *txStore) error { out, err = tx.GetTemplate(ctx, id); return err })
	return out, err
}

func (s *MemoryStore) GetTemplateVersion(ctx context.Context, id string, version int) (out *model.ContractTemplate, err error) {
	err = s.do(func(tx *txStore) error { out, err = tx.GetTemplateVersion(ctx, id, version); return err })
	return out, err
}

func (s *MemoryStore) ListTemplates(ctx context.Context) (out []*model.ContractTemplate, err error) {
	err = s.do(func(tx *txStore) error { out, err = tx.ListTemplates(ctx); return err })
	return out, err
}

func (s *MemoryStore) CreateContract(ctx context.Context, c *model.Contract) error {
	return s.do(func(tx *txStore) error { return tx.CreateContract(ctx, c) })
}

func (s *MemoryStore) GetContract(ctx context.Context, id string) (out *model.Contract, err error) {
	err = s.do(func(tx *txStore) error { out, err = tx.GetContract(ctx, id); return err })
	return out, err
}

func (s *MemoryStore) GetContractForUpdate(ctx context.Context, id string) (*model.Contract, error) {
	return s.GetContract(ctx, id)
}

func (s *MemoryStore) ListContracts(ctx context.Context, filter model.ContractFilter) (out []*model.Contract, total int, err error) {
	err = s.do(func(tx *txStore) error { out, total, err = tx.ListContracts(ctx, filter); return err })
	return out, total, err
}

func (s *MemoryStore) UpdateContractStatus(ctx context.Context, u store.StatusUpdate) error {
	return s.do(func(tx *txStore) error { return tx.UpdateContractStatus(ctx, u) })
}

func (s *MemoryStore) MarkContractViewed(ctx context.Context, id string, at time.Time) error {
	return s.do(func(tx *txStore) error { return tx.MarkContractViewed(ctx, id, at) })
}

func (s *MemoryStore) CreateToken(ctx context.Context, tok *model.SignerToken) error {
	return s.do(func(tx *txStore) error { return tx.CreateToken(ctx, tok) })
}

func (s *MemoryStore) GetToken(ctx context.Context, token string) (out *model.SignerToken, err error) {
	err = s.do(func(tx *txStore) error { out, err = tx.GetToken(ctx, token); return err })
	return out, err
}

func (s *MemoryStore) ListTokens(ctx context.Context, contractID string) (out []*model.SignerToken, err error) {
	err = s.do(func(tx *txStore) error { out, err = tx.ListTokens(ctx, contractID); return err })
	return out, err
}

func (s *MemoryStore) MarkTokenUsed(ctx context.Context, token string, at time.Time) error {
	return s.do(func(tx *txStore) error { return tx.MarkTokenUsed(ctx, token, at) })
}

func (s *MemoryStore) MarkTokenViewed(ctx context.Context, token string, at time.Time) (first bool, err error) {
	err = s.do(func(tx *txStore) error { first, err = tx.MarkTokenViewed(ctx, token, at); return err })
	return first, err
}

func (s *MemoryStore) InsertSignature(ctx context.Context, sig *model.Signature) (ok bool, err error) {
	err = s.do(func(tx *txStore) error { ok, err = tx.InsertSignature(ctx, sig); return err })
	return ok, err
}

func (s *MemoryStore) ListSignatures(ctx context.Context, contractID string) (out []*model.Signature, err error) {
	err = s.do(func(tx *txStore) error { out, err = tx.ListSignatures(ctx, contractID); return err })
	return out, err
}

func (s *MemoryStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return s.do(func(tx *txStore) error { return tx.RecordEvent(ctx, event) })
}

func (s *MemoryStore) GetEvents(ctx context.Context, contractID string) (out []*model.Event, err error) {
	err = s.do(func(tx *txStore) error { out, err = tx.GetEvents(ctx, contractID); return err })
	return out, err
}

// txStore operates directly on a data snapshot. The caller holds the lock.
type txStore struct {
	d *data
}

var _ store.Store = (*txStore)(nil)

func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

func (s *txStore) Close() error { return nil }

func (s *txStore) CreateTemplate(ctx context.Context, t *model.ContractTemplate) error {
	versions := s.d.templates[t.ID]
	for _, v := range versions {
		if v.Version == t.Version {
			return fmt.Errorf("template %s v%d already exists", t.ID, t.Version)
		}
	}
	cp := copyTemplate(t)
	versions = append(versions, cp)
	sort.Slice(versions, func(i, j int) bool { return versions[i].Version < versions[j].Version })
	s.d.templates[t.ID] = versions
	return nil
}

func (s *txStore) GetTemplate(ctx context.Context, id string) (*model.ContractTemplate, error) {
	versions := s.d.templates[id]
	if len(versions) == 0 {
		return nil, fmt.Errorf("template %s: %w", id, model.ErrNotFound)
	}
	return copyTemplate(versions[len(versions)-1]), nil
}

func (s *txStore) GetTemplateVersion(ctx context.Context, id string, version int) (*model.ContractTemplate, error) {
	for _, v := range s.d.templates[id] {
		if v.Version == version {
			return copyTemplate(v), nil
		}
	}
	return nil, fmt.Errorf("template %s v%d: %w", id, version, model.ErrNotFound)
}

func (s *txStore) ListTemplates(ctx context.Context) ([]*model.ContractTemplate, error) {
	ids := make([]string, 0, len(s.d.templates))
	for id := range s.d.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*model.ContractTemplate, 0, len(ids))
	for _, id := range ids {
		versions := s.d.templates[id]
		out = append(out, copyTemplate(versions[len(versions)-1]))
	}
	return out, nil
}

func (s *txStore) CreateContract(ctx context.Context, c *model.Contract) error {
	if _, ok := s.d.contracts[c.ID]; ok {
		return fmt.Errorf("contract %s already exists", c.ID)
	}
	if s.d.numbers[c.Number] {
		return fmt.Errorf("contract %s: %s: %w", c.ID, c.Number, store.ErrDuplicateNumber)
	}
	cp := *c
	s.d.contracts[c.ID] = &cp
	s.d.numbers[c.Number] = true
	return nil
}

func (s *txStore) GetContract(ctx context.Context, id string) (*model.Contract, error) {
	c, ok := s.d.contracts[id]
	if !ok {
		return nil, fmt.Errorf("contract %s: %w", id, model.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *txStore) GetContractForUpdate(ctx context.Context, id string) (*model.Contract, error) {
	return s.GetContract(ctx, id)
}

func (s *txStore) ListContracts(ctx context.Context, filter model.ContractFilter) ([]*model.Contract, int, error) {
	statuses := map[model.Status]bool{}
	for _, st := range filter.Status {
		statuses[st] = true
	}
	search := strings.ToLower(filter.Search)

	var matched []*model.Contract
	for _, c := range s.d.contracts {
		if len(statuses) > 0 && !statuses[c.Status] {
			continue
		}
		if filter.DealID != "" && c.DealID != filter.DealID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Title), search) &&
			!strings.Contains(strings.ToLower(c.ClientName), search) &&
			!strings.Contains(strings.ToLower(c.Number), search) {
			continue
		}
		cp := *c
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (s *txStore) UpdateContractStatus(ctx context.Context, u store.StatusUpdate) error {
	c, ok := s.d.contracts[u.ID]
	if !ok || c.Status != u.From {
		return store.ErrStaleStatus
	}
	cp := *c
	cp.Status = u.To
	cp.UpdatedAt = u.At
	if u.SentAt != nil {
		cp.SentAt = timeCopy(u.SentAt)
	}
	if u.ExecutionAt != nil {
		cp.ExecutionAt = timeCopy(u.ExecutionAt)
	}
	if u.CancelledAt != nil {
		cp.CancelledAt = timeCopy(u.CancelledAt)
	}
	if u.CancelReason != "" {
		cp.CancelReason = u.CancelReason
	}
	s.d.contracts[u.ID] = &cp
	return nil
}

func (s *txStore) MarkContractViewed(ctx context.Context, id string, at time.Time) error {
	c, ok := s.d.contracts[id]
	if !ok || c.ViewedAt != nil {
		return nil
	}
	cp := *c
	cp.ViewedAt = &at
	s.d.contracts[id] = &cp
	return nil
}

func (s *txStore) CreateToken(ctx context.Context, tok *model.SignerToken) error {
	if _, ok := s.d.tokens[tok.Token]; ok {
		return fmt.Errorf("token already exists")
	}
	for _, t := range s.d.tokens {
		if t.ContractID == tok.ContractID && t.SignerType == tok.SignerType {
			return fmt.Errorf("token for %s/%s already exists", tok.ContractID, tok.SignerType)
		}
	}
	cp := *tok
	s.d.tokens[tok.Token] = &cp
	return nil
}

func (s *txStore) GetToken(ctx context.Context, token string) (*model.SignerToken, error) {
	t, ok := s.d.tokens[token]
	if !ok {
		return nil, fmt.Errorf("token: %w", model.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *txStore) ListTokens(ctx context.Context, contractID string) ([]*model.SignerToken, error) {
	var out []*model.SignerToken
	for _, t := range s.d.tokens {
		if t.ContractID == contractID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return roleOrder(out[i].SignerType) < roleOrder(out[j].SignerType) })
	return out, nil
}

func (s *txStore) MarkTokenUsed(ctx context.Context, token string, at time.Time) error {
	t, ok := s.d.tokens[token]
	if !ok {
		return fmt.Errorf("token: %w", model.ErrNotFound)
	}
	cp := *t
	cp.Used = true
	cp.UsedAt = &at
	s.d.tokens[token] = &cp
	return nil
}

func (s *txStore) MarkTokenViewed(ctx context.Context, token string, at time.Time) (bool, error) {
	t, ok := s.d.tokens[token]
	if !ok || t.ViewedAt != nil {
		return false, nil
	}
	cp := *t
	cp.ViewedAt = &at
	s.d.tokens[token] = &cp
	return true, nil
}

func (s *txStore) InsertSignature(ctx context.Context, sig *model.Signature) (bool, error) {
	key := sigKey{sig.ContractID, sig.SignerType}
	if _, ok := s.d.signatures[key]; ok {
		return false, nil
	}
	cp := *sig
	s.d.signatures[key] = &cp
	return true, nil
}

func (s *txStore) ListSignatures(ctx context.Context, contractID string) ([]*model.Signature, error) {
	var out []*model.Signature
	for k, sig := range s.d.signatures {
		if k.contractID == contractID {
			cp := *sig
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SignedAt.Equal(out[j].SignedAt) {
			return out[i].SignedAt.Before(out[j].SignedAt)
		}
		return roleOrder(out[i].SignerType) < roleOrder(out[j].SignerType)
	})
	return out, nil
}

func (s *txStore) RecordEvent(ctx context.Context, event *model.Event) error {
	s.d.nextEvent++
	event.ID = s.d.nextEvent
	cp := *event
	s.d.events = append(s.d.events, &cp)
	return nil
}

func (s *txStore) GetEvents(ctx context.Context, contractID string) ([]*model.Event, error) {
	var out []*model.Event
	for _, e := range s.d.events {
		if e.ContractID == contractID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func copyTemplate(t *model.ContractTemplate) *model.ContractTemplate {
	cp := *t
	cp.Sections = append([]model.Section(nil), t.Sections...)
	cp.Variables = append([]model.Variable(nil), t.Variables...)
	return &cp
}

func timeCopy(t *time.Time) *time.Time {
	v := *t
	return &v
}

func roleOrder(r model.SignerRole) int {
	switch r {
	case model.RoleClient:
		return 0
	case model.RoleSpeaker:
		return 1
	default:
		return 2
	}
}
