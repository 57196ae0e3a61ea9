package store

import (
	"context"
	"errors"
	"time"

	"github.com/alfredjeanlab/podium/internal/model"
)

// ErrStaleStatus is returned by UpdateContractStatus when the contract is no
// longer in the expected from-status.
var ErrStaleStatus = errors.New("contract status changed concurrently")

// ErrDuplicateNumber is returned by CreateContract when the contract number
// is already taken.
var ErrDuplicateNumber = errors.New("contract number already exists")

// StatusUpdate is a conditional status write. Nil timestamps and an empty
// reason leave the stored values untouched.
type StatusUpdate struct {
	ID           string
	From         model.Status
	To           model.Status
	At           time.Time
	SentAt       *time.Time
	ExecutionAt  *time.Time
	CancelledAt  *time.Time
	CancelReason string
}

// Store defines the persistence interface for contracts and their
// templates, signer tokens, signatures and audit events.
type Store interface {
	// Templates. Rows are immutable; a new version is a new row.
	CreateTemplate(ctx context.Context, t *model.ContractTemplate) error
	GetTemplate(ctx context.Context, id string) (*model.ContractTemplate, error) // latest version
	GetTemplateVersion(ctx context.Context, id string, version int) (*model.ContractTemplate, error)
	ListTemplates(ctx context.Context) ([]*model.ContractTemplate, error) // latest version of each

	// Contracts
	CreateContract(ctx context.Context, c *model.Contract) error
	GetContract(ctx context.Context, id string) (*model.Contract, error)
	// GetContractForUpdate reads the contract and locks it for the rest
	// of the enclosing transaction.
	GetContractForUpdate(ctx context.Context, id string) (*model.Contract, error)
	ListContracts(ctx context.Context, filter model.ContractFilter) ([]*model.Contract, int, error) // returns contracts, total count, error
	UpdateContractStatus(ctx context.Context, u StatusUpdate) error
	MarkContractViewed(ctx context.Context, id string, at time.Time) error

	// Signer tokens
	CreateToken(ctx context.Context, tok *model.SignerToken) error
	GetToken(ctx context.Context, token string) (*model.SignerToken, error)
	ListTokens(ctx context.Context, contractID string) ([]*model.SignerToken, error)
	MarkTokenUsed(ctx context.Context, token string, at time.Time) error
	// MarkTokenViewed sets viewed_at if unset and reports whether it did.
	MarkTokenViewed(ctx context.Context, token string, at time.Time) (bool, error)

	// Signatures. InsertSignature reports false when a signature for the
	// same (contract, role) already exists; nothing is written in that case.
	InsertSignature(ctx context.Context, sig *model.Signature) (bool, error)
	ListSignatures(ctx context.Context, contractID string) ([]*model.Signature, error)

	// Events
	RecordEvent(ctx context.Context, event *model.Event) error
	GetEvents(ctx context.Context, contractID string) ([]*model.Event, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}

// DealSource reads CRM deals. The CRM owns the data; this service never
// writes it.
type DealSource interface {
	GetDeal(ctx context.Context, id string) (*model.Deal, error)
}
