// Package client provides a transport-agnostic interface for the podium
// service and an HTTP/JSON implementation that talks to the podium REST API.
package client

import (
	"context"

	"github.com/alfredjeanlab/podium/internal/model"
	"github.com/alfredjeanlab/podium/internal/workflow"
)

// SigningClient is the subset of operations served over both HTTP and gRPC.
type SigningClient interface {
	ResolveToken(ctx context.Context, token string) (*workflow.SigningView, error)
	SubmitSignature(ctx context.Context, token string, in *model.SignatureInput) (*workflow.SubmitResult, error)
	GetContract(ctx context.Context, id string) (*workflow.ContractDetail, error)
	SendContract(ctx context.Context, id string) (*workflow.SendResult, error)
	CancelContract(ctx context.Context, id, reason string) (*model.Contract, error)
	Health(ctx context.Context) (string, error)
	Close() error
}

// PodiumClient is the interface that podium CLI commands use to communicate
// with the server.
type PodiumClient interface {
	// Templates
	ListTemplates(ctx context.Context) ([]*model.ContractTemplate, error)
	GetTemplate(ctx context.Context, id string, version int) (*model.ContractTemplate, error)
	CreateTemplate(ctx context.Context, t *model.ContractTemplate) (*model.ContractTemplate, error)
	Preview(ctx context.Context, templateID string, req *workflow.CreateRequest) (*workflow.Preview, error)

	// Contracts
	ListContracts(ctx context.Context, req *ListContractsRequest) (*ListContractsResponse, error)
	CreateContract(ctx context.Context, req *workflow.CreateRequest) (*model.Contract, error)
	GetContract(ctx context.Context, id string) (*workflow.ContractDetail, error)
	SendContract(ctx context.Context, id string) (*workflow.SendResult, error)
	RequestReview(ctx context.Context, id string) (*model.Contract, error)
	ApproveContract(ctx context.Context, id string) (*workflow.SendResult, error)
	CancelContract(ctx context.Context, id, reason string) (*model.Contract, error)
	ActivateContract(ctx context.Context, id string) (*model.Contract, error)
	CompleteContract(ctx context.Context, id string) (*model.Contract, error)
	GetEvents(ctx context.Context, id string) ([]*model.Event, error)
	GetDocument(ctx context.Context, id, format string) (string, error)
	ContractReport(ctx context.Context, req *ListContractsRequest) ([]byte, error)

	// Signing
	ResolveToken(ctx context.Context, token string) (*workflow.SigningView, error)
	SubmitSignature(ctx context.Context, token string, in *model.SignatureInput) (*workflow.SubmitResult, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// ListContractsRequest holds the filters for listing contracts.
type ListContractsRequest struct {
	Status []string
	DealID string
	Search string
	Limit  int
	Offset int
}

// ListContractsResponse is a page of contracts and the total match count.
type ListContractsResponse struct {
	Contracts []*model.Contract `json:"contracts"`
	Total     int               `json:"total"`
}

var (
	_ PodiumClient  = (*HTTPClient)(nil)
	_ SigningClient = (*HTTPClient)(nil)
	_ SigningClient = (*GRPCClient)(nil)
)
