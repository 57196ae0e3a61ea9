package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"

	"github.com/alfredjeanlab/podium/internal/model"
	"github.com/alfredjeanlab/podium/internal/rpc"
	"github.com/alfredjeanlab/podium/internal/workflow"
)

// GRPCClient talks to podium.v1.SigningService over gRPC with the JSON codec.
type GRPCClient struct {
	conn  grpc.ClientConnInterface
	close func() error
	token string
}

// NewGRPCClient connects to the given gRPC address and returns a client.
// When token is non-empty it is sent as a Bearer token on every call.
func NewGRPCClient(addr, token string) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{conn: conn, close: conn.Close, token: token}, nil
}

// NewGRPCClientFromConn wraps an existing connection. Close leaves conn open.
func NewGRPCClientFromConn(conn grpc.ClientConnInterface, token string) *GRPCClient {
	return &GRPCClient{conn: conn, close: func() error { return nil }, token: token}
}

func (c *GRPCClient) Close() error {
	return c.close()
}

func (c *GRPCClient) invoke(ctx context.Context, method string, in, out any) error {
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	return c.conn.Invoke(ctx, method, in, out, grpc.CallContentSubtype(rpc.CodecName))
}

func (c *GRPCClient) ResolveToken(ctx context.Context, token string) (*workflow.SigningView, error) {
	var out workflow.SigningView
	if err := c.invoke(ctx, rpc.MethodResolveToken, &rpc.TokenRequest{Token: token}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GRPCClient) SubmitSignature(ctx context.Context, token string, in *model.SignatureInput) (*workflow.SubmitResult, error) {
	var out workflow.SubmitResult
	req := &rpc.SubmitSignatureRequest{Token: token, Signature: *in}
	if err := c.invoke(ctx, rpc.MethodSubmitSignature, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GRPCClient) GetContract(ctx context.Context, id string) (*workflow.ContractDetail, error) {
	var out workflow.ContractDetail
	if err := c.invoke(ctx, rpc.MethodGetContract, &rpc.ContractRequest{ContractID: id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GRPCClient) SendContract(ctx context.Context, id string) (*workflow.SendResult, error) {
	var out workflow.SendResult
	if err := c.invoke(ctx, rpc.MethodSendContract, &rpc.ContractRequest{ContractID: id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GRPCClient) CancelContract(ctx context.Context, id, reason string) (*model.Contract, error) {
	var out model.Contract
	if err := c.invoke(ctx, rpc.MethodCancelContract, &rpc.ContractRequest{ContractID: id, Reason: reason}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health runs the standard gRPC health check for the signing service.
func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: rpc.ServiceName})
	if err != nil {
		return "", err
	}
	return resp.GetStatus().String(), nil
}
