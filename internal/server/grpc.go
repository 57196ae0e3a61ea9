package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/reflection"

	"github.com/alfredjeanlab/podium/internal/model"
	"github.com/alfredjeanlab/podium/internal/rpc"
	"github.com/alfredjeanlab/podium/internal/workflow"
)

// SigningService is the gRPC surface of the workflow.
type SigningService interface {
	ResolveToken(context.Context, *rpc.TokenRequest) (*workflow.SigningView, error)
	SubmitSignature(context.Context, *rpc.SubmitSignatureRequest) (*workflow.SubmitResult, error)
	GetContract(context.Context, *rpc.ContractRequest) (*workflow.ContractDetail, error)
	SendContract(context.Context, *rpc.ContractRequest) (*workflow.SendResult, error)
	CancelContract(context.Context, *rpc.ContractRequest) (*model.Contract, error)
}

var _ SigningService = (*Server)(nil)

// unaryMethod adapts a typed SigningService method to a grpc.MethodDesc.
func unaryMethod[Req, Resp any](name string, call func(SigningService, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			svc := srv.(SigningService)
			if interceptor == nil {
				return call(svc, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + rpc.ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(svc, ctx, req.(*Req))
			})
		},
	}
}

var signingServiceDesc = grpc.ServiceDesc{
	ServiceName: rpc.ServiceName,
	HandlerType: (*SigningService)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("ResolveToken", SigningService.ResolveToken),
		unaryMethod("SubmitSignature", SigningService.SubmitSignature),
		unaryMethod("GetContract", SigningService.GetContract),
		unaryMethod("SendContract", SigningService.SendContract),
		unaryMethod("CancelContract", SigningService.CancelContract),
	},
	Streams: []grpc.StreamDesc{},
}

// NewGRPCServer creates a gRPC server with standard interceptors, registers
// the signing service, health and reflection, and returns the server ready
// to serve.
func NewGRPCServer(s *Server, authToken string) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			LoggingInterceptor(s.logger),
			AuthInterceptor(authToken),
		),
	)

	srv.RegisterService(&signingServiceDesc, s)

	hs := health.NewServer()
	hs.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return srv
}

// ResolveToken returns the signer's view of a contract.
func (s *Server) ResolveToken(ctx context.Context, req *rpc.TokenRequest) (*workflow.SigningView, error) {
	view, err := s.svc.Resolve(ctx, req.Token)
	if err != nil {
		return nil, grpcError(s.logger, rpc.MethodResolveToken, err)
	}
	return view, nil
}

// SubmitSignature captures a signature.
func (s *Server) SubmitSignature(ctx context.Context, req *rpc.SubmitSignatureRequest) (*workflow.SubmitResult, error) {
	if s.limiter != nil {
		key := "sign:grpc"
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			key = "sign:" + p.Addr.String()
		}
		if ok, err := s.limiter.Allow(ctx, key); err == nil && !ok {
			return nil, grpcError(s.logger, rpc.MethodSubmitSignature, ErrRateLimited)
		}
	}
	in := req.Signature
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		in.IPAddress = p.Addr.String()
	}
	res, err := s.svc.SubmitSignature(ctx, req.Token, in)
	if err != nil {
		return nil, grpcError(s.logger, rpc.MethodSubmitSignature, err)
	}
	return res, nil
}

// GetContract returns a contract with its signatures and tokens.
func (s *Server) GetContract(ctx context.Context, req *rpc.ContractRequest) (*workflow.ContractDetail, error) {
	detail, err := s.svc.GetContract(ctx, req.ContractID)
	if err != nil {
		return nil, grpcError(s.logger, rpc.MethodGetContract, err)
	}
	return detail, nil
}

// SendContract issues signer tokens and dispatches a draft.
func (s *Server) SendContract(ctx context.Context, req *rpc.ContractRequest) (*workflow.SendResult, error) {
	res, err := s.svc.Send(ctx, req.ContractID, rpcActor(req))
	if err != nil {
		return nil, grpcError(s.logger, rpc.MethodSendContract, err)
	}
	return res, nil
}

// CancelContract cancels a contract that has not been executed.
func (s *Server) CancelContract(ctx context.Context, req *rpc.ContractRequest) (*model.Contract, error) {
	c, err := s.svc.Cancel(ctx, req.ContractID, rpcActor(req), req.Reason)
	if err != nil {
		return nil, grpcError(s.logger, rpc.MethodCancelContract, err)
	}
	return c, nil
}

func rpcActor(req *rpc.ContractRequest) string {
	if req.Actor != "" {
		return req.Actor
	}
	return "admin"
}
