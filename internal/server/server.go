// Package server exposes the contract workflow over HTTP and gRPC.
package server

import (
	"log/slog"
	"net/netip"

	"github.com/alfredjeanlab/podium/internal/workflow"
)

// ActorHeader names the admin performing a mutation, recorded on audit events.
const ActorHeader = "X-Podium-Actor"

// Server adapts workflow.Service to the transport layers.
type Server struct {
	svc            *workflow.Service
	limiter        Limiter
	trustedProxies []netip.Prefix
	logger         *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLimiter rate-limits the public signing routes.
func WithLimiter(l Limiter) Option { return func(s *Server) { s.limiter = l } }

// WithTrustedProxies lists the peers whose forwarding headers are believed
// when deriving a signer's IP address.
func WithTrustedProxies(p []netip.Prefix) Option { return func(s *Server) { s.trustedProxies = p } }

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// New returns a Server for svc.
func New(svc *workflow.Service, opts ...Option) *Server {
	s := &Server{svc: svc, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}
