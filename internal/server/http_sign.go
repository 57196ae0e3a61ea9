package server

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/alfredjeanlab/podium/internal/model"
)

// handleResolveToken handles GET /v1/sign/{token}.
func (s *Server) handleResolveToken(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Resolve(r.Context(), r.PathValue("token"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleSubmitSignature handles POST /v1/sign/{token}.
func (s *Server) handleSubmitSignature(w http.ResponseWriter, r *http.Request) {
	var in model.SignatureInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	in.IPAddress = s.clientIP(r)
	in.UserAgent = r.UserAgent()

	res, err := s.svc.SubmitSignature(r.Context(), r.PathValue("token"), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// rateLimit applies the configured limiter per client IP.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		ok, err := s.limiter.Allow(r.Context(), "sign:"+s.clientIP(r))
		if err != nil {
			// Limiter errors fail open.
			s.logger.Warn("rate limiter unavailable", "error", err)
		} else if !ok {
			s.writeServiceError(w, r, ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the address recorded for a signing request. The socket
// peer is used unless it is a trusted proxy, in which case X-Forwarded-For is
// walked right to left to the first hop that is not itself trusted, with
// X-Real-IP as a fallback.
func (s *Server) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil {
		return host
	}
	peer = peer.Unmap()
	if !s.trusted(peer) {
		return peer.String()
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			if hop = hop.Unmap(); !s.trusted(hop) {
				return hop.String()
			}
		}
	}
	if xri, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return xri.Unmap().String()
	}
	return peer.String()
}

func (s *Server) trusted(addr netip.Addr) bool {
	for _, p := range s.trustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
