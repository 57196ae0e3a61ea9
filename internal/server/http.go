package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// maxBodyBytes bounds request bodies. Signature images are capped at 2 MiB
// decoded, which is roughly 2.7 MiB once base64-encoded.
const maxBodyBytes = 4 << 20

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, admin requests must include a valid
// Authorization: Bearer <token> header. GET /v1/health and the signing
// routes under /v1/sign/ are public.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)

	mux.HandleFunc("GET /v1/templates", s.handleListTemplates)
	mux.HandleFunc("POST /v1/templates", s.handleCreateTemplate)
	mux.HandleFunc("GET /v1/templates/{id}", s.handleGetTemplate)
	mux.HandleFunc("POST /v1/templates/{id}/preview", s.handlePreview)

	mux.HandleFunc("GET /v1/contracts", s.handleListContracts)
	mux.HandleFunc("POST /v1/contracts", s.handleCreateContract)
	mux.HandleFunc("GET /v1/contracts/{id}", s.handleGetContract)
	mux.HandleFunc("POST /v1/contracts/{id}/send", s.handleSendContract)
	mux.HandleFunc("POST /v1/contracts/{id}/review", s.handleRequestReview)
	mux.HandleFunc("POST /v1/contracts/{id}/approve", s.handleApproveContract)
	mux.HandleFunc("POST /v1/contracts/{id}/cancel", s.handleCancelContract)
	mux.HandleFunc("POST /v1/contracts/{id}/activate", s.handleActivateContract)
	mux.HandleFunc("POST /v1/contracts/{id}/complete", s.handleCompleteContract)
	mux.HandleFunc("GET /v1/contracts/{id}/events", s.handleGetEvents)
	mux.HandleFunc("GET /v1/contracts/{id}/document", s.handleGetDocument)

	mux.HandleFunc("GET /v1/reports/contracts.xlsx", s.handleContractReport)

	mux.Handle("GET /v1/sign/{token}", s.rateLimit(http.HandlerFunc(s.handleResolveToken)))
	mux.Handle("POST /v1/sign/{token}", s.rateLimit(http.HandlerFunc(s.handleSubmitSignature)))

	return AuthMiddleware(authToken, mux)
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeJSON reads a JSON request body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// actor returns the admin named in the request, or "admin".
func actor(r *http.Request) string {
	if a := strings.TrimSpace(r.Header.Get(ActorHeader)); a != "" {
		return a
	}
	return "admin"
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}
