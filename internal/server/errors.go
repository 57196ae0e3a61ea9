package server

import (
	"errors"
	"log/slog"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/podium/internal/model"
)

// ErrRateLimited is returned when a client exceeds the signing rate limit.
var ErrRateLimited = errors.New("too many requests")

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string             `json:"error"`
	Reason    string             `json:"reason,omitempty"`
	Fields    []model.FieldError `json:"fields,omitempty"`
	Current   model.Status       `json:"current,omitempty"`
	Attempted model.Status       `json:"attempted,omitempty"`
	Missing   []string           `json:"missing,omitempty"`
}

// classify maps a workflow error onto an HTTP status and response body.
// Unrecognized errors become a generic 500 so store details never leak.
func classify(err error) (int, errorBody) {
	var (
		ve *model.ValidationError
		ns *model.NotSignableError
		te *model.TransitionError
		mf *model.MissingFieldsError
		ti *model.TemplateInvalidError
	)
	switch {
	case errors.Is(err, model.ErrTokenNotFound):
		return http.StatusNotFound, errorBody{Error: model.ErrTokenNotFound.Error()}
	case errors.As(err, &ns):
		return http.StatusConflict, errorBody{Error: ns.Error(), Reason: string(ns.Reason)}
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorBody{Error: "validation failed", Fields: ve.Errors}
	case errors.As(err, &te):
		return http.StatusConflict, errorBody{Error: te.Error(), Current: te.From, Attempted: te.To}
	case errors.As(err, &mf):
		return http.StatusUnprocessableEntity, errorBody{Error: "missing required fields", Missing: mf.Labels}
	case errors.As(err, &ti):
		return http.StatusUnprocessableEntity, errorBody{Error: ti.Error()}
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "not found"}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorBody{Error: ErrRateLimited.Error()}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal server error"}
	}
}

// writeServiceError writes err as a JSON error response, logging 5xx causes.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code, body := classify(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, code, body)
}

// grpcError converts a workflow error to a gRPC status.
func grpcError(logger *slog.Logger, method string, err error) error {
	code, body := classify(err)
	msg := body.Error
	if body.Reason != "" {
		msg += " (" + body.Reason + ")"
	}
	switch code {
	case http.StatusNotFound:
		return status.Error(codes.NotFound, msg)
	case http.StatusConflict:
		return status.Error(codes.FailedPrecondition, msg)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return status.Error(codes.InvalidArgument, err.Error())
	case http.StatusTooManyRequests:
		return status.Error(codes.ResourceExhausted, msg)
	default:
		logger.Error("rpc failed", "method", method, "error", err)
		return status.Error(codes.Internal, msg)
	}
}
