package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/podium/internal/model"
	"github.com/alfredjeanlab/podium/internal/workflow"
)

// parseContractFilter reads the list filter from the query string.
func parseContractFilter(r *http.Request) model.ContractFilter {
	q := r.URL.Query()
	filter := model.ContractFilter{
		DealID: q.Get("deal_id"),
		Search: q.Get("search"),
	}
	if v := q.Get("status"); v != "" {
		for _, st := range strings.Split(v, ",") {
			filter.Status = append(filter.Status, model.Status(strings.TrimSpace(st)))
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	return filter
}

// handleListContracts handles GET /v1/contracts.
func (s *Server) handleListContracts(w http.ResponseWriter, r *http.Request) {
	filter := parseContractFilter(r)
	if filter.Limit == 0 {
		filter.Limit = 50
	}
	contracts, total, err := s.svc.ListContracts(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if contracts == nil {
		contracts = []*model.Contract{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"contracts": contracts,
		"total":     total,
	})
}

// handleCreateContract handles POST /v1/contracts.
func (s *Server) handleCreateContract(w http.ResponseWriter, r *http.Request) {
	var in workflow.CreateRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	in.CreatedBy = actor(r)
	c, err := s.svc.CreateContract(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// handleGetContract handles GET /v1/contracts/{id}.
func (s *Server) handleGetContract(w http.ResponseWriter, r *http.Request) {
	detail, err := s.svc.GetContract(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleSendContract handles POST /v1/contracts/{id}/send.
func (s *Server) handleSendContract(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Send(r.Context(), r.PathValue("id"), actor(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleApproveContract handles POST /v1/contracts/{id}/approve.
func (s *Server) handleApproveContract(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Approve(r.Context(), r.PathValue("id"), actor(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleRequestReview handles POST /v1/contracts/{id}/review.
func (s *Server) handleRequestReview(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.RequestReview(r.Context(), r.PathValue("id"), actor(r))
	s.writeContract(w, r, c, err)
}

type cancelInput struct {
	Reason string `json:"reason"`
}

// handleCancelContract handles POST /v1/contracts/{id}/cancel.
func (s *Server) handleCancelContract(w http.ResponseWriter, r *http.Request) {
	var in cancelInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	c, err := s.svc.Cancel(r.Context(), r.PathValue("id"), actor(r), in.Reason)
	s.writeContract(w, r, c, err)
}

// handleActivateContract handles POST /v1/contracts/{id}/activate.
func (s *Server) handleActivateContract(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Activate(r.Context(), r.PathValue("id"), actor(r))
	s.writeContract(w, r, c, err)
}

// handleCompleteContract handles POST /v1/contracts/{id}/complete.
func (s *Server) handleCompleteContract(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Complete(r.Context(), r.PathValue("id"), actor(r))
	s.writeContract(w, r, c, err)
}

func (s *Server) writeContract(w http.ResponseWriter, r *http.Request, c *model.Contract, err error) {
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleGetEvents handles GET /v1/contracts/{id}/events.
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	evts, err := s.svc.Events(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if evts == nil {
		evts = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evts})
}

// handleGetDocument handles GET /v1/contracts/{id}/document?format=text|html.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	var contentType string
	switch format {
	case "", "text":
		contentType = "text/plain; charset=utf-8"
	case "html":
		contentType = "text/html; charset=utf-8"
	default:
		writeError(w, http.StatusBadRequest, "format must be text or html")
		return
	}
	doc, err := s.svc.Document(r.Context(), r.PathValue("id"), format == "html")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}
