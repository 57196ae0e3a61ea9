package server

import (
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/podium/internal/model"
	"github.com/alfredjeanlab/podium/internal/workflow"
)

// handleListTemplates handles GET /v1/templates.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	tpls, err := s.svc.ListTemplates(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if tpls == nil {
		tpls = []*model.ContractTemplate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": tpls})
}

// handleCreateTemplate handles POST /v1/templates. A body carrying the id of
// an existing template stores a new version of it.
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var in model.ContractTemplate
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	tpl, err := s.svc.CreateTemplate(r.Context(), &in, actor(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}

// handleGetTemplate handles GET /v1/templates/{id}?version=N.
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	version := 0
	if v := r.URL.Query().Get("version"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "version must be a positive integer")
			return
		}
		version = n
	}
	tpl, err := s.svc.GetTemplate(r.Context(), r.PathValue("id"), version)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

// handlePreview handles POST /v1/templates/{id}/preview.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var in workflow.CreateRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	in.TemplateID = r.PathValue("id")
	p, err := s.svc.Preview(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
