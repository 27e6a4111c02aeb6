package handler

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/qwc/lisenssit/internal/database"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type projectRequest struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	var (
		projects []projectJSON
		err      error
	)
	if query != "" {
		rows, serr := h.projects.Search(r.Context(), query)
		err = serr
		for i := range rows {
			projects = append(projects, toProjectJSON(&rows[i]))
		}
	} else {
		rows, lerr := h.projects.List(r.Context())
		err = lerr
		for i := range rows {
			projects = append(projects, toProjectJSON(&rows[i]))
		}
	}
	if err != nil {
		h.logger.Error("listing projects", "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not list projects")
		return
	}
	if projects == nil {
		projects = []projectJSON{}
	}

	h.jsonResponse(w, http.StatusOK, map[string]any{"projects": projects})
}

func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Slug = strings.TrimSpace(req.Slug)
	req.Name = strings.TrimSpace(req.Name)
	if !slugPattern.MatchString(req.Slug) {
		h.jsonError(w, http.StatusBadRequest, "slug must be lowercase letters, digits and hyphens")
		return
	}
	if req.Name == "" {
		req.Name = req.Slug
	}

	if _, err := h.projects.GetBySlug(r.Context(), req.Slug); err == nil {
		h.jsonError(w, http.StatusConflict, "project already exists")
		return
	}

	project := &database.Project{
		Slug:        req.Slug,
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.projects.Create(r.Context(), project); err != nil {
		h.logger.Error("creating project", "slug", req.Slug, "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not create project")
		return
	}

	h.logger.Info("project created", "slug", project.Slug)
	h.jsonResponse(w, http.StatusCreated, toProjectJSON(project))
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.projects.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		h.jsonError(w, http.StatusNotFound, "project not found")
		return
	}
	h.jsonResponse(w, http.StatusOK, toProjectJSON(project))
}

func (h *Handler) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.projects.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		h.jsonError(w, http.StatusNotFound, "project not found")
		return
	}

	var req projectRequest
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		project.Name = name
	}
	project.Description = req.Description

	if err := h.projects.Update(r.Context(), project); err != nil {
		h.logger.Error("updating project", "slug", project.Slug, "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not update project")
		return
	}

	h.jsonResponse(w, http.StatusOK, toProjectJSON(project))
}

func (h *Handler) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.projects.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		h.jsonError(w, http.StatusNotFound, "project not found")
		return
	}

	// Search index entries go first so a failed DB delete does not leave
	// unfindable scans behind.
	scans, err := h.scans.ListByProject(r.Context(), project.ID)
	if err == nil {
		for _, s := range scans {
			if err := h.searchIndex.DeleteScan(project.ID, s.ID); err != nil {
				h.logger.Error("removing scan from search index", "scan", s.ID, "error", err)
			}
		}
	}

	if err := h.projects.Delete(r.Context(), project.ID); err != nil {
		h.logger.Error("deleting project", "slug", project.Slug, "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not delete project")
		return
	}

	if err := h.storage.DeleteProject(project.Slug); err != nil {
		h.logger.Error("deleting project storage", "slug", project.Slug, "error", err)
	}

	h.logger.Info("project deleted", "slug", project.Slug)
	h.jsonResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}
