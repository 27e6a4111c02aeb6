package handler

import (
	"net/http"
)

// Schema introspection endpoints. Patterns use SQL LIKE syntax and an empty
// pattern matches everything.

func (h *Handler) handleMetaTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.meta.ListTables(r.Context(), r.URL.Query().Get("pattern"))
	if err != nil {
		h.logger.Error("listing tables", "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not list tables")
		return
	}
	h.jsonResponse(w, http.StatusOK, map[string]any{"tables": tables})
}

func (h *Handler) handleMetaColumns(w http.ResponseWriter, r *http.Request) {
	columns, err := h.meta.ListColumns(r.Context(),
		r.URL.Query().Get("table"),
		r.URL.Query().Get("column"),
	)
	if err != nil {
		h.logger.Error("listing columns", "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not list columns")
		return
	}
	h.jsonResponse(w, http.StatusOK, map[string]any{"columns": columns})
}

func (h *Handler) handleMetaProcedures(w http.ResponseWriter, r *http.Request) {
	procedures, err := h.meta.ListProcedures(r.Context(), r.URL.Query().Get("pattern"))
	if err != nil {
		h.logger.Error("listing procedures", "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not list procedures")
		return
	}
	h.jsonResponse(w, http.StatusOK, map[string]any{"procedures": procedures})
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
