package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/qwc/lisenssit/internal/scan"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		h.jsonError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	limit := defaultSearchLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = min(n, maxSearchLimit)
		}
	}
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			offset = n
		}
	}

	results, err := h.searchIndex.Search(scan.SearchQuery{
		Query:       query,
		ProjectSlug: r.URL.Query().Get("project"),
		License:     r.URL.Query().Get("license"),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		h.logger.Error("search failed", "query", query, "error", err)
		h.jsonError(w, http.StatusInternalServerError, "search failed")
		return
	}

	h.jsonResponse(w, http.StatusOK, results)
}
