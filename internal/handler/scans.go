package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/qwc/lisenssit/internal/database"
	"github.com/qwc/lisenssit/internal/report"
	"github.com/qwc/lisenssit/internal/scan"
)

const maxUploadSize = 100 << 20 // 100 MB

// handleUploadScan ingests a scan bundle for a project. Robots authenticate
// with a bearer token that must be scoped to the project (or be global);
// interactive users need editor or admin role.
func (h *Handler) handleUploadScan(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	project, err := h.projects.GetBySlug(r.Context(), slug)
	if err != nil {
		h.jsonError(w, http.StatusNotFound, "project not found")
		return
	}

	user := h.sessionMgr.GetUserFromRequest(r)
	if user == nil {
		user = h.tokenAuth.AuthenticateRequestForProject(r, project.ID)
	}
	if user == nil {
		h.jsonError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !user.IsRobot && user.Role != "admin" && user.Role != "editor" {
		h.jsonError(w, http.StatusForbidden, "editor access required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.jsonError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	file, header, err := r.FormFile("bundle")
	if err != nil {
		h.jsonError(w, http.StatusBadRequest, "missing bundle file")
		return
	}
	defer file.Close()

	scanRun := &database.ScanRun{
		ProjectID:   project.ID,
		Status:      database.ScanStatusRunning,
		TriggeredBy: user.ID,
	}
	if err := h.scans.Create(r.Context(), scanRun); err != nil {
		h.logger.Error("creating scan run", "project", slug, "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not create scan")
		return
	}

	if err := h.storage.EnsureScanDir(slug, scanRun.ID); err != nil {
		h.failScan(r.Context(), scanRun, "preparing scan directory", err)
		h.jsonError(w, http.StatusInternalServerError, "could not store bundle")
		return
	}

	bundleDir := h.storage.ScanPath(slug, scanRun.ID)
	if err := scan.ExtractBundle(file, header.Filename, bundleDir); err != nil {
		h.failScan(r.Context(), scanRun, "extracting bundle", err)
		if derr := h.storage.DeleteScan(slug, scanRun.ID); derr != nil {
			h.logger.Error("cleaning up scan directory", "scan", scanRun.ID, "error", derr)
		}
		h.jsonError(w, http.StatusBadRequest, fmt.Sprintf("could not extract bundle: %v", err))
		return
	}

	scanner := &scan.Scanner{
		RepositoryBaseURL:    h.config.Report.RepositoryBaseURL,
		CustomLicenseBaseURL: h.config.Report.CustomLicenseBaseURL,
		Logger:               h.logger,
	}
	result, err := scanner.ScanDir(bundleDir)
	if err != nil {
		h.failScan(r.Context(), scanRun, "scanning bundle", err)
		h.jsonError(w, http.StatusBadRequest, fmt.Sprintf("could not scan bundle: %v", err))
		return
	}

	for i := range result.Dependencies {
		result.Dependencies[i].ScanID = scanRun.ID
	}
	if err := h.deps.CreateBatch(r.Context(), result.Dependencies); err != nil {
		h.failScan(r.Context(), scanRun, "storing dependencies", err)
		h.jsonError(w, http.StatusInternalServerError, "could not store scan results")
		return
	}

	scanRun.Status = database.ScanStatusComplete
	scanRun.BundlePath = bundleDir
	scanRun.Total = result.Total
	scanRun.UnknownCount = result.Unknown
	if err := h.scans.Update(r.Context(), scanRun); err != nil {
		h.logger.Error("finalizing scan run", "scan", scanRun.ID, "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not finalize scan")
		return
	}

	// Indexing is best effort and must not block the upload response.
	deps := result.Dependencies
	go func() {
		if err := h.searchIndex.IndexScan(project.ID, scanRun.ID, slug, bundleDir, deps); err != nil {
			h.logger.Error("indexing scan", "scan", scanRun.ID, "error", err)
		}
	}()

	h.logger.Info("scan completed",
		"project", slug,
		"scan", scanRun.ID,
		"total", scanRun.Total,
		"unknown", scanRun.UnknownCount,
	)
	h.jsonResponse(w, http.StatusCreated, toScanJSON(scanRun))
}

func (h *Handler) failScan(ctx context.Context, scanRun *database.ScanRun, stage string, err error) {
	h.logger.Error(stage, "scan", scanRun.ID, "error", err)
	scanRun.Status = database.ScanStatusFailed
	if uerr := h.scans.Update(ctx, scanRun); uerr != nil {
		h.logger.Error("marking scan failed", "scan", scanRun.ID, "error", uerr)
	}
}

func (h *Handler) handleListScans(w http.ResponseWriter, r *http.Request) {
	project, err := h.projects.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		h.jsonError(w, http.StatusNotFound, "project not found")
		return
	}

	scans, err := h.scans.ListByProject(r.Context(), project.ID)
	if err != nil {
		h.logger.Error("listing scans", "project", project.Slug, "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not list scans")
		return
	}

	out := make([]scanJSON, 0, len(scans))
	for i := range scans {
		out = append(out, toScanJSON(&scans[i]))
	}
	h.jsonResponse(w, http.StatusOK, map[string]any{"scans": out})
}

func (h *Handler) scanFromPath(w http.ResponseWriter, r *http.Request) *database.ScanRun {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.jsonError(w, http.StatusBadRequest, "invalid scan id")
		return nil
	}
	scanRun, err := h.scans.GetByID(r.Context(), id)
	if err != nil {
		h.jsonError(w, http.StatusNotFound, "scan not found")
		return nil
	}
	return scanRun
}

func (h *Handler) handleGetScan(w http.ResponseWriter, r *http.Request) {
	scanRun := h.scanFromPath(w, r)
	if scanRun == nil {
		return
	}

	out := toScanJSON(scanRun)
	if scanRun.Status == database.ScanStatusComplete {
		counts, err := h.deps.CountByLicense(r.Context(), scanRun.ID)
		if err != nil {
			h.logger.Error("counting licenses", "scan", scanRun.ID, "error", err)
		} else {
			out.Licenses = counts
		}
	}
	h.jsonResponse(w, http.StatusOK, out)
}

func (h *Handler) handleListDependencies(w http.ResponseWriter, r *http.Request) {
	scanRun := h.scanFromPath(w, r)
	if scanRun == nil {
		return
	}

	var (
		deps []database.Dependency
		err  error
	)
	if license := r.URL.Query().Get("license"); license != "" {
		deps, err = h.deps.ListByScanAndLicense(r.Context(), scanRun.ID, license)
	} else {
		deps, err = h.deps.ListByScan(r.Context(), scanRun.ID)
	}
	if err != nil {
		h.logger.Error("listing dependencies", "scan", scanRun.ID, "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not list dependencies")
		return
	}

	out := make([]dependencyJSON, 0, len(deps))
	for i := range deps {
		out = append(out, toDependencyJSON(&deps[i]))
	}
	h.jsonResponse(w, http.StatusOK, map[string]any{"dependencies": out})
}

func (h *Handler) handleScanReport(w http.ResponseWriter, r *http.Request) {
	scanRun := h.scanFromPath(w, r)
	if scanRun == nil {
		return
	}
	h.writeScanReport(w, r, scanRun)
}

// handleProjectReport serves the CSV report of the latest complete scan.
func (h *Handler) handleProjectReport(w http.ResponseWriter, r *http.Request) {
	project, err := h.projects.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		h.jsonError(w, http.StatusNotFound, "project not found")
		return
	}

	scanRun, err := h.scans.Latest(r.Context(), project.ID)
	if err != nil {
		h.jsonError(w, http.StatusNotFound, "project has no completed scans")
		return
	}
	h.writeScanReport(w, r, scanRun)
}

func (h *Handler) writeScanReport(w http.ResponseWriter, r *http.Request, scanRun *database.ScanRun) {
	if scanRun.Status != database.ScanStatusComplete {
		h.jsonError(w, http.StatusConflict, "scan is not complete")
		return
	}

	project, err := h.projects.GetByID(r.Context(), scanRun.ProjectID)
	if err != nil {
		h.jsonError(w, http.StatusNotFound, "project not found")
		return
	}

	deps, err := h.deps.ListByScan(r.Context(), scanRun.ID)
	if err != nil {
		h.logger.Error("listing dependencies", "scan", scanRun.ID, "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not build report")
		return
	}

	filename := fmt.Sprintf("%s-dependencies-%d.csv", project.Slug, scanRun.ID)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := report.WriteCSV(w, deps); err != nil {
		h.logger.Error("writing csv report", "scan", scanRun.ID, "error", err)
	}
}

func (h *Handler) handleDownloadBundle(w http.ResponseWriter, r *http.Request) {
	scanRun := h.scanFromPath(w, r)
	if scanRun == nil {
		return
	}

	project, err := h.projects.GetByID(r.Context(), scanRun.ProjectID)
	if err != nil {
		h.jsonError(w, http.StatusNotFound, "project not found")
		return
	}
	if !h.storage.ScanExists(project.Slug, scanRun.ID) {
		h.jsonError(w, http.StatusNotFound, "bundle not found")
		return
	}

	filename := fmt.Sprintf("%s-bundle-%d.zip", project.Slug, scanRun.ID)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := scan.WriteZipFromDir(w, h.storage.ScanPath(project.Slug, scanRun.ID)); err != nil {
		h.logger.Error("writing bundle zip", "scan", scanRun.ID, "error", err)
	}
}

func (h *Handler) handleDeleteScan(w http.ResponseWriter, r *http.Request) {
	scanRun := h.scanFromPath(w, r)
	if scanRun == nil {
		return
	}

	project, err := h.projects.GetByID(r.Context(), scanRun.ProjectID)
	if err != nil {
		h.jsonError(w, http.StatusNotFound, "project not found")
		return
	}

	if err := h.deps.DeleteByScan(r.Context(), scanRun.ID); err != nil {
		h.logger.Error("deleting scan dependencies", "scan", scanRun.ID, "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not delete scan")
		return
	}
	if err := h.scans.Delete(r.Context(), scanRun.ID); err != nil {
		h.logger.Error("deleting scan", "scan", scanRun.ID, "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not delete scan")
		return
	}

	if err := h.storage.DeleteScan(project.Slug, scanRun.ID); err != nil {
		h.logger.Error("deleting scan storage", "scan", scanRun.ID, "error", err)
	}
	if err := h.searchIndex.DeleteScan(project.ID, scanRun.ID); err != nil {
		h.logger.Error("removing scan from search index", "scan", scanRun.ID, "error", err)
	}

	h.logger.Info("scan deleted", "project", project.Slug, "scan", scanRun.ID)
	h.jsonResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}
