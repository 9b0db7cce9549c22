// Package api exposes HTTP handlers for the workwatch service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/workwatch/internal/auth"
	"example.com/workwatch/internal/domain"
	"example.com/workwatch/internal/observability"
	"example.com/workwatch/internal/persistence"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/snapshots", h.snapshots)
	mux.HandleFunc("/v1/snapshots/", h.snapshotByID)
	mux.HandleFunc("/v1/reports/work-patterns", h.workPatterns)
	mux.HandleFunc("/v1/reports/summary", h.usageSummary)
	mux.HandleFunc("/v1/reports/resources", h.resourceStats)
	mux.HandleFunc("/v1/reports/top-memory", h.topMemory)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) snapshots(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.recordSnapshot(w, r)
	case http.MethodGet:
		h.listSnapshots(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) snapshotByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/snapshots/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing snapshot id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getSnapshot(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) recordSnapshot(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeSnapshotsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope snapshots:write required")
		return
	}

	var req RecordSnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")

	record, replay, err := h.service.RecordSnapshot(r.Context(), domain.RecordSnapshotInput{
		TenantID:        claims.TenantID,
		UserID:          req.UserID,
		Application:     req.Application,
		WindowTitle:     req.WindowTitle,
		ObservedAt:      req.ObservedAt,
		DurationSeconds: req.DurationSeconds,
		IsActive:        req.IsActive,
		IsFocused:       req.IsFocused,
		MemoryMB:        req.MemoryMB,
		CPUPercent:      req.CPUPercent,
		Source:          req.Source,
		IdempotencyKey:  idempotencyKey,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp := RecordSnapshotResponse{
		SnapshotID: record.ID,
		Replay:     replay,
	}

	status := http.StatusAccepted
	if replay {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (h *Handler) getSnapshot(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireReadScope(w, r)
	if !ok {
		return
	}

	record, err := h.service.GetSnapshot(r.Context(), claims.TenantID, id)
	if err != nil {
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "snapshot not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toSnapshotView(*record))
}

func (h *Handler) listSnapshots(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireReadScope(w, r)
	if !ok {
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing user_id parameter")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	cursorToken := r.URL.Query().Get("cursor")
	cursor, err := persistence.DecodeCursor(cursorToken)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	records, next, err := h.service.ListSnapshots(r.Context(), claims.TenantID, userID, cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]SnapshotView, 0, len(records))
	for _, record := range records {
		items = append(items, toSnapshotView(record))
	}

	resp := ListSnapshotsResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) workPatterns(w http.ResponseWriter, r *http.Request) {
	claims, userID, window, ok := reportParams(w, r)
	if !ok {
		return
	}

	report, err := h.service.WorkPatterns(r.Context(), claims.TenantID, userID, window)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	observability.RecordReportComputed("work_patterns", report.DataSource)
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) usageSummary(w http.ResponseWriter, r *http.Request) {
	claims, userID, window, ok := reportParams(w, r)
	if !ok {
		return
	}

	report, err := h.service.UsageSummary(r.Context(), claims.TenantID, userID, window)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	observability.RecordReportComputed("summary", report.DataSource)
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) resourceStats(w http.ResponseWriter, r *http.Request) {
	claims, userID, window, ok := reportParams(w, r)
	if !ok {
		return
	}

	report, err := h.service.ResourceStats(r.Context(), claims.TenantID, userID, window)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	observability.RecordReportComputed("resources", report.DataSource)
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) topMemory(w http.ResponseWriter, r *http.Request) {
	claims, userID, window, ok := reportParams(w, r)
	if !ok {
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > 50 {
				parsed = 50
			}
			limit = parsed
		}
	}

	report, err := h.service.TopMemoryApplications(r.Context(), claims.TenantID, userID, window, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	observability.RecordReportComputed("top_memory", report.DataSource)
	writeJSON(w, http.StatusOK, report)
}

// reportParams performs the shared auth/validation for every report endpoint:
// GET only, read scope, required user_id, optional window_hours (default 24,
// 0 meaning all-time).
func reportParams(w http.ResponseWriter, r *http.Request) (*auth.Claims, string, time.Duration, bool) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return nil, "", 0, false
	}

	claims, ok := requireReadScope(w, r)
	if !ok {
		return nil, "", 0, false
	}

	userID := r.URL.Query().Get("user_id")
	if strings.TrimSpace(userID) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing user_id parameter")
		return nil, "", 0, false
	}

	windowHours := 24
	if raw := r.URL.Query().Get("window_hours"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			windowHours = parsed
		}
	}

	return claims, userID, time.Duration(windowHours) * time.Hour, true
}

func requireReadScope(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !claims.HasScope(auth.ScopeSnapshotsRead) && !claims.HasScope(auth.ScopeSnapshotsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope snapshots:read required")
		return nil, false
	}
	return claims, true
}

// RecordSnapshotRequest is the payload for POST /v1/snapshots.
type RecordSnapshotRequest struct {
	UserID          string    `json:"user_id"`
	Application     string    `json:"application"`
	WindowTitle     string    `json:"window_title"`
	ObservedAt      time.Time `json:"observed_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	IsActive        bool      `json:"is_active"`
	IsFocused       bool      `json:"is_focused"`
	MemoryMB        float64   `json:"memory_mb"`
	CPUPercent      float64   `json:"cpu_percent"`
	Source          string    `json:"source"`
}

// Validate ensures request correctness. Duration may be zero or absent; the
// store keeps the raw value and reports substitute the default interval.
func (r RecordSnapshotRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user_id is required")
	}
	if strings.TrimSpace(r.Application) == "" {
		return errors.New("application is required")
	}
	if r.ObservedAt.IsZero() {
		return errors.New("observed_at is required")
	}
	if r.DurationSeconds < 0 {
		return errors.New("duration_seconds must be >= 0")
	}
	if r.MemoryMB < 0 || r.CPUPercent < 0 {
		return errors.New("resource readings must be >= 0")
	}
	if strings.TrimSpace(r.Source) == "" {
		return errors.New("source is required")
	}
	return nil
}

// RecordSnapshotResponse describes the response body for ingest.
type RecordSnapshotResponse struct {
	SnapshotID string `json:"snapshot_id"`
	Replay     bool   `json:"idempotent_replay"`
}

// SnapshotView exposes full details about a snapshot.
type SnapshotView struct {
	SnapshotID      string    `json:"snapshot_id"`
	TenantID        string    `json:"tenant_id"`
	UserID          string    `json:"user_id"`
	Application     string    `json:"application"`
	WindowTitle     string    `json:"window_title,omitempty"`
	ObservedAt      time.Time `json:"observed_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	IsActive        bool      `json:"is_active"`
	IsFocused       bool      `json:"is_focused"`
	MemoryMB        float64   `json:"memory_mb"`
	CPUPercent      float64   `json:"cpu_percent"`
	Source          string    `json:"source"`
	CreatedAt       time.Time `json:"created_at"`
}

// ListSnapshotsResponse packages list results.
type ListSnapshotsResponse struct {
	Items      []SnapshotView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toSnapshotView(record domain.ActivityRecord) SnapshotView {
	return SnapshotView{
		SnapshotID:      record.ID,
		TenantID:        record.TenantID,
		UserID:          record.UserID,
		Application:     record.Application,
		WindowTitle:     record.WindowTitle,
		ObservedAt:      record.ObservedAt,
		DurationSeconds: record.DurationSeconds,
		IsActive:        record.IsActive,
		IsFocused:       record.IsFocused,
		MemoryMB:        record.MemoryMB,
		CPUPercent:      record.CPUPercent,
		Source:          record.Source,
		CreatedAt:       record.CreatedAt,
	}
}
