package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"guidepost/api/internal/auth"
	"guidepost/api/internal/export"
	"guidepost/api/internal/logger"
	"guidepost/api/internal/store"
)

const maxUploadBytes = 10 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{"status": "error", "error": err.Error()}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	// Dev token mint — only active with GUIDEPOST_DEV_TOKENS.
	if r.Method == http.MethodPost && r.URL.Path == "/api/dev/token" {
		var body struct {
			UserID   string `json:"userId"`
			TenantID string `json:"tenantId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.UserID == "" {
			body.UserID = "dev"
		}
		if body.TenantID == "" {
			body.TenantID = "demo"
		}
		token, err := s.service.MintDevToken(body.UserID, body.TenantID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"token": token})
		return
	}

	// Public pages — no authentication, these are the QR landing URLs.
	if r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/p/") {
		rest := strings.TrimPrefix(r.URL.Path, "/api/p/")
		parts := splitPath(rest)
		switch {
		case len(parts) == 1:
			s.handlePublicPage(w, r, parts[0])
			return
		case len(parts) == 2 && parts[1] == "qr.png":
			s.handleQR(w, r, parts[0])
			return
		}
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		limit, ok := queryInt(w, r, "limit", 20)
		if !ok {
			return
		}
		offset, ok := queryInt(w, r, "offset", 0)
		if !ok {
			return
		}
		payload, err := s.service.Search(r.Context(), session, q, limit, offset)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/media" {
		s.handleMediaUpload(w, r, session)
		return
	}

	if strings.HasPrefix(r.URL.Path, "/api/billing/") {
		s.handleBilling(w, r, session)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/pages" {
		payload, err := s.service.ListPages(r.Context(), session)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/pages" {
		var body struct {
			Title string `json:"title"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		page, err := s.service.CreatePage(r.Context(), session, body.Title)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, page)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/pages/trash" {
		var body struct {
			IDs        []string `json:"ids"`
			WithSpokes bool     `json:"withSpokes"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.TrashPages(r.Context(), session, body.IDs, body.WithSpokes)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	if r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/api/pages/trash/") {
		parts := splitPath(strings.TrimPrefix(r.URL.Path, "/api/pages/trash/"))
		if len(parts) == 2 && parts[1] == "undo" {
			ids, err := s.service.UndoTrash(r.Context(), session, parts[0])
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"restored": ids})
			return
		}
	}

	if strings.HasPrefix(r.URL.Path, "/api/pages/") {
		s.handlePageRoutes(w, r, session)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handlePageRoutes(w http.ResponseWriter, r *http.Request, session Session) {
	parts := splitPath(strings.TrimPrefix(r.URL.Path, "/api/pages/"))
	if len(parts) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	pageID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		page, err := s.service.GetEditorPage(r.Context(), session, pageID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, page)

	case len(parts) == 1 && r.Method == http.MethodPut:
		var body SavePageInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		page, err := s.service.SavePage(r.Context(), session, pageID, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, page)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		withSpokes := r.URL.Query().Get("withSpokes") == "true"
		result, err := s.service.TrashPages(r.Context(), session, []string{pageID}, withSpokes)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case len(parts) == 2 && parts[1] == "publish" && r.Method == http.MethodPost:
		issues, err := s.service.PublishPage(r.Context(), session, pageID)
		if err != nil {
			status, code, message, _ := mapError(err)
			writeError(w, status, code, message, issues)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": store.StatusPublished, "issues": issues})

	case len(parts) == 2 && parts[1] == "unpublish" && r.Method == http.MethodPost:
		if err := s.service.UnpublishPage(r.Context(), session, pageID); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": store.StatusDraft})

	case len(parts) == 2 && parts[1] == "graph" && r.Method == http.MethodPut:
		var body GraphUpdateInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		page, err := s.service.UpdateGraph(r.Context(), session, pageID, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, page)

	case len(parts) == 4 && parts[1] == "graph" && parts[2] == "nodes" && r.Method == http.MethodDelete:
		page, err := s.service.DeleteGraphNode(r.Context(), session, pageID, parts[3])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, page)

	case len(parts) == 2 && parts[1] == "revisions" && r.Method == http.MethodGet:
		limit, ok := queryInt(w, r, "limit", 20)
		if !ok {
			return
		}
		history, err := s.service.Revisions(r.Context(), session, pageID, limit)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"revisions": history})

	case len(parts) == 4 && parts[1] == "revisions" && parts[3] == "restore" && r.Method == http.MethodPost:
		page, err := s.service.RestoreRevision(r.Context(), session, pageID, parts[2])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, page)

	case len(parts) == 3 && parts[1] == "export" && parts[2] == "pdf" && r.Method == http.MethodGet:
		s.handleExportPDF(w, r, session, pageID)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handlePublicPage(w http.ResponseWriter, r *http.Request, slug string) {
	payload, err := s.service.PublicPage(r.Context(), slug)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *HTTPServer) handleQR(w http.ResponseWriter, r *http.Request, slug string) {
	size, ok := queryInt(w, r, "size", 512)
	if !ok {
		return
	}
	publicURL := strings.TrimRight(s.service.cfg.PublicBaseURL, "/") + "/p/" + slug
	result, err := export.QRPNG(publicURL, size)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "QR_FAILED", "QR generation failed", nil)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleExportPDF(w http.ResponseWriter, r *http.Request, session Session, pageID string) {
	page, err := s.service.GetEditorPage(r.Context(), session, pageID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	html, err := export.RenderPageHTML(export.PageData{
		Title:       page.Title,
		ContentHTML: template.HTML(export.BlocksToHTML(page.Blocks)),
		Accent:      page.Theme.Accent,
		Background:  page.Theme.Background,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "EXPORT_FAILED", "Export rendering failed", nil)
		return
	}

	result, err := export.PDF(html, page.Title)
	if err != nil {
		if errors.Is(err, export.ErrPDFDependencyMissing) {
			writeError(w, http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export not available", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "EXPORT_FAILED", "PDF generation failed", nil)
		return
	}

	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleMediaUpload(w http.ResponseWriter, r *http.Request, session Session) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid multipart body", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "file field is required", nil)
		return
	}
	defer file.Close()

	url, err := s.service.UploadMedia(r.Context(), session, header.Filename, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"url": url})
}

func (s *HTTPServer) handleBilling(w http.ResponseWriter, r *http.Request, session Session) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/billing/status":
		account, err := s.service.BillingStatus(r.Context(), session)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"tier":         account.Tier,
			"publishLimit": account.PublishLimit,
			"syncedAt":     account.SyncedAt,
		})

	case r.Method == http.MethodPost && r.URL.Path == "/api/billing/checkout":
		var body struct {
			Tier string `json:"tier"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(body.Tier) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "tier is required", nil)
			return
		}
		url, err := s.service.BillingCheckout(r.Context(), session, body.Tier)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"checkoutUrl": url})

	case r.Method == http.MethodGet && r.URL.Path == "/api/billing/portal":
		url, err := s.service.BillingPortal(r.Context(), session)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"portalUrl": url})

	case r.Method == http.MethodPost && r.URL.Path == "/api/billing/sync":
		account, err := s.service.BillingSync(r.Context(), session)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"tier":         account.Tier,
			"publishLimit": account.PublishLimit,
			"syncedAt":     account.SyncedAt,
		})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		logger.Log.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(w http.ResponseWriter, r *http.Request, name string, fallback int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", name+" must be an integer", nil)
		return 0, false
	}
	return parsed, true
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, store.ErrConflict) {
		return http.StatusConflict, "CONFLICT", "Conflict", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
