package server

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/VaibhavMttl21/ItemManager/internal/app"
	"github.com/VaibhavMttl21/ItemManager/internal/ratelimit"
	"github.com/VaibhavMttl21/ItemManager/internal/util"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	CreateLimiter  *ratelimit.FixedWindowLimiter
	EnquiryLimiter *ratelimit.FixedWindowLimiter
	TrustedProxies *util.TrustedProxies
	MaxUploadBytes int64
}

// Server exposes HTTP endpoints for the item API.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	createLimiter  *ratelimit.FixedWindowLimiter
	enquiryLimiter *ratelimit.FixedWindowLimiter
	trustedProxies *util.TrustedProxies
	maxUploadBytes int64
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		// Whole submission: cover + 10 images at 5 MiB each, plus form overhead.
		maxUploadBytes = 11*app.DefaultMaxFileBytes + (1 << 20)
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		createLimiter:  cfg.CreateLimiter,
		enquiryLimiter: cfg.EnquiryLimiter,
		trustedProxies: cfg.TrustedProxies,
		maxUploadBytes: maxUploadBytes,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("items", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// items
	s.mux.HandleFunc("/api/items", s.handleItems)
	s.mux.HandleFunc("/api/items/", s.handleItemByID)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListItems(w, r)
	case http.MethodPost:
		s.handleCreateItem(w, r)
	default:
		methodNotAllowed(w)
	}
}

// /api/items/{id} or /api/items/{id}/enquire
func (s *Server) handleItemByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/items/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		notFound(w, "not found")
		return
	}
	if len(parts) == 2 && parts[1] == "enquire" {
		s.handleEnquire(w, r, id)
		return
	}
	if len(parts) == 2 {
		notFound(w, "not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	item, err := s.app.GetItem(r.Context(), id)
	if err != nil {
		writeItemError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.app.ListItems(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch items")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.createLimiter, "too many item submissions") {
		return
	}
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	in := app.CreateItemInput{
		Name:        r.FormValue("name"),
		Type:        r.FormValue("type"),
		Description: r.FormValue("description"),
	}

	var open []multipart.File
	defer func() {
		for _, f := range open {
			_ = f.Close()
		}
	}()

	if headers := r.MultipartForm.File["coverImage"]; len(headers) > 0 {
		file, err := headers[0].Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		open = append(open, file)
		in.Cover = &app.FileUpload{
			Name:        headers[0].Filename,
			ContentType: headers[0].Header.Get("Content-Type"),
			Size:        headers[0].Size,
			Reader:      file,
		}
	}
	for _, header := range r.MultipartForm.File["images"] {
		file, err := header.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		open = append(open, file)
		in.Images = append(in.Images, app.FileUpload{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Reader:      file,
		})
	}

	item, err := s.app.CreateItem(r.Context(), in)
	if err != nil {
		writeItemError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Item successfully added",
		"item":    item,
	})
}

func (s *Server) handleEnquire(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.enquiryLimiter, "too many enquiries") {
		return
	}
	if err := s.app.SendEnquiry(r.Context(), id); err != nil {
		writeItemError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Enquiry sent successfully"})
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	if limiter.Allow(util.ClientIP(r, s.trustedProxies)) {
		return true
	}
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

// writeItemError maps app-layer failures onto the HTTP surface.
func writeItemError(w http.ResponseWriter, err error) {
	switch {
	case app.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, app.ErrUploadFailed):
		writeError(w, http.StatusInternalServerError, "failed to add item")
	case errors.Is(err, app.ErrDeliveryFailed):
		writeError(w, http.StatusInternalServerError, "failed to send enquiry")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCodeForItem(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCodeForItem(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case message == "item not found":
		return "ITEM_NOT_FOUND"
	case message == "cover image is required":
		return "ITEM_COVER_REQUIRED"
	case message == "only image files are allowed":
		return "ITEM_UNSUPPORTED_FILE_TYPE"
	case message == "file too large":
		return "ITEM_FILE_TOO_LARGE"
	case message == "unknown item type":
		return "ITEM_INVALID_TYPE"
	case message == "invalid form data":
		return "ITEM_INVALID_UPLOAD_FORM"
	case message == "failed to add item":
		return "ITEM_UPLOAD_FAILED"
	case message == "failed to send enquiry":
		return "ENQUIRY_DELIVERY_FAILED"
	case message == "failed to fetch items":
		return "SYSTEM_INTERNAL_ERROR"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case message == "not found":
		return "SYSTEM_NOT_FOUND"
	case strings.HasPrefix(message, "too many"):
		return "REQUEST_RATE_LIMITED"
	}

	switch status {
	case http.StatusBadRequest:
		return "ITEM_INVALID_REQUEST"
	case http.StatusNotFound:
		return "ITEM_NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case http.StatusTooManyRequests:
		return "REQUEST_RATE_LIMITED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}
