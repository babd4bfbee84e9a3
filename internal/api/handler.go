// Package api exposes document submission over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/jogardn/saleco-docs/internal/document"
	"github.com/jogardn/saleco-docs/internal/store"
	"github.com/jogardn/saleco-docs/internal/submission"
	"github.com/jogardn/saleco-docs/pkg/models"
	"github.com/sirupsen/logrus"
)

const maxUploadSize = 32 << 20

type Submitter interface {
	Run(ctx context.Context, order models.OrderDocument, items []models.LineItem) (*submission.Submission, error)
}

type Previewer interface {
	Generate(ctx context.Context, order models.OrderDocument, items []models.LineItem) (*document.Result, error)
}

type DocumentReader interface {
	Get(ctx context.Context, documentID string) (*models.RenderedDocument, error)
}

type NCSubmitter interface {
	Submit(ctx context.Context, report models.NCReport) (*submission.NCResult, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type SubmitRequest struct {
	Order models.OrderDocument `json:"order"`
	Items []models.LineItem    `json:"items"`
}

type NCResponse struct {
	Success    bool              `json:"success"`
	DocumentID string            `json:"documentId"`
	ImageURLs  map[string]string `json:"imageUrls"`
	Warnings   []string          `json:"warnings,omitempty"`
}

type Handler struct {
	submitter Submitter
	previewer Previewer
	documents DocumentReader
	nc        NCSubmitter
	pinger    Pinger
	logger    *logrus.Logger
}

func NewHandler(submitter Submitter, previewer Previewer, nc NCSubmitter, logger *logrus.Logger) *Handler {
	return &Handler{
		submitter: submitter,
		previewer: previewer,
		nc:        nc,
		logger:    logger,
	}
}

// SetDocumentReader enables GET /documents/{id} for locally stored artifacts.
func (h *Handler) SetDocumentReader(documents DocumentReader) {
	h.documents = documents
}

func (h *Handler) SetPinger(pinger Pinger) {
	h.pinger = pinger
}

func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/requests", h.CreateRequest).Methods(http.MethodPost)
	router.HandleFunc("/documents/preview", h.PreviewDocument).Methods(http.MethodPost)
	router.HandleFunc("/documents/{id}", h.GetDocument).Methods(http.MethodGet)
	router.HandleFunc("/nc", h.SubmitNC).Methods(http.MethodPost)
}

func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSubmitRequest(w, r)
	if !ok {
		return
	}

	// The pipeline writes records remotely; a client disconnect must not
	// abandon it half way.
	s, err := h.submitter.Run(context.WithoutCancel(r.Context()), req.Order, req.Items)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create request")
		code := http.StatusInternalServerError
		if submission.IsFatal(err) {
			code = http.StatusBadGateway
		}
		h.respondWithError(w, code, "Failed to create request")
		return
	}

	resp := models.RequestResponse{
		Success:            true,
		Message:            "Request created",
		DocumentID:         s.DocumentID,
		RenderPending:      s.RenderPending,
		PersistencePending: s.PersistencePending,
	}
	if s.Artifact != nil {
		resp.ArtifactURL = s.Artifact.URL
		resp.Artifact = s.Artifact.Bytes
	}
	if s.Report != nil {
		resp.FailedFields = len(s.Report.Failures())
	}
	if s.Degraded() {
		resp.Message = "Request created, PDF will be available soon"
	}

	h.logger.WithFields(logrus.Fields{
		"document_id": s.DocumentID,
		"state":       s.State.String(),
	}).Info("Request handled")
	h.respondWithJSON(w, http.StatusCreated, resp)
}

func (h *Handler) PreviewDocument(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSubmitRequest(w, r)
	if !ok {
		return
	}
	if req.Order.CreatedAt.IsZero() {
		req.Order.CreatedAt = time.Now()
	}

	result, err := h.previewer.Generate(r.Context(), req.Order, req.Items)
	if err != nil {
		h.logger.WithError(err).Error("Failed to render preview")
		h.respondWithError(w, http.StatusBadGateway, "Failed to render document")
		return
	}

	w.Header().Set("X-Failed-Fields", strconv.Itoa(len(result.Report.Failures())))
	h.respondWithPDF(w, result.Document)
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["id"]
	if h.documents == nil {
		h.respondWithError(w, http.StatusNotFound, "Documents are not stored locally")
		return
	}

	doc, err := h.documents.Get(r.Context(), documentID)
	if errors.Is(err, store.ErrNotFound) {
		h.respondWithError(w, http.StatusNotFound, "Document not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("document_id", documentID).Error("Failed to load document")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to load document")
		return
	}
	h.respondWithPDF(w, doc)
}

// SubmitNC takes a multipart form: a "report" JSON part and optional "nc1"
// and "nc2" image files.
func (h *Handler) SubmitNC(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	var report models.NCReport
	if err := json.Unmarshal([]byte(r.FormValue("report")), &report); err != nil {
		h.logger.WithError(err).Error("Failed to decode NC report")
		h.respondWithError(w, http.StatusBadRequest, "Invalid report")
		return
	}
	if report.SerialNumber == "" {
		h.respondWithError(w, http.StatusBadRequest, "sn_number is required")
		return
	}

	var err error
	if report.Image1, err = formFile(r.MultipartForm, "nc1"); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if report.Image2, err = formFile(r.MultipartForm, "nc2"); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.nc.Submit(context.WithoutCancel(r.Context()), report)
	if err != nil {
		h.logger.WithError(err).WithField("sn_number", report.SerialNumber).Error("Failed to submit NC report")
		h.respondWithError(w, http.StatusBadGateway, "Failed to submit NC report")
		return
	}

	resp := NCResponse{
		Success:    true,
		DocumentID: result.DocumentID,
		ImageURLs:  result.ImageURLs,
	}
	for _, imageErr := range result.ImageErrors {
		resp.Warnings = append(resp.Warnings, imageErr.Error())
	}
	h.respondWithJSON(w, http.StatusCreated, resp)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			h.respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": "saleco-docs",
				"error":   err.Error(),
			})
			return
		}
	}
	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "saleco-docs",
	})
}

func (h *Handler) decodeSubmitRequest(w http.ResponseWriter, r *http.Request) (*SubmitRequest, bool) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WithError(err).Error("Failed to decode request")
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if len(req.Items) == 0 {
		h.respondWithError(w, http.StatusBadRequest, "Basket is empty")
		return nil, false
	}
	return &req, true
}

func formFile(form *multipart.Form, name string) ([]byte, error) {
	headers := form.File[name]
	if len(headers) == 0 {
		return nil, nil
	}
	file, err := headers[0].Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer file.Close()
	return io.ReadAll(file)
}

func (h *Handler) respondWithPDF(w http.ResponseWriter, doc *models.RenderedDocument) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.Filename))
	w.WriteHeader(http.StatusOK)
	w.Write(doc.Bytes)
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, models.RequestResponse{
		Success: false,
		Message: message,
	})
}
