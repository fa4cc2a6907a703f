package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ask/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ask/pkg/schema"
)

// multipartOverhead is allowed on top of the file size limit for the
// multipart framing and other form fields.
const multipartOverhead = 1 << 20

// Datasets manages uploaded data sources.
type Datasets interface {
	Save(ctx context.Context, filename string, r io.Reader) (*datasource.Handle, error)
	Get(id string) (*datasource.Handle, error)
	Close(id string) error
	List() []*datasource.Handle
}

// SchemaDescriber renders the schema description of a data source.
type SchemaDescriber interface {
	Describe(ctx context.Context, src datasource.SchemaExtractor) (string, error)
}

// --- Response Types ---

// DatasetResponse describes an uploaded dataset and its schema.
type DatasetResponse struct {
	Handle    string    `json:"handle"`
	Filename  string    `json:"filename"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Schema    string    `json:"schema"`
	Columns   []string  `json:"columns"`
}

// ListDatasetsResponse wraps array for frontend compatibility.
type ListDatasetsResponse struct {
	Datasets []DatasetResponse `json:"datasets"`
}

// UploadsHandler handles dataset uploads.
type UploadsHandler struct {
	datasets  Datasets
	describer SchemaDescriber
	maxBytes  int64
	logger    *zap.Logger
}

// NewUploadsHandler creates a new uploads handler. maxBytes bounds the size
// of an uploaded file; zero means unlimited.
func NewUploadsHandler(datasets Datasets, describer SchemaDescriber, maxBytes int64, logger *zap.Logger) *UploadsHandler {
	return &UploadsHandler{
		datasets:  datasets,
		describer: describer,
		maxBytes:  maxBytes,
		logger:    logger,
	}
}

// RegisterRoutes registers the uploads handler's routes on the given mux.
func (h *UploadsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/uploads", h.Upload)
	mux.HandleFunc("GET /api/uploads", h.List)
	mux.HandleFunc("GET /api/uploads/{handle}/schema", h.Schema)
	mux.HandleFunc("DELETE /api/uploads/{handle}", h.Delete)
}

// Upload handles POST /api/uploads with a multipart "file" field.
func (h *UploadsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, h.logger, http.StatusRequestEntityTooLarge, "upload_too_large", "The uploaded file is too large")
			return
		}
		writeError(w, h.logger, http.StatusBadRequest, "missing_file", "A multipart form with a \"file\" field is required")
		return
	}
	defer file.Close()

	handle, err := h.datasets.Save(r.Context(), header.Filename, file)
	if err != nil {
		h.writeSaveError(w, header.Filename, err)
		return
	}

	schemaText, err := handle.Schema(r.Context(), h.describer.Describe)
	if err != nil {
		h.logger.Warn("Uploaded dataset has no readable schema",
			zap.String("filename", header.Filename),
			zap.Error(err))
		if closeErr := h.datasets.Close(handle.ID); closeErr != nil {
			h.logger.Error("Failed to close rejected dataset", zap.String("handle", handle.ID), zap.Error(closeErr))
		}
		writeError(w, h.logger, http.StatusUnprocessableEntity, "unreadable_dataset",
			"The file was uploaded but its tables could not be read")
		return
	}

	h.logger.Info("Dataset uploaded",
		zap.String("handle", handle.ID),
		zap.String("filename", handle.Filename),
		zap.String("type", handle.Type))
	writeData(w, h.logger, http.StatusCreated, toDatasetResponse(handle, schemaText))
}

func (h *UploadsHandler) writeSaveError(w http.ResponseWriter, filename string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrUnsupportedFormat):
		writeError(w, h.logger, http.StatusUnsupportedMediaType, "unsupported_format",
			"Only SQLite databases (.db, .sqlite, .sqlite3) and CSV/TSV files are supported")
	case errors.Is(err, datasource.ErrUploadTooLarge):
		writeError(w, h.logger, http.StatusRequestEntityTooLarge, "upload_too_large", "The uploaded file is too large")
	case errors.Is(err, apperrors.ErrSchema):
		writeError(w, h.logger, http.StatusUnprocessableEntity, "unreadable_dataset", "The file could not be opened as a dataset")
	default:
		h.logger.Error("Failed to save upload", zap.String("filename", filename), zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "Failed to store the upload")
	}
}

// List handles GET /api/uploads
func (h *UploadsHandler) List(w http.ResponseWriter, r *http.Request) {
	handles := h.datasets.List()
	data := ListDatasetsResponse{Datasets: make([]DatasetResponse, 0, len(handles))}
	for _, handle := range handles {
		schemaText, err := handle.Schema(r.Context(), h.describer.Describe)
		if err != nil {
			h.logger.Warn("Failed to describe dataset", zap.String("handle", handle.ID), zap.Error(err))
		}
		data.Datasets = append(data.Datasets, toDatasetResponse(handle, schemaText))
	}
	writeData(w, h.logger, http.StatusOK, data)
}

// Schema handles GET /api/uploads/{handle}/schema
func (h *UploadsHandler) Schema(w http.ResponseWriter, r *http.Request) {
	handle, ok := lookupHandle(w, r, h.datasets, h.logger)
	if !ok {
		return
	}

	schemaText, err := handle.Schema(r.Context(), h.describer.Describe)
	if err != nil {
		h.logger.Error("Failed to describe dataset", zap.String("handle", handle.ID), zap.Error(err))
		writeError(w, h.logger, http.StatusUnprocessableEntity, "unreadable_dataset", "The dataset's tables could not be read")
		return
	}
	writeData(w, h.logger, http.StatusOK, toDatasetResponse(handle, schemaText))
}

// Delete handles DELETE /api/uploads/{handle}
func (h *UploadsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("handle")
	if err := h.datasets.Close(id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "not_found", "Dataset not found")
			return
		}
		h.logger.Error("Failed to close dataset", zap.String("handle", id), zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "Failed to remove the dataset")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// lookupHandle resolves the {handle} path value, writing a 404 if unknown.
func lookupHandle(w http.ResponseWriter, r *http.Request, datasets Datasets, logger *zap.Logger) (*datasource.Handle, bool) {
	handle, err := datasets.Get(r.PathValue("handle"))
	if err != nil {
		writeError(w, logger, http.StatusNotFound, "not_found", "Dataset not found")
		return nil, false
	}
	return handle, true
}

func toDatasetResponse(h *datasource.Handle, schemaText string) DatasetResponse {
	return DatasetResponse{
		Handle:    h.ID,
		Filename:  h.Filename,
		Type:      h.Type,
		CreatedAt: h.CreatedAt,
		Schema:    schemaText,
		Columns:   schema.Parse(schemaText).ColumnListing(),
	}
}
