package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/paolo-abarca/holbertonschool-files-manager/internal/api/middleware"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/domain/model"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/service"
)

// FilesHandler — операции над иерархией файлов и их содержимым.
type FilesHandler struct {
	files       *service.FileService
	maxBodySize int64
	logger      *slog.Logger
}

// NewFilesHandler создаёт обработчик файлов.
func NewFilesHandler(files *service.FileService, maxBodySize int64, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{files: files, maxBodySize: maxBodySize, logger: logger}
}

// createFileRequest — тело POST /files.
type createFileRequest struct {
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	IsPublic bool            `json:"isPublic"`
	ParentID model.ParentRef `json:"parentId"`
	Data     string          `json:"data"`
}

func (req *createFileRequest) reset() { *req = createFileRequest{} }

// Create обрабатывает POST /files → 201 с представлением узла.
func (h *FilesHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req createFileRequest
	if err := decodeBody(r, &req); err != nil {
		writeDecodeError(w)
		return
	}

	node, err := h.files.Create(r.Context(), service.CreateParams{
		OwnerID:  middleware.UserIDFromContext(r.Context()),
		Name:     req.Name,
		Type:     req.Type,
		IsPublic: req.IsPublic,
		ParentID: req.ParentID,
		Data:     req.Data,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, node.View())
}

// Get обрабатывает GET /files/{id}.
func (h *FilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	node, err := h.files.Get(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, node.View())
}

// List обрабатывает GET /files?parentId=&page=.
// Некорректный page трактуется как первая страница.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var parentID string
	if err := runtime.BindQueryParameter("form", true, false, "parentId", query, &parentID); err != nil {
		parentID = ""
	}
	var page int
	if err := runtime.BindQueryParameter("form", true, false, "page", query, &page); err != nil {
		page = 0
	}

	nodes, err := h.files.List(r.Context(),
		middleware.UserIDFromContext(r.Context()),
		model.ParseParentRef(parentID),
		page,
	)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Views(nodes))
}

// Publish обрабатывает PUT /files/{id}/publish.
func (h *FilesHandler) Publish(w http.ResponseWriter, r *http.Request) {
	h.setVisibility(w, r, true)
}

// Unpublish обрабатывает PUT /files/{id}/unpublish.
func (h *FilesHandler) Unpublish(w http.ResponseWriter, r *http.Request) {
	h.setVisibility(w, r, false)
}

func (h *FilesHandler) setVisibility(w http.ResponseWriter, r *http.Request, isPublic bool) {
	node, err := h.files.SetVisibility(r.Context(),
		middleware.UserIDFromContext(r.Context()),
		chi.URLParam(r, "id"),
		isPublic,
	)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, node.View())
}

// Data обрабатывает GET /files/{id}/data?size=: отдаёт содержимое
// файла или его производной версии. Аутентификация необязательна.
func (h *FilesHandler) Data(w http.ResponseWriter, r *http.Request) {
	var size int
	if err := runtime.BindQueryParameter("form", true, false, "size", r.URL.Query(), &size); err != nil {
		writeServiceError(w, r, h.logger, service.ErrNotFound)
		return
	}

	content, err := h.files.ReadContent(r.Context(),
		middleware.UserIDFromContext(r.Context()),
		chi.URLParam(r, "id"),
		size,
	)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	defer content.Reader.Close()

	w.Header().Set("Content-Type", content.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(content.Size, 10))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, content.Reader); err != nil {
		h.logger.Warn("Ошибка передачи содержимого",
			slog.String("file_id", chi.URLParam(r, "id")),
			slog.String("error", err.Error()),
		)
	}
}
