package upload

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"uploadflow/internal/auth"
	"uploadflow/internal/response"
)

// maxChunkMemory caps how much of a chunk body is buffered in memory; the
// rest spills to a temp file.
const maxChunkMemory = 32 << 20

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/uploads", h.HandleInitialize)
	r.Get("/v1/uploads/{sessionID}", h.HandleGetSession)
	r.Post("/v1/uploads/{sessionID}/chunks", h.HandleIngestChunk)
	r.Post("/v1/uploads/{sessionID}/complete", h.HandleComplete)
	r.Delete("/v1/uploads/{sessionID}", h.HandleAbort)
}

// HandleInitialize handles POST /v1/uploads.
func (h *Handler) HandleInitialize(w http.ResponseWriter, r *http.Request) {
	var req InitializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, CodeInvalidArgument, "Invalid request body", "")
		return
	}
	if req.FileName == "" {
		response.Error(w, http.StatusBadRequest, CodeInvalidArgument, "file_name is required", "")
		return
	}
	if req.FileSize <= 0 {
		response.Error(w, http.StatusBadRequest, CodeInvalidArgument, "file_size must be greater than 0", "")
		return
	}
	if req.MimeType == "" {
		response.Error(w, http.StatusBadRequest, CodeInvalidArgument, "mime_type is required", "")
		return
	}
	if req.Category == "" {
		response.Error(w, http.StatusBadRequest, CodeInvalidArgument, "category is required", "")
		return
	}

	session, err := h.service.Initialize(r.Context(), auth.UserID(r.Context()),
		req.FileName, req.FileSize, req.MimeType, req.Category)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, InitializeResponse{
		SessionID:  session.ID,
		TransferID: session.TransferID,
		ObjectKey:  session.ObjectKey,
	})
}

// HandleIngestChunk handles POST /v1/uploads/{sessionID}/chunks. The chunk
// arrives as multipart/form-data: fields chunk_index and total_chunks plus a
// "chunk" file part.
func (h *Handler) HandleIngestChunk(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := r.ParseMultipartForm(maxChunkMemory); err != nil {
		response.Error(w, http.StatusBadRequest, CodeInvalidArgument, "Invalid multipart body", "")
		return
	}
	chunkIndex, err := strconv.Atoi(r.FormValue("chunk_index"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, CodeInvalidArgument, "chunk_index must be an integer", "")
		return
	}
	totalChunks, err := strconv.Atoi(r.FormValue("total_chunks"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, CodeInvalidArgument, "total_chunks must be an integer", "")
		return
	}
	file, header, err := r.FormFile("chunk")
	if err != nil {
		response.Error(w, http.StatusBadRequest, CodeInvalidArgument, "chunk file part is required", "")
		return
	}
	defer file.Close()

	result, err := h.service.IngestChunk(r.Context(), sessionID, auth.UserID(r.Context()),
		chunkIndex, totalChunks, file, header.Size)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, result)
}

// HandleComplete handles POST /v1/uploads/{sessionID}/complete.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, CodeInvalidArgument, "Invalid request body", "")
		return
	}

	finalURL, err := h.service.Complete(r.Context(), sessionID, auth.UserID(r.Context()), req.Parts)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, CompleteResponse{FinalURL: finalURL})
}

// HandleAbort handles DELETE /v1/uploads/{sessionID}.
func (h *Handler) HandleAbort(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.service.Abort(r.Context(), sessionID, auth.UserID(r.Context())); err != nil {
		h.writeError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleGetSession handles GET /v1/uploads/{sessionID} so a reconnecting
// client can resume where it left off.
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.service.Get(r.Context(), sessionID, auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, session)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var ue *Error
	if !errors.As(err, &ue) {
		h.logger.Error("unhandled error", "error", err)
		response.Error(w, http.StatusInternalServerError, "internal", "Internal server error", "")
		return
	}
	response.Error(w, httpStatus(ue.Code), ue.Code, ue.Message, ue.Hint)
}

func httpStatus(code string) int {
	switch code {
	case CodeUnsupportedType, CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeInvalidState:
		return http.StatusConflict
	case CodeRemoteTransfer:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
