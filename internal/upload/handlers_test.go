package upload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uploadflow/internal/auth"
)

func newTestRouter(service *Service) http.Handler {
	handler := NewHandler(service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			userID := req.Header.Get("X-User-ID")
			next.ServeHTTP(w, req.WithContext(auth.WithUserID(req.Context(), userID)))
		})
	})
	handler.Register(r)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestHandleInitialize(t *testing.T) {
	coord := &mockCoordinator{}
	service, _, _ := newTestService(coord)
	router := newTestRouter(service)

	t.Run("success", func(t *testing.T) {
		recorder := doJSON(t, router, http.MethodPost, "/v1/uploads", "user-1", InitializeRequest{
			FileName: "clip.mp4",
			FileSize: 1_000_000,
			MimeType: "video/mp4",
			Category: "content",
		})

		require.Equal(t, http.StatusCreated, recorder.Code)
		var resp InitializeResponse
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.SessionID)
		assert.Equal(t, "test-transfer-id", resp.TransferID)
		assert.True(t, strings.HasPrefix(resp.ObjectKey, "content/"))
	})

	t.Run("missing fields", func(t *testing.T) {
		recorder := doJSON(t, router, http.MethodPost, "/v1/uploads", "user-1", InitializeRequest{
			FileName: "clip.mp4",
		})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("file too large maps to 413", func(t *testing.T) {
		recorder := doJSON(t, router, http.MethodPost, "/v1/uploads", "user-1", InitializeRequest{
			FileName: "clip.mp4",
			FileSize: 6_000_000_000,
			MimeType: "video/mp4",
			Category: "content",
		})
		assert.Equal(t, http.StatusRequestEntityTooLarge, recorder.Code)

		var errResp ErrorResponse
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &errResp))
		assert.Equal(t, CodeFileTooLarge, errResp.Code)
	})

	t.Run("unsupported type maps to 400", func(t *testing.T) {
		recorder := doJSON(t, router, http.MethodPost, "/v1/uploads", "user-1", InitializeRequest{
			FileName: "notes.txt",
			FileSize: 1024,
			MimeType: "text/plain",
			Category: "content",
		})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)

		var errResp ErrorResponse
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &errResp))
		assert.Equal(t, CodeUnsupportedType, errResp.Code)
	})
}

func initializeViaAPI(t *testing.T, router http.Handler, userID string) InitializeResponse {
	t.Helper()
	recorder := doJSON(t, router, http.MethodPost, "/v1/uploads", userID, InitializeRequest{
		FileName: "clip.mp4",
		FileSize: 2048,
		MimeType: "video/mp4",
		Category: "content",
	})
	require.Equal(t, http.StatusCreated, recorder.Code)
	var resp InitializeResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	return resp
}

func chunkRequest(t *testing.T, sessionID, userID string, chunkIndex, totalChunks int, payload []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("chunk_index", fmt.Sprint(chunkIndex)))
	require.NoError(t, writer.WriteField("total_chunks", fmt.Sprint(totalChunks)))
	part, err := writer.CreateFormFile("chunk", "blob")
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/uploads/"+sessionID+"/chunks", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-User-ID", userID)
	return req
}

func TestHandleIngestChunk(t *testing.T) {
	coord := &mockCoordinator{}
	service, _, _ := newTestService(coord)
	router := newTestRouter(service)
	created := initializeViaAPI(t, router, "user-1")

	t.Run("success", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, chunkRequest(t, created.SessionID, "user-1", 0, 2, []byte("first half")))

		require.Equal(t, http.StatusOK, recorder.Code)
		var result ChunkResult
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
		assert.Equal(t, 50, result.Progress)
		assert.Equal(t, int32(1), result.PartNumber)
		assert.Equal(t, "etag-1", result.ETag)
	})

	t.Run("wrong owner maps to 403", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, chunkRequest(t, created.SessionID, "user-2", 0, 2, []byte("x")))
		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})

	t.Run("unknown session maps to 404", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, chunkRequest(t, "2b9e0a4c-0000-0000-0000-000000000000", "user-1", 0, 2, []byte("x")))
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})

	t.Run("non-numeric index maps to 400", func(t *testing.T) {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		require.NoError(t, writer.WriteField("chunk_index", "zero"))
		require.NoError(t, writer.WriteField("total_chunks", "2"))
		part, err := writer.CreateFormFile("chunk", "blob")
		require.NoError(t, err)
		_, _ = part.Write([]byte("x"))
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, "/v1/uploads/"+created.SessionID+"/chunks", &body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.Header.Set("X-User-ID", "user-1")
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestHandleComplete(t *testing.T) {
	coord := &mockCoordinator{}
	service, _, _ := newTestService(coord)
	router := newTestRouter(service)
	created := initializeViaAPI(t, router, "user-1")

	t.Run("out of order parts map to 400", func(t *testing.T) {
		recorder := doJSON(t, router, http.MethodPost, "/v1/uploads/"+created.SessionID+"/complete", "user-1",
			CompleteRequest{Parts: []Part{{PartNumber: 2, ETag: "b"}, {PartNumber: 1, ETag: "a"}}})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("success", func(t *testing.T) {
		recorder := doJSON(t, router, http.MethodPost, "/v1/uploads/"+created.SessionID+"/complete", "user-1",
			CompleteRequest{Parts: []Part{{PartNumber: 1, ETag: "etag-1"}}})

		require.Equal(t, http.StatusOK, recorder.Code)
		var resp CompleteResponse
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
		assert.Equal(t, "https://cdn.example.com/"+created.ObjectKey, resp.FinalURL)
	})

	t.Run("second complete maps to 409", func(t *testing.T) {
		recorder := doJSON(t, router, http.MethodPost, "/v1/uploads/"+created.SessionID+"/complete", "user-1",
			CompleteRequest{Parts: []Part{{PartNumber: 1, ETag: "etag-1"}}})
		assert.Equal(t, http.StatusConflict, recorder.Code)
	})
}

func TestHandleAbortAndGet(t *testing.T) {
	coord := &mockCoordinator{}
	service, _, _ := newTestService(coord)
	router := newTestRouter(service)
	created := initializeViaAPI(t, router, "user-1")

	recorder := doJSON(t, router, http.MethodDelete, "/v1/uploads/"+created.SessionID, "user-1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"ok":true}`, recorder.Body.String())

	recorder = doJSON(t, router, http.MethodGet, "/v1/uploads/"+created.SessionID, "user-1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	var session Session
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &session))
	assert.Equal(t, StatusFailed, session.Status)
	assert.Equal(t, "aborted by user", session.ErrorMessage)
}
