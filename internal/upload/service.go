package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"uploadflow/internal/config"
	"uploadflow/internal/metrics"
)

// Service is the front door of the upload pipeline. It enforces ownership
// and validation policy and sequences the session store, the transfer
// coordinator and the progress tracker.
type Service struct {
	store         SessionStore
	transfers     TransferCoordinator
	tracker       *Tracker
	uploadConfig  *config.UploadConfig
	publicBaseURL string
	logger        *slog.Logger
}

func NewService(store SessionStore, transfers TransferCoordinator, tracker *Tracker, uploadConfig *config.UploadConfig, publicBaseURL string, logger *slog.Logger) *Service {
	return &Service{
		store:         store,
		transfers:     transfers,
		tracker:       tracker,
		uploadConfig:  uploadConfig,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger,
	}
}

var safeExt = regexp.MustCompile(`^\.[a-zA-Z0-9]{1,8}$`)
var safeCategory = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// Initialize validates the declared metadata against policy, persists a new
// pending session and opens the multipart transfer. The object key carries a
// random component and is never derived from the declared file name beyond
// its extension.
func (s *Service) Initialize(ctx context.Context, ownerID, fileName string, fileSize int64, mimeType, category string) (*Session, error) {
	policy := s.uploadConfig.PolicyForMime(mimeType)
	if policy == nil || !policy.MimeAllowed(mimeType) {
		return nil, errUnsupportedType(mimeType)
	}
	if fileSize <= 0 {
		return nil, errInvalidArgument("file_size must be greater than 0")
	}
	if fileSize > policy.SizeMaxBytes {
		return nil, errFileTooLarge(fileSize, policy.SizeMaxBytes)
	}
	if !safeCategory.MatchString(category) {
		return nil, errInvalidArgument(fmt.Sprintf("invalid category: %q", category))
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if !safeExt.MatchString(ext) {
		ext = ""
	}
	session := &Session{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		FileName:  fileName,
		FileSize:  fileSize,
		MimeType:  mimeType,
		ObjectKey: fmt.Sprintf("%s/%s%s", category, uuid.NewString(), ext),
		Status:    StatusPending,
	}
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	if err := s.store.Create(ctx, session); err != nil {
		return nil, err
	}

	transferID, err := s.transfers.Open(ctx, session.ObjectKey, mimeType)
	if err != nil {
		s.logger.Error("failed to open multipart transfer",
			"session_id", session.ID, "object_key", session.ObjectKey, "error", err)
		if _, markErr := s.store.MarkFailed(ctx, session.ID, err.Error()); markErr != nil {
			s.logger.Error("failed to mark session failed", "session_id", session.ID, "error", markErr)
		}
		metrics.UploadsFailed.Inc()
		return nil, errRemoteTransfer(err)
	}
	if err := s.store.SetTransferID(ctx, session.ID, transferID); err != nil {
		return nil, err
	}
	session.TransferID = transferID

	s.tracker.Start(session)
	metrics.UploadsStarted.Inc()
	s.logger.Info("upload session initialized",
		"session_id", session.ID, "owner_id", ownerID,
		"object_key", session.ObjectKey, "file_size", fileSize)
	return session, nil
}

// IngestChunk uploads one chunk as a multipart part. Chunks may arrive in
// any order and concurrently; progress is monotonic either way. A remote
// failure leaves the session untouched so the client can retry the index.
func (s *Service) IngestChunk(ctx context.Context, sessionID, ownerID string, chunkIndex, totalChunks int, body io.Reader, size int64) (*ChunkResult, error) {
	session, err := s.authorize(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, errInvalidState(fmt.Sprintf("session already %s", session.Status))
	}
	if session.TransferID == "" {
		return nil, errInvalidState("session has no open transfer")
	}
	if totalChunks <= 0 {
		return nil, errInvalidArgument("total_chunks must be greater than 0")
	}
	if chunkIndex < 0 || chunkIndex >= totalChunks {
		return nil, errInvalidArgument(fmt.Sprintf("chunk_index %d out of range [0,%d)", chunkIndex, totalChunks))
	}
	if policy := s.uploadConfig.PolicyForMime(session.MimeType); policy != nil && policy.PartSizeMB > 0 {
		if limit := policy.PartSizeMB << 20; size > limit {
			return nil, errInvalidArgument(fmt.Sprintf("chunk size %d exceeds part size limit %d", size, limit))
		}
	}

	// Remote part numbers are 1-based.
	partNumber := int32(chunkIndex + 1)
	etag, err := s.transfers.UploadPart(ctx, session.ObjectKey, session.TransferID, partNumber, body, size)
	if err != nil {
		s.logger.Warn("part upload failed",
			"session_id", sessionID, "part_number", partNumber, "error", err)
		return nil, errRemoteTransfer(err)
	}
	if etag == "" {
		// The transfer was aborted while this part was in flight; the store
		// discarded the bytes and there is nothing to record.
		return &ChunkResult{Progress: session.Progress, PartNumber: partNumber}, nil
	}

	progress := int(math.Round(100 * float64(chunkIndex+1) / float64(totalChunks)))
	if progress == 100 && chunkIndex+1 < totalChunks {
		// Rounding reaches 100 one chunk early past 200 chunks; hold at 99
		// so 100 always means the final chunk landed.
		progress = 99
	}
	status := StatusUploading
	if chunkIndex+1 == totalChunks {
		status = StatusChunking
	}
	updated, err := s.store.AdvanceProgress(ctx, sessionID, progress, status)
	if err != nil {
		return nil, err
	}

	s.tracker.Chunk(updated, chunkIndex, totalChunks, size)
	metrics.ChunksIngested.Inc()
	metrics.ChunkBytes.Add(float64(size))
	return &ChunkResult{Progress: updated.Progress, PartNumber: partNumber, ETag: etag}, nil
}

// Complete commits the multipart transfer with the caller-supplied ordered
// part list and records the final URL. The part list is validated before any
// remote call because the store's own out-of-order error is ambiguous.
func (s *Service) Complete(ctx context.Context, sessionID, ownerID string, parts []Part) (string, error) {
	session, err := s.authorize(ctx, sessionID, ownerID)
	if err != nil {
		return "", err
	}
	if session.Status.Terminal() {
		return "", errInvalidState(fmt.Sprintf("session already %s", session.Status))
	}
	if session.TransferID == "" {
		return "", errInvalidState("session has no open transfer")
	}
	if err := validateParts(parts); err != nil {
		return "", err
	}

	if err := s.transfers.Commit(ctx, session.ObjectKey, session.TransferID, parts); err != nil {
		s.logger.Error("multipart commit failed", "session_id", sessionID, "error", err)
		if _, markErr := s.store.MarkFailed(ctx, sessionID, err.Error()); markErr != nil {
			s.logger.Error("failed to mark session failed", "session_id", sessionID, "error", markErr)
		}
		s.tracker.Fail(session, err.Error())
		metrics.UploadsFailed.Inc()
		return "", errRemoteTransfer(err)
	}

	finalURL := s.publicBaseURL + "/" + session.ObjectKey
	updated, err := s.store.MarkCompleted(ctx, sessionID, finalURL)
	if err != nil {
		return "", err
	}

	s.tracker.Finish(updated)
	metrics.UploadsCompleted.Inc()
	s.logger.Info("upload completed", "session_id", sessionID, "final_url", finalURL)
	return finalURL, nil
}

// Abort cancels the session. It is idempotent: aborting an already-failed
// session succeeds without touching the remote store, and a remote abort
// failure is logged but does not fail the user-facing call once the session
// is marked failed locally.
func (s *Service) Abort(ctx context.Context, sessionID, ownerID string) error {
	session, err := s.authorize(ctx, sessionID, ownerID)
	if err != nil {
		return err
	}
	if session.Status.Terminal() {
		return nil
	}

	if session.TransferID != "" {
		if err := s.transfers.Abort(ctx, session.ObjectKey, session.TransferID); err != nil {
			s.logger.Error("remote abort failed",
				"session_id", sessionID, "transfer_id", session.TransferID, "error", err)
		}
	}

	const reason = "aborted by user"
	updated, err := s.store.MarkFailed(ctx, sessionID, reason)
	if err != nil {
		return err
	}
	if updated.Status != StatusFailed {
		// A concurrent complete committed between our Get and the failed
		// write; the object exists and there is nothing left to abort.
		return nil
	}
	s.tracker.Fail(updated, reason)
	metrics.UploadsFailed.Inc()
	s.logger.Info("upload aborted", "session_id", sessionID)
	return nil
}

// Get returns the persisted session for status polling.
func (s *Service) Get(ctx context.Context, sessionID, ownerID string) (*Session, error) {
	return s.authorize(ctx, sessionID, ownerID)
}

func (s *Service) authorize(ctx context.Context, sessionID, ownerID string) (*Session, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.OwnerID != ownerID {
		return nil, errForbidden()
	}
	return session, nil
}

func validateParts(parts []Part) error {
	if len(parts) == 0 {
		return errInvalidArgument("parts is required and cannot be empty")
	}
	for i, part := range parts {
		if part.PartNumber < 1 {
			return errInvalidArgument(fmt.Sprintf("part_number must be >= 1, got %d", part.PartNumber))
		}
		if part.ETag == "" {
			return errInvalidArgument(fmt.Sprintf("missing etag for part %d", part.PartNumber))
		}
		if i > 0 && part.PartNumber <= parts[i-1].PartNumber {
			return errInvalidArgument("parts must be strictly ascending by part_number")
		}
	}
	return nil
}
