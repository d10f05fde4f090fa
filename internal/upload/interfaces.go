package upload

import (
	"context"
	"io"
)

// TransferCoordinator is the three-phase multipart protocol against the
// remote object store. Implementations must not reorder or deduplicate
// parts; that responsibility stays with the caller.
type TransferCoordinator interface {
	// Open starts a multipart transfer for key and returns the transfer id.
	Open(ctx context.Context, key, mimeType string) (string, error)
	// UploadPart uploads one part and returns its content tag. An upload
	// racing a completed abort returns an empty tag and no error.
	UploadPart(ctx context.Context, key, transferID string, partNumber int32, body io.Reader, size int64) (string, error)
	// Commit materializes the object from the ordered part list.
	Commit(ctx context.Context, key, transferID string, parts []Part) error
	// Abort discards all uploaded parts. Aborting an unknown transfer is
	// not an error.
	Abort(ctx context.Context, key, transferID string) error
}

// SessionStore persists upload sessions. Progress and status writes must be
// safe under concurrent chunk arrival for the same session.
type SessionStore interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	SetTransferID(ctx context.Context, id, transferID string) error
	// AdvanceProgress applies a monotonic progress/status update: progress
	// never decreases and status never moves backwards. Updates against a
	// terminal session are no-ops; the stored session is returned either way.
	AdvanceProgress(ctx context.Context, id string, progress int, status Status) (*Session, error)
	MarkCompleted(ctx context.Context, id, finalURL string) (*Session, error)
	MarkFailed(ctx context.Context, id, message string) (*Session, error)
}

// Publisher delivers events to every listener subscribed to a user's
// channel. Delivery is best-effort and must never block the uploader.
type Publisher interface {
	Publish(userID string, event Event)
}
