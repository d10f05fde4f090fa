package upload

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusChunking  Status = "chunking"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// rank orders non-terminal statuses so a late-arriving earlier chunk can
// never move a session backwards (chunking must not regress to uploading).
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusUploading:
		return 1
	case StatusChunking:
		return 2
	case StatusCompleted:
		return 3
	default: // failed
		return 4
	}
}

// Session is the durable record of one upload attempt.
type Session struct {
	ID           string    `json:"session_id"`
	OwnerID      string    `json:"owner_id"`
	FileName     string    `json:"file_name"`
	FileSize     int64     `json:"file_size"`
	MimeType     string    `json:"mime_type"`
	ObjectKey    string    `json:"object_key"`
	TransferID   string    `json:"transfer_id,omitempty"`
	Status       Status    `json:"status"`
	Progress     int       `json:"progress_percent"`
	FinalURL     string    `json:"final_url,omitempty"`
	ErrorMessage string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Part is one completed part of a multipart transfer. The client is the
// source of truth for the full ordered list handed back on complete.
type Part struct {
	PartNumber int32  `json:"part_number"`
	ETag       string `json:"etag"`
}

// Event is published to the owning user's channel on every lifecycle change.
type Event struct {
	SessionID      string    `json:"session_id"`
	Status         Status    `json:"status"`
	Progress       int       `json:"progress_percent"`
	UploadedBytes  int64     `json:"uploaded_bytes"`
	TotalBytes     int64     `json:"total_bytes"`
	SpeedKBps      float64   `json:"speed_kbps"`
	ETASeconds     int64     `json:"eta_seconds"`
	ElapsedSeconds float64   `json:"elapsed_seconds,omitempty"`
	FinalURL       string    `json:"final_url,omitempty"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// InitializeRequest is the body of POST /v1/uploads.
type InitializeRequest struct {
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
	Category string `json:"category"`
}

type InitializeResponse struct {
	SessionID  string `json:"session_id"`
	TransferID string `json:"transfer_id"`
	ObjectKey  string `json:"object_key"`
}

// ChunkResult is returned to the caller after a part upload; the caller must
// retain the ETag for the eventual complete call.
type ChunkResult struct {
	Progress   int    `json:"progress_percent"`
	PartNumber int32  `json:"part_number"`
	ETag       string `json:"etag"`
}

type CompleteRequest struct {
	Parts []Part `json:"parts"`
}

type CompleteResponse struct {
	FinalURL string `json:"final_url"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}
