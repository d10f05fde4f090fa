package upload

import (
	"sync"
	"time"
)

// Tracker keeps a volatile in-memory view of active uploads and turns chunk
// arrivals into throughput/ETA events on the owner's channel. The persisted
// session remains the source of truth for status; entries here disappear on
// complete or abort.
type Tracker struct {
	mu        sync.Mutex
	active    map[string]*trackerEntry
	publisher Publisher
	now       func() time.Time
}

type trackerEntry struct {
	ownerID     string
	fileName    string
	totalBytes  int64
	totalChunks int
	chunksSeen  map[int]struct{}
	bytesSeen   int64
	startedAt   time.Time
}

func NewTracker(publisher Publisher) *Tracker {
	return &Tracker{
		active:    make(map[string]*trackerEntry),
		publisher: publisher,
		now:       time.Now,
	}
}

// Start registers a session and emits the initialized (0%) event.
func (t *Tracker) Start(session *Session) {
	t.mu.Lock()
	t.active[session.ID] = &trackerEntry{
		ownerID:    session.OwnerID,
		fileName:   session.FileName,
		totalBytes: session.FileSize,
		chunksSeen: make(map[int]struct{}),
		startedAt:  t.now(),
	}
	t.mu.Unlock()

	t.publisher.Publish(session.OwnerID, Event{
		SessionID:  session.ID,
		Status:     session.Status,
		Progress:   0,
		TotalBytes: session.FileSize,
		Timestamp:  t.now(),
	})
}

// Chunk records one uploaded chunk and publishes a progress event carrying
// cumulative bytes, instantaneous speed and ETA. A chunk index re-uploaded
// by a retrying client counts once.
func (t *Tracker) Chunk(session *Session, chunkIndex, totalChunks int, chunkBytes int64) {
	t.mu.Lock()
	entry, exists := t.active[session.ID]
	if !exists {
		// Process restart or another process owns the table; re-register so
		// the client keeps getting events.
		entry = &trackerEntry{
			ownerID:    session.OwnerID,
			fileName:   session.FileName,
			totalBytes: session.FileSize,
			chunksSeen: make(map[int]struct{}),
			startedAt:  t.now(),
		}
		t.active[session.ID] = entry
	}
	entry.totalChunks = totalChunks
	if _, seen := entry.chunksSeen[chunkIndex]; !seen {
		entry.chunksSeen[chunkIndex] = struct{}{}
		entry.bytesSeen += chunkBytes
	}

	elapsed := t.now().Sub(entry.startedAt).Seconds()
	var speedKBps float64
	var etaSeconds int64
	if elapsed > 0 && entry.bytesSeen > 0 {
		bytesPerSecond := float64(entry.bytesSeen) / elapsed
		speedKBps = bytesPerSecond / 1024
		if remaining := entry.totalBytes - entry.bytesSeen; remaining > 0 {
			etaSeconds = int64(float64(remaining) / bytesPerSecond)
		}
	}
	event := Event{
		SessionID:     session.ID,
		Status:        session.Status,
		Progress:      session.Progress,
		UploadedBytes: entry.bytesSeen,
		TotalBytes:    entry.totalBytes,
		SpeedKBps:     speedKBps,
		ETASeconds:    etaSeconds,
		Timestamp:     t.now(),
	}
	ownerID := entry.ownerID
	t.mu.Unlock()

	t.publisher.Publish(ownerID, event)
}

// Finish publishes the completion event and drops the tracking entry.
func (t *Tracker) Finish(session *Session) {
	t.mu.Lock()
	entry := t.active[session.ID]
	delete(t.active, session.ID)
	t.mu.Unlock()

	event := Event{
		SessionID:  session.ID,
		Status:     StatusCompleted,
		Progress:   100,
		TotalBytes: session.FileSize,
		FinalURL:   session.FinalURL,
		Timestamp:  t.now(),
	}
	if entry != nil {
		event.UploadedBytes = entry.bytesSeen
		event.ElapsedSeconds = t.now().Sub(entry.startedAt).Seconds()
	}
	t.publisher.Publish(session.OwnerID, event)
}

// Fail publishes an error event and drops the tracking entry.
func (t *Tracker) Fail(session *Session, reason string) {
	t.mu.Lock()
	delete(t.active, session.ID)
	t.mu.Unlock()

	t.publisher.Publish(session.OwnerID, Event{
		SessionID: session.ID,
		Status:    StatusFailed,
		Progress:  session.Progress,
		Error:     reason,
		Timestamp: t.now(),
	})
}

// ActiveCount reports how many sessions are currently tracked.
func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}
