package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"

	"uploadflow/internal/auth"
)

// SSEHandler streams the authenticated user's upload events as
// server-sent events. Delivery is best-effort; missed events are not
// replayed.
func SSEHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if userID == "" {
			http.Error(w, "missing identity", http.StatusUnauthorized)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		events, cancel := hub.Subscribe(userID)
		defer cancel()

		for {
			select {
			case <-r.Context().Done():
				return
			case event := <-events:
				data, err := json.Marshal(event)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", data)
				flusher.Flush()
			}
		}
	}
}
