package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// writeSSEEvent writes one unnamed SSE "data:" frame and flushes it
// immediately, mirroring teacher ui/transports/sse/sse.go's
// sendEvent — narrowed to the single {text,status} event shape this
// contract uses instead of a named-event catalog.
func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, event sseEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
