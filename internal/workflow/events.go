package workflow

import (
	"encoding/json"
	"io"
	"log"
	"time"
)

// EventLogger writes tracking events as JSON lines, one object per event,
// in the shape LMS log pipelines expect.
type EventLogger struct {
	l   *log.Logger
	now func() time.Time
}

func NewEventLogger(w io.Writer) *EventLogger {
	return &EventLogger{l: log.New(w, "", 0), now: time.Now}
}

// Emit logs one event. A nil logger is a disabled logger.
func (e *EventLogger) Emit(eventType, userToken string, data map[string]any) {
	if e == nil || e.l == nil {
		return
	}
	event := map[string]any{
		"event_type":   eventType,
		"event_source": "server",
		"username":     userToken,
		"time":         e.now().Format(time.RFC3339),
		"event":        data,
	}
	buf, err := json.Marshal(event)
	if err != nil {
		return
	}
	e.l.Print(string(buf))
}
