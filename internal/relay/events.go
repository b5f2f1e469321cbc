// Package relay drives the per-style completion loop for one request and
// multiplexes the results into a single ordered event sequence.
package relay

// EventType discriminates outbound stream events.
type EventType string

const (
	// EventStyleStart opens one style's section of the stream.
	EventStyleStart EventType = "style_start"

	// EventContent carries one upstream text fragment for the open style.
	EventContent EventType = "content"

	// EventStyleEnd closes a style that completed normally.
	EventStyleEnd EventType = "style_end"

	// EventError replaces EventStyleEnd for a failed style, or carries a
	// terminal generic failure when Style is empty.
	EventError EventType = "error"

	// EventComplete is the last event of a fully processed request.
	EventComplete EventType = "complete"
)

// Event is one unit of the outbound stream. Only the fields relevant to the
// event type are set.
type Event struct {
	Type    EventType `json:"type"`
	Style   string    `json:"style,omitempty"`
	Content string    `json:"content,omitempty"`
	Message string    `json:"message,omitempty"`
}
