package model

// StreamEventType tags a StreamEvent.
type StreamEventType int

const (
	// EventTextDelta carries visible text.
	EventTextDelta StreamEventType = iota
	// EventComponent carries one UI component directive as raw JSON.
	EventComponent
	// EventStructuredData carries the decoded <structured_data> payload as raw JSON.
	EventStructuredData
	// EventDone terminates the stream.
	EventDone
)

// String returns the SSE event name.
func (t StreamEventType) String() string {
	switch t {
	case EventTextDelta:
		return "text"
	case EventComponent:
		return "ui_component"
	case EventStructuredData:
		return "structured_data"
	case EventDone:
		return "done"
	}
	return "unknown"
}

// StreamEvent is one parsed event of a chat stream. For EventStructuredData
// Text holds the full answer with the <structured_data> span removed.
type StreamEvent struct {
	Type StreamEventType
	Text string
	JSON []byte
}

// TextDelta builds a text event.
func TextDelta(text string) StreamEvent { return StreamEvent{Type: EventTextDelta, Text: text} }

// ComponentEvent builds a UI component event.
func ComponentEvent(raw []byte) StreamEvent { return StreamEvent{Type: EventComponent, JSON: raw} }

// StructuredData builds a structured data event.
func StructuredData(raw []byte) StreamEvent { return StreamEvent{Type: EventStructuredData, JSON: raw} }

// Done builds the terminal event.
func Done() StreamEvent { return StreamEvent{Type: EventDone} }
