package domain

// StreamEvent is one unit of incremental chat output.
// Exactly one of Chunk, Done or Error is set.
type StreamEvent struct {
	Chunk string `json:"chunk,omitempty"`
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`

	// Err keeps the typed error behind Error for in-process consumers
	Err error `json:"-"`
}

// ChunkEvent creates a chunk event
func ChunkEvent(chunk string) StreamEvent {
	return StreamEvent{Chunk: chunk}
}

// DoneEvent creates the completion event
func DoneEvent() StreamEvent {
	return StreamEvent{Done: true}
}

// ErrorEvent creates a terminal error event
func ErrorEvent(err error) StreamEvent {
	return StreamEvent{Error: err.Error(), Err: err}
}

// IsTerminal reports whether the event ends a stream
func (e StreamEvent) IsTerminal() bool {
	return e.Done || e.Err != nil || e.Error != ""
}
