package audio

// EventKind identifies what happened in a session
type EventKind int

const (
	EventStarted EventKind = iota
	EventNegotiated
	EventNegotiationFailed
	EventFormatAnnounced
	EventFrameDecoded
	EventFrameDropped
	EventEndOfStream
	EventStopped
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventNegotiated:
		return "negotiated"
	case EventNegotiationFailed:
		return "negotiation_failed"
	case EventFormatAnnounced:
		return "format_announced"
	case EventFrameDecoded:
		return "frame_decoded"
	case EventFrameDropped:
		return "frame_dropped"
	case EventEndOfStream:
		return "end_of_stream"
	case EventStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Event describes one state change of a session
type Event struct {
	Kind       EventKind
	SessionID  string
	FrameIndex int64        // index of the input frame, frame events only
	Bytes      int          // PCM bytes delivered, EventFrameDecoded only
	Format     OutputFormat // EventNegotiated and EventFormatAnnounced
	Variant    Variant      // EventNegotiated only
	Stats      Stats        // EventStopped only
	Err        error
}

// Observer receives session events synchronously on the calling goroutine
type Observer func(Event)

// Stats counts the work done by a session since it was created
type Stats struct {
	Negotiations  int
	Announcements int
	FramesIn      int64
	FramesDecoded int64
	FramesDropped int64
	BytesOut      int64
}
