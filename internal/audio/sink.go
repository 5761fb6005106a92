package audio

// Sink is the downstream consumer of decoded audio
type Sink interface {
	// SetOutputFormat announces the format of subsequent buffers
	SetOutputFormat(format OutputFormat) error

	// HasCurrentFormat reports whether a format is currently active downstream
	HasCurrentFormat() bool

	// FinishFrame delivers the output of one input frame. A nil buffer means
	// the frame was consumed without producing audio.
	FinishFrame(pcm []byte) error
}
