// Package audiotest provides a scripted decode engine and a recording sink
// for exercising audio.Session without a real codec.
package audiotest

import (
	"errors"

	"wmadec.click/internal/audio"
)

// ErrScripted is the default error returned by a failing scripted result
var ErrScripted = errors.New("scripted decode failure")

// Result is the scripted outcome of one DecodeSuperframe call
type Result struct {
	PCM    []byte // returned in an engine-owned buffer when Err is nil
	Err    error  // returned as-is when set
	Status int    // non-zero wraps into an audio.StatusError when PCM is nil
}

// OK returns a successful result carrying pcm
func OK(pcm []byte) Result {
	return Result{PCM: pcm}
}

// Fail returns a failing result with the given engine status
func Fail(status int) Result {
	return Result{Err: &audio.StatusError{Status: status, Err: ErrScripted}, Status: status}
}

// Engine is a scripted audio.Engine that counts every call
type Engine struct {
	EngineName string
	InitErr    error
	Results    []Result
	Default    Result // used once Results is exhausted

	InitCalls       int
	ReleaseCalls    int
	DecodeCalls     int
	BuffersIssued   int
	BuffersReleased int
	DoubleReleases  int

	// Snapshot of the context as seen by the last Init call
	Seen ContextSnapshot
}

// ContextSnapshot copies the fields the engine received at Init
type ContextSnapshot struct {
	Variant    audio.Variant
	SampleRate int
	Channels   int
	BitRate    int
	BlockAlign int
	ExtraData  []byte
}

// Name implements audio.Engine
func (e *Engine) Name() string {
	if e.EngineName == "" {
		return "scripted"
	}
	return e.EngineName
}

// Init implements audio.Engine
func (e *Engine) Init(dc *audio.DecodeContext) (audio.EngineState, error) {
	e.InitCalls++
	e.Seen = ContextSnapshot{
		Variant:    dc.Variant,
		SampleRate: dc.SampleRate,
		Channels:   dc.Channels,
		BitRate:    dc.BitRate,
		BlockAlign: dc.BlockAlign,
		ExtraData:  append([]byte(nil), dc.ExtraData()...),
	}
	if e.InitErr != nil {
		return nil, e.InitErr
	}
	return &state{engine: e}, nil
}

// Outstanding returns the number of issued buffers not yet released
func (e *Engine) Outstanding() int {
	return e.BuffersIssued - e.BuffersReleased
}

type state struct {
	engine *Engine
}

func (s *state) DecodeSuperframe(frame []byte) (audio.PCMBuffer, error) {
	e := s.engine
	result := e.Default
	if e.DecodeCalls < len(e.Results) {
		result = e.Results[e.DecodeCalls]
	}
	e.DecodeCalls++

	if result.Err != nil {
		return nil, result.Err
	}
	if result.PCM == nil {
		if result.Status != 0 {
			return nil, &audio.StatusError{Status: result.Status}
		}
		return nil, nil
	}

	e.BuffersIssued++
	data := append([]byte(nil), result.PCM...)
	return &buffer{engine: e, data: data}, nil
}

func (s *state) Release() error {
	s.engine.ReleaseCalls++
	return nil
}

type buffer struct {
	engine   *Engine
	data     []byte
	released bool
}

func (b *buffer) Bytes() []byte {
	return b.data
}

func (b *buffer) Release() {
	if b.released {
		b.engine.DoubleReleases++
		return
	}
	b.released = true
	b.engine.BuffersReleased++
	// Scribble over the data so a caller holding on to it is caught
	for i := range b.data {
		b.data[i] = 0xEE
	}
}

// Sink records every announcement and delivered frame
type Sink struct {
	FormatErr error
	FrameErr  error

	Formats []audio.OutputFormat
	Frames  [][]byte // nil entries are frames consumed without output

	current audio.OutputFormat
	active  bool
}

// NewSink creates an empty recording sink
func NewSink() *Sink {
	return &Sink{}
}

// SetOutputFormat implements audio.Sink
func (s *Sink) SetOutputFormat(format audio.OutputFormat) error {
	if s.FormatErr != nil {
		return s.FormatErr
	}
	s.Formats = append(s.Formats, format)
	s.current = format
	s.active = true
	return nil
}

// HasCurrentFormat implements audio.Sink
func (s *Sink) HasCurrentFormat() bool {
	return s.active
}

// FinishFrame implements audio.Sink
func (s *Sink) FinishFrame(pcm []byte) error {
	if s.FrameErr != nil {
		return s.FrameErr
	}
	s.Frames = append(s.Frames, pcm)
	return nil
}

// Deactivate simulates the downstream dropping its negotiated format
func (s *Sink) Deactivate() {
	s.active = false
}

// Current returns the active format
func (s *Sink) Current() audio.OutputFormat {
	return s.current
}

// Decoded returns the non-empty frames in delivery order
func (s *Sink) Decoded() [][]byte {
	var out [][]byte
	for _, f := range s.Frames {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}
