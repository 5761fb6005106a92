//go:build !cgo

package ffmpeg

import (
	"errors"

	"wmadec.click/internal/audio"
)

var errCGORequired = errors.New(`the ffmpeg engine requires CGO and the libav development libraries.

To fix this issue:
1. Ensure CGO_ENABLED=1 (this is the default for native builds)
2. Install FFmpeg development packages:
   - Linux: sudo apt-get install libavcodec-dev libavformat-dev libswresample-dev
   - macOS: brew install ffmpeg
3. Then run: go install wmadec.click/cmd/wmadec`)

// Engine is unavailable without cgo
type Engine struct{}

func New() *Engine {
	return &Engine{}
}

func (e *Engine) Name() string {
	return Name
}

func (e *Engine) Init(dc *audio.DecodeContext) (audio.EngineState, error) {
	return nil, errCGORequired
}
