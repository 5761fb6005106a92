// Package ffmpeg decodes WMA superframes with libavcodec through go-astiav.
package ffmpeg

import (
	"errors"
	"sync"
	"sync/atomic"
)

// Name is the registry name of this engine
const Name = "ffmpeg"

var (
	ErrCodecNotFound      = errors.New("wma decoder not available in libavcodec")
	ErrUnsupportedVariant = errors.New("unsupported wma variant")
	ErrUnsupportedLayout  = errors.New("unsupported channel count")
)

// bufferPool recycles PCM output buffers between decode calls
type bufferPool struct {
	pool        sync.Pool
	outstanding atomic.Int64
}

func newBufferPool() *bufferPool {
	p := &bufferPool{}
	p.pool.New = func() any {
		return &pcmBuffer{data: make([]byte, 0, 8192)}
	}
	return p
}

func (p *bufferPool) get() *pcmBuffer {
	b := p.pool.Get().(*pcmBuffer)
	b.data = b.data[:0]
	b.owner = p
	b.released = false
	p.outstanding.Add(1)
	return b
}

// Outstanding reports buffers handed out and not yet released
func (p *bufferPool) Outstanding() int64 {
	return p.outstanding.Load()
}

// pcmBuffer is the engine-owned result of one decode call
type pcmBuffer struct {
	data     []byte
	owner    *bufferPool
	released bool
}

func (b *pcmBuffer) Bytes() []byte {
	return b.data
}

func (b *pcmBuffer) append(p []byte) {
	b.data = append(b.data, p...)
}

func (b *pcmBuffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.owner.outstanding.Add(-1)
	b.owner.pool.Put(b)
}
