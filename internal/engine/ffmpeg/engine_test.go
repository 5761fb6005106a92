package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wmadec.click/internal/audio"
)

func TestEngineSatisfiesInterface(t *testing.T) {
	var e audio.Engine = New()
	assert.Equal(t, Name, e.Name())
}

func TestEngineRegistersByName(t *testing.T) {
	registry := audio.NewEngineRegistry()
	registry.Register(New())

	got, err := registry.Lookup("ffmpeg")
	require.NoError(t, err)
	assert.Equal(t, Name, got.Name())
}

func TestBufferPoolTracksOutstanding(t *testing.T) {
	pool := newBufferPool()

	first := pool.get()
	first.append([]byte{1, 2, 3, 4})
	second := pool.get()
	assert.Equal(t, int64(2), pool.Outstanding())

	assert.Equal(t, []byte{1, 2, 3, 4}, first.Bytes())
	assert.Empty(t, second.Bytes())

	first.Release()
	first.Release()
	assert.Equal(t, int64(1), pool.Outstanding(), "double release must not be counted twice")

	second.Release()
	assert.Equal(t, int64(0), pool.Outstanding())
}

func TestBufferPoolReuseStartsEmpty(t *testing.T) {
	pool := newBufferPool()

	b := pool.get()
	b.append(make([]byte, 100))
	b.Release()

	again := pool.get()
	defer again.Release()
	assert.Len(t, again.Bytes(), 0)
}
