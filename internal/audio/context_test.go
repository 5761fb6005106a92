package audio

import (
	"errors"
	"testing"
)

type countingState struct {
	releases   int
	releaseErr error
}

func (s *countingState) DecodeSuperframe(frame []byte) (PCMBuffer, error) {
	return nil, nil
}

func (s *countingState) Release() error {
	s.releases++
	return s.releaseErr
}

func TestDecodeContextLifecycle(t *testing.T) {
	dc := NewDecodeContext()

	if dc.Initialized() {
		t.Error("new context should not have engine state")
	}
	if dc.Variant != VariantUnknown || dc.SampleRate != 0 || dc.Channels != 0 || dc.BitRate != 0 || dc.BlockAlign != 0 {
		t.Errorf("new context should be zeroed, got %+v", dc)
	}
	if len(dc.ExtraData()) != 0 {
		t.Error("new context should have no extradata")
	}

	state := &countingState{}
	dc.state = state
	dc.setExtraData([]byte{1, 2, 3})

	if err := dc.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if state.releases != 1 {
		t.Errorf("expected engine state released once, got %d", state.releases)
	}
	if dc.ExtraData() != nil {
		t.Error("extradata should be dropped on close")
	}
	if !dc.IsClosed() {
		t.Error("context should report closed")
	}

	// Test double close (should not error or release again)
	if err := dc.Close(); err != nil {
		t.Errorf("double close should not error: %v", err)
	}
	if state.releases != 1 {
		t.Errorf("double close released engine state again: %d", state.releases)
	}
}

func TestDecodeContextCloseWithoutNegotiation(t *testing.T) {
	dc := NewDecodeContext()
	dc.setExtraData([]byte{0xAA})

	if err := dc.Close(); err != nil {
		t.Fatalf("close of never-negotiated context failed: %v", err)
	}
	if dc.ExtraData() != nil {
		t.Error("extradata should be dropped even without engine state")
	}
}

func TestDecodeContextReleaseError(t *testing.T) {
	releaseErr := errors.New("engine busy")
	state := &countingState{releaseErr: releaseErr}
	dc := NewDecodeContext()
	dc.state = state

	err := dc.Close()
	if !errors.Is(err, releaseErr) {
		t.Fatalf("expected release error, got %v", err)
	}
	if dc.Initialized() {
		t.Error("engine state must be dropped even when release fails")
	}
	if err := dc.Close(); err != nil {
		t.Errorf("second close should be a no-op: %v", err)
	}
}

func TestDecodeContextExtraDataIsOwned(t *testing.T) {
	src := []byte{9, 8, 7, 6}
	dc := NewDecodeContext()
	dc.setExtraData(src)

	src[0] = 0
	got := dc.ExtraData()
	if len(got) != 4 || cap(got) != 4 {
		t.Errorf("extradata should be sized exactly to input, len=%d cap=%d", len(got), cap(got))
	}
	if got[0] != 9 {
		t.Error("extradata must be a private copy")
	}

	dc.setExtraData(nil)
	if dc.ExtraData() != nil {
		t.Error("empty input should store no extradata")
	}
}

func TestVariantForVersion(t *testing.T) {
	tests := map[int]Variant{1: VariantA, 2: VariantB, 0: VariantA, 7: VariantA}
	for version, want := range tests {
		if got := VariantForVersion(version); got != want {
			t.Errorf("version %d: expected %s, got %s", version, want, got)
		}
	}
}
