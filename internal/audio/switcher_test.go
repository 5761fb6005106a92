package audio

import (
	"errors"
	"testing"
)

type formatSink struct {
	formats []OutputFormat
	active  bool
	err     error
}

func (s *formatSink) SetOutputFormat(f OutputFormat) error {
	if s.err != nil {
		return s.err
	}
	s.formats = append(s.formats, f)
	s.active = true
	return nil
}

func (s *formatSink) HasCurrentFormat() bool       { return s.active }
func (s *formatSink) FinishFrame(pcm []byte) error { return nil }

func TestSwitcherAnnouncesOnlyOnChange(t *testing.T) {
	sink := &formatSink{}
	sw := NewOutputFormatSwitcher()

	steps := []struct {
		rate, channels int
		wantAnnounce   bool
	}{
		{44100, 2, true},
		{44100, 2, false},
		{44100, 1, true},
		{48000, 1, true},
		{48000, 1, false},
	}

	for i, step := range steps {
		announced, err := sw.Ensure(sink, step.rate, step.channels)
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
		if announced != step.wantAnnounce {
			t.Errorf("step %d: expected announce=%v, got %v", i, step.wantAnnounce, announced)
		}
	}

	if len(sink.formats) != 3 {
		t.Fatalf("expected 3 announcements, got %d", len(sink.formats))
	}

	last, ok := sw.Last()
	if !ok || last.SampleRate != 48000 || last.Channels != 1 {
		t.Errorf("unexpected last format %+v (ok=%v)", last, ok)
	}
}

func TestSwitcherReannouncesWhenSinkInactive(t *testing.T) {
	sink := &formatSink{}
	sw := NewOutputFormatSwitcher()

	if _, err := sw.Ensure(sink, 16000, 1); err != nil {
		t.Fatal(err)
	}
	sink.active = false

	announced, err := sw.Ensure(sink, 16000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !announced {
		t.Error("expected re-announcement when sink has no current format")
	}
}

func TestSwitcherFailureKeepsPreviousFormat(t *testing.T) {
	sink := &formatSink{}
	sw := NewOutputFormatSwitcher()

	if _, err := sw.Ensure(sink, 44100, 2); err != nil {
		t.Fatal(err)
	}

	sink.err = errors.New("refused")
	_, err := sw.Ensure(sink, 22050, 2)
	if !errors.Is(err, ErrOutputNegotiationFailed) {
		t.Fatalf("expected ErrOutputNegotiationFailed, got %v", err)
	}

	last, _ := sw.Last()
	if last.SampleRate != 44100 {
		t.Errorf("failed announcement must not update last format, got %d", last.SampleRate)
	}
	if !sw.NeedsAnnouncement(sink, 22050, 2) {
		t.Error("failed format should still need announcement")
	}
}

func TestSwitcherReset(t *testing.T) {
	sink := &formatSink{}
	sw := NewOutputFormatSwitcher()

	if _, err := sw.Ensure(sink, 8000, 1); err != nil {
		t.Fatal(err)
	}
	sw.Reset()

	if _, ok := sw.Last(); ok {
		t.Error("reset should forget the last announcement")
	}
	if !sw.NeedsAnnouncement(sink, 8000, 1) {
		t.Error("after reset the same format must be announced again")
	}
}

func TestOutputFormatFrameBytes(t *testing.T) {
	f := NewS16Format(44100, 2)
	if f.FrameBytes() != 4 {
		t.Errorf("expected 4 bytes per stereo S16 frame, got %d", f.FrameBytes())
	}
	if f.String() != "S16/interleaved/44100Hz/2ch" {
		t.Errorf("unexpected format string %s", f.String())
	}
}
