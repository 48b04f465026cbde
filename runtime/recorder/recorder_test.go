package recorder

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/AltairaLabs/InterviewKit/runtime/audio"
	"github.com/AltairaLabs/InterviewKit/runtime/interview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readBundle(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	out := map[string][]byte{}
	tr := tar.NewReader(bytes.NewReader(data))
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		body, err := io.ReadAll(tr)
		require.NoError(t, err)
		out[hdr.Name] = body
	}
}

func waitArtifact(t *testing.T, p *Pending) *Artifact {
	t.Helper()
	require.NotNil(t, p)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	a, err := p.Wait(ctx)
	require.NoError(t, err)
	require.NotNil(t, a)
	return a
}

func TestValidateAndStartRejectsUndersizedWindow(t *testing.T) {
	src := &fakeSource{display: newFakeDisplay(SurfaceWindow, 800, 600), mic: newFakeMic()}
	r := New(src)

	err := r.ValidateAndStart(context.Background())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, interview.ErrRecordingValidation)
	assert.False(t, r.Recording())
	assert.Zero(t, src.micAsked, "microphone must not be requested for an invalid capture")
	assert.True(t, src.display.isClosed())
	assert.Nil(t, r.Stop(), "no artifact will ever exist")
}

func TestValidateAndStartAcceptsFullMonitor(t *testing.T) {
	src := &fakeSource{display: newFakeDisplay(SurfaceMonitor, 1920, 1080), mic: newFakeMic()}
	r := New(src)

	require.NoError(t, r.ValidateAndStart(context.Background()))
	assert.True(t, r.Recording())
	assert.Equal(t, 1, src.micAsked)
}

func TestRequirementsCheck(t *testing.T) {
	req := DefaultRequirements()
	tests := []struct {
		name     string
		settings TrackSettings
		field    string
	}{
		{"monitor ok", TrackSettings{DisplaySurface: SurfaceMonitor, Width: 1200, Height: 700}, ""},
		{"screen ok", TrackSettings{DisplaySurface: SurfaceScreen, Width: 2560, Height: 1440}, ""},
		{"window", TrackSettings{DisplaySurface: SurfaceWindow, Width: 1920, Height: 1080}, "displaySurface"},
		{"tab", TrackSettings{DisplaySurface: SurfaceBrowser, Width: 1920, Height: 1080}, "displaySurface"},
		{"narrow", TrackSettings{DisplaySurface: SurfaceMonitor, Width: 1199, Height: 1080}, "resolution"},
		{"short", TrackSettings{DisplaySurface: SurfaceMonitor, Width: 1920, Height: 699}, "resolution"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := req.Check(tt.settings)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestPermissionDenied(t *testing.T) {
	src := &fakeSource{displayErr: interview.ErrPermissionDenied}
	r := New(src)

	err := r.ValidateAndStart(context.Background())
	var cerr *CaptureError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindPermissionDenied, cerr.Kind)
	assert.ErrorIs(t, err, interview.ErrPermissionDenied)
	assert.False(t, r.Recording())
	assert.Equal(t, err, r.Err())
}

func TestMicrophoneDeniedReleasesDisplay(t *testing.T) {
	src := &fakeSource{
		display: newFakeDisplay(SurfaceMonitor, 1920, 1080),
		micErr:  interview.ErrPermissionDenied,
	}
	r := New(src)

	err := r.ValidateAndStart(context.Background())
	assert.ErrorIs(t, err, interview.ErrPermissionDenied)
	assert.True(t, src.display.isClosed())
	assert.False(t, r.Recording())
}

func TestNoVideoTrack(t *testing.T) {
	display := newFakeDisplay(SurfaceMonitor, 1920, 1080)
	display.hasVideo = false
	r := New(&fakeSource{display: display, mic: newFakeMic()})

	err := r.ValidateAndStart(context.Background())
	var cerr *CaptureError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindNoVideoTrack, cerr.Kind)
	assert.False(t, r.Recording())
}

func TestStopProducesSingleArtifact(t *testing.T) {
	display := newFakeDisplay(SurfaceMonitor, 1920, 1080)
	mic := newFakeMic()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	now := start
	r := New(&fakeSource{display: display, mic: mic}, WithClock(func() time.Time { return now }))

	require.NoError(t, r.ValidateAndStart(context.Background()))
	display.video <- []byte("frame-1")
	display.video <- []byte("frame-2")
	display.audio <- AudioChunk{PCM: audio.PCM16Bytes([]int16{100, 200}), SampleRate: audio.SampleRate16kHz}
	mic.audio <- AudioChunk{PCM: audio.PCM16Bytes([]int16{1, 2}), SampleRate: audio.SampleRate16kHz}

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.video.Len() == len("frame-1frame-2") && r.mixer.Duration() > 0
	}, time.Second, 5*time.Millisecond)

	now = start.Add(90 * time.Second)
	p1 := r.Stop()
	p2 := r.Stop()
	assert.Same(t, p1, p2)
	assert.False(t, r.Recording())

	a := waitArtifact(t, p1)
	again := waitArtifact(t, p2)
	assert.Same(t, a, again)
	assert.Equal(t, ArtifactContentType, a.ContentType)
	assert.Equal(t, 90*time.Second, a.Duration())
	assert.Equal(t, ".tar", a.Extension())

	bundle := readBundle(t, a.Data)
	assert.Equal(t, "frame-1frame-2", string(bundle[EntryVideo]))
	assert.Equal(t, []int16{101, 202}, audio.PCM16Samples(bundle[EntryAudio][44:]))

	var m manifest
	require.NoError(t, json.Unmarshal(bundle[EntryManifest], &m))
	assert.Equal(t, 1920, m.Settings.Width)

	assert.True(t, display.isClosed())
	assert.True(t, mic.closed)

	display.video <- []byte("late")
	assert.Equal(t, a.Data, waitArtifact(t, r.Stop()).Data, "no frames are appended after stop")
}

func TestTrackEndedSurfacesTypedError(t *testing.T) {
	display := newFakeDisplay(SurfaceScreen, 1920, 1080)
	r := New(&fakeSource{display: display, mic: newFakeMic()})
	require.NoError(t, r.ValidateAndStart(context.Background()))

	display.video <- []byte("frame")
	close(display.ended)

	select {
	case <-r.Ended():
	case <-time.After(time.Second):
		t.Fatal("ended signal not raised")
	}
	assert.False(t, r.Recording())
	var cerr *CaptureError
	require.ErrorAs(t, r.Err(), &cerr)
	assert.Equal(t, KindTrackEnded, cerr.Kind)

	a := waitArtifact(t, r.Stop())
	assert.NotEmpty(t, a.Data, "frames captured before the track ended are kept")
}

func TestCannotStartTwice(t *testing.T) {
	r := New(&fakeSource{display: newFakeDisplay(SurfaceMonitor, 1920, 1080), mic: newFakeMic()})
	require.NoError(t, r.ValidateAndStart(context.Background()))

	err := r.ValidateAndStart(context.Background())
	var cerr *CaptureError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindInvalidState, cerr.Kind)
	assert.True(t, r.Recording())
}

func TestPendingWaitHonoursContext(t *testing.T) {
	p := newPending()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	resolved := Resolved(&Artifact{Data: []byte("x")})
	a, err := resolved.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), a.Data)

	failed := Failed(ErrNotRecording)
	<-failed.Done()
	_, err = failed.Wait(context.Background())
	assert.ErrorIs(t, err, ErrNotRecording)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "recording", StateRecording.String())
	assert.Equal(t, "unknown", State(9).String())
}

func TestConcurrentStartRequestsDisplayOnce(t *testing.T) {
	src := &fakeSource{display: newFakeDisplay(SurfaceMonitor, 1920, 1080), mic: newFakeMic(), gate: make(chan struct{})}
	r := New(src)

	first := make(chan error, 1)
	go func() { first <- r.ValidateAndStart(context.Background()) }()
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.state == StateStarting
	}, time.Second, time.Millisecond)

	err := r.ValidateAndStart(context.Background())
	var cerr *CaptureError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindInvalidState, cerr.Kind)

	close(src.gate)
	require.NoError(t, <-first)
	assert.True(t, r.Recording())
	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, 1, src.displayAsk)
}
