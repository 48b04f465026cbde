package recorder

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AltairaLabs/InterviewKit/runtime/audio"
)

// ArtifactContentType is the media type of a recording bundle.
const ArtifactContentType = "application/x-tar"

// Bundle entry names.
const (
	EntryVideo    = "screen.webm"
	EntryAudio    = "audio.wav"
	EntryManifest = "manifest.json"
)

// Artifact is the finished recording: a tar bundle holding the screen video,
// the mixed audio track, and a manifest.
type Artifact struct {
	Data        []byte
	ContentType string
	StartedAt   time.Time
	StoppedAt   time.Time
	Settings    TrackSettings
}

// Duration is the wall-clock length of the recording.
func (a *Artifact) Duration() time.Duration {
	return a.StoppedAt.Sub(a.StartedAt)
}

// Extension is the file extension used when storing the artifact.
func (a *Artifact) Extension() string {
	return ".tar"
}

type manifest struct {
	Settings     TrackSettings `json:"settings"`
	StartedAt    time.Time     `json:"startedAt"`
	StoppedAt    time.Time     `json:"stoppedAt"`
	VideoBytes   int           `json:"videoBytes"`
	AudioRate    int           `json:"audioSampleRate"`
	AudioSeconds float64       `json:"audioSeconds"`
}

func buildArtifact(video, mixedPCM []byte, sampleRate int, settings TrackSettings, started, stopped time.Time) (*Artifact, error) {
	m := manifest{
		Settings:     settings,
		StartedAt:    started,
		StoppedAt:    stopped,
		VideoBytes:   len(video),
		AudioRate:    sampleRate,
		AudioSeconds: float64(len(mixedPCM)/2) / float64(sampleRate),
	}
	manifestJSON, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	entries := []struct {
		name string
		data []byte
	}{
		{EntryManifest, manifestJSON},
		{EntryVideo, video},
		{EntryAudio, audio.WrapPCMInWAV(mixedPCM, sampleRate, 16, 1)},
	}
	for _, e := range entries {
		hdr := &tar.Header{
			Name:    e.name,
			Mode:    0o600,
			Size:    int64(len(e.data)),
			ModTime: stopped,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("write %s header: %w", e.name, err)
		}
		if _, err := tw.Write(e.data); err != nil {
			return nil, fmt.Errorf("write %s: %w", e.name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close bundle: %w", err)
	}

	return &Artifact{
		Data:        buf.Bytes(),
		ContentType: ArtifactContentType,
		StartedAt:   started,
		StoppedAt:   stopped,
		Settings:    settings,
	}, nil
}

// Pending is an artifact that becomes available once the recorder has
// finished stopping. Wait may be called any number of times.
type Pending struct {
	done     chan struct{}
	artifact *Artifact
	err      error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) resolve(a *Artifact, err error) {
	p.artifact, p.err = a, err
	close(p.done)
}

// Done is closed once the artifact (or its error) is available.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the artifact is ready or ctx is done.
func (p *Pending) Wait(ctx context.Context) (*Artifact, error) {
	select {
	case <-p.done:
		return p.artifact, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resolved returns an already available artifact.
func Resolved(a *Artifact) *Pending {
	p := newPending()
	p.resolve(a, nil)
	return p
}

// Failed returns a Pending that resolves immediately with err.
func Failed(err error) *Pending {
	p := newPending()
	p.resolve(nil, err)
	return p
}
