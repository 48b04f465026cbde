package interviewserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/InterviewKit/pkg/config"
	"github.com/AltairaLabs/InterviewKit/runtime/recorder"
	"github.com/AltairaLabs/InterviewKit/runtime/transport/ws"
)

func fakeCompletions(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]string{"role": "assistant", "content": openingQuestion},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Dialogue.APIKey = "sk-test"
	cfg.Dialogue.BaseURL = fakeCompletions(t).URL + "/v1"
	cfg.Storage.Local.BaseDir = t.TempDir()
	cfg.Redis.Addr = miniredis.RunT(t).Addr()
	return cfg
}

func TestBuild_EndToEnd(t *testing.T) {
	cfg := testConfig(t)

	srv, err := Build(context.Background(), cfg, WithIDGenerator(func() string { return "sess-e2e" }))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	c := dial(t, ts)
	c.hello(t, true)
	assert.Equal(t, "sess-e2e", c.expect(t, ws.TypeReady).SessionID)

	c.startInterview(t)
	c.send(t, ws.ClientMessage{Type: ws.TypeVideo, Data: []byte("frame-1")})
	c.send(t, ws.ClientMessage{Type: ws.TypeEnd})

	nav := c.expect(t, ws.TypeNavigate)
	require.NotEmpty(t, nav.RecordID)
	assert.True(t, strings.HasPrefix(nav.Path, config.DefaultResultsPath), nav.Path)

	fin := c.expect(t, ws.TypeFinalized)
	assert.Equal(t, nav.RecordID, fin.RecordID)
	require.True(t, strings.HasPrefix(fin.RecordingURL, config.DefaultRecordingsPath), fin.RecordingURL)
	c.expectClosed(t)

	resp, err := http.Get(ts.URL + fin.RecordingURL)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, recorder.ArtifactContentType, resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, body)

	resp, err = http.Get(ts.URL + PathMetrics)
	require.NoError(t, err)
	metrics, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(metrics), "go_goroutines")
	assert.Contains(t, string(metrics), "interviewkit_build_info")

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"missing api key", func(c *config.Config) { c.Dialogue.APIKey = "" }, "dialogue"},
		{"supabase records without credentials", func(c *config.Config) { c.Records.Backend = config.RecordsSupabase }, "records"},
		{"supabase storage without credentials", func(c *config.Config) { c.Storage.Backend = config.StorageSupabase }, "storage"},
		{"unreachable redis", func(c *config.Config) { c.Redis.Addr = "127.0.0.1:1" }, "redis"},
		{"invalid vad", func(c *config.Config) { c.VAD.Confidence = 3 }, "Confidence"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)

			ctx, cancel := context.WithTimeout(context.Background(), waitFor)
			defer cancel()
			_, err := Build(ctx, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuild_ConfigOverlays(t *testing.T) {
	off := false
	p := vadParams(config.VADConfig{StopSecs: 1.5, NoiseSuppression: &off})
	assert.InDelta(t, 1.5, p.StopSecs, 1e-9)
	assert.False(t, p.NoiseSuppression)
	assert.Positive(t, p.Confidence)

	req := requirements(config.InterviewConfig{AllowedSurfaces: []string{recorder.SurfaceMonitor}, MinWidth: 1600})
	assert.Equal(t, []string{recorder.SurfaceMonitor}, req.AllowedSurfaces)
	assert.Equal(t, 1600, req.MinWidth)
	assert.Equal(t, recorder.DefaultRequirements().MinHeight, req.MinHeight)
}

func TestWaitCloser(t *testing.T) {
	release := make(chan struct{})
	closer := waitCloser(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, closer(ctx), context.DeadlineExceeded)

	close(release)
	assert.NoError(t, closer(context.Background()))
}
