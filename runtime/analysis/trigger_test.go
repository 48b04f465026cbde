package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/AltairaLabs/InterviewKit/pkg/errors"
	"github.com/AltairaLabs/InterviewKit/runtime/interview"
)

func TestNewHTTPTrigger_RequiresEndpoint(t *testing.T) {
	_, err := NewHTTPTrigger(Config{Endpoint: " "})
	assert.Error(t, err)
}

func TestTrigger_PostsRecordAndTranscript(t *testing.T) {
	var got map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tr, err := NewHTTPTrigger(Config{Endpoint: srv.URL + "/analyze", APIKey: "secret", HTTPClient: srv.Client()})
	require.NoError(t, err)

	err = tr.Trigger(context.Background(), "rec-9", []interview.Turn{{Question: "Q", Answer: "A"}})
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "rec-9", got["recordId"])
	turns, ok := got["transcript"].([]any)
	require.True(t, ok)
	require.Len(t, turns, 1)
	assert.Equal(t, map[string]any{"question": "Q", "answer": "A"}, turns[0])
}

func TestTrigger_EmptyTranscriptIsArray(t *testing.T) {
	var raw map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
	}))
	defer srv.Close()

	tr, err := NewHTTPTrigger(Config{Endpoint: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)
	require.NoError(t, tr.Trigger(context.Background(), "rec-1", nil))
	assert.JSONEq(t, `[]`, string(raw["transcript"]))
}

func TestTrigger_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr, err := NewHTTPTrigger(Config{Endpoint: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)

	err = tr.Trigger(context.Background(), "rec-1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, interview.ErrAnalysisFailed)
	assert.Equal(t, http.StatusServiceUnavailable, pkgerrors.StatusCode(err))
	assert.Contains(t, err.Error(), "model offline")
}

func TestTrigger_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	tr, err := NewHTTPTrigger(Config{Endpoint: url})
	require.NoError(t, err)
	err = tr.Trigger(context.Background(), "rec-1", nil)
	assert.ErrorIs(t, err, interview.ErrAnalysisFailed)
}
