// Package analysis notifies the analysis service that an interview record is
// ready for scoring.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/AltairaLabs/InterviewKit/pkg/errors"
	"github.com/AltairaLabs/InterviewKit/pkg/httputil"
	"github.com/AltairaLabs/InterviewKit/runtime/interview"
	"github.com/AltairaLabs/InterviewKit/runtime/logger"
)

const (
	component    = "analysis"
	maxErrorBody = 512
)

// Config configures an HTTPTrigger.
type Config struct {
	// Endpoint receives a POST of {recordId, transcript}.
	Endpoint string

	// APIKey is sent as a bearer token when set.
	APIKey string

	Timeout    time.Duration
	HTTPClient *http.Client
}

type triggerRequest struct {
	RecordID   string           `json:"recordId"`
	Transcript []interview.Turn `json:"transcript"`
}

// HTTPTrigger implements finalize.AnalysisTrigger over HTTP.
type HTTPTrigger struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	client   *http.Client
}

// NewHTTPTrigger creates a trigger for the configured endpoint.
func NewHTTPTrigger(cfg Config) (*HTTPTrigger, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("analysis: endpoint is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = httputil.DefaultAnalysisTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = httputil.NewHTTPClient(0)
	}
	return &HTTPTrigger{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		timeout:  cfg.Timeout,
		client:   client,
	}, nil
}

// Trigger posts the record id and transcript. Any non-2xx response is an
// error wrapping interview.ErrAnalysisFailed.
func (t *HTTPTrigger) Trigger(ctx context.Context, recordID string, transcript []interview.Turn) error {
	if transcript == nil {
		transcript = []interview.Turn{}
	}
	body, err := json.Marshal(triggerRequest{RecordID: recordID, Transcript: transcript})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	headers := map[string]string{"Content-Type": "application/json"}
	if t.apiKey != "" {
		headers["Authorization"] = "Bearer " + t.apiKey
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	logger.APIRequest(component, http.MethodPost, t.endpoint, headers, json.RawMessage(body))

	resp, err := t.client.Do(req)
	if err != nil {
		logger.APIResponse(component, 0, "", err)
		return pkgerrors.New(component, "Trigger", errors.Join(interview.ErrAnalysisFailed, err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	logger.APIResponse(component, resp.StatusCode, string(respBody), nil)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		cause := fmt.Errorf("%w: %s", interview.ErrAnalysisFailed, strings.TrimSpace(string(respBody)))
		return pkgerrors.New(component, "Trigger", cause).WithStatusCode(resp.StatusCode)
	}
	return nil
}
