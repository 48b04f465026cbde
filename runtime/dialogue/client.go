// Package dialogue asks an OpenAI-compatible chat completions endpoint for
// the interviewer's next question.
package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AltairaLabs/InterviewKit/pkg/httputil"
	"github.com/AltairaLabs/InterviewKit/runtime/interview"
	"github.com/AltairaLabs/InterviewKit/runtime/logger"
	prommetrics "github.com/AltairaLabs/InterviewKit/runtime/metrics/prometheus"
	"github.com/AltairaLabs/InterviewKit/runtime/telemetry"
)

const (
	serviceName        = "dialogue"
	completionsPath    = "/chat/completions"
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.7
	defaultMaxTokens   = 300
	defaultMaxAttempts = 3
	defaultBackoff     = 500 * time.Millisecond
	maxErrorBody       = 512
)

// Config configures a Client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int

	// MaxAttempts bounds the number of calls per question, including the first.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// Timeout applies to each attempt.
	Timeout time.Duration

	// HTTPClient overrides the default instrumented client.
	HTTPClient *http.Client
	Tracer     trace.Tracer
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Client implements session.DialogueClient.
type Client struct {
	cfg    Config
	url    string
	client *http.Client
	tracer trace.Tracer
}

// New creates a client, filling unset fields with defaults.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("dialogue: api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultBackoff
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = httputil.DefaultDialogueTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = httputil.NewHTTPClient(0)
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer(nil)
	}

	return &Client{
		cfg:    cfg,
		url:    strings.TrimSuffix(cfg.BaseURL, "/") + completionsPath,
		client: httpClient,
		tracer: tracer,
	}, nil
}

// NextQuestion returns the interviewer's next utterance given the job and
// the conversation so far. An empty history yields the opening question.
// Transient failures are retried with exponential backoff.
func (c *Client) NextQuestion(ctx context.Context, job interview.JobContext, history []interview.Turn) (string, error) {
	ctx, span := c.tracer.Start(ctx, "interview.dialogue.next_question",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("dialogue.model", c.cfg.Model),
			attribute.Int("dialogue.history_turns", len(history)),
		))
	defer span.End()

	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    BuildMessages(job, history),
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff

	attempt := 0
	start := time.Now()
	question, err := backoff.Retry(ctx, func() (string, error) {
		attempt++
		return c.attempt(ctx, body)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.WarnContext(ctx, "dialogue request failed, retrying",
				"attempt", attempt, "wait", wait, "error", err)
		}),
	)
	elapsed := time.Since(start).Seconds()
	span.SetAttributes(attribute.Int("dialogue.attempts", attempt))

	if err != nil {
		prommetrics.RecordDialogueRequest(c.cfg.Model, prommetrics.StatusError, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var se *ServiceError
		if !errors.As(err, &se) {
			err = &ServiceError{Message: err.Error(), Cause: err}
		}
		return "", err
	}
	prommetrics.RecordDialogueRequest(c.cfg.Model, prommetrics.StatusSuccess, elapsed)
	span.SetStatus(codes.Ok, "")
	return question, nil
}

// attempt performs one HTTP call. Non-retryable failures are wrapped with
// backoff.Permanent.
func (c *Client) attempt(ctx context.Context, body []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	headers := map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + c.cfg.APIKey,
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	logger.APIRequest(serviceName, http.MethodPost, c.url, headers, json.RawMessage(body))

	resp, err := c.client.Do(req)
	if err != nil {
		logger.APIResponse(serviceName, 0, "", err)
		return "", &ServiceError{Message: "request failed", Retryable: true, Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ServiceError{StatusCode: resp.StatusCode, Message: "failed to read response", Retryable: true, Cause: err}
	}
	logger.APIResponse(serviceName, resp.StatusCode, string(respBody), nil)

	if resp.StatusCode != http.StatusOK {
		se := &ServiceError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody),
			Retryable:  retryableStatus(resp.StatusCode),
		}
		if !se.Retryable {
			return "", backoff.Permanent(se)
		}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 {
			logger.DebugContext(ctx, "dialogue service asked to retry later", "seconds", secs)
			return "", errors.Join(se, backoff.RetryAfter(secs))
		}
		return "", se
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", backoff.Permanent(&ServiceError{
			StatusCode: resp.StatusCode, Message: "failed to unmarshal response", Cause: err,
		})
	}
	if parsed.Error != nil {
		return "", backoff.Permanent(&ServiceError{StatusCode: resp.StatusCode, Message: parsed.Error.Message})
	}
	if len(parsed.Choices) == 0 {
		return "", backoff.Permanent(&ServiceError{StatusCode: resp.StatusCode, Message: "no choices in response"})
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func errorMessage(body []byte) string {
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	if msg == "" {
		msg = "empty response body"
	}
	return msg
}
