// Package classifier talks to the text-classification service and turns its
// answers into verdicts.
package classifier

import (
	"bytes"
	"chat-guard/domain"
	"chat-guard/errors"
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	maxResponseBytes = 64 * 1024
	tracerName       = "chat-guard/classifier"
)

// HTTPClassifier posts {"text": ...} to the service and reads back
// {"prediction": 1|0|"label", "label": "...", "confidence": 0.9}.
//
// Every attempt is bounded by the attempt timeout. Only transient failures
// (connection errors, attempt timeouts, 5xx and 429) are retried, with a
// doubling backoff capped at maxBackoff. A malformed answer or any other
// 4xx ends the call at once.
//
// The worst case added to the pipeline is MaxLatency():
//
//	attemptTimeout*maxAttempts + backoff(1) + ... + backoff(maxAttempts-1)
//
// and Classify enforces it with a deadline of its own, so an unreachable
// service can never hold a submission longer than that.
type HTTPClassifier struct {
	url            string
	httpClient     *http.Client
	log            *slog.Logger
	tracer         trace.Tracer
	attemptTimeout time.Duration
	maxAttempts    int
	baseBackoff    time.Duration
	maxBackoff     time.Duration
	flaggedLabels  map[string]struct{}
}

// Option configures an HTTPClassifier.
type Option func(*HTTPClassifier)

func NewHTTPClassifier(url string, opts ...Option) *HTTPClassifier {
	c := &HTTPClassifier{
		url:            url,
		httpClient:     &http.Client{},
		log:            slog.Default(),
		tracer:         otel.Tracer(tracerName),
		attemptTimeout: 2 * time.Second,
		maxAttempts:    3,
		baseBackoff:    100 * time.Millisecond,
		maxBackoff:     time.Second,
		flaggedLabels:  toSet([]string{"1", "bullying", "flagged", "toxic"}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	if c.maxBackoff < c.baseBackoff {
		c.maxBackoff = c.baseBackoff
	}
	return c
}

func WithAttemptTimeout(d time.Duration) Option {
	return func(c *HTTPClassifier) {
		c.attemptTimeout = d
	}
}

func WithMaxAttempts(n int) Option {
	return func(c *HTTPClassifier) {
		c.maxAttempts = n
	}
}

func WithBackoff(base, max time.Duration) Option {
	return func(c *HTTPClassifier) {
		c.baseBackoff = base
		c.maxBackoff = max
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *HTTPClassifier) {
		c.log = log
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClassifier) {
		c.httpClient = hc
	}
}

// WithTracerProvider sets where classification spans go. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *HTTPClassifier) {
		c.tracer = tp.Tracer(tracerName)
	}
}

// WithFlaggedLabels replaces the categorical predictions read as Flagged.
func WithFlaggedLabels(labels []string) Option {
	return func(c *HTTPClassifier) {
		c.flaggedLabels = toSet(labels)
	}
}

// Backoff is the wait after the given failed attempt (1-based).
func (c *HTTPClassifier) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := c.baseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.maxBackoff {
			return c.maxBackoff
		}
	}
	if d > c.maxBackoff {
		return c.maxBackoff
	}
	return d
}

// MaxLatency is the longest Classify can take.
func (c *HTTPClassifier) MaxLatency() time.Duration {
	total := c.attemptTimeout * time.Duration(c.maxAttempts)
	for i := 1; i < c.maxAttempts; i++ {
		total += c.Backoff(i)
	}
	return total
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Prediction json.RawMessage `json:"prediction"`
	Label      string          `json:"label"`
	Confidence *float64        `json:"confidence"`
}

// Classify returns the verdict for text, retrying transient failures.
// A canceled parent context ends the call with the context error.
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (domain.Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, c.MaxLatency())
	defer cancel()
	ctx, span := c.tracer.Start(ctx, "classifier.Classify",
		trace.WithAttributes(attribute.Int("classifier.max_attempts", c.maxAttempts)))
	defer span.End()

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			wait := c.Backoff(attempt - 1)
			c.log.Debug("retrying classification", "attempt", attempt, "backoff", wait)
			select {
			case <-ctx.Done():
				return domain.Classification{}, c.fail(span, c.contextError(ctx, lastErr))
			case <-time.After(wait):
			}
		}

		span.SetAttributes(attribute.Int("classifier.attempts", attempt))
		result, err := c.attempt(ctx, text)
		if err == nil {
			span.SetAttributes(attribute.String("classifier.verdict", result.Verdict.String()))
			return result, nil
		}
		lastErr = err
		span.AddEvent("attempt failed", trace.WithAttributes(
			attribute.Int("classifier.attempt", attempt),
			attribute.Bool("classifier.transient", IsTransient(err)),
			attribute.String("error", err.Error())))
		if !IsTransient(err) {
			return domain.Classification{}, c.fail(span, err)
		}
		c.log.Warn("classification attempt failed", "attempt", attempt, "error", err)
	}
	return domain.Classification{}, c.fail(span,
		fmt.Errorf("%d attempts exhausted: %w", c.maxAttempts, lastErr))
}

func (c *HTTPClassifier) attempt(ctx context.Context, text string) (domain.Classification, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return domain.Classification{}, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return domain.Classification{}, fmt.Errorf("%w: create request: %v", errors.ErrClassifierRejected, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Classification{}, c.transportError(ctx, attemptCtx, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.Classification{}, c.transportError(ctx, attemptCtx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Classification{}, &StatusError{StatusCode: resp.StatusCode, Body: payload}
	}
	return c.decode(payload)
}

func (c *HTTPClassifier) decode(payload []byte) (domain.Classification, error) {
	var resp classifyResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return domain.Classification{}, fmt.Errorf("%w: %v", errors.ErrClassifierMalformedResponse, err)
	}
	raw := bytes.TrimSpace(resp.Prediction)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return domain.Classification{}, fmt.Errorf("%w: missing prediction", errors.ErrClassifierMalformedResponse)
	}

	result := domain.Classification{Label: resp.Label, Confidence: resp.Confidence}
	var score float64
	var category string
	switch {
	case json.Unmarshal(raw, &score) == nil:
		result.Verdict = domain.VerdictClean
		if score >= 0.5 {
			result.Verdict = domain.VerdictFlagged
		}
	case json.Unmarshal(raw, &category) == nil:
		result.Verdict = domain.VerdictClean
		if _, ok := c.flaggedLabels[strings.ToLower(strings.TrimSpace(category))]; ok {
			result.Verdict = domain.VerdictFlagged
		}
	default:
		return domain.Classification{}, fmt.Errorf("%w: prediction %s", errors.ErrClassifierMalformedResponse, raw)
	}
	return result, nil
}

// transportError sorts a failed round trip into timeout, cancellation or
// unavailability.
func (c *HTTPClassifier) transportError(parent, attemptCtx context.Context, err error) error {
	if goerrors.Is(parent.Err(), context.Canceled) {
		return parent.Err()
	}
	if attemptCtx.Err() != nil {
		return fmt.Errorf("%w: %v", errors.ErrClassifierTimeout, err)
	}
	return fmt.Errorf("%w: %v", errors.ErrClassifierUnavailable, err)
}

func (c *HTTPClassifier) contextError(ctx context.Context, lastErr error) error {
	if goerrors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return fmt.Errorf("%w: deadline reached after %v", errors.ErrClassifierTimeout, lastErr)
}

func (c *HTTPClassifier) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
	return err
}

func toSet(labels []string) map[string]struct{} {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		set[strings.ToLower(strings.TrimSpace(l))] = struct{}{}
	}
	return set
}
