package classifier

import (
	"chat-guard/domain"
	"chat-guard/errors"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newTestClassifier(url string, opts ...Option) *HTTPClassifier {
	base := []Option{
		WithLogger(logs.GetLoggerFromLevel(slog.LevelDebug)),
		WithAttemptTimeout(200 * time.Millisecond),
		WithMaxAttempts(3),
		WithBackoff(5*time.Millisecond, 20*time.Millisecond),
	}
	return NewHTTPClassifier(url, append(base, opts...)...)
}

func TestHTTPClassifier_Verdicts(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected domain.Verdict
		label    string
	}{
		{name: "Numeric clean prediction", body: `{"prediction":0,"label":"non-bullying"}`, expected: domain.VerdictClean, label: "non-bullying"},
		{name: "Numeric flagged prediction", body: `{"prediction":1,"label":"bullying"}`, expected: domain.VerdictFlagged, label: "bullying"},
		{name: "Probability above threshold", body: `{"prediction":0.91,"label":"p"}`, expected: domain.VerdictFlagged, label: "p"},
		{name: "Categorical flagged prediction", body: `{"prediction":"Bullying","label":"bullying"}`, expected: domain.VerdictFlagged, label: "bullying"},
		{name: "Categorical clean prediction", body: `{"prediction":"non-bullying","label":"ok"}`, expected: domain.VerdictClean, label: "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var body classifyRequest
				_ = json.NewDecoder(r.Body).Decode(&body)
				if r.Method != http.MethodPost || body.Text != "some text" {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			result, err := newTestClassifier(server.URL).Classify(context.Background(), "some text")
			req.NoError(err)
			req.Equal(tt.expected, result.Verdict)
			req.Equal(tt.label, result.Label)
		})
	}
}

func TestHTTPClassifier_Confidence(t *testing.T) {
	req := require.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"prediction":1,"label":"bullying","confidence":0.97}`))
	}))
	defer server.Close()

	result, err := newTestClassifier(server.URL).Classify(context.Background(), "x")
	req.NoError(err)
	req.NotNil(result.Confidence)
	req.InDelta(0.97, *result.Confidence, 0.0001)
}

func TestHTTPClassifier_RetriesServerErrors(t *testing.T) {
	req := require.New(t)
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Given two failures before success
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"prediction":0,"label":"non-bullying"}`))
	}))
	defer server.Close()

	result, err := newTestClassifier(server.URL).Classify(context.Background(), "hello")

	// Then the third attempt wins
	req.NoError(err)
	req.Equal(domain.VerdictClean, result.Verdict)
	req.Equal(int32(3), calls.Load())
}

func TestHTTPClassifier_ExhaustsAttempts(t *testing.T) {
	req := require.New(t)
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClassifier(server.URL).Classify(context.Background(), "hello")

	req.ErrorIs(err, errors.ErrClassifierUnavailable)
	req.Equal(int32(3), calls.Load())
}

func TestHTTPClassifier_DoesNotRetryTerminalFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected error
	}{
		{name: "Malformed JSON", status: http.StatusOK, body: `{"prediction":`, expected: errors.ErrClassifierMalformedResponse},
		{name: "Missing prediction", status: http.StatusOK, body: `{"label":"bullying"}`, expected: errors.ErrClassifierMalformedResponse},
		{name: "Unexpected prediction type", status: http.StatusOK, body: `{"prediction":[1]}`, expected: errors.ErrClassifierMalformedResponse},
		{name: "Client error", status: http.StatusBadRequest, body: `{"error":"No text provided"}`, expected: errors.ErrClassifierRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClassifier(server.URL).Classify(context.Background(), "hello")

			req.ErrorIs(err, tt.expected)
			req.False(IsTransient(err))
			req.Equal(int32(1), calls.Load())
		})
	}
}

func TestHTTPClassifier_AttemptTimeoutIsRetried(t *testing.T) {
	req := require.New(t)
	var calls atomic.Int32
	release := make(chan struct{})
	defer close(release)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	c := newTestClassifier(server.URL, WithAttemptTimeout(30*time.Millisecond), WithMaxAttempts(2))
	start := time.Now()
	_, err := c.Classify(context.Background(), "hello")

	req.ErrorIs(err, errors.ErrClassifierTimeout)
	req.Equal(int32(2), calls.Load())
	req.LessOrEqual(time.Since(start), c.MaxLatency()+100*time.Millisecond)
}

func TestHTTPClassifier_ConnectionRefusedIsTransient(t *testing.T) {
	req := require.New(t)
	// Given an address nobody listens on
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	addr := listener.Addr().String()
	req.NoError(listener.Close())

	_, err = newTestClassifier("http://"+addr).Classify(context.Background(), "hello")

	req.ErrorIs(err, errors.ErrClassifierUnavailable)
	req.True(IsTransient(err))
}

func TestHTTPClassifier_CanceledContextStopsRetries(t *testing.T) {
	req := require.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClassifier(server.URL).Classify(ctx, "hello")
	req.ErrorIs(err, context.Canceled)
}

func TestHTTPClassifier_BackoffAndMaxLatency(t *testing.T) {
	req := require.New(t)
	c := NewHTTPClassifier("http://unused",
		WithAttemptTimeout(time.Second),
		WithMaxAttempts(4),
		WithBackoff(100*time.Millisecond, 250*time.Millisecond))

	req.Equal(100*time.Millisecond, c.Backoff(1))
	req.Equal(200*time.Millisecond, c.Backoff(2))
	req.Equal(250*time.Millisecond, c.Backoff(3))
	req.Equal(250*time.Millisecond, c.Backoff(10))

	// 4 attempts of 1s plus 100ms + 200ms + 250ms of waiting
	req.Equal(4*time.Second+550*time.Millisecond, c.MaxLatency())
}
