package classifier

import (
	"chat-guard/domain"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recorded(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return recorder, tp
}

func attributes(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	res := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		res[kv.Key] = kv.Value
	}
	return res
}

func TestHTTPClassifier_Span_RecordsRetriedAttempts(t *testing.T) {
	req := require.New(t)
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"prediction":1,"label":"bullying","confidence":0.93}`))
	}))
	defer server.Close()
	recorder, tp := recorded(t)

	// Given a service that fails once then answers
	result, err := newTestClassifier(server.URL, WithTracerProvider(tp)).Classify(context.Background(), "you idiot")
	req.NoError(err)
	req.Equal(domain.VerdictFlagged, result.Verdict)

	// Then one span covers the whole call with both attempts
	spans := recorder.Ended()
	req.Len(spans, 1)
	span := spans[0]
	req.Equal("classifier.Classify", span.Name())
	attrs := attributes(span)
	req.Equal(int64(3), attrs["classifier.max_attempts"].AsInt64())
	req.Equal(int64(2), attrs["classifier.attempts"].AsInt64())
	req.Equal("flagged", attrs["classifier.verdict"].AsString())
	req.NotEqual(otelcodes.Error, span.Status().Code)

	// And the failed attempt is an event on it
	req.Len(span.Events(), 1)
	req.Equal("attempt failed", span.Events()[0].Name)
}

func TestHTTPClassifier_Span_MarksExhaustedCallAsError(t *testing.T) {
	req := require.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()
	recorder, tp := recorded(t)

	_, err := newTestClassifier(server.URL, WithTracerProvider(tp)).Classify(context.Background(), "hello")
	req.Error(err)

	spans := recorder.Ended()
	req.Len(spans, 1)
	req.Equal(otelcodes.Error, spans[0].Status().Code)
	req.Equal(int64(3), attributes(spans[0])["classifier.attempts"].AsInt64())
	_, ok := attributes(spans[0])["classifier.verdict"]
	req.False(ok)
}
