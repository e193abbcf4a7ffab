package main

import (
	"chat-guard/auth"
	"chat-guard/classifier"
	"chat-guard/contract"
	"chat-guard/domain/event"
	"chat-guard/infrastructure/grpc/chatv1"
	"chat-guard/infrastructure/grpc/server"
	"chat-guard/internal"
	"chat-guard/repositories"
	"chat-guard/runtime"
	"chat-guard/runtime/workers"
	"chat-guard/services"
	"chat-guard/sink"
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	grpc3 "github.com/mama165/sdk-go/grpc"
	"github.com/mama165/sdk-go/logs"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	exitFailure = 1
	exitConfig  = 2
)

// Reported NOT_SERVING while the classifier is unreachable. The chat
// service itself keeps serving under the fallback policy.
const classifierHealthService = "chatguard.v1.Classifier"

type configError struct{ err error }

func (e configError) Error() string { return "config error: " + e.err.Error() }
func (e configError) Unwrap() error { return e.err }

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		if goerrors.As(err, &configError{}) {
			os.Exit(exitConfig)
		}
		os.Exit(exitFailure)
	}
}

// run keeps every defer on the exit path, so the stores are closed even when
// the server fails.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	config, err := loadConfig(os.Environ())
	if err != nil {
		return configError{err}
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	policy, _ := internal.ParseFallbackPolicy(config.FallbackPolicy)
	replacement, _ := internal.CharacterRune(config.ModerationCharReplacement)

	shutdownTracing, err := internal.SetupTracing(context.Background(), "chat-guard", config.OtelEndpoint)
	if err != nil {
		return fmt.Errorf("tracing setup failed: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Warn("Spans not flushed", "error", err)
		}
	}()

	var operators *auth.Operators
	if config.OperatorSecret != "" {
		if operators, err = auth.NewOperators(config.OperatorSecret); err != nil {
			return configError{err}
		}
	} else {
		log.Info("No OPERATOR_SECRET, audit search and remediation are disabled")
	}

	// 2. Stores
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	var auditRepository repositories.IAuditRepository
	if config.BlugeFilepath != "" {
		writer, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
		if err != nil {
			return fmt.Errorf("audit index opening failed: %w", err)
		}
		defer func() {
			log.Info("Closing audit index...")
			_ = writer.Close()
		}()
		auditRepository = repositories.NewAuditRepository(writer, log)
	}

	// 3. Classifier
	textClassifier, err := newClassifier(config, log)
	if err != nil {
		return configError{err}
	}

	// 4. Supervision & Orchestration
	sup := workers.NewSupervisor(log, config.RestartInterval)
	orchestrator := runtime.NewOrchestrator(log, sup, textClassifier, runtime.Config{
		QueueDepth:            config.AuthorQueueDepth,
		MaxContentLength:      config.MaxContentLength,
		Policy:                policy,
		CharReplacement:       replacement,
		SubscriberBufferSize:  config.SubscriberBufferSize,
		SlowSubscriberTimeout: config.SlowSubscriberTimeout,
		OutboxSize:            config.OutboxBufferSize,
		SinkTimeout:           config.SinkTimeout,
		MetricInterval:        config.MetricInterval,
		LowCapacityThreshold:  config.LowCapacityThreshold,
		HistoryLimit:          config.HistoryLimit,
	}).WithStorage(
		repositories.NewRoomRepository(db),
		repositories.NewMessageRepository(db, log, nil),
	)
	if auditRepository != nil {
		orchestrator.WithAudit(auditRepository)
	}
	orchestrator.Add(sink.NewTelemetrySink(
		event.NewCensoredHandler(log),
		event.NewLatencyHandler(log, config.LatencyThreshold),
	))
	if err := orchestrator.Restore(); err != nil {
		return fmt.Errorf("restoring rooms failed: %w", err)
	}

	healthServer := health.NewServer()
	healthServer.SetServingStatus(chatv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	monitor := workers.NewHealthMonitoringWorker(log, textClassifier, config.HealthInterval, config.ClassifierAttemptTimeout,
		func(up bool) {
			status := healthpb.HealthCheckResponse_NOT_SERVING
			if up {
				status = healthpb.HealthCheckResponse_SERVING
			}
			healthServer.SetServingStatus(classifierHealthService, status)
		})
	sup.Add(monitor)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		_ = orchestrator.Start(ctx)
	}()

	// 6. gRPC Server Setup
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		orchestrator.Stop()
		stop()
		<-engineDone
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpc3.UnaryLoggingInterceptor(log),
			auth.OperatorInterceptor(operators),
			auth.ParticipantInterceptor,
		),
		grpc.ChainStreamInterceptor(auth.ParticipantStreamInterceptor),
	)
	chatService := services.NewChatService(log, orchestrator)
	chatv1.RegisterChatServiceServer(s, server.NewChatServer(log, chatService))
	healthpb.RegisterHealthServer(s, healthServer)

	// Use an error channel to capture Serve() issues
	errChan := make(chan error, 2)
	go func() {
		log.Info("Starting gRPC server", "address", address, "at", time.Now().UTC(),
			"classifier", config.ClassifierMode, "policy", policy)
		if err := s.Serve(listener); err != nil && !goerrors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	var debugServer *http.Server
	if config.DebugPort > 0 {
		debugServer = internal.NewDebugServer(db, log, config.DebugPort, func() map[string]any {
			stats := orchestrator.Stats()
			snapshot := monitor.Snapshot()
			stats["classifier_up"] = snapshot.ClassifierUp
			stats["cpu_percent"] = fmt.Sprintf("%.1f", snapshot.CPUPercent)
			stats["rss_mb"] = snapshot.RSS >> 20
			return stats
		})
		go func() {
			log.Info("Starting debug page", "address", debugServer.Addr)
			if err := debugServer.ListenAndServe(); err != nil && !goerrors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("debug server error: %w", err)
			}
		}()
	}

	// 7. Wait for Stop or Error
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case runErr = <-errChan:
		log.Error("Server failed, shutting down", "error", runErr)
	}

	// 8. Final Cleanup
	healthServer.Shutdown()
	if debugServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = debugServer.Shutdown(shutdownCtx)
		cancel()
	}
	s.GracefulStop()
	orchestrator.Stop()
	stop()
	<-engineDone
	log.Info("Program stopped cleanly")

	return runErr
}

func newClassifier(config Config, log *slog.Logger) (contract.Classifier, error) {
	if config.ClassifierMode == "lexicon" {
		data, err := classifier.LoadEmbeddedLexicons()
		if err != nil {
			return nil, err
		}
		log.Info("Using the embedded lexicon", "languages", data.Languages, "words", len(data.Words))
		return classifier.NewLexiconClassifier(data.Words)
	}
	opts := []classifier.Option{
		classifier.WithLogger(log),
		classifier.WithAttemptTimeout(config.ClassifierAttemptTimeout),
		classifier.WithMaxAttempts(config.ClassifierMaxAttempts),
		classifier.WithBackoff(config.ClassifierBaseBackoff, config.ClassifierMaxBackoff),
	}
	if labels := internal.SplitList(config.ClassifierFlaggedLabels); len(labels) > 0 {
		opts = append(opts, classifier.WithFlaggedLabels(labels))
	}
	c := classifier.NewHTTPClassifier(config.ClassifierURL, opts...)
	log.Info("Using the classifier service", "url", config.ClassifierURL, "max_latency", c.MaxLatency())
	return c, nil
}
