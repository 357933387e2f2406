package main

import (
	"chat-presence/contract"
	"chat-presence/delivery"
	"chat-presence/infrastructure/cloud"
	"chat-presence/infrastructure/storage"
	"chat-presence/internal"
	"chat-presence/moderation"
	"chat-presence/runtime"
	"chat-presence/runtime/workers"
	"chat-presence/transport/ws"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	grpc3 "github.com/mama165/sdk-go/grpc"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// backend groups the storage, archive and queue transports of one deployment mode.
type backend struct {
	store      contract.Store
	archive    contract.Archive
	transport  delivery.Transport
	deadLetter delivery.Transport
	close      func()
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Every defer runs before main calls os.Exit.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Storage backend
	var b backend
	switch config.Backend {
	case internal.BackendAWS:
		b, err = openAWS(ctx, config, logger)
	default:
		b, err = openBadger(ctx, config, logger)
	}
	if err != nil {
		return exitRuntime, err
	}
	defer b.close()

	// 3. Domain wiring
	moderator, err := moderation.NewModerator(moderation.ParseWords(config.CensoredWords), charReplacement, logger)
	if err != nil {
		return exitConfig, fmt.Errorf("moderator error: %w", err)
	}

	hub := ws.NewHub(logger)
	queue := delivery.NewQueue(logger, b.transport, b.deadLetter, runtime.NewHandlerTable(hub), delivery.Config{
		BatchSize:         config.QueueBatchSize,
		WaitTime:          config.QueueWaitTime,
		VisibilityTimeout: config.QueueVisibilityTimeout,
		PollBackoff:       config.QueuePollBackoff,
		SystemDelay:       config.QueueSystemDelay,
		MaxReceiveCount:   config.QueueMaxReceiveCount,
	})
	if !queue.Enabled() {
		logger.Warn("No queue transport configured, events are delivered inline")
	}

	registry := runtime.NewRegistry()
	session := runtime.NewSession(logger, b.store, b.archive, queue, config.RingCapacity)
	session.Load(ctx)
	tracker := runtime.NewConnectionTracker(logger, b.store)
	dispatcher := runtime.NewDispatcher(
		logger, registry, session, queue, b.store, hub, tracker, moderator, config.HistoryLimit,
	)

	// 4. Background workers, stopped in declaration order on shutdown
	heartbeat := workers.NewHeartbeatWorker(logger, registry, config.HeartbeatInterval)
	loops := []*workers.Loop{
		workers.NewLoop(logger, workers.NewInactivitySweeper(
			logger, registry, dispatcher, dispatcher, config.SweepInterval, config.InactivityThreshold,
		), config.RestartInterval),
		workers.NewLoop(logger, workers.NewConnectionJanitor(
			logger, tracker, config.CleanupInterval, config.StaleConnectionAge,
		), config.RestartInterval),
		workers.NewLoop(logger, queue, config.RestartInterval),
		workers.NewLoop(logger, heartbeat, config.RestartInterval),
	}
	for _, loop := range loops {
		loop.Start(ctx)
	}

	errChan := make(chan error, 2)

	// 5. HTTP & websocket server
	handler := ws.NewHandler(logger, dispatcher, tracker, hub, ws.Options{
		CORSOrigin:   config.CORSOrigin,
		BufferSize:   config.ConnectionBufferSize,
		HistoryLimit: config.HistoryLimit,
		Health:       heartbeat,
	})
	httpAddress := net.JoinHostPort(config.Host, fmt.Sprintf("%d", config.Port))
	httpServer := &http.Server{
		Addr:              httpAddress,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Starting HTTP server", "address", httpAddress, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 6. gRPC health server
	healthAddress := net.JoinHostPort(config.Host, fmt.Sprintf("%d", config.HealthPort))
	listener, err := net.Listen("tcp", healthAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", healthAddress, err)
	}
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(grpc3.UnaryLoggingInterceptor(logger)))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	go func() {
		logger.Info("Starting gRPC health server", "address", healthAddress)
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	exitCode, runErr := exitOK, error(nil)
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		exitCode = exitRuntime
		logger.Error("Server failure, shutting down", "error", runErr)
	}

	// 8. Graceful shutdown
	logger.Info("Shutting down gracefully...")
	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown incomplete", "error", err)
	}
	for _, loop := range loops {
		loop.Stop()
	}
	hub.Close()
	grpcServer.GracefulStop()
	logger.Info("Program stopped cleanly")

	return exitCode, runErr
}

func openBadger(ctx context.Context, config internal.Config, logger *slog.Logger) (backend, error) {
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return backend{}, fmt.Errorf("database opening failed: %w", err)
	}

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		url := fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint)
		logger.Info("Debug Badger inspector available", "url", url)
		database.StartDebugServer(db, config.DebugPort, endpoint, storage.InspectMapper)
	}

	return backend{
		store:      storage.NewBadgerStore(db, logger),
		archive:    storage.NewBadgerArchive(db),
		transport:  storage.NewBadgerQueue(db, logger, "events"),
		deadLetter: storage.NewBadgerQueue(db, logger, "dead-letter"),
		close: func() {
			logger.Info("Closing BadgerDB...")
			_ = db.Close()
		},
	}, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}

func openAWS(ctx context.Context, config internal.Config, logger *slog.Logger) (backend, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(config.AWSRegion))
	if err != nil {
		return backend{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	endpoint := config.AWSEndpointURL

	dynamoClient := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	store, err := cloud.NewDynamoStore(dynamoClient, map[string]string{
		contract.TableParticipants: config.UsersTable,
		contract.TableConnections:  config.ConnectionsTable,
		contract.TableMessages:     config.MessagesTable,
		contract.TableArchives:     config.ArchivesTable,
	})
	if err != nil {
		return backend{}, err
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	archive, err := cloud.NewS3Archive(s3Client, config.S3BucketName)
	if err != nil {
		return backend{}, err
	}

	b := backend{store: store, archive: archive, close: func() {}}

	sqsClient := sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	if config.SQSQueueURL != "" {
		if b.transport, err = cloud.NewSQSTransport(sqsClient, config.SQSQueueURL); err != nil {
			return backend{}, err
		}
	}
	if config.SQSDeadLetterQueueURL != "" {
		if b.deadLetter, err = cloud.NewSQSTransport(sqsClient, config.SQSDeadLetterQueueURL); err != nil {
			return backend{}, err
		}
	}

	logger.Info("AWS backend ready",
		"region", config.AWSRegion, "bucket", config.S3BucketName,
		"queue", config.SQSQueueURL != "", "dead_letter", config.SQSDeadLetterQueueURL != "")
	return b, nil
}
