// Package chatroomnotifier assembles the notifier: the Pub/Sub streaming
// pipeline, the HTTP trigger and the token registration API.
package chatroomnotifier

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-chatroom-notifier/chatroomnotifier/config"
	"github.com/tinywideclouds/go-chatroom-notifier/internal/api"
	"github.com/tinywideclouds/go-chatroom-notifier/internal/compose"
	"github.com/tinywideclouds/go-chatroom-notifier/internal/fanout"
	"github.com/tinywideclouds/go-chatroom-notifier/internal/notifier"
	"github.com/tinywideclouds/go-chatroom-notifier/internal/participants"
	"github.com/tinywideclouds/go-chatroom-notifier/internal/pipeline"
	"github.com/tinywideclouds/go-chatroom-notifier/pkg/chatroom"
	"github.com/tinywideclouds/go-chatroom-notifier/pkg/dispatch"
)

// Stores groups the document store adapters the notifier reads and writes.
type Stores struct {
	Profiles  dispatch.ProfileStore
	Tokens    dispatch.TokenStore
	Chatrooms dispatch.ChatroomStore
}

type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[chatroom.ChangeEvent]
	logger          *slog.Logger
}

// New assembles the service.
func New(
	cfg *config.Config,
	consumer messagepipeline.MessageConsumer,
	transport dispatch.Transport,
	stores Stores,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Orchestrator
	composer := compose.New(compose.Strings{
		Title:          cfg.Messages.Title,
		UnknownSender:  cfg.Messages.UnknownSender,
		Emoticon:       cfg.Messages.Emoticon,
		UnknownMessage: cfg.Messages.UnknownMessage,
	}, cfg.Push.ClickAction)

	n := notifier.New(
		stores.Chatrooms,
		participants.NewResolver(stores.Profiles, logger),
		stores.Tokens,
		composer,
		fanout.NewDispatcher(transport, stores.Tokens, stores.Profiles, logger),
		notifier.Options{IncludeLegacyTokens: cfg.Push.IncludeLegacyTokens},
		logger,
	)

	// 3. Pipeline
	streamingService, err := messagepipeline.NewStreamingService(
		messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
		consumer,
		pipeline.ChangeEventTransformer,
		pipeline.NewProcessor(n, logger),
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming service: %w", err)
	}

	// 4. API
	tokenAPI := api.NewTokenAPI(stores.Tokens, logger)
	eventAPI := api.NewEventAPI(n, logger)

	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)
	noop := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	// OPTIONS
	mux.Handle("OPTIONS /api/v1/tokens/register", corsMiddleware(noop))
	mux.Handle("OPTIONS /api/v1/tokens/unregister", corsMiddleware(noop))

	// Protected
	mux.Handle("POST /api/v1/tokens/register", corsMiddleware(authMiddleware(http.HandlerFunc(tokenAPI.RegisterToken))))
	mux.Handle("POST /api/v1/tokens/unregister", corsMiddleware(authMiddleware(http.HandlerFunc(tokenAPI.UnregisterToken))))
	mux.Handle("POST /api/v1/events/chatroom", authMiddleware(http.HandlerFunc(eventAPI.HandleChatroomUpdate)))

	return &Wrapper{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		logger:          logger,
	}, nil
}

func (w *Wrapper) Start(ctx context.Context) error {
	w.logger.Info("Core processing pipeline starting...")
	if err := w.pipelineService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start processing service: %w", err)
	}
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if err := w.pipelineService.Stop(ctx); err != nil {
		w.logger.Error("Processing pipeline shutdown failed.", "err", err)
		finalErr = err
	}
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}
