package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nlzhang/study-buddy/backend/internal/config"
	"github.com/nlzhang/study-buddy/backend/internal/handler"
	"github.com/nlzhang/study-buddy/backend/internal/handler/events"
	"github.com/nlzhang/study-buddy/backend/internal/service/ai"
	"github.com/nlzhang/study-buddy/backend/internal/service/app"
	"github.com/nlzhang/study-buddy/backend/internal/service/conversation"
	"github.com/nlzhang/study-buddy/backend/internal/service/session"
	"github.com/nlzhang/study-buddy/backend/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store, err := storage.OpenSQLite(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("failed to open storage at %s: %v", cfg.Storage.Path, err)
	}
	defer store.Close()

	sessionStore := session.NewStore(store)
	defer sessionStore.Close()

	hub := events.NewHub()
	sessionStore.SetListener(hub.SessionListener())

	// The responder is optional: without credentials the engine absorbs
	// every send into the fixed fallback reply.
	var responder conversation.Responder
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without AI functionality")
		} else {
			responder = aiService
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("Ark credentials not configured, skipping AI initialization")
	}

	engine := conversation.NewEngine(sessionStore, responder)

	controller := app.NewController(store, sessionStore)
	controller.Startup(ctx)
	if user, ok := controller.User(); ok {
		log.Printf("restored identity %s (%s)", user.Name, user.Email)
	}

	router := handler.NewRouter(controller, engine, hub)

	startServer(ctx, cfg.Server, router)

	// Drain pending session writes before the store closes.
	sessionStore.Flush()
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("StudyBuddy backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
