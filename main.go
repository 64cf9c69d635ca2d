package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	gorillahandlers "github.com/gorilla/handlers"
	"go.uber.org/zap"

	"github.com/pliu/chatapp/internal/auth"
	"github.com/pliu/chatapp/internal/config"
	"github.com/pliu/chatapp/internal/handlers"
	"github.com/pliu/chatapp/internal/logger"
	"github.com/pliu/chatapp/internal/store"
	"github.com/pliu/chatapp/internal/store/mongostore"
	"github.com/pliu/chatapp/internal/store/sqlstore"
	"github.com/pliu/chatapp/internal/ws"
)

func main() {
	cfg, err := config.Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse config: %v", err)
	}

	logg, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logg.Sync()
	zap.ReplaceGlobals(logg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Fatal("server exited", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.DBDriver {
	case "mongo":
		return mongostore.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return sqlstore.New(cfg.DBDriver, cfg.DBDSN)
	}
}

func run(ctx context.Context, cfg config.Config, logg *zap.Logger) error {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	// Initialize WebSocket Hub
	hub := ws.NewHub(logg.Named("ws"))
	go hub.Run(ctx)

	router := handlers.NewRouter(handlers.RouterConfig{
		Store:        st,
		Hub:          hub,
		Signer:       auth.NewSigner(cfg.JWTSecret, cfg.JWTTTL),
		Log:          logg,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	cors := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(cfg.CORSOrigins),
		gorillahandlers.AllowedMethods([]string{"GET", "POST", "PUT", "OPTIONS"}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type", "token"}),
	)

	srv := &http.Server{Addr: cfg.Addr, Handler: cors(router)}
	errCh := make(chan error, 1)
	go func() {
		logg.Info("starting server", zap.String("addr", cfg.Addr), zap.String("store", cfg.DBDriver))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
