package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quizcat-service/internal/config"
	"quizcat-service/internal/logger"
	transport "quizcat-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
	cmd.Flags().StringVar(port, "port", "", "port to listen on (overrides config and PORT)")
	return cmd
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, log, err := setup(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret (JWT_SECRET) is required")
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	svc, err := buildServices(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	if cfg.Log.Mode == "prod" || cfg.Log.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := transport.NewRouter(transport.RouterConfig{
		Quiz:        svc.quiz,
		Questions:   svc.questions,
		Progress:    svc.progress,
		Rewards:     svc.rewards,
		Profiles:    svc.profiles,
		Auth:        transport.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Admins:      cfg.Auth.Admins,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      log,
		Metrics:     svc.metrics,
	})

	// WriteTimeout stays zero: websocket connections are long-lived.
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting quiz service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		svc.quiz.RunReplayer(gctx, config.TTLDuration(cfg.Quiz.ReplayInterval, 30*time.Second))
		return nil
	})
	g.Go(func() error {
		svc.quiz.RunSweeper(gctx, time.Minute)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		return shutdown(server, svc, log)
	})
	return g.Wait()
}

func shutdown(server *http.Server, svc *services, log *logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := server.Shutdown(ctx)
	if n, rerr := svc.quiz.ReplayPending(ctx); rerr != nil {
		log.Warn("final replay of parked answers", "error", rerr)
	} else if n > 0 {
		log.Info("flushed parked answers before exit", "count", n)
	}
	return err
}
