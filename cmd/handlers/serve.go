package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collegecontent/internal/logger"
	"collegecontent/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// shutdownTimeout bounds the graceful drain of in-flight requests
const shutdownTimeout = 30 * time.Second

// NewServeCmd creates the serve command for starting the HTTP server
func NewServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the JSON API for staged content sessions",
		Long: `Start the collegecontent API server.

The server provides:
  • Session endpoints that run each content stage on demand
  • College search and content type listings
  • Health check and status endpoints

Sessions live in memory and expire after workflow.session_ttl of inactivity.

Examples:
  # Start server on default port 8080
  collegecontent serve

  # Start on custom port
  collegecontent serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")

	return cmd
}

func runServe(ctx context.Context, port int, host string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt, err := openRuntime(ctx, runtimeOptions{gateway: true, store: true, trends: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	// Servers log JSON unless the config asks otherwise
	if !viper.IsSet("logging.format") {
		logger.Configure(rt.cfg.Logging.Level, "json")
	}
	log := logger.Get()

	// Override server config from flags if provided
	serverCfg := rt.cfg.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	checks := map[string]server.Checker{"llm": rt.gateway}
	if rt.store != nil {
		checks["database"] = rt.store
	} else {
		log.Warn().Msg("Serving without a college database; only CSV sessions will work")
	}

	srv := server.New(rt.orch, serverCfg, checks)

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		log.Info().Msg(fmt.Sprintf("Server listening on http://%s:%d", serverCfg.Host, serverCfg.Port))
		log.Info().Msg("Press Ctrl+C to stop")
		serverErrors <- srv.Start(ctx)
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive our signal or an error from server
	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case sig := <-shutdown:
		log.Info().Str("signal", sig.String()).Msg("Server shutdown initiated")
		cancel()

		// Create shutdown context with timeout
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		// Attempt graceful shutdown
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown failed, forcing close")
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		log.Info().Msg("Server stopped successfully")
	}

	return nil
}
