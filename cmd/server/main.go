package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/mbark223/aipromptbuilder-sub002/identity/oidcidp"
	"github.com/mbark223/aipromptbuilder-sub002/internal/config"
	"github.com/mbark223/aipromptbuilder-sub002/internal/metrics"
	"github.com/mbark223/aipromptbuilder-sub002/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	var (
		port       string
		gatePolicy string
	)

	rootCmd := &cobra.Command{
		Use:   "gateway",
		Short: "Session and CSRF gateway",
		Long: `Runs the session gateway in front of the application's pages.

Configuration is read from the environment (ENV, PORT, IDP_ISSUER_URL,
IDP_CLIENT_ID, SESSION_SECRET, REDIS_URL, ...). Flags override the
matching environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), config.New(
				config.WithPort(port),
				config.WithGatePolicyFile(gatePolicy),
			))
		},
	}
	rootCmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	rootCmd.Flags().StringVar(&gatePolicy, "gate-policy", "", "YAML gate policy file (overrides GATE_POLICY_FILE)")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run(ctx context.Context, c config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	setupLogging(c)
	displayAppname(c.GetAppName())

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	provider, err := oidcidp.NewFromConfig(ctx, c, oidcidp.WithObserver(m.ObserveIdentityCall))
	if err != nil {
		return fmt.Errorf("[run] identity provider: %w", err)
	}
	defer func() {
		if err := provider.Close(); err != nil {
			log.Err(err).Msg("failed to close identity provider")
		}
	}()
	handler, err := server.New(c, provider, server.WithMetrics(m, registry))
	if err != nil {
		return fmt.Errorf("[run] server: %w", err)
	}

	srv := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- listenAndServe(srv)
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.GetLogLevel()))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if !c.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
