package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/notewire/notewire"
	"github.com/notewire/notewire/pkg/auth"
	"github.com/notewire/notewire/pkg/transport/ws"
)

var (
	serveConfigPath string
	serveListen     string
	serveSecret     string
)

// serveConfig is the YAML configuration for the serve command. Durations
// are strings in Go duration syntax ("100ms", "15s").
type serveConfig struct {
	Listen          string `yaml:"listen"`
	Adapter         string `yaml:"adapter"`
	URI             string `yaml:"uri"`
	JWTSecret       string `yaml:"jwt_secret"`
	CommentDebounce string `yaml:"comment_debounce"`
	RescanDebounce  string `yaml:"rescan_debounce"`
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the coordinator server",
	Long: `Serve exposes the subscription coordinator over WebSocket. Frames connect
to /ws with tab, frame and token parameters and drive their subscriptions
with JSON envelopes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := serveConfig{
			Listen:  ":8787",
			Adapter: adapter,
			URI:     uri,
		}
		if serveConfigPath != "" {
			data, err := os.ReadFile(serveConfigPath)
			if err != nil {
				fatal("Failed to read config", err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				fatal("Failed to parse config", err)
			}
		}
		// Flags win over the config file.
		if serveListen != "" {
			cfg.Listen = serveListen
		}
		if serveSecret != "" {
			cfg.JWTSecret = serveSecret
		}
		if cmd.Flags().Changed("adapter") || cfg.Adapter == "" {
			cfg.Adapter = adapter
		}
		if cmd.Flags().Changed("uri") || cfg.URI == "" {
			cfg.URI = uri
		}
		if cfg.JWTSecret == "" {
			fatal("Missing configuration", fmt.Errorf("a JWT secret is required (--secret or jwt_secret)"))
		}

		commentDebounce, err := parseDuration(cfg.CommentDebounce)
		if err != nil {
			fatal("Invalid comment_debounce", err)
		}
		rescanDebounce, err := parseDuration(cfg.RescanDebounce)
		if err != nil {
			fatal("Invalid rescan_debounce", err)
		}

		target := cfg.URI
		if target == "" {
			target, err = resolveURI()
			if err != nil {
				fatal("No store URI", err)
			}
		}

		logger := slog.Default()
		codec := auth.NewTokenCodec([]byte(cfg.JWTSecret))
		hub := ws.NewHub(ws.Config{Tokens: codec, Logger: logger})

		svc, err := notewire.New(target,
			notewire.WithAdapter(cfg.Adapter),
			notewire.WithTransport(hub),
			notewire.WithLogger(logger),
			notewire.WithCommentDebounce(commentDebounce),
			notewire.WithRescanDebounce(rescanDebounce),
		)
		if err != nil {
			fatal("Failed to assemble service", err)
		}
		hub.BindMux(svc.Registry)

		mux := http.NewServeMux()
		mux.Handle("/ws", hub)
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, "ok")
		})

		server := &http.Server{Addr: cfg.Listen, Handler: mux}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logger.Info("notewire serving", "listen", cfg.Listen, "adapter", cfg.Adapter)
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			fatal("Server failed", err)
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("shutdown failed", "error", err)
			}
		}
	},
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to a YAML config file")
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (default :8787)")
	serveCmd.Flags().StringVar(&serveSecret, "secret", "", "JWT signing secret")
}
