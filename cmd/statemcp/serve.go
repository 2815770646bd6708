package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TobiWan1995/statemcp"
	"github.com/TobiWan1995/statemcp/internal/logging"
	"github.com/TobiWan1995/statemcp/pkg/adapters/memory"
	redisstore "github.com/TobiWan1995/statemcp/pkg/adapters/redis"
	"github.com/TobiWan1995/statemcp/pkg/persistence/middleware"
	"github.com/TobiWan1995/statemcp/pkg/ports"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the demo MCP server",
	Long: `Starts the bundled dungeon demo as an MCP server.

Supported transports:
- stdio (default): Standard Input/Output. Ideal for local process integration.
- sse: Server-Sent Events over HTTP, with /metrics and /healthz on the same
  listener. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("transport") {
			cfg.Transport, _ = cmd.Flags().GetString("transport")
		}
		if cmd.Flags().Changed("port") {
			cfg.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
		}
		if cmd.Flags().Changed("log-format") {
			cfg.LogFormat, _ = cmd.Flags().GetString("log-format")
		}
		if cmd.Flags().Changed("redis") {
			cfg.Redis.Address, _ = cmd.Flags().GetString("redis")
		}
		if cmd.Flags().Changed("session-ttl") {
			cfg.SessionTTL, _ = cmd.Flags().GetDuration("session-ttl")
		}

		level, err := parseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		var logger *slog.Logger
		if cfg.LogFormat == "json" {
			logger = logging.NewJSON(level)
		} else {
			logger = logging.New(level)
		}
		slog.SetDefault(logger)

		var store ports.SessionStore
		if cfg.Redis.Address != "" {
			store = redisstore.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
			logger.Info("using redis session store", "address", cfg.Redis.Address)
		}
		if cfg.EncryptionKey != "" {
			key, err := base64.StdEncoding.DecodeString(cfg.EncryptionKey)
			if err != nil {
				return fmt.Errorf("failed to decode encryption key: %w", err)
			}
			if len(key) != 32 {
				return fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
			}
			if store == nil {
				store = memory.New()
			}
			store = middleware.Chain(store, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
			logger.Info("session records are encrypted at rest")
		}

		var opts []statemcp.Option
		if cfg.SessionTTL > 0 {
			opts = append(opts, statemcp.WithSessionTTL(cfg.SessionTTL))
		}
		srv := newDemoServer(logger, store, opts...)
		if err := srv.Start(cmd.Context()); err != nil {
			return err
		}

		switch cfg.Transport {
		case "stdio":
			// Ensure logs don't corrupt JSON-RPC on Stdout.
			log.SetOutput(os.Stderr)
			logger.Info("starting MCP server (stdio)")
			return srv.ServeStdio()
		case "sse":
			logger.Info("starting MCP server (SSE)", "port", cfg.Port)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.ServeSSE(ctx, cfg.Port); err != nil && err != http.ErrServerClosed {
				return err
			}
			logger.Info("MCP server stopped gracefully")
			return nil
		default:
			return &unknownTransportError{transport: cfg.Transport}
		}
	},
}

type unknownTransportError struct {
	transport string
}

func (e *unknownTransportError) Error() string {
	return "unknown transport: " + e.transport + " (supported: stdio, sse)"
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on (only for SSE)")
	serveCmd.Flags().String("log-level", "info", "Log level: debug, info, warn, error")
	serveCmd.Flags().String("log-format", "text", "Log format: text or json")
	serveCmd.Flags().String("redis", "", "Redis address for the shared session store (e.g. localhost:6379)")
	serveCmd.Flags().Duration("session-ttl", 0, "Evict sessions idle for longer than this (0 disables)")
}
