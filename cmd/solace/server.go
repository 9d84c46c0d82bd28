package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/solace/internal/api"
	"github.com/kalambet/solace/internal/command"
	"github.com/kalambet/solace/internal/composer"
	"github.com/kalambet/solace/internal/config"
	"github.com/kalambet/solace/internal/dataset"
	"github.com/kalambet/solace/internal/dispatch"
	"github.com/kalambet/solace/internal/persona"
	"github.com/kalambet/solace/internal/pipeline"
	"github.com/kalambet/solace/internal/provider"
	"github.com/kalambet/solace/internal/storage"
	"github.com/kalambet/solace/internal/translate"
)

const defaultProviderTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the solace server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mcpStdio, _ := cmd.Flags().GetBool("mcp")
		return runServer(mcpStdio)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show solace system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", true, "serve MCP over stdin/stdout alongside HTTP")
}

func newLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// buildOrchestrator assembles the reply pipeline from configuration.
func buildOrchestrator(cfg config.Config, store *storage.Store, logger *slog.Logger) *pipeline.Orchestrator {
	timeout, err := time.ParseDuration(cfg.Providers.Timeout)
	if err != nil || timeout <= 0 {
		logger.Warn("invalid provider timeout, using default 30s", "value", cfg.Providers.Timeout, "error", err)
		timeout = defaultProviderTimeout
	}

	opts := []dispatch.Option{
		dispatch.WithPrimary(provider.NewHosted(provider.Primary, cfg.Providers.PrimaryURL, timeout)),
		dispatch.WithSecondary(provider.NewHosted(provider.Secondary, cfg.Providers.SecondaryURL, timeout)),
		dispatch.WithTranslator(translate.New(cfg.Translate.BaseURL, cfg.Translate.APIKey)),
		dispatch.WithComposer(composer.New(cfg.Reply.MaxContextTokens)),
		dispatch.WithLogger(logger),
	}
	if cfg.OpenAI.APIKey != "" {
		opts = append(opts, dispatch.WithGenerator(
			provider.NewOpenAIWithBaseURL(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL),
		))
	} else {
		logger.Info("OpenAI API key not set; the general-purpose model is skipped")
	}

	return pipeline.NewOrchestrator(
		command.NewInterceptor(store, logger),
		dispatch.New(opts...),
		store,
		logger,
	)
}

// personaDefaults builds the persona used until settings are saved, with
// dataset files loaded as the default grounding text.
func personaDefaults(cfg config.Config, logger *slog.Logger) persona.Persona {
	pref, err := provider.Parse(cfg.Reply.ModelPreference)
	if err != nil || pref == provider.Command {
		logger.Warn("invalid model preference, using primary", "value", cfg.Reply.ModelPreference)
		pref = provider.Primary
	}
	p := persona.Persona{
		Personality:       cfg.Reply.Personality,
		ModelPreference:   pref,
		UseDatasetContext: true,
	}

	if paths := cfg.DatasetPaths(); len(paths) > 0 {
		text, err := dataset.LoadAll(paths)
		if err != nil {
			logger.Warn("loading dataset failed, continuing without it", "error", err)
		} else {
			p.DatasetContext = text
			logger.Info("dataset loaded", "files", len(paths), "tokens", composer.EstimateTokens(text))
		}
	}
	return p
}

func runServer(mcpStdio bool) error {
	fmt.Fprintf(os.Stderr, "solace version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	deps := api.Deps{
		Store:     store,
		Persona:   persona.NewManager(store, personaDefaults(cfg, logger)),
		Responder: buildOrchestrator(cfg, store, logger),
		Logger:    logger,
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(deps),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "solace listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if mcpStdio {
		stdioSrv := server.NewStdioServer(api.NewMCPServer(deps))
		g.Go(func() error {
			// Stdin closing ends MCP only; HTTP keeps serving.
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
		logger.Info("MCP server started (stdio transport)")
	}

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Primary", "%s", cfg.Providers.PrimaryURL)
	printStatus("Secondary", "%s", cfg.Providers.SecondaryURL)
	if cfg.OpenAI.APIKey != "" {
		printStatus("OpenAI", "%s (%s)", cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
	} else {
		printStatus("OpenAI", "disabled (no API key)")
	}
	printStatus("Translate", "%s", cfg.Translate.BaseURL)

	if running {
		for _, c := range []struct{ label, path string }{
			{"Interactions", "/interactions?limit=100"},
			{"Reminders", "/reminders?limit=100"},
			{"Memory aids", "/memory-aids?limit=100"},
		} {
			r, err := client.Get(serverURL + c.path)
			if err != nil {
				continue
			}
			var items []json.RawMessage
			if json.NewDecoder(r.Body).Decode(&items) == nil {
				printStatus(c.label, "%s", countLabel(len(items), 100))
			}
			r.Body.Close()
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
