// Command connectfour starts the Connect Four multiplayer server.
//
// It supports two modes:
//  1. "serve" (default): runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp": runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Flags (or CONNECTFOUR_* environment variables) control host/port, the idle
// room sweep, the match archive backend, player tokens, debug logging and
// optional ngrok tunneling for easy external access during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/connectfour/api"
	"github.com/wricardo/connectfour/auth"
	"github.com/wricardo/connectfour/game/archive"
	"github.com/wricardo/connectfour/game/config"
	"github.com/wricardo/connectfour/game/service"
	"github.com/wricardo/connectfour/game/session"
	"github.com/wricardo/connectfour/transport/mcp"
	"github.com/wricardo/connectfour/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Connect Four Server"
)

func main() {
	// Load .env file if it exists (ignore error if not found)
	envErr := godotenv.Load()

	cfg := config.Default()
	cmd := newRootCmd(cfg)
	if envErr != nil && !os.IsNotExist(envErr) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", envErr)
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Running the root command is the same
// as running "serve".
func newRootCmd(cfg *config.Config) *cobra.Command {
	var logger *zap.Logger

	root := &cobra.Command{
		Use:     "connectfour",
		Short:   "Multiplayer Connect Four over WebSocket, REST and MCP",
		Args:    cobra.NoArgs,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ApplyEnv(cmd.Flags(), config.NewViper()); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			var err error
			logger, err = newLogger(cfg.Debug)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	serve := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server", "http"},
		Short:   "Run HTTP server with API, WebSocket, and MCP endpoint",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHTTPServer(cmd.Context(), cfg, logger)
		},
	}

	stdio := &cobra.Command{
		Use:     "stdio-mcp",
		Aliases: []string{"mcp-stdio", "mcp"},
		Short:   "Run MCP stdio server with internal HTTP server",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStdioMCP(cmd.Context(), cfg, logger)
		},
	}

	root.RunE = serve.RunE
	root.AddCommand(serve, stdio)

	cfg.BindFlags(root.PersistentFlags())

	root.CompletionOptions.HiddenDefaultCmd = true
	root.SetVersionTemplate(AppName + " v{{.Version}}\n")
	root.SilenceErrors = true
	root.SilenceUsage = true

	return root
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// app is the wired set of services behind one HTTP handler.
type app struct {
	logger  *zap.Logger
	hub     *websocket.Hub
	service service.GameService
	store   archive.Store
	handler http.Handler
}

// buildApp wires the registry, archive, hub and game service. baseURL is
// where the /mcp endpoint sends its REST calls.
func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, baseURL string) (*app, error) {
	store, err := archive.Open(ctx, cfg.ArchiveConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s archive: %w", cfg.Archive, err)
	}

	hub := websocket.NewHub(logger.Named("ws"))
	registry := session.NewRegistry(session.WithLogger(logger.Named("rooms")))
	gameService := service.NewGameService(registry,
		service.WithNotifier(hub),
		service.WithArchive(store),
		service.WithLogger(logger.Named("service")),
	)

	opts := []api.Option{
		api.WithLogger(logger.Named("http")),
		api.WithPublicURL(cfg.PublicURL),
	}
	if cfg.JWTSecret != "" {
		signer, err := auth.NewSigner(cfg.JWTSecret, auth.DefaultTTL)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to create token signer: %w", err)
		}
		opts = append(opts, api.WithSigner(signer))
	}
	apiServer := api.NewServer(gameService, hub, opts...)

	mcpClient := mcp.NewClient(baseURL)
	apiServer.Router().HandleFunc("/mcp", mcpHandler(mcpClient)).Methods("POST")

	return &app{
		logger:  logger,
		hub:     hub,
		service: gameService,
		store:   store,
		handler: apiServer,
	}, nil
}

// mcpHandler serves MCP JSON-RPC messages over plain HTTP POST.
func mcpHandler(mcpClient *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// startReaper schedules the idle room sweep.
func startReaper(ctx context.Context, cfg *config.Config, gameService service.GameService, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(cfg.ReapSchedule, func() {
		if n := gameService.ReapIdle(ctx, cfg.IdleTTL); n > 0 {
			logger.Info("reaped idle rooms", zap.Int("count", n), zap.Duration("idle_ttl", cfg.IdleTTL))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reap schedule %q: %w", cfg.ReapSchedule, err)
	}
	c.Start()
	return c, nil
}

// runHTTPServer starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled, it also provisions a public tunnel.
func runHTTPServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := cfg.Addr()
	a, err := buildApp(ctx, cfg, logger, cfg.BaseURL())
	if err != nil {
		return err
	}
	defer a.store.Close()

	go a.hub.Run(ctx)

	reaper, err := startReaper(ctx, cfg, a.service, logger)
	if err != nil {
		return err
	}
	defer func() { <-reaper.Stop().Done() }()

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Info("HTTP server listening",
			zap.String("addr", addr),
			zap.String("api", cfg.BaseURL()+"/api"),
			zap.String("ws", cfg.BaseURL()+"/ws?player=<name>"),
			zap.String("mcp", cfg.BaseURL()+"/mcp"),
			zap.String("archive", cfg.Archive),
		)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if cfg.Ngrok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cfg, a.handler, logger)
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		stop()
		wg.Wait()
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	}
	if err := a.service.Flush(shutdownCtx); err != nil {
		logger.Warn("archive writes still pending", zap.Error(err))
	}

	wg.Wait()
	logger.Info("server stopped")
	return nil
}

// runNgrok serves handler through an ngrok tunnel until ctx is done.
func runNgrok(ctx context.Context, cfg *config.Config, handler http.Handler, logger *zap.Logger) {
	authToken := cfg.NgrokAuthtoken
	if authToken == "" {
		authToken = os.Getenv("NGROK_AUTHTOKEN")
	}
	if authToken == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-authtoken or NGROK_AUTHTOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if cfg.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.NgrokDomain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", zap.Error(err))
		return
	}

	ngrokURL := tun.URL()
	logger.Info("ngrok tunnel established",
		zap.String("url", ngrokURL),
		zap.String("ws", ngrokURL+"/ws?player=<name>"),
		zap.String("mcp", ngrokURL+"/mcp"),
	)

	tunnelServer := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tunnelServer.Shutdown(shutdownCtx)
	}()

	if err := tunnelServer.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("ngrok server error", zap.Error(err))
	}
	logger.Info("ngrok tunnel closed")
}

// externalAPIAvailable reports whether a server already answers at baseURL.
func externalAPIAvailable(baseURL string) bool {
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(baseURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// runStdioMCP runs an MCP stdio server.
// It tries to reuse an external API at the configured address; if unavailable, it
// starts an internal HTTP API bound to a random loopback port and targets that.
func runStdioMCP(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	baseURL := cfg.BaseURL()
	if externalAPIAvailable(baseURL) {
		logger.Info("external API server found, using it for MCP", zap.String("url", baseURL))
	} else {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()

		a, err := buildApp(ctx, cfg, logger, baseURL)
		if err != nil {
			listener.Close()
			return err
		}
		defer a.store.Close()
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			a.service.Flush(flushCtx)
		}()

		go a.hub.Run(ctx)
		reaper, err := startReaper(ctx, cfg, a.service, logger)
		if err != nil {
			listener.Close()
			return err
		}
		defer reaper.Stop()

		httpServer := &http.Server{Handler: a.handler}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("internal HTTP server error", zap.Error(err))
			}
		}()
		defer httpServer.Close()

		logger.Info("started internal HTTP server for MCP stdio", zap.String("url", baseURL))
	}

	mcpClient := mcp.NewClient(baseURL)
	logger.Info("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
