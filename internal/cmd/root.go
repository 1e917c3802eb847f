package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/noot-app/food-explorer/internal/auth"
	"github.com/noot-app/food-explorer/internal/config"
	"github.com/noot-app/food-explorer/internal/dataset"
	"github.com/noot-app/food-explorer/internal/gateway"
	"github.com/noot-app/food-explorer/internal/input"
	"github.com/noot-app/food-explorer/internal/mcpgo"
	"github.com/noot-app/food-explorer/internal/orchestrator"
	"github.com/noot-app/food-explorer/internal/persistence"
	"github.com/noot-app/food-explorer/internal/query"
	"github.com/noot-app/food-explorer/internal/store"
	"github.com/noot-app/food-explorer/internal/version"
	"github.com/spf13/cobra"
)

const longDescription = `Food Explorer is a catalog browsing session over Open Food Facts,
driven through MCP tools: search by name or barcode, filter by category,
sort, page through results, inspect products and keep a shopping cart.

The server operates in three modes:

1. STDIO Mode (--stdio): For local MCP clients
   - Uses stdio pipes for communication
   - No authentication required

2. HTTP Mode (default): For remote deployment
   - Streamable MCP endpoint at /mcp behind Bearer token authentication
   - Open /health endpoint that checks the cart store

3. Fetch Database Mode (--fetch-db): Download the offline dataset and exit
   - Downloads/updates the Open Food Facts Parquet dump
   - Verifies it against the recorded hash

Products come from the Open Food Facts API by default. With --offline (or
OFFLINE=true) they are read from the local Parquet dump through DuckDB.
GATEWAY_MOCK=true serves a small built-in catalog.

The cart is saved after every change to the store chosen by CART_STORE
(file, sqlite or redis) and restored on the next start.`

// newRootCmd builds the command tree. Tests get a fresh command each time.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "food-explorer",
		Short:         "Open Food Facts catalog explorer served over MCP",
		Long:          longDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
				cmd.Println(version.String())
				return nil
			}

			if fetchDB, _ := cmd.Flags().GetBool("fetch-db"); fetchDB {
				return runFetchDBMode(cmd)
			}

			stdio, _ := cmd.Flags().GetBool("stdio")
			return runServer(cmd, stdio)
		},
	}

	cmd.Flags().Bool("stdio", false, "Run in stdio mode for local MCP clients (default: HTTP mode)")
	cmd.Flags().Bool("fetch-db", false, "Fetch the offline dataset and exit")
	cmd.Flags().Bool("offline", false, "Serve products from the local Parquet dump instead of the remote API")
	cmd.Flags().Bool("version", false, "Print version information and exit")

	return cmd
}

// loadConfig reads the environment and applies command-line overrides
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg := config.Load()
	if offline, _ := cmd.Flags().GetBool("offline"); offline {
		cfg.Offline = true
	}
	return cfg
}

// runFetchDBMode downloads or refreshes the dataset, verifies it and exits
func runFetchDBMode(cmd *cobra.Command) error {
	logger := config.NewTextLogger(cmd.OutOrStdout())
	cfg := loadConfig(cmd)

	logger.Info("🗄️  Starting database fetch",
		"mode", "fetch-db",
		"target_dir", filepath.Dir(cfg.ParquetPath))

	logger.Info("⚠️  Large dataset warning",
		"message", "The Open Food Facts dataset is several GB in size",
		"note", "Initial download may take several minutes depending on your internet connection")

	manager := dataset.NewManager(cfg, logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := manager.EnsureDataset(ctx); err != nil {
		logger.Error("Failed to fetch dataset", "error", err)
		return err
	}

	if err := manager.Verify(); err != nil {
		logger.Error("Dataset verification failed", "error", err)
		return err
	}

	logger.Info("✅ Database fetch completed successfully",
		"parquet_path", cfg.ParquetPath,
		"metadata_path", cfg.MetadataPath)

	return nil
}

// runServer builds the session and serves it on stdio or HTTP
func runServer(cmd *cobra.Command, stdio bool) error {
	// In stdio mode stdout carries MCP traffic, logs go to stderr
	logger := config.NewLogger(stdio)
	cfg := loadConfig(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start session", "error", err)
		return err
	}
	defer a.Close()

	srv := mcpgo.NewServer(a.session, a.slot, auth.NewBearerTokenAuth(cfg.AuthToken), logger)

	if stdio {
		logger.Info("🔌 Starting Food Explorer in STDIO mode",
			"mode", "stdio",
			"auth", "not required for stdio mode",
			"offline", cfg.Offline)
		return srv.ServeStdio()
	}

	logger.Info("🌐 Starting Food Explorer in HTTP mode",
		"mode", "http",
		"auth", "Bearer token required (except /health endpoint)",
		"port", cfg.Port,
		"offline", cfg.Offline)
	return srv.ServeHTTP(":" + cfg.Port)
}

// app is one running session with the resources it owns
type app struct {
	session mcpgo.Session
	slot    persistence.Slot
	bridge  *persistence.Bridge
	closers []io.Closer
	log     *slog.Logger
}

// newApp wires gateway, store, cart persistence, orchestrator and search
// input, restores the saved cart and loads the first page
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{log: config.Component(logger, "app")}

	gw, closer, err := newGateway(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	slot, err := persistence.OpenSlot(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open cart store: %w", err)
	}
	a.slot = slot
	a.closers = append(a.closers, slot)

	st := store.New(store.WithLogger(logger))

	a.bridge = persistence.NewBridge(st, slot, logger)
	a.bridge.Start(ctx)

	orch := orchestrator.New(st, gw, cfg.PageSize, logger)
	orch.LoadCategories(ctx)
	orch.Sync(ctx)

	a.session = mcpgo.Session{
		Store:        st,
		Orchestrator: orch,
		Search:       input.NewSearchBox(st, orch, cfg.Debounce(), logger),
	}

	state := st.State()
	a.log.Info("Session ready",
		"products", len(state.Products),
		"categories", len(state.Categories),
		"cart_items", state.CartItemCount(),
		"error", state.Error)

	return a, nil
}

// Close drops pending search input, stops saving the cart and releases the gateway and the cart store
func (a *app) Close() error {
	if a.session.Search != nil {
		a.session.Search.Stop()
	}
	if a.bridge != nil {
		a.bridge.Stop()
	}
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newGateway picks the product source: the built-in mock, the offline
// dump, or the remote API. The closer is nil when nothing needs releasing.
func newGateway(ctx context.Context, cfg *config.Config, logger *slog.Logger) (gateway.Gateway, io.Closer, error) {
	switch {
	case cfg.GatewayMock:
		logger.Info("Using mock product gateway")
		return gateway.NewMockGateway(logger), nil, nil

	case cfg.Offline:
		manager := dataset.NewManager(cfg, logger)
		if err := manager.EnsureDataset(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to ensure dataset: %w", err)
		}

		engine, err := query.NewEngine(manager.Path(), cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create query engine: %w", err)
		}
		if err := engine.TestConnection(ctx); err != nil {
			engine.Close()
			return nil, nil, err
		}

		logger.Info("Using offline product gateway", "parquet_path", manager.Path())
		return engine, engine, nil

	default:
		logger.Info("Using remote product gateway", "base_url", cfg.BaseURL)
		return gateway.NewClient(cfg, logger), nil, nil
	}
}

// Execute runs the root command
func Execute() error {
	return newRootCmd().Execute()
}

// Run is the main entry point for the CLI application
func Run() error {
	return Execute()
}
