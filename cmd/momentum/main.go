// Momentum Sync daemon and CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ducphamhoang/momentum-sync/internal/api"
	"github.com/ducphamhoang/momentum-sync/internal/auth"
	"github.com/ducphamhoang/momentum-sync/internal/config"
	"github.com/ducphamhoang/momentum-sync/internal/logging"
	"github.com/ducphamhoang/momentum-sync/internal/provider"
	"github.com/ducphamhoang/momentum-sync/internal/providers/googletasks"
	"github.com/ducphamhoang/momentum-sync/internal/scheduler"
	"github.com/ducphamhoang/momentum-sync/internal/storage"
	taskssync "github.com/ducphamhoang/momentum-sync/internal/sync"
)

var version = "dev"

var (
	configPath string
	dataDir    string
	port       int
)

const localUser = "local"

func main() {
	rootCmd := &cobra.Command{
		Use:   "momentum",
		Short: "Momentum Sync - keep your tasks in sync with external platforms",
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (overrides config)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync daemon and HTTP API",
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&port, "port", 0, "HTTP server port (overrides config)")

	syncCmd := &cobra.Command{
		Use:   "sync [provider]",
		Short: "Run one sync for a provider",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSync,
	}

	connectCmd := &cobra.Command{
		Use:   "connect [provider]",
		Short: "Print the authorization URL for a provider",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConnect,
	}

	disconnectCmd := &cobra.Command{
		Use:   "disconnect [provider]",
		Short: "Revoke a provider connection",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runDisconnect,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("momentum", version)
		},
	}

	rootCmd.AddCommand(serveCmd, syncCmd, connectCmd, disconnectCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles the wired components shared by the subcommands.
type app struct {
	cfg      *config.Config
	db       *storage.DB
	tasks    *storage.TaskStore
	auth     *auth.Manager
	registry *provider.Registry
	engine   *taskssync.Engine
}

func buildApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := storage.Open(storage.Config{Path: cfg.DatabasePath()})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	tokenStore := storage.NewTokenStore(db)

	oauthCfg := googletasks.OAuthConfig{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
	}
	authMgr := auth.NewManager(tokenStore, map[string]auth.ProviderConfig{
		googletasks.ProviderName: googletasks.ProviderConfig(oauthCfg),
	})

	registry := provider.NewRegistry(googletasks.New(authMgr))
	tasks := storage.NewTaskStore(db)

	return &app{
		cfg:      cfg,
		db:       db,
		tasks:    tasks,
		auth:     authMgr,
		registry: registry,
		engine:   taskssync.New(tasks, registry),
	}, nil
}

func (a *app) close() {
	a.db.Close()
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.Google.ClientID == "" || a.cfg.Google.ClientSecret == "" {
		fmt.Println("⚠️  GOOGLE_CLIENT_ID / GOOGLE_CLIENT_SECRET not set - Google Tasks sync disabled")
	}

	// Background sync loop
	sched := scheduler.New()
	if a.cfg.Sync.Enabled {
		err := sched.Register(&scheduler.Job{
			ID:       "sync-" + googletasks.ProviderName,
			Name:     "Google Tasks sync",
			Interval: a.cfg.Sync.Interval,
			Timeout:  5 * time.Minute,
			Handler: func(ctx context.Context) error {
				connected, err := a.auth.Connected(ctx, localUser, googletasks.ProviderName)
				if err != nil || !connected {
					return err
				}
				result, err := a.engine.SyncUserTasks(ctx, localUser, googletasks.ProviderName)
				if err != nil {
					return err
				}
				if !result.Success() {
					return fmt.Errorf("sync finished with %d errors", len(result.Errors))
				}
				return nil
			},
		})
		if err != nil {
			return fmt.Errorf("register sync job: %w", err)
		}
		if err := sched.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
		fmt.Printf("🔄 Background sync every %s\n", a.cfg.Sync.Interval)
	}

	server := api.New(api.Config{
		Addr:     a.cfg.Addr(),
		Tasks:    a.tasks,
		Auth:     a.auth,
		Engine:   a.engine,
		Registry: a.registry,
	})

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\n👋 Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Stop(ctx)
	}()

	fmt.Printf("🚀 Momentum Sync listening on http://%s\n", a.cfg.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func providerArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return googletasks.ProviderName
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	providerName := providerArg(args)
	fmt.Printf("🔄 Syncing %s...\n", providerName)

	result, err := a.engine.SyncUserTasks(cmd.Context(), localUser, providerName)
	if err != nil {
		return err
	}

	fmt.Printf("   Pulled:    %d\n", result.Pulled)
	fmt.Printf("   Pushed:    %d\n", result.Pushed)
	fmt.Printf("   Conflicts: %d\n", result.Conflicts)
	fmt.Printf("   Duration:  %s\n", result.Duration.Round(time.Millisecond))
	for _, msg := range result.Errors {
		fmt.Printf("   ⚠️  %s\n", msg)
	}
	if !result.Success() {
		return fmt.Errorf("sync finished with errors")
	}
	fmt.Println("✅ Sync complete")
	return nil
}

func runConnect(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	providerName := providerArg(args)
	url, err := a.auth.AuthorizationURL(localUser, providerName)
	if err != nil {
		return err
	}

	fmt.Println("Open this URL in your browser to authorize:")
	fmt.Println()
	fmt.Println("  " + url)
	fmt.Println()
	fmt.Println("The running daemon completes the connection at the callback.")
	return nil
}

func runDisconnect(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	providerName := providerArg(args)
	if err := a.auth.RevokeToken(cmd.Context(), localUser, providerName); err != nil {
		return err
	}
	fmt.Printf("✅ Disconnected %s\n", providerName)
	return nil
}
