package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/atelier-agent-org/atelier-agent/pkg/agent/tools"
	"github.com/atelier-agent-org/atelier-agent/pkg/api"
	"github.com/atelier-agent-org/atelier-agent/pkg/api/service"
	"github.com/atelier-agent-org/atelier-agent/pkg/config"
	"github.com/atelier-agent-org/atelier-agent/pkg/llm"
	"github.com/atelier-agent-org/atelier-agent/pkg/llm/factory"
	"github.com/atelier-agent-org/atelier-agent/pkg/runtime"
	"github.com/atelier-agent-org/atelier-agent/pkg/store"
	"github.com/atelier-agent-org/atelier-agent/pkg/tool"
	"github.com/atelier-agent-org/atelier-agent/pkg/types"
	"github.com/atelier-agent-org/atelier-agent/pkg/vfs"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		logger.Error("atelier exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	flagSet := flag.NewFlagSet("atelier", flag.ContinueOnError)
	configPath := flagSet.String("config", "", "Path to configuration file")
	projectID := flagSet.String("project", "default", "Project ID for one-shot mode")
	goal := flagSet.String("goal", "", "Goal to run in one-shot mode")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	mode := ""
	if remaining := flagSet.Args(); len(remaining) > 0 {
		mode = remaining[0]
	}

	switch mode {
	case "clean":
		return cmdClean(slog.Default())
	case "run":
		return cmdRun(ctx, *configPath, *projectID, *goal)
	default:
		return cmdServe(ctx, *configPath)
	}
}

func cmdClean(logger *slog.Logger) error {
	workingDir, _ := os.Getwd()
	dataDir := filepath.Join(workingDir, config.DefaultDataDir)
	logger.Info("cleaning session data", "path", dataDir)
	if err := os.RemoveAll(dataDir); err != nil {
		return fmt.Errorf("clean session data: %w", err)
	}
	logger.Info("cleanup complete")
	return nil
}

// env holds the shared wiring built once from configuration.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	gateway *llm.Gateway
	rtCfg   runtime.Config
	durable store.Store
}

func setup(ctx context.Context, configPath string) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Warn("failed to load config, using defaults", "error", err)
		cfg = &config.Config{}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	provider, providerID, err := factory.NewProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create llm provider: %w", err)
	}
	_, opts, err := cfg.GetActiveProvider()
	if err != nil {
		return nil, err
	}

	rtCfg := runtime.DefaultConfig
	rtCfg.Model = opts.Model
	if cfg.Agent.MaxToolCalls > 0 {
		rtCfg.MaxToolCalls = cfg.Agent.MaxToolCalls
	}
	if cfg.Agent.HistoryWindow > 0 {
		rtCfg.HistoryWindow = cfg.Agent.HistoryWindow
	}

	dataDir := cfg.Store.DataDir
	if dataDir == "" {
		dataDir = config.DefaultDataDir
	}
	durable, err := store.NewFSStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	logger.Info("atelier starting", "provider", providerID, "model", rtCfg.Model)
	return &env{
		cfg:     cfg,
		logger:  logger,
		gateway: llm.NewGateway(provider, opts),
		rtCfg:   rtCfg,
		durable: durable,
	}, nil
}

// newResources builds the per-session runtime wiring: a fresh virtual
// project, its tool catalog, and a cache-over-durable session store.
func (e *env) newResources(parent context.Context, projectID string) (*service.SessionResources, error) {
	project := vfs.NewProject(projectID)

	registry := tool.NewRegistry()
	if err := tools.RegisterAll(registry, project); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	dispatcher := tool.NewDispatcher(registry, e.logger)

	sessionStore := store.NewFallbackStore(store.NewMemoryStore(), e.durable, e.logger)

	rt := runtime.New(runtime.Options{
		Config:  e.rtCfg,
		Gateway: e.gateway,
		Tools:   dispatcher,
		Catalog: registry,
		Store:   sessionStore,
		Project: project,
		Logger:  e.logger,
	})

	ctx, cancel := context.WithCancel(parent)
	return &service.SessionResources{
		Runtime: rt,
		Project: project,
		Ctx:     ctx,
		Cancel:  cancel,
	}, nil
}

func cmdRun(ctx context.Context, configPath, projectID, goal string) error {
	if goal == "" {
		return errors.New("run mode requires -goal")
	}

	e, err := setup(ctx, configPath)
	if err != nil {
		return err
	}

	resources, err := e.newResources(ctx, projectID)
	if err != nil {
		return err
	}
	defer resources.Cancel()

	exec, err := resources.Runtime.Run(resources.Ctx, goal)
	if err != nil {
		return fmt.Errorf("run goal: %w", err)
	}

	msgs := resources.Runtime.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == types.RoleAssistant && msgs[i].Content != "" {
			fmt.Println(msgs[i].Content)
			break
		}
	}
	e.logger.Info("goal finished", "execution", exec.ID, "steps", exec.CurrentStep)
	return nil
}

func cmdServe(ctx context.Context, configPath string) error {
	e, err := setup(ctx, configPath)
	if err != nil {
		return err
	}

	sessionFactory := func(projectID string) (*service.SessionResources, error) {
		return e.newResources(ctx, projectID)
	}
	sessionSvc := service.NewSessionService(sessionFactory, e.logger)

	apiCfg := api.Config{
		Enable: e.cfg.HTTP.Enable,
		Addr:   e.cfg.HTTP.Addr,
		APIKey: e.cfg.HTTP.APIKey,
	}
	server := api.NewServer(apiCfg, sessionSvc, e.logger)
	httpSrv := &http.Server{Addr: server.Addr(), Handler: server.Engine()}

	go func() {
		<-ctx.Done()
		_ = httpSrv.Shutdown(context.Background())
	}()

	e.logger.Info("http api listening", "addr", server.Addr())
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	e.logger.Info("http api stopped")
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG", "VERBOSE":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
