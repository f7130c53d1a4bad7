package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/cognitive-hub/internal/auth"
	"github.com/rickgao/cognitive-hub/internal/config"
	"github.com/rickgao/cognitive-hub/internal/connection"
	"github.com/rickgao/cognitive-hub/internal/database"
	"github.com/rickgao/cognitive-hub/internal/lima"
	"github.com/rickgao/cognitive-hub/internal/metrics"
	"github.com/rickgao/cognitive-hub/internal/router"
	"github.com/rickgao/cognitive-hub/internal/session"
	"github.com/rickgao/cognitive-hub/internal/skills"
	"github.com/rickgao/cognitive-hub/internal/speech/azure"
	"github.com/rickgao/cognitive-hub/internal/transport"
	"github.com/rickgao/cognitive-hub/internal/version"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the hub server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting hub",
		"version", version.Version,
		"commit", version.Commit,
		"config", configPath,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, closeSource, err := newSkillsSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	m := metrics.New()
	ua := version.UserAgent()

	speech := azure.NewClient(cfg.Speech,
		azure.WithLogger(logger),
		azure.WithUserAgent(ua),
	)
	nlu := lima.NewClient(cfg.NLU,
		lima.WithLogger(logger),
		lima.WithUserAgent(ua),
	)

	manager := connection.NewManager(connection.Deps{
		ASR: speech,
		TTS: speech,
		NLU: nlu,
		ASRConfig: session.ASRConfig{
			Language:         cfg.Speech.Language,
			EOSTimeout:       cfg.Speech.EOSTimeout,
			MaxSpeechTimeout: cfg.Speech.MaxSpeechTimeout,
		},
		Skills: source,
		SkillDeps: skills.Deps{
			Password:    cfg.Skills.RemotePassword,
			Arbitration: cfg.Skills.Arbitration,
			Registry:    skills.NewRegistry(),
			UserAgent:   ua,
		},
		ManifestTimeout: cfg.Skills.FetchTimeout,
		Metrics:         m,
		Logger:          logger,
	})
	rt := router.New(manager, logger)
	sockets := transport.NewServer(cfg.Server, manager, rt, auth.NewValidator(cfg.Auth.Secret, cfg.Auth.Issuer), logger)

	mux := http.NewServeMux()
	sockets.Register(mux)
	registerHandlers(mux, manager, rt, time.Now(), logger)

	hubServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle(cfg.Metrics.Path, m.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("hub listening",
			"addr", cfg.Server.Addr,
			"device_path", cfg.Server.DevicePath,
			"controller_path", cfg.Server.ControllerPath,
			"app_path", cfg.Server.AppPath,
		)
		return listen(hubServer)
	})

	g.Go(func() error {
		logger.Info("metrics listening", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		return listen(metricsServer)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		sockets.Close()
		manager.Close()
		return errors.Join(
			hubServer.Shutdown(shutdownCtx),
			metricsServer.Shutdown(shutdownCtx),
		)
	})

	if err := g.Wait(); err != nil {
		logger.Error("hub stopped with error", "error", err)
		return err
	}
	logger.Info("hub stopped")
	return nil
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}
	return nil
}

// newSkillsSource builds the manifest source selected by skills.source.
// The returned func releases any resources the source holds.
func newSkillsSource(ctx context.Context, cfg *config.HubConfig, logger *slog.Logger) (skills.Source, func(), error) {
	switch cfg.Skills.Source {
	case config.SkillsSourceFile:
		logger.Info("skills manifest from file", "path", cfg.Skills.ManifestPath)
		return skills.FileSource{Path: cfg.Skills.ManifestPath}, func() {}, nil

	case config.SkillsSourcePostgres:
		db := cfg.Database.Postgres
		logger.Info("connecting to database",
			"host", db.Host,
			"port", db.Port,
			"database", db.Name,
		)
		pool, err := database.Connect(ctx, db)
		if err != nil {
			return nil, nil, err
		}
		src := database.NewSkillsSource(pool)
		if err := src.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("database connected")
		return src, pool.Close, nil

	default:
		return skills.StaticSource{M: skills.DefaultManifest()}, func() {}, nil
	}
}
