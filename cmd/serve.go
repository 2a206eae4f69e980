package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nmt-api/internal/cache"
	"nmt-api/internal/config"
	inferencefactory "nmt-api/internal/inference/factory"
	"nmt-api/internal/logger"
	"nmt-api/internal/server"
	"nmt-api/internal/translation"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var overridePort int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the translation API. Configuration comes from built-in defaults, the optional
YAML file given by --config, a .env file and environment variables, in that order.
The model loads in the background; translation endpoints return 503 until it is ready.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("port") {
				if overridePort <= 0 || overridePort > 65535 {
					return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
				}
				cfg.Server.Port = overridePort
			}

			return runServer(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "Path to YAML configuration file")
	cmd.Flags().IntVar(&overridePort, "port", 0, "Override server port from configuration")
	return cmd
}

func runServer(cmd *cobra.Command, cfg config.Config) error {
	ctx := cmd.Context()

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	provider, err := inferencefactory.NewProvider(cfg.Model)
	if err != nil {
		return err
	}

	opts := translation.Options{
		Candidates: []translation.Candidate{
			{Source: cfg.Model.Path, Name: cfg.Model.Name},
			{Source: cfg.Model.Fallback, Name: cfg.Model.Fallback},
		},
		Device:         cfg.Model.Device,
		RequestTimeout: cfg.Model.RequestTimeout,
		Logger:         log,
	}

	if cfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedis(cfg.Cache.RedisURL, cfg.Cache.TTL)
		if err != nil {
			return err
		}
		defer func() { _ = rc.Close() }()

		if err := rc.Ping(ctx); err != nil {
			log.Warn("translation cache unavailable, continuing without it", zap.Error(err))
		} else {
			log.Info("translation cache enabled", zap.Duration("ttl", cfg.Cache.TTL))
			opts.Cache = rc
		}
	}

	svc, err := translation.NewService(provider, opts)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, svc, log)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
