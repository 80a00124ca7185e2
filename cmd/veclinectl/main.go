package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kailas-cloud/vecline/internal/bootstrap"
	"github.com/kailas-cloud/vecline/internal/cli"
	"github.com/kailas-cloud/vecline/internal/config"
	logpkg "github.com/kailas-cloud/vecline/internal/logger"
	"github.com/kailas-cloud/vecline/internal/version"
)

func main() {
	rootCmd := cli.NewRootCmd(version.String(), openPipeline)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func openPipeline(ctx context.Context, configPath string) (*cli.Pipeline, error) {
	env := config.GetEnv()

	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return nil, err //nolint:wrapcheck // config errors name the file
	}

	// stdout carries results; logs go to stderr at warn unless debug is asked for.
	level := ""
	if cfg.Logging.Level == "debug" {
		level = "debug"
	}
	logger, err := logpkg.NewLogger(logpkg.EnvCLI, level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	app, err := bootstrap.Build(ctx, &cfg, logger)
	if err != nil {
		return nil, err //nolint:wrapcheck // already descriptive
	}
	return &cli.Pipeline{
		Engine:  app.Engine,
		Orderer: app.Orderer,
		Health:  app.Health,
		Limits:  app.Limits,
		Close: func() error {
			_ = logger.Sync()
			return app.Close()
		},
	}, nil
}
