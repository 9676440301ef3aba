package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/deepscout/deepscout/config"
	"github.com/deepscout/deepscout/node"
)

// EnvConfigYAML overrides the config file path.
const EnvConfigYAML = "DEEPSCOUT_CONFIG_YAML"

func newServeCommand() *cobra.Command {
	var configPath string
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the research server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, listenAddr)
		},
	}
	cmd.Flags().StringVar(&configPath, "config-yaml", "", "Path to YAML configuration file (default config.yaml)")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "Override the configured listen address")
	return cmd
}

func runServe(configPath, listenAddr string) error {
	loggerConfig := zap.NewProductionConfig()
	loggerConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := loggerConfig.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	if configPath == "" {
		configPath = os.Getenv(EnvConfigYAML)
	}
	if configPath == "" {
		configPath = "config.yaml"
	}

	var cfg config.IConfig
	if _, statErr := os.Stat(configPath); statErr != nil && os.IsNotExist(statErr) {
		logger.Warn("Config file not found, using built-in defaults", zap.String("path", configPath))
		cfg = config.NewInternalConfig()
	} else {
		logger.Info("Loading configuration from YAML file", zap.String("path", configPath))
		cfg, err = config.NewYamlConfig(configPath, logger)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}
	defer cfg.Close()

	// Update logger level based on configuration.
	if logLevel, err := cfg.LogLevel(); err == nil {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			logger.Warn("Invalid log level in config, using default", zap.String("level", logLevel), zap.Error(err))
		} else {
			loggerConfig.Level = zap.NewAtomicLevelAt(level)
			if newLogger, err := loggerConfig.Build(); err == nil {
				logger.Info("Updating log level", zap.String("level", logLevel))
				logger = newLogger
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		logger.Info("Received termination signal")
		cancel()
	}()

	n, err := node.Start(ctx, logger, cfg, listenAddr)
	if err != nil {
		return fmt.Errorf("node failed to start: %w", err)
	}

	<-ctx.Done()

	shutdownTimeout := 1 * time.Minute
	logger.Info("Waiting for node to shut down", zap.Duration("timeout", shutdownTimeout))
	if n.WaitForShutdown(shutdownTimeout) {
		logger.Info("Research server stopped gracefully")
	} else {
		logger.Warn("Research server shutdown timed out")
	}
	return nil
}
