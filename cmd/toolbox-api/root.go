package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ironsheep/toolbox-api/internal/config"
	"github.com/ironsheep/toolbox-api/internal/logging"
	"github.com/ironsheep/toolbox-api/internal/server"
)

var (
	configFile string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "toolbox-api",
	Short: "toolbox-api - small HTTP toolbox service",
	Long: `toolbox-api serves a handful of independent HTTP endpoints: image blur,
base64 image capture, geocoding, iris species prediction, bulk email and
text to speech.

Configuration is read from toolbox.yaml (or --config), TOOLBOX_* environment
variables and an optional .env file. Flags override everything else.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "config file (default: ./toolbox.yaml or ~/.config/toolbox-api/toolbox.yaml)")
	rootCmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded into the environment if present")
	rootCmd.Flags().String("addr", "0.0.0.0:5000", "listen address")
	rootCmd.Flags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.Flags().String("log-format", "text", "log format: text or json")

	rootCmd.AddCommand(versionCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadEnvFile(envFile); err != nil {
		return err
	}

	cfg, err := config.Load(config.Options{
		ConfigFile: configFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return err
	}

	logger, err := logging.New(os.Stderr, logging.LevelFromString(cfg.Log.Level), cfg.Log.Format)
	if err != nil {
		return err
	}
	logger.Info("starting toolbox-api", "version", Version, "build_time", BuildTime, "commit", GitCommit)

	deps, cleanup, err := buildDeps(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	srv, err := server.New(server.Options{
		Addr:            cfg.Server.Addr,
		MaxUploadBytes:  cfg.Server.MaxUploadBytes,
		ReadTimeout:     cfg.Server.ReadTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, deps)
	if err != nil {
		return err
	}

	for _, route := range server.Routes() {
		logger.Debug("route registered", "method", route.Method, "path", route.Path, "description", route.Description)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}

// loadEnvFile loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}
