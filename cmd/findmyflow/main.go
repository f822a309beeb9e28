package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "findmyflow",
		Short:        "Find My Flow backend: guided flows, offer scoring and paid unlocks",
		SilenceUsage: true,
	}

	serve := serveCmd()
	root.AddCommand(serve, scoreCmd(), validateCmd())

	// Bare `findmyflow` runs the server.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// ─── LOGGING ──────────────────────────────────────────────────────────────────

// newLogger builds the process logger. JSON in production, text otherwise;
// log-level and log-format override either default.
func newLogger(v *viper.Viper) *slog.Logger {
	production := os.Getenv("ENV") == "production"

	level := slog.LevelDebug
	if production {
		level = slog.LevelInfo
	}
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	format := "text"
	if production {
		format = "json"
	}
	if f := strings.ToLower(v.GetString("log-format")); f != "" {
		format = f
	}

	opts := &slog.HandlerOptions{Level: level}
	var logger *slog.Logger
	if format == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	slog.SetDefault(logger)
	return logger
}

// viperForCmd binds a command's flags and FINDMYFLOW_* environment to a
// fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("FINDMYFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return v
}
