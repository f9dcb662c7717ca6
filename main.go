// ytblog/main.go
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"ytblog/config"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	cfg           *config.Config
	logger        *slog.Logger
	clientPath    string
	clientTimeout time.Duration
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "ytblog",
	Short:         "Turn videos into draft blog articles",
	Long:          "ytblog runs the blog ingestion API and the command line client that submits videos to it.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		logger = newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&clientPath, "client-state", "", "Path to the client state file (default ~/.config/ytblog/client.yaml)")
	rootCmd.PersistentFlags().DurationVar(&clientTimeout, "client-timeout", 30*time.Second, "Timeout of each request the client commands send to the blog")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(queueCmd)
}

// newLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
