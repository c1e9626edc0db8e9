package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"cdpoauth/internal/config"
	"cdpoauth/internal/logger"
)

var (
	configPath string
	logLevel   string
	provider   string
)

var rootCmd = &cobra.Command{
	Use:   "cdpoauth",
	Short: "OAuth2 login through a browser attached over DevTools",
	Long: `cdpoauth drives an OAuth2 login inside a Chrome page attached over the
DevTools protocol. The redirect back to http://localhost carrying key and
secret is intercepted and turned into a session cookie for the auth endpoint.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "cdpoauth.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "OAuth2 provider, overrides auth.provider")
	rootCmd.AddCommand(loginCmd, replayCmd, targetsCmd)
}

// setup 加载配置并初始化日志
func setup() (*config.Config, logger.Logger, io.Closer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if provider != "" {
		cfg.Auth.Provider = provider
	}
	log, closer, err := logger.New(logger.Options{
		Level:  cfg.Log.Level,
		Writer: cfg.Log.Writer,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, closer, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
