// Package cmd implements the echoframe CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"echoframe/internal/config"
	"echoframe/internal/logger"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "echoframe",
	Short: "EchoFrame evaluates ingested news articles against configured risk patterns.",
	Long: `EchoFrame is the risk pattern matching and alert deduplication engine.
It consumes ingested articles, matches them against configured sector risk
patterns, scores the matches, and persists deduplicated risk alerts for
downstream delivery.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.echoframe.yaml)")
}

// initConfig reads configuration and initializes logging.
func initConfig() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}
	logger.Init(cfg.Logging.Level)
}
