package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"echoframe/internal/config"
)

var (
	analyzeSince string
	analyzeLimit int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Evaluate recently ingested articles against the active risk patterns",
	Long: `Analyze fetches articles ingested within the lookback window, matches each
one against the active pattern set, scores the matches, and persists
deduplicated risk alerts. Failures are per (article, pattern) and never abort
the rest of the batch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()

		lookback, err := time.ParseDuration(analyzeSince)
		if err != nil {
			return fmt.Errorf("invalid --since duration: %w", err)
		}

		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		reg, err := loadRegistry(cfg)
		if err != nil {
			return err
		}

		p, err := newPipeline(cmd.Context(), cfg, db, reg)
		if err != nil {
			return err
		}
		result, err := p.AnalyzeRecent(cmd.Context(), time.Now().Add(-lookback), analyzeLimit)
		if err != nil {
			return err
		}

		fmt.Printf("Analyzed %d articles: %d alerts, %d suppressed, %d failures\n",
			result.Articles, result.Alerts, result.Suppressed, result.Failures)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeSince, "since", "24h", "lookback window for articles to analyze")
	analyzeCmd.Flags().IntVar(&analyzeLimit, "limit", 0, "max articles to analyze (0 = configured batch limit)")
}
