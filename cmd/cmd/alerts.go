package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"echoframe/internal/config"
	"echoframe/internal/core"
	"echoframe/internal/persistence"
)

var (
	alertsSector   string
	alertsMinLevel string
	alertsSince    string
	alertsSent     string
	alertsLimit    int
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Query persisted risk alerts",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts filtered by sector, level, time range, and sent-status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()

		filter := persistence.AlertFilter{Limit: alertsLimit}

		sector, err := sectorFlag(alertsSector)
		if err != nil {
			return err
		}
		filter.Sector = sector

		if alertsMinLevel != "" {
			level, err := core.ParseRiskLevel(alertsMinLevel)
			if err != nil {
				return err
			}
			filter.MinLevel = &level
		}
		if alertsSince != "" {
			lookback, err := time.ParseDuration(alertsSince)
			if err != nil {
				return fmt.Errorf("invalid --since duration: %w", err)
			}
			filter.Since = time.Now().Add(-lookback)
		}
		switch alertsSent {
		case "":
		case "true", "false":
			sent := alertsSent == "true"
			filter.Sent = &sent
		default:
			return fmt.Errorf("--sent must be true or false, got %q", alertsSent)
		}

		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		alerts, err := db.Alerts().List(cmd.Context(), filter)
		if err != nil {
			return err
		}

		for _, alert := range alerts {
			fmt.Printf("%s  %-8s %-14s %.2f  sent=%-5t %s\n",
				alert.CreatedAt.Format(time.RFC3339), alert.RiskLevel, alert.Sector,
				alert.RiskScore, alert.IsSent, alert.Summary)
		}
		fmt.Printf("%d alerts\n", len(alerts))
		return nil
	},
}

var alertsMarkSentCmd = &cobra.Command{
	Use:   "mark-sent [alert-id...]",
	Short: "Mark alerts as delivered",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Alerts().MarkSent(cmd.Context(), args); err != nil {
			return err
		}
		fmt.Printf("Marked %d alerts as sent\n", len(args))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsMarkSentCmd)

	alertsListCmd.Flags().StringVar(&alertsSector, "sector", "", "filter by sector")
	alertsListCmd.Flags().StringVar(&alertsMinLevel, "min-level", "", "minimum risk level (low/medium/high/critical)")
	alertsListCmd.Flags().StringVar(&alertsSince, "since", "", "lookback window (e.g. 168h)")
	alertsListCmd.Flags().StringVar(&alertsSent, "sent", "", "filter by sent-status (true/false)")
	alertsListCmd.Flags().IntVar(&alertsLimit, "limit", 50, "max alerts to list")
}
