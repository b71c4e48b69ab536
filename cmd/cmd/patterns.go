package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"echoframe/internal/config"
	"echoframe/internal/core"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Inspect and manage risk pattern definitions",
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the patterns in the configured definitions file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		reg, err := loadRegistry(cfg)
		if err != nil {
			return err
		}
		for _, p := range reg.ActivePatterns() {
			fmt.Printf("%-30s %-14s %-12s %-8s %d keywords\n",
				p.ID, p.Sector, p.PatternType, p.RiskLevel, len(p.Keywords))
		}
		return nil
	},
}

var patternsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the pattern definitions file and report rejected patterns",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		reg, err := loadRegistry(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("%d patterns loaded from %s\n", reg.Len(), cfg.Patterns.File)
		return nil
	},
}

var patternsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upsert the definitions file patterns into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		reg, err := loadRegistry(cfg)
		if err != nil {
			return err
		}

		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		var synced int
		for _, p := range reg.ActivePatterns() {
			pattern := p
			if err := db.Patterns().Upsert(cmd.Context(), &pattern); err != nil {
				return fmt.Errorf("sync pattern %s: %w", pattern.ID, err)
			}
			synced++
		}
		fmt.Printf("Synced %d patterns\n", synced)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(patternsCmd)
	patternsCmd.AddCommand(patternsListCmd)
	patternsCmd.AddCommand(patternsValidateCmd)
	patternsCmd.AddCommand(patternsSyncCmd)
}

// sectorFlag parses an optional sector flag value.
func sectorFlag(value string) (*core.Sector, error) {
	if value == "" {
		return nil, nil
	}
	sector, err := core.ParseSector(value)
	if err != nil {
		return nil, err
	}
	return &sector, nil
}
