package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgoulah/dukescraper/internal/publisher"
)

var generateStatsMeter string

var generateStatsCmd = &cobra.Command{
	Use:   "generate-stats",
	Short: "Generate statistics in Home Assistant from backfilled states",
	Long:  `Calls the AppDaemon endpoint to compile statistics from the backfilled daily states of each meter. Run this after publishing to populate the Energy dashboard.`,
	RunE:  runGenerateStats,
}

func init() {
	generateStatsCmd.Flags().StringVar(&generateStatsMeter, "meter", "", "Meter to generate statistics for (default: all stored meters)")
	rootCmd.AddCommand(generateStatsCmd)
}

func runGenerateStats(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Generate Statistics started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.HomeAssistant.Enabled {
		return fmt.Errorf("Home Assistant is not enabled in config")
	}

	pub, err := publisher.New(cfg.MQTT, cfg.HomeAssistant)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	var meters []string
	if generateStatsMeter != "" {
		meters = append(meters, generateStatsMeter)
	} else {
		db, err := openDB()
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		records, err := db.ListMeters()
		db.Close()
		if err != nil {
			return fmt.Errorf("listing meters: %w", err)
		}
		for _, m := range records {
			meters = append(meters, m.Number)
		}
	}
	if len(meters) == 0 {
		return fmt.Errorf("no meters stored, run 'dukescraper meters' first")
	}

	for _, meter := range meters {
		fmt.Printf("Generating statistics for %s...\n", pub.EntityID(meter))
		result, err := pub.GenerateStatistics(cmd.Context(), meter)
		if err != nil {
			return fmt.Errorf("generating statistics for %s: %w", meter, err)
		}

		fmt.Printf("✓ Statistics generated successfully\n")
		fmt.Printf("  - Inserted: %d new statistics records\n", result.Inserted)
		fmt.Printf("  - Updated: %d existing statistics records\n", result.Updated)
		fmt.Printf("  - Total hours: %d\n", result.TotalHours)
	}

	return nil
}
