package main

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jgoulah/dukescraper/internal/database"
	"github.com/jgoulah/dukescraper/pkg/dukeenergy"
	"github.com/jgoulah/dukescraper/pkg/models"
)

var fetchMeter string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch billing and usage data for every meter",
	Long: `Discovers the meters of the active account, then fetches the latest billing period
and the weekly daily-energy chart of each one. Billing snapshots and daily kWh values
are stored in the local SQLite database; duplicate days are skipped.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchMeter, "meter", "", `Only fetch this meter (e.g. "ELECTRIC - 123456")`)
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Fetch started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	if cfg.MetricsTextfile != "" {
		defer func() {
			if err := prometheus.WriteToTextfile(cfg.MetricsTextfile, reg); err != nil {
				log.Error().Err(err).Str("path", cfg.MetricsTextfile).Msg("failed to write metrics")
			}
		}()
	}

	client, err := newClient(ctx, cfg, reg)
	if err != nil {
		return err
	}

	meters, err := client.GetMeters(ctx)
	if err != nil {
		return fmt.Errorf("discovering meters: %w", err)
	}
	if err := storeMeters(db, meters); err != nil {
		return err
	}
	fmt.Printf("Found %d meter(s) on account %s\n", len(meters), client.Account())

	var failed int
	for _, m := range meters {
		if fetchMeter != "" && m.Number() != fetchMeter {
			continue
		}

		fmt.Printf("Fetching %s... ", m.Number())
		updateErr := m.Update(ctx)

		// whatever half succeeded is still stored
		stored, err := storeMeterData(db, m)
		if err != nil {
			return err
		}

		if updateErr != nil {
			failed++
		}
		fmt.Println(fetchOutcome(updateErr, stored))
	}

	if failed > 0 {
		return fmt.Errorf("%d meter(s) failed to update", failed)
	}
	return nil
}

// fetchOutcome is the single status line printed for a meter.
func fetchOutcome(updateErr error, stored int) string {
	if updateErr != nil {
		return fmt.Sprintf("FAILED: %v (%d new day(s) stored)", updateErr, stored)
	}
	return fmt.Sprintf("✓ %d new day(s)", stored)
}

// storeMeterData saves the billing snapshot and daily usage recorded on m and
// returns the number of new usage rows.
func storeMeterData(db *database.DB, m *dukeenergy.Meter) (int, error) {
	if billing := m.Billing(); billing != nil {
		if err := db.InsertBilling(m.Number(), time.Now(), billing); err != nil {
			return 0, err
		}
	}

	var stored int
	for _, d := range m.Usage().Daily() {
		inserted, err := db.InsertUsage(&models.UsageData{
			Meter: m.Number(),
			Date:  d.Date,
			KWh:   d.Usage,
		})
		if err != nil {
			return stored, err
		}
		if inserted {
			stored++
		}
	}
	return stored, nil
}
