package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jgoulah/dukescraper/internal/database"
	"github.com/jgoulah/dukescraper/pkg/dukeenergy"
	"github.com/jgoulah/dukescraper/pkg/models"
)

var metersStoredOnly bool

var metersCmd = &cobra.Command{
	Use:   "meters",
	Short: "Discover the meters of the active account",
	Long:  `Reads the meters listed on the usage analysis page, stores them in the database and prints them.`,
	RunE:  runMeters,
}

func init() {
	metersCmd.Flags().BoolVar(&metersStoredOnly, "stored", false, "Only print meters already in the database")
	rootCmd.AddCommand(metersCmd)
}

func runMeters(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if !metersStoredOnly {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		client, err := newClient(cmd.Context(), cfg, nil)
		if err != nil {
			return err
		}
		fmt.Printf("Account %s\n", client.Account())

		meters, err := client.GetMeters(cmd.Context())
		if err != nil {
			return fmt.Errorf("discovering meters: %w", err)
		}
		if err := storeMeters(db, meters); err != nil {
			return err
		}
	}

	records, err := db.ListMeters()
	if err != nil {
		return fmt.Errorf("listing meters: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No meters found")
		return nil
	}

	fmt.Println("----------------------------------------------------------")
	fmt.Printf("%-24s  %-12s  %s\n", "Meter", "Active since", "Updated")
	fmt.Println("----------------------------------------------------------")
	for _, m := range records {
		fmt.Printf("%-24s  %-12s  %s\n", m.Number, m.StartDate, humanize.Time(m.UpdatedAt))
	}
	return nil
}

func storeMeters(db *database.DB, meters []*dukeenergy.Meter) error {
	now := time.Now()
	for _, m := range meters {
		if err := db.UpsertMeter(models.MeterRecord{
			Number:    m.Number(),
			Type:      m.Type,
			MeterID:   m.ID,
			StartDate: m.StartDate,
			UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("storing meter %s: %w", m.Number(), err)
		}
	}
	return nil
}
