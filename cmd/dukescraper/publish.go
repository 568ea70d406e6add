package main

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgoulah/dukescraper/internal/publisher"
	"github.com/jgoulah/dukescraper/pkg/models"
)

var (
	publishMeter   string
	publishSince   string
	publishUntil   string
	publishAll     bool
	publishLimit   int
	publishBilling bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish usage data to Home Assistant and MQTT",
	Long: `Reads stored daily usage from the database and publishes it to every enabled target:
the Home Assistant AppDaemon backfill API and/or an MQTT broker.`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishMeter, "meter", "", "Meter to publish (default: all meters)")
	publishCmd.Flags().StringVar(&publishSince, "since", "", "Only publish data since this date (YYYY-MM-DD or relative like 7d)")
	publishCmd.Flags().StringVar(&publishUntil, "until", "", "Only publish data until this date (YYYY-MM-DD)")
	publishCmd.Flags().BoolVar(&publishAll, "all", false, "Force republish all records (ignore published flag)")
	publishCmd.Flags().IntVar(&publishLimit, "limit", 0, "Limit number of records to publish (0 = no limit)")
	publishCmd.Flags().BoolVar(&publishBilling, "billing", true, "Also publish the latest billing snapshot over MQTT")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.HomeAssistant.Enabled && !cfg.MQTT.Enabled {
		return fmt.Errorf("neither Home Assistant nor MQTT is enabled in config")
	}

	pub, err := publisher.New(cfg.MQTT, cfg.HomeAssistant)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var data []models.UsageData
	if publishAll {
		data, err = db.ListUsage(publishMeter)
	} else {
		data, err = db.ListUnpublishedUsage(publishMeter)
	}
	if err != nil {
		return fmt.Errorf("listing usage: %w", err)
	}

	data, err = filterUsage(data, publishSince, publishUntil, time.Now())
	if err != nil {
		return err
	}
	if len(data) == 0 {
		fmt.Println("No data to publish")
	}
	if publishLimit > 0 && len(data) > publishLimit {
		data = data[:publishLimit]
		fmt.Printf("Limiting to %d records (--limit flag)\n", publishLimit)
	}

	published := 0
	meters := map[string]bool{}
	for i, record := range data {
		fmt.Printf("[%d/%d] Publishing %s %s (%.2f kWh)... ", i+1, len(data), record.Meter, record.Date.Format("2006-01-02"), record.KWh)
		if err := publishRecord(cmd, pub, record); err != nil {
			fmt.Printf("FAILED: %v\n", err)
			continue
		}
		meters[record.Meter] = true

		if err := db.MarkPublished(record.ID); err != nil {
			fmt.Printf("✓ (warning: failed to mark as published: %v)\n", err)
		} else {
			fmt.Printf("✓\n")
		}
		published++
	}
	fmt.Printf("\nTotal records published: %d/%d\n", published, len(data))

	if !publishBilling || !pub.MQTTEnabled() {
		return nil
	}
	if publishMeter != "" {
		meters[publishMeter] = true
	}
	for _, meter := range slices.Sorted(maps.Keys(meters)) {
		snap, err := db.LatestBilling(meter)
		if err != nil {
			return fmt.Errorf("loading billing for %s: %w", meter, err)
		}
		if snap == nil {
			continue
		}
		if err := pub.PublishBilling(meter, snap.Payload); err != nil {
			fmt.Printf("Publishing billing for %s FAILED: %v\n", meter, err)
			continue
		}
		fmt.Printf("✓ Published billing for %s\n", meter)
	}
	return nil
}

func publishRecord(cmd *cobra.Command, pub *publisher.Publisher, record models.UsageData) error {
	if pub.HAEnabled() {
		if err := pub.Publish(cmd.Context(), record); err != nil {
			return fmt.Errorf("home assistant: %w", err)
		}
	}
	if pub.MQTTEnabled() {
		if err := pub.PublishUsage(record); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	return nil
}

// filterUsage keeps records inside the optional since/until range
func filterUsage(data []models.UsageData, since, until string, now time.Time) ([]models.UsageData, error) {
	var sinceDate, untilDate time.Time
	var err error
	if since != "" {
		if sinceDate, err = parseDate(since, now); err != nil {
			return nil, fmt.Errorf("parsing --since date: %w", err)
		}
	}
	if until != "" {
		if untilDate, err = parseDate(until, now); err != nil {
			return nil, fmt.Errorf("parsing --until date: %w", err)
		}
	}
	if sinceDate.IsZero() && untilDate.IsZero() {
		return data, nil
	}

	var out []models.UsageData
	for _, record := range data {
		if !sinceDate.IsZero() && record.Date.Before(sinceDate) {
			continue
		}
		if !untilDate.IsZero() && record.Date.After(untilDate) {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

// parseDate parses a date string in either YYYY-MM-DD format or relative format (e.g., "7d")
func parseDate(dateStr string, now time.Time) (time.Time, error) {
	t, err := time.Parse("2006-01-02", dateStr)
	if err == nil {
		return t, nil
	}

	if len(dateStr) > 1 && dateStr[len(dateStr)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(dateStr[:len(dateStr)-1], "%d", &days); err == nil {
			d := now.AddDate(0, 0, -days)
			return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date format: %s (use YYYY-MM-DD or Nd for N days ago)", dateStr)
}
