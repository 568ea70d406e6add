package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	listMeter   string
	listBilling bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored usage data",
	Long:  `Displays stored daily usage per meter and, with --billing, the latest billing snapshot.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listMeter, "meter", "", "Filter by meter number")
	listCmd.Flags().BoolVar(&listBilling, "billing", false, "Also show the latest billing snapshot")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	data, err := db.ListUsage(listMeter)
	if err != nil {
		return fmt.Errorf("listing usage: %w", err)
	}
	if len(data) == 0 {
		fmt.Println("No data found")
		return nil
	}

	fmt.Println("----------------------------------------------------------")
	fmt.Printf("%-24s  %-12s  %10s  %s\n", "Meter", "Date", "kWh", "")
	fmt.Println("----------------------------------------------------------")

	var total float64
	meters := map[string]bool{}
	for _, record := range data {
		fmt.Printf("%-24s  %-12s  %10.2f  %s\n",
			record.Meter, record.Date.Format("2006-01-02"), record.KWh, humanize.Time(record.Date))
		total += record.KWh
		meters[record.Meter] = true
	}

	fmt.Println("----------------------------------------------------------")
	fmt.Printf("Total: %s kWh (%s records)\n", humanize.CommafWithDigits(total, 2), humanize.Comma(int64(len(data))))

	if !listBilling {
		return nil
	}
	for _, meter := range slices.Sorted(maps.Keys(meters)) {
		snap, err := db.LatestBilling(meter)
		if err != nil {
			return fmt.Errorf("loading billing for %s: %w", meter, err)
		}
		if snap == nil {
			continue
		}
		fmt.Printf("\n%s billing (fetched %s):\n", meter, humanize.Time(snap.FetchedAt))
		for _, k := range slices.Sorted(maps.Keys(snap.Payload)) {
			fmt.Printf("  %-28s %v\n", k, snap.Payload[k])
		}
	}
	return nil
}
