package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgoulah/dukescraper/internal/scraper"
	"github.com/jgoulah/dukescraper/pkg/dukeenergy"
)

var (
	debugVisible bool
	debugOutput  string
	debugWait    string
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Render the meter page in a browser and check the meter widget",
	Long: `Logs in, opens the usage analysis page in Chrome with the session cookies and runs
the meter widget extractor on the rendered HTML. Use this when meter discovery breaks
to see what the portal actually serves.

Flags:
  --visible    Open visible browser and pause for inspection
  --output     Save rendered HTML to a file`,
	RunE: runDebug,
}

func init() {
	debugCmd.Flags().BoolVar(&debugVisible, "visible", false, "Open visible browser and pause")
	debugCmd.Flags().StringVar(&debugOutput, "output", "", "Save HTML to this file")
	debugCmd.Flags().StringVar(&debugWait, "wait", "body", "CSS selector to wait for before reading the page")
	rootCmd.AddCommand(debugCmd)
}

func runDebug(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := newClient(cmd.Context(), cfg, nil)
	if err != nil {
		return err
	}
	defer client.Logout()

	pageURL := client.MeterPageURL()
	fmt.Printf("Rendering %s with %d session cookie(s)...\n", pageURL, len(client.Cookies()))

	opts := scraper.RenderOptions{
		Visible:      debugVisible,
		WaitSelector: debugWait,
		Timeout:      5 * time.Minute,
	}
	if debugVisible {
		opts.Hold = func() {
			fmt.Println("\nBrowser is open. Inspect the page, then press Enter to close...")
			fmt.Scanln()
		}
	}

	page, err := scraper.Render(cmd.Context(), pageURL, client.BaseURL().Hostname(), client.Cookies(), opts)
	if err != nil {
		return err
	}
	fmt.Printf("Rendered %d bytes, browser holds %d cookie(s)\n", len(page.HTML), len(page.Cookies))

	if debugOutput != "" {
		if err := os.WriteFile(debugOutput, []byte(page.HTML), 0644); err != nil {
			return fmt.Errorf("writing output file: %w", err)
		}
		fmt.Printf("✓ HTML saved to %s\n", debugOutput)
	}

	items, err := dukeenergy.WidgetExtractor{}.ExtractMeterItems(strings.NewReader(page.HTML))
	if err != nil {
		fmt.Printf("Meter widget: %v\n", err)
	} else {
		fmt.Printf("Meter widget lists %d meter(s):\n", len(items))
		for _, item := range items {
			_, _, perr := dukeenergy.ParseMeterNumber(item.Text)
			status := "ok"
			if perr != nil {
				status = perr.Error()
			}
			fmt.Printf("  %-24s  start %-12s  %s\n", item.Text, item.CalendarStartDate, status)
		}
	}
	return nil
}
