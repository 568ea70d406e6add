package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jgoulah/dukescraper/internal/config"
)

var (
	initEmail string
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Writes a config file with the portal email and disabled Home Assistant and MQTT
sections to fill in. The password is not stored; set DUKE_PASSWORD or add it to the file.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initEmail, "email", "", "Duke Energy account email")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := getConfigPath()
	if err := writeStarterConfig(path, initEmail, initForce); err != nil {
		return err
	}
	fmt.Printf("✓ Config written to %s\n", path)
	return nil
}

func writeStarterConfig(path, email string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := &config.Config{
		Duke: config.DukeConfig{
			Email:                 email,
			UpdateIntervalMinutes: 60,
		},
		HomeAssistant: config.HAConfig{
			URL:          "http://homeassistant.local:5050",
			EntityPrefix: "sensor.duke_energy",
		},
		MQTT: config.MQTTConfig{
			Broker:      "localhost:1883",
			TopicPrefix: "duke_energy",
		},
	}
	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}
